package quantization

import "testing"

func TestSquaredDistance(t *testing.T) {
	if d := SquaredDistance([]float32{0, 0}, []float32{3, 4}); d != 25 {
		t.Errorf("SquaredDistance = %v, want 25", d)
	}
	if d := SquaredDistance([]float32{1, 2, 3}, []float32{1, 2, 3}); d != 0 {
		t.Errorf("identical vectors should be at distance 0, got %v", d)
	}
}

func TestKMeansPlusPlusSeparatesObviousClusters(t *testing.T) {
	var vectors [][]float32
	for i := 0; i < 20; i++ {
		vectors = append(vectors, []float32{float32(i%5) * 0.01, 0})
		vectors = append(vectors, []float32{100 + float32(i%5)*0.01, 0})
	}

	centroids, err := KMeansPlusPlus(vectors, 2, DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if len(centroids) != 2 {
		t.Fatalf("expected 2 centroids, got %d", len(centroids))
	}

	// One centroid per obvious cluster, nowhere in between.
	nearZero, nearHundred := 0, 0
	for _, c := range centroids {
		switch {
		case c[0] < 1:
			nearZero++
		case c[0] > 99:
			nearHundred++
		}
	}
	if nearZero != 1 || nearHundred != 1 {
		t.Errorf("expected one centroid per cluster, got %v", centroids)
	}
}

func TestKMeansPlusPlusRejectsDegenerateInput(t *testing.T) {
	if _, err := KMeansPlusPlus(nil, 2, DefaultConfig()); err == nil {
		t.Error("expected error for empty training set")
	}
	if _, err := KMeansPlusPlus([][]float32{{1}}, 2, DefaultConfig()); err == nil {
		t.Error("expected error when k exceeds the training set")
	}
}

func TestKMeansPlusPlusIsDeterministicForSeed(t *testing.T) {
	vectors := [][]float32{{0, 0}, {0, 1}, {10, 0}, {10, 1}, {5, 5}, {6, 5}}
	a, err := KMeansPlusPlus(vectors, 3, Config{Iterations: 10, Seed: 7})
	if err != nil {
		t.Fatal(err)
	}
	b, err := KMeansPlusPlus(vectors, 3, Config{Iterations: 10, Seed: 7})
	if err != nil {
		t.Fatal(err)
	}
	for i := range a {
		for d := range a[i] {
			if a[i][d] != b[i][d] {
				t.Fatalf("same seed should reproduce the same centroids: %v vs %v", a, b)
			}
		}
	}
}
