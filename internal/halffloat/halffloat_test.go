package halffloat

import "testing"

func TestRoundTrip(t *testing.T) {
	vals := []float32{0, 1, -1, 0.5, 3.14159, 65504, -65504, 1e-5, 60000}
	for _, v := range vals {
		h := FromFloat32(v)
		got := h.Float32()
		if diff := got - v; diff > 0.01*absf(v)+1e-3 || diff < -(0.01*absf(v)+1e-3) {
			t.Errorf("FromFloat32(%v).Float32() = %v, diff too large", v, got)
		}
	}
}

func TestZero(t *testing.T) {
	if FromFloat32(0).Float32() != 0 {
		t.Error("zero should round-trip exactly")
	}
	neg := FromFloat32(float32(-0.0))
	if neg.Float32() != 0 {
		t.Error("negative zero should widen to zero")
	}
}

func TestInf(t *testing.T) {
	h := FromFloat32(1e30)
	f := h.Float32()
	if !isInf32(f) {
		t.Errorf("expected overflow to Inf, got %v", f)
	}
}

func absf(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

func isInf32(f float32) bool {
	return f > 3.4e38 || f < -3.4e38
}
