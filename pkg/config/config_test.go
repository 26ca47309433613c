package config

import (
	"bytes"
	"os"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
}

func TestValidateRejectsBadCodebookSize(t *testing.T) {
	cfg := Default()
	cfg.CodebookSize = 100
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for non-power codebook size")
	}
}

func TestValidateRejectsInvertedEdgeSizes(t *testing.T) {
	cfg := Default()
	cfg.EdgeSizeForCreation = 1
	cfg.EdgeSizeLimitForCreation = 5
	if err := cfg.Validate(); err == nil {
		t.Error("expected error when creation size is below the limit")
	}
}

func TestLoadFromEnvOverridesDefaults(t *testing.T) {
	os.Setenv("NGT_DIMENSIONS", "256")
	os.Setenv("NGT_NUM_BLOBS", "128")
	defer os.Unsetenv("NGT_DIMENSIONS")
	defer os.Unsetenv("NGT_NUM_BLOBS")

	cfg := LoadFromEnv()
	if cfg.Dimensions != 256 {
		t.Errorf("Dimensions = %d, want 256", cfg.Dimensions)
	}
	if cfg.NumBlobs != 128 {
		t.Errorf("NumBlobs = %d, want 128", cfg.NumBlobs)
	}
	if cfg.CodebookSize != Default().CodebookSize {
		t.Errorf("unset env var should leave default CodebookSize, got %d", cfg.CodebookSize)
	}
}

func TestPropertySetRoundTrip(t *testing.T) {
	p := NewPropertySet()
	p.Set("dimension", 128)
	p.Set("edgeSizeForCreation", 10)
	p.Set("objectType", "Float")

	var buf bytes.Buffer
	if err := p.Save(&buf); err != nil {
		t.Fatal(err)
	}

	loaded, err := LoadPropertySet(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.GetInt("dimension", -1) != 128 {
		t.Errorf("dimension = %d, want 128", loaded.GetInt("dimension", -1))
	}
	if loaded.Get("objectType") != "Float" {
		t.Errorf("objectType = %q, want Float", loaded.Get("objectType"))
	}
}

func TestPropertySetDefaultOnMissingOrBadValue(t *testing.T) {
	p := NewPropertySet()
	p.Set("bad", "not-a-number")
	if v := p.GetFloat("missing", 3.14); v != 3.14 {
		t.Errorf("expected default for missing key, got %v", v)
	}
	if v := p.GetInt("bad", 7); v != 7 {
		t.Errorf("expected default for unparseable key, got %v", v)
	}
}
