package embeddings

import "testing"

func TestNewRejectsEmptyAPIKey(t *testing.T) {
	if _, err := New("", "", 0); err == nil {
		t.Fatal("expected error for empty apiKey")
	}
}

func TestNewDefaultsModel(t *testing.T) {
	c, err := New("test-key", "", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.model != DefaultModel {
		t.Fatalf("expected default model %q, got %q", DefaultModel, c.model)
	}
}
