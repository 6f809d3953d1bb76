package vectorstore

import (
	"context"
	"errors"
	"testing"
)

func TestChromaMetadataRoundTrip(t *testing.T) {
	meta := map[string]any{
		"source":      "docs/sky.pdf",
		"chunk_index": 2,
		"pages":       int64(7),
		"ratio":       0.25,
		"draft":       false,
		"text":        "stored as the document",
	}

	got := fromChromaMetadata(toChromaMetadata(meta))

	if got["source"] != "docs/sky.pdf" {
		t.Errorf("source = %v", got["source"])
	}
	// JSON decoding yields float64 for numbers.
	if got["chunk_index"] != float64(2) {
		t.Errorf("chunk_index = %#v", got["chunk_index"])
	}
	if got["pages"] != float64(7) {
		t.Errorf("pages = %#v", got["pages"])
	}
	if got["ratio"] != 0.25 {
		t.Errorf("ratio = %#v", got["ratio"])
	}
	if got["draft"] != false {
		t.Errorf("draft = %#v", got["draft"])
	}
	if _, ok := got["text"]; ok {
		t.Error("text should not be stored as metadata")
	}
}

func TestFromChromaMetadata_Nil(t *testing.T) {
	if got := fromChromaMetadata(nil); got != nil {
		t.Errorf("fromChromaMetadata(nil) = %v", got)
	}
}

func TestDistanceToScore(t *testing.T) {
	tests := []struct {
		distance float32
		want     float32
	}{
		{distance: 0, want: 1},
		{distance: 1, want: 0},
		{distance: 2, want: -1},
	}
	for _, tt := range tests {
		if got := distanceToScore(tt.distance); got != tt.want {
			t.Errorf("distanceToScore(%v) = %v, want %v", tt.distance, got, tt.want)
		}
	}

	// Closer vectors must rank higher.
	if distanceToScore(0.1) <= distanceToScore(0.4) {
		t.Error("smaller distance should give a higher score")
	}
}

func TestChromaStore_EarlyReturns(t *testing.T) {
	store := &ChromaStore{}
	ctx := context.Background()

	if err := store.Upsert(ctx, "c", nil); err != nil {
		t.Errorf("Upsert() with no points = %v", err)
	}
	if err := store.Delete(ctx, "c", nil); err != nil {
		t.Errorf("Delete() with no ids = %v", err)
	}
	if _, err := store.Search(ctx, "c", []float32{1}, 0); !errors.Is(err, ErrInvalidK) {
		t.Errorf("Search(k=0) error = %v, want ErrInvalidK", err)
	}
}
