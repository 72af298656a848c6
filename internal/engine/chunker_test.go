package engine

import (
	"strings"
	"testing"
)

func TestChunkerOverlap(t *testing.T) {
	c := NewChunker(4, 1)
	words := []string{"a", "b", "c", "d", "e", "f", "g"}
	chunks := c.Chunk("doc", strings.Join(words, " "))
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks", len(chunks))
	}
	if chunks[0].Content != "a b c d" {
		t.Errorf("first chunk = %q", chunks[0].Content)
	}
	if chunks[1].Content != "d e f g" {
		t.Errorf("second chunk = %q", chunks[1].Content)
	}
	if chunks[0].ID == chunks[1].ID {
		t.Error("chunk IDs must be unique")
	}
	if !strings.HasPrefix(chunks[0].ID, "doc_") {
		t.Errorf("chunk ID %q should carry the document ID", chunks[0].ID)
	}
}

func TestChunkerEmptyText(t *testing.T) {
	c := NewChunker(10, 2)
	if chunks := c.Chunk("doc", "   \n "); chunks != nil {
		t.Errorf("whitespace-only text should yield no chunks, got %d", len(chunks))
	}
}

func TestChunkerOverlapAtLeastOneStep(t *testing.T) {
	// Overlap >= size would loop forever without the step clamp.
	c := NewChunker(2, 5)
	chunks := c.Chunk("doc", "a b c d")
	if len(chunks) == 0 {
		t.Fatal("no chunks")
	}
	if chunks[len(chunks)-1].ChunkIndex != len(chunks)-1 {
		t.Error("chunk indices should be sequential")
	}
}

func TestStripCodeFences(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"plain text", "plain text"},
		{"```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"```\nSELECT 1\n```", "SELECT 1"},
		{"```sql\nSELECT 1\n```", "SELECT 1"},
		{"  ```json\n{}\n```  ", "{}"},
	}
	for _, tc := range cases {
		if got := stripCodeFences(tc.in); got != tc.want {
			t.Errorf("stripCodeFences(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeLabel(t *testing.T) {
	if normalizeLabel(" Science ") != "science" {
		t.Error("known label should normalize")
	}
	if normalizeLabel("astrology") != "other" {
		t.Error("unknown label should map to other")
	}
}
