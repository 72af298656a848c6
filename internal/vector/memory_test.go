package vector

import (
	"context"
	"path/filepath"
	"testing"
)

func TestMemoryIndexAddSearch(t *testing.T) {
	idx, err := NewMemoryIndex(3)
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()
	ctx := context.Background()

	err = idx.Add(ctx,
		[]string{"a", "b", "c"},
		[][]float32{{1, 0, 0}, {0, 1, 0}, {0.9, 0.1, 0}},
	)
	if err != nil {
		t.Fatal(err)
	}
	results, err := idx.Search(ctx, []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].ID != "a" {
		t.Errorf("top hit = %s, want a", results[0].ID)
	}
	if results[1].ID != "c" {
		t.Errorf("second hit = %s, want c", results[1].ID)
	}
}

func TestMemoryIndexDimensionMismatch(t *testing.T) {
	idx, _ := NewMemoryIndex(3)
	defer idx.Close()
	ctx := context.Background()
	if err := idx.Add(ctx, []string{"a"}, [][]float32{{1, 0}}); err == nil {
		t.Error("Add with wrong dimension should fail")
	}
	if _, err := idx.Search(ctx, []float32{1, 0}, 1); err == nil {
		t.Error("Search with wrong dimension should fail")
	}
}

func TestMemoryIndexSaveLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vectors.bin")
	ctx := context.Background()

	idx, _ := NewMemoryIndex(2)
	_ = idx.Add(ctx, []string{"x", "y"}, [][]float32{{1, 0}, {0, 1}})
	if err := idx.Save(path); err != nil {
		t.Fatal(err)
	}

	loaded, _ := NewMemoryIndex(2)
	if err := loaded.Load(path); err != nil {
		t.Fatal(err)
	}
	if loaded.Size() != 2 {
		t.Fatalf("loaded size = %d, want 2", loaded.Size())
	}
	results, err := loaded.Search(ctx, []float32{1, 0}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if results[0].ID != "x" {
		t.Errorf("top hit after load = %s, want x", results[0].ID)
	}

	wrongDim, _ := NewMemoryIndex(4)
	if err := wrongDim.Load(path); err == nil {
		t.Error("Load with mismatched dimensions should fail")
	}
}

func TestMemoryIndexLoadMissingFile(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	if err := idx.Load(filepath.Join(t.TempDir(), "nope.bin")); err != nil {
		t.Errorf("Load of missing file should be a no-op, got %v", err)
	}
}

func TestInnerProduct(t *testing.T) {
	if got := InnerProduct([]float32{1, 2}, []float32{3, 4}); got != 11 {
		t.Errorf("InnerProduct = %v, want 11", got)
	}
	if got := InnerProduct([]float32{1}, []float32{1, 2}); got != 0 {
		t.Errorf("mismatched lengths should yield 0, got %v", got)
	}
}
