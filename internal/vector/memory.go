// Package vector provides an in-memory vector index with cosine search and
// binary persistence.
package vector

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// Result is a single vector search hit. ID is the chunk ID.
type Result struct {
	ID    string
	Score float64 // inner product; cosine similarity for normalized vectors
}

// MemoryIndex is an in-memory vector index using brute-force inner product
// search. One session's document set is small enough that brute force is the
// production path; persistence goes through Save/Load.
type MemoryIndex struct {
	dimensions int
	ids        []string
	vectors    [][]float32
	mu         sync.RWMutex
}

// NewMemoryIndex creates an in-memory vector index with the given dimension.
func NewMemoryIndex(dimensions int) (*MemoryIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &MemoryIndex{dimensions: dimensions}, nil
}

// Add appends vectors with the given IDs.
func (m *MemoryIndex) Add(ctx context.Context, ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, id := range ids {
		if len(vectors[i]) != m.dimensions {
			return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(vectors[i]), m.dimensions)
		}
		vec := make([]float32, m.dimensions)
		copy(vec, vectors[i])
		m.ids = append(m.ids, id)
		m.vectors = append(m.vectors, vec)
	}
	return nil
}

// Search returns the top-k vectors by inner product.
func (m *MemoryIndex) Search(ctx context.Context, query []float32, k int) ([]*Result, error) {
	if len(query) != m.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), m.dimensions)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if k <= 0 || len(m.ids) == 0 {
		return nil, nil
	}
	type scored struct {
		id    string
		score float64
	}
	scores := make([]scored, len(m.ids))
	for i, vec := range m.vectors {
		scores[i] = scored{id: m.ids[i], score: InnerProduct(query, vec)}
	}
	sort.Slice(scores, func(i, j int) bool { return scores[i].score > scores[j].score })
	if k > len(scores) {
		k = len(scores)
	}
	out := make([]*Result, k)
	for i := 0; i < k; i++ {
		out[i] = &Result{ID: scores[i].id, Score: scores[i].score}
	}
	return out, nil
}

// Save persists the index to path. Format: dimensions (4), n (4), then per
// vector: idLen (4), id bytes, vector (dimensions*4 bytes).
func (m *MemoryIndex) Save(path string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	defer f.Close()
	if err := binary.Write(f, binary.LittleEndian, uint32(m.dimensions)); err != nil {
		return fmt.Errorf("write dimensions: %w", err)
	}
	if err := binary.Write(f, binary.LittleEndian, uint32(len(m.ids))); err != nil {
		return fmt.Errorf("write count: %w", err)
	}
	for i, id := range m.ids {
		idBytes := []byte(id)
		if err := binary.Write(f, binary.LittleEndian, uint32(len(idBytes))); err != nil {
			return fmt.Errorf("write id len: %w", err)
		}
		if _, err := f.Write(idBytes); err != nil {
			return fmt.Errorf("write id: %w", err)
		}
		if _, err := f.Write(float32SliceToBytes(m.vectors[i])); err != nil {
			return fmt.Errorf("write vector: %w", err)
		}
	}
	return nil
}

// Load reads the index from path, replacing in-memory contents. Dimensions
// must match. A missing file is not an error; the index stays unchanged.
func (m *MemoryIndex) Load(path string) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open index file: %w", err)
	}
	defer f.Close()
	var dim, n uint32
	if err := binary.Read(f, binary.LittleEndian, &dim); err != nil {
		return fmt.Errorf("read dimensions: %w", err)
	}
	if int(dim) != m.dimensions {
		return fmt.Errorf("dimension mismatch: file has %d, index expects %d", dim, m.dimensions)
	}
	if err := binary.Read(f, binary.LittleEndian, &n); err != nil {
		return fmt.Errorf("read count: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ids = make([]string, 0, n)
	m.vectors = make([][]float32, 0, n)
	buf := make([]byte, m.dimensions*4)
	for i := uint32(0); i < n; i++ {
		var idLen uint32
		if err := binary.Read(f, binary.LittleEndian, &idLen); err != nil {
			return fmt.Errorf("read id len: %w", err)
		}
		idBytes := make([]byte, idLen)
		if _, err := io.ReadFull(f, idBytes); err != nil {
			return fmt.Errorf("read id: %w", err)
		}
		if _, err := io.ReadFull(f, buf); err != nil {
			return fmt.Errorf("read vector: %w", err)
		}
		m.ids = append(m.ids, string(idBytes))
		m.vectors = append(m.vectors, bytesToFloat32Slice(buf))
	}
	return nil
}

// Size returns the number of vectors in the index.
func (m *MemoryIndex) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.ids)
}

// Close releases the index contents.
func (m *MemoryIndex) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ids = nil
	m.vectors = nil
	return nil
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}
