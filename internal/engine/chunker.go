package engine

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Chunk is one overlapping window of a document's text.
type Chunk struct {
	ID         string
	DocumentID string
	Content    string
	ChunkIndex int
}

// Chunker splits text into overlapping word-based chunks.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker creates a chunker with the given size and overlap (in words).
func NewChunker(chunkSize, chunkOverlap int) *Chunker {
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}
}

// Chunk splits text into chunks with overlapping windows.
func (c *Chunker) Chunk(docID, text string) []*Chunk {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	chunks := make([]*Chunk, 0)
	chunkIndex := 0
	step := c.chunkSize - c.chunkOverlap
	if step <= 0 {
		step = 1
	}
	for i := 0; i < len(words); i += step {
		end := i + c.chunkSize
		if end > len(words) {
			end = len(words)
		}
		chunkWords := words[i:end]
		chunk := &Chunk{
			ID:         fmt.Sprintf("%s_%s", docID, uuid.New().String()[:8]),
			DocumentID: docID,
			Content:    strings.Join(chunkWords, " "),
			ChunkIndex: chunkIndex,
		}
		chunks = append(chunks, chunk)
		chunkIndex++
		if end >= len(words) {
			break
		}
	}
	return chunks
}
