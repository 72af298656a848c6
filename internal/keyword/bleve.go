// Package keyword provides the persisted chunk index backing the retrieval engine.
package keyword

import (
	"context"
	"fmt"
	"os"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	index "github.com/blevesearch/bleve_index_api"
)

// ChunkDoc is one indexed chunk. Content is stored so retrieval can hand the
// chunk text to the LLM as context.
type ChunkDoc struct {
	DocumentID string `json:"document_id"`
	Title      string `json:"title"`
	Content    string `json:"content"`
}

// Result is a single keyword search hit.
type Result struct {
	ID      string
	Score   float64
	Content string
}

// BleveIndex is the persisted chunk index.
type BleveIndex struct {
	index bleve.Index
}

// NewBleveIndex creates or opens a Bleve index at path. An existing index is
// opened and reused so documents ingested before a restart stay queryable.
func NewBleveIndex(path string) (*BleveIndex, error) {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer (lowercase + tokenize, no stemming) so query terms
	// match the exact words stored in chunks.
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("content", textFieldMapping)
	docMapping.AddFieldMappingsAt("title", textFieldMapping)
	keywordFieldMapping := bleve.NewKeywordFieldMapping()
	docMapping.AddFieldMappingsAt("document_id", keywordFieldMapping)
	im.AddDocumentMapping("chunk", docMapping)
	im.DefaultType = "chunk"
	im.DefaultMapping = docMapping

	if _, err := os.Stat(path); err == nil {
		idx, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: idx}, nil
	}

	idx, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: idx}, nil
}

// Index indexes a chunk by id.
func (b *BleveIndex) Index(ctx context.Context, id string, doc *ChunkDoc) error {
	return b.index.Index(id, doc)
}

// Search runs a match query over title and content and returns up to limit
// hits with their stored content.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int) ([]*Result, error) {
	req := bleve.NewSearchRequest(bleve.NewMatchQuery(query))
	req.Size = limit
	req.Fields = []string{"content"}
	return b.runSearch(req)
}

// All returns up to limit chunks regardless of query. Used to sample context
// for quiz generation.
func (b *BleveIndex) All(ctx context.Context, limit int) ([]*Result, error) {
	req := bleve.NewSearchRequest(bleve.NewMatchAllQuery())
	req.Size = limit
	req.Fields = []string{"content"}
	return b.runSearch(req)
}

func (b *BleveIndex) runSearch(req *bleve.SearchRequest) ([]*Result, error) {
	results, err := b.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	out := make([]*Result, len(results.Hits))
	for i, hit := range results.Hits {
		r := &Result{ID: hit.ID, Score: hit.Score}
		if c, ok := hit.Fields["content"].(string); ok {
			r.Content = c
		}
		out[i] = r
	}
	return out, nil
}

// Content returns the stored content of the chunk with the given id.
func (b *BleveIndex) Content(id string) (string, error) {
	doc, err := b.index.Document(id)
	if err != nil {
		return "", fmt.Errorf("fetch chunk %s: %w", id, err)
	}
	if doc == nil {
		return "", fmt.Errorf("chunk not found: %s", id)
	}
	var content string
	doc.VisitFields(func(f index.Field) {
		if f.Name() == "content" {
			content = string(f.Value())
		}
	})
	return content, nil
}

// DocCount returns the number of chunks in the index.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the underlying index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}
