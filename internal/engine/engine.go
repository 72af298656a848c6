// Package engine implements the chat engines that answer questions over
// ingested content. The retrieval engine serves text, PDF, and webpage
// uploads through hybrid keyword and semantic search; the database engine
// serves SQLite uploads by generating and executing SQL.
package engine

import (
	"context"

	"github.com/quaigle/quaigle/internal/models"
)

// Document is one ingested piece of content handed to an engine. The caller
// fills FileName, Category, and either Text or Path; AddDocument fills Label
// and Summary.
type Document struct {
	FileName string
	Category models.ContentCategory
	// Text is the extracted plain text. Unused by the database engine.
	Text string
	// Path points at the staged file. Only the database engine reads it.
	Path string
	// Label is the topic the engine assigned ("database" for SQLite files,
	// an LLM-chosen topic otherwise). Reported as text_category.
	Label string
	// Summary is the human-readable ingestion confirmation.
	Summary string
}

// ChatEngine answers questions over previously added documents.
type ChatEngine interface {
	// AddDocument ingests doc and fills its Label and Summary.
	AddDocument(ctx context.Context, doc *Document) error
	// AnswerQuestion answers a question against the ingested content.
	AnswerQuestion(ctx context.Context, question string) (string, error)
	// ClearHistory drops conversational memory and returns a confirmation.
	ClearHistory() string
	// ClearStorage deletes everything the engine persisted.
	ClearStorage() error
	// UpdateTemperature sets the sampling temperature for following answers.
	UpdateTemperature(temperature float64)
	// HasContext reports whether any content has been ingested.
	HasContext() bool
	// GenerateQuiz builds a multiple choice test from the ingested content.
	GenerateQuiz(ctx context.Context) (*models.MultipleChoiceTest, error)
	Close() error
}
