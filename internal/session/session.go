// Package session manages the single chat session: which engine is active,
// its token tracker, and the upload-driven engine lifecycle.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/quaigle/quaigle/internal/engine"
	"github.com/quaigle/quaigle/internal/extract"
	"github.com/quaigle/quaigle/internal/fetch"
	"github.com/quaigle/quaigle/internal/ingest"
	"github.com/quaigle/quaigle/internal/models"
	"github.com/quaigle/quaigle/internal/staging"
	"github.com/quaigle/quaigle/internal/tokencount"
)

// ErrNoQuizContext is returned by Quiz when nothing has been ingested yet.
var ErrNoQuizContext = errors.New("No context provided, please provide a url or a text file!")

// ErrQuizDatabase is returned by Quiz when a database is loaded.
var ErrQuizDatabase = errors.New("A database is loaded, but no valid context for a quiz. Please provide a webpage url or a text file!")

// EngineFactory builds engines for the session. Each engine gets its own
// token tracker.
type EngineFactory interface {
	NewRetrievalEngine(ctx context.Context, tracker *tokencount.Tracker) (engine.ChatEngine, error)
	NewDatabaseEngine(ctx context.Context, tracker *tokencount.Tracker) (engine.ChatEngine, error)
}

// Session serializes all operations of the single chat session behind one
// mutex and swaps engines when an upload crosses the text/database boundary.
type Session struct {
	factory   EngineFactory
	staging   *staging.Store
	extractor *extract.Extractor
	fetcher   *fetch.Fetcher
	logger    *zap.Logger

	mu      sync.Mutex
	engine  engine.ChatEngine
	tracker *tokencount.Tracker
	// family is the engine family of the installed engine, recorded at swap
	// time. category tracks the last successful ingestion for the status
	// endpoint; the two diverge when an ingestion fails right after a swap.
	family    models.ContentCategory
	category  models.ContentCategory
	fileName  string
	documents int
}

// New returns a session with no engine loaded.
func New(factory EngineFactory, store *staging.Store, logger *zap.Logger) *Session {
	return &Session{
		factory:   factory,
		staging:   store,
		extractor: extract.NewExtractor(),
		fetcher:   fetch.NewFetcher(),
		logger:    logger,
	}
}

// Upload classifies the request, stages and extracts the payload, routes it
// to the right engine (building or swapping one if needed), and returns the
// ingestion summary. A failed upload never destroys the previous engine.
func (s *Session) Upload(ctx context.Context, req ingest.Request, payload io.Reader) (*models.TextSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	artifact, err := ingest.Classify(req)
	if err != nil {
		return nil, err
	}

	doc, err := s.prepareDocument(ctx, artifact, payload)
	if err != nil {
		return nil, err
	}
	if err := s.ensureEngineFor(ctx, artifact.Category); err != nil {
		return nil, err
	}
	if err := s.engine.AddDocument(ctx, doc); err != nil {
		return nil, err
	}
	s.category = artifact.Category
	s.fileName = artifact.SourceID
	s.documents++

	return &models.TextSummary{
		FileName:     artifact.SourceID,
		TextCategory: doc.Label,
		Summary:      doc.Summary,
		UsedTokens:   s.tracker.Total(),
	}, nil
}

// prepareDocument stages the payload and extracts its text.
func (s *Session) prepareDocument(ctx context.Context, artifact *ingest.Artifact, payload io.Reader) (*engine.Document, error) {
	doc := &engine.Document{
		FileName: artifact.SourceID,
		Category: artifact.Category,
	}

	switch {
	case artifact.RemoteURL != "":
		body, err := s.fetcher.Fetch(ctx, artifact.RemoteURL)
		if err != nil {
			return nil, err
		}
		_, text, err := extract.ExtractHTML(body)
		if err != nil {
			return nil, err
		}
		doc.Text = text
	case payload != nil:
		path, err := s.staging.Save(artifact.StagedName, payload)
		if err != nil {
			return nil, err
		}
		doc.Path = path
		if !artifact.Category.IsDatabase() {
			text, err := s.extractor.ExtractFile(path)
			if err != nil {
				return nil, err
			}
			doc.Text = text
		}
	default:
		// Reference to a pre-staged file in the data directory. A missing
		// file surfaces as an fs error.
		path := s.staging.Path(artifact.StagedName)
		doc.Path = path
		if !artifact.Category.IsDatabase() {
			text, err := s.extractor.ExtractFile(path)
			if err != nil {
				return nil, err
			}
			doc.Text = text
		}
	}
	return doc, nil
}

// ensureEngineFor keeps the current engine when the new upload belongs to
// the same engine family, and otherwise builds the replacement first and
// swaps only after construction succeeded.
func (s *Session) ensureEngineFor(ctx context.Context, category models.ContentCategory) error {
	if s.engine != nil && s.family.IsDatabase() == category.IsDatabase() {
		return nil
	}

	tracker := tokencount.NewTracker()
	var (
		next engine.ChatEngine
		err  error
	)
	if category.IsDatabase() {
		next, err = s.factory.NewDatabaseEngine(ctx, tracker)
	} else {
		next, err = s.factory.NewRetrievalEngine(ctx, tracker)
	}
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}

	if s.engine != nil {
		if cerr := s.engine.Close(); cerr != nil {
			s.logger.Warn("closing replaced engine failed", zap.Error(cerr))
		}
	}
	s.engine = next
	s.tracker = tracker
	s.family = category
	s.documents = 0
	return nil
}

// AskQuestion answers a question with the active engine. Without an engine
// it returns a fixed fallback instead of failing.
func (s *Session) AskQuestion(ctx context.Context, question string, temperature float64) (*models.QAResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(question) == "" {
		return nil, ingest.ErrEmptyQuestion
	}
	if s.engine == nil {
		return &models.QAResponse{
			UserQuestion: question,
			AIAnswer:     "Sorry, no context loaded. Please upload a file or url.",
			UsedTokens:   0,
		}, nil
	}

	s.tracker.Reset()
	s.engine.UpdateTemperature(temperature)
	answer, err := s.engine.AnswerQuestion(ctx, question)
	if err != nil {
		return nil, err
	}
	return &models.QAResponse{
		UserQuestion: question,
		AIAnswer:     answer,
		UsedTokens:   s.tracker.Total(),
	}, nil
}

// ClearHistory drops the active engine's conversational memory.
func (s *Session) ClearHistory() *models.TextResponse {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.engine == nil {
		return &models.TextResponse{Message: "No active chat available, please load a document."}
	}
	return &models.TextResponse{Message: s.engine.ClearHistory()}
}

// ClearStorage deletes everything: engine storage, staged files, and the
// session state itself.
func (s *Session) ClearStorage() (*models.TextResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.engine != nil {
		if err := s.engine.ClearStorage(); err != nil {
			return nil, err
		}
		if err := s.engine.Close(); err != nil {
			s.logger.Warn("closing cleared engine failed", zap.Error(err))
		}
		s.engine = nil
		s.tracker = nil
	}
	if err := s.staging.Clear(); err != nil {
		return nil, err
	}
	s.family = models.CategoryEmpty
	s.category = models.CategoryEmpty
	s.fileName = ""
	s.documents = 0
	return &models.TextResponse{Message: "Knowledge base succesfully cleared"}, nil
}

// Quiz generates a multiple choice test from the ingested content.
func (s *Session) Quiz(ctx context.Context) (*models.MultipleChoiceTest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.engine == nil || !s.engine.HasContext() {
		return nil, ErrNoQuizContext
	}
	if s.category.IsDatabase() {
		return nil, ErrQuizDatabase
	}
	return s.engine.GenerateQuiz(ctx)
}

// Status describes the session for the status endpoint.
type Status struct {
	EngineLoaded bool   `json:"engine_loaded"`
	TextCategory string `json:"text_category"`
	FileName     string `json:"file_name"`
	Documents    int    `json:"documents"`
	UsedTokens   int    `json:"used_tokens"`
}

// Status reports the current engine family, source, and token usage.
func (s *Session) Status() *Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := &Status{
		EngineLoaded: s.engine != nil,
		TextCategory: string(s.category),
		FileName:     s.fileName,
		Documents:    s.documents,
	}
	if s.tracker != nil {
		st.UsedTokens = s.tracker.Total()
	}
	return st
}

// Close shuts the active engine down.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.engine == nil {
		return nil
	}
	err := s.engine.Close()
	s.engine = nil
	return err
}
