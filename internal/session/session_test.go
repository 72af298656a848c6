package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/quaigle/quaigle/internal/engine"
	"github.com/quaigle/quaigle/internal/ingest"
	"github.com/quaigle/quaigle/internal/models"
	"github.com/quaigle/quaigle/internal/staging"
	"github.com/quaigle/quaigle/internal/tokencount"
)

// fakeEngine records calls so tests can observe the session's lifecycle
// decisions.
type fakeEngine struct {
	label       string
	tracker     *tokencount.Tracker
	docs        []*engine.Document
	temperature float64
	closed      bool
	cleared     bool
	historyMsg  string
	addErr      error
}

func (f *fakeEngine) AddDocument(ctx context.Context, doc *engine.Document) error {
	if f.addErr != nil {
		return f.addErr
	}
	f.docs = append(f.docs, doc)
	doc.Label = f.label
	doc.Summary = "summary for " + doc.FileName
	_ = f.tracker.AddCount(10)
	return nil
}

func (f *fakeEngine) AnswerQuestion(ctx context.Context, question string) (string, error) {
	_ = f.tracker.AddCount(3)
	return "answer to " + question, nil
}

func (f *fakeEngine) ClearHistory() string          { return f.historyMsg }
func (f *fakeEngine) ClearStorage() error           { f.cleared = true; return nil }
func (f *fakeEngine) UpdateTemperature(t float64)   { f.temperature = t }
func (f *fakeEngine) HasContext() bool              { return len(f.docs) > 0 }
func (f *fakeEngine) Close() error                  { f.closed = true; return nil }
func (f *fakeEngine) GenerateQuiz(ctx context.Context) (*models.MultipleChoiceTest, error) {
	return &models.MultipleChoiceTest{Questions: make([]models.MultipleChoiceQuestion, 3)}, nil
}

type fakeFactory struct {
	retrievalBuilt int
	databaseBuilt  int
	buildErr       error
	databaseAddErr error
	engines        []*fakeEngine
}

func (f *fakeFactory) build(label string, tracker *tokencount.Tracker) (engine.ChatEngine, error) {
	if f.buildErr != nil {
		return nil, f.buildErr
	}
	e := &fakeEngine{label: label, tracker: tracker, historyMsg: "history cleared"}
	if label == "database" {
		e.addErr = f.databaseAddErr
	}
	f.engines = append(f.engines, e)
	return e, nil
}

func (f *fakeFactory) NewRetrievalEngine(ctx context.Context, tracker *tokencount.Tracker) (engine.ChatEngine, error) {
	f.retrievalBuilt++
	return f.build("science", tracker)
}

func (f *fakeFactory) NewDatabaseEngine(ctx context.Context, tracker *tokencount.Tracker) (engine.ChatEngine, error) {
	f.databaseBuilt++
	return f.build("database", tracker)
}

func newTestSession(t *testing.T) (*Session, *fakeFactory, *staging.Store) {
	t.Helper()
	store, err := staging.NewStore(filepath.Join(t.TempDir(), "data"))
	if err != nil {
		t.Fatal(err)
	}
	factory := &fakeFactory{}
	return New(factory, store, zap.NewNop()), factory, store
}

func uploadText(t *testing.T, s *Session, name, content string) *models.TextSummary {
	t.Helper()
	summary, err := s.Upload(context.Background(),
		ingest.Request{FileName: name, HasFile: true},
		strings.NewReader(content))
	if err != nil {
		t.Fatal(err)
	}
	return summary
}

func TestUploadTextBuildsRetrievalEngine(t *testing.T) {
	s, factory, store := newTestSession(t)

	summary := uploadText(t, s, "notes.txt", "some note text")
	if summary.FileName != "notes.txt" {
		t.Errorf("file name = %q", summary.FileName)
	}
	if summary.TextCategory != "science" {
		t.Errorf("text category = %q", summary.TextCategory)
	}
	if summary.UsedTokens != 10 {
		t.Errorf("used tokens = %d, want 10", summary.UsedTokens)
	}
	if factory.retrievalBuilt != 1 {
		t.Errorf("retrieval engines built = %d", factory.retrievalBuilt)
	}

	// Payload must be staged on disk.
	data, err := os.ReadFile(store.Path("notes.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "some note text" {
		t.Errorf("staged content = %q", data)
	}
	// The engine must receive the extracted text.
	if got := factory.engines[0].docs[0].Text; got != "some note text" {
		t.Errorf("document text = %q", got)
	}
}

func TestUploadSecondTextReusesEngine(t *testing.T) {
	s, factory, _ := newTestSession(t)

	uploadText(t, s, "a.txt", "first")
	uploadText(t, s, "b.txt", "second")

	if factory.retrievalBuilt != 1 {
		t.Errorf("second text upload must reuse the engine, built %d", factory.retrievalBuilt)
	}
	if len(factory.engines[0].docs) != 2 {
		t.Errorf("engine received %d documents", len(factory.engines[0].docs))
	}
}

func TestUploadDatabaseSwapsEngine(t *testing.T) {
	s, factory, _ := newTestSession(t)

	uploadText(t, s, "a.txt", "text content")
	summary := uploadText(t, s, "data.sqlite", "not a real db, fake engine ignores it")

	if factory.databaseBuilt != 1 {
		t.Errorf("database engines built = %d", factory.databaseBuilt)
	}
	if !factory.engines[0].closed {
		t.Error("replaced engine must be closed")
	}
	if summary.TextCategory != "database" {
		t.Errorf("text category = %q", summary.TextCategory)
	}
	// Fresh engine means fresh tracker: only this upload's tokens.
	if summary.UsedTokens != 10 {
		t.Errorf("used tokens = %d, want 10", summary.UsedTokens)
	}
}

func TestUploadEngineBuildFailureKeepsOldEngine(t *testing.T) {
	s, factory, _ := newTestSession(t)

	uploadText(t, s, "a.txt", "text content")
	factory.buildErr = errors.New("no api key")

	_, err := s.Upload(context.Background(),
		ingest.Request{FileName: "data.sqlite", HasFile: true},
		strings.NewReader("x"))
	if err == nil {
		t.Fatal("expected build error")
	}
	if factory.engines[0].closed {
		t.Error("old engine must survive a failed swap")
	}

	// The old engine still answers.
	resp, err := s.AskQuestion(context.Background(), "still there?", 0)
	if err != nil {
		t.Fatal(err)
	}
	if resp.AIAnswer != "answer to still there?" {
		t.Errorf("answer = %q", resp.AIAnswer)
	}
}

func TestUploadTextAfterFailedDatabaseIngest(t *testing.T) {
	s, factory, _ := newTestSession(t)
	ctx := context.Background()

	uploadText(t, s, "a.txt", "text content")

	// A corrupt database swaps the engine in but fails during ingestion.
	factory.databaseAddErr = errors.New("file is not a database")
	_, err := s.Upload(ctx,
		ingest.Request{FileName: "broken.sqlite", HasFile: true},
		strings.NewReader("not sqlite"))
	if err == nil {
		t.Fatal("corrupt database upload should fail")
	}

	// The next text upload must not be routed to the stale database engine.
	summary := uploadText(t, s, "b.txt", "more text")
	if summary.TextCategory != "science" {
		t.Errorf("text category = %q, want science", summary.TextCategory)
	}
	if factory.retrievalBuilt != 2 {
		t.Errorf("retrieval engines built = %d, want 2", factory.retrievalBuilt)
	}

	resp, err := s.AskQuestion(ctx, "still alive?", 0)
	if err != nil {
		t.Fatal(err)
	}
	if resp.AIAnswer != "answer to still alive?" {
		t.Errorf("answer = %q", resp.AIAnswer)
	}
}

func TestUploadClassificationErrors(t *testing.T) {
	s, _, _ := newTestSession(t)
	ctx := context.Background()

	_, err := s.Upload(ctx, ingest.Request{FileName: "a.txt", HasFile: true, URL: "http://x"}, strings.NewReader("x"))
	if !errors.Is(err, ingest.ErrDoubleUpload) {
		t.Errorf("err = %v, want ErrDoubleUpload", err)
	}
	_, err = s.Upload(ctx, ingest.Request{}, nil)
	if !errors.Is(err, ingest.ErrNoUpload) {
		t.Errorf("err = %v, want ErrNoUpload", err)
	}
}

func TestUploadPreStagedReference(t *testing.T) {
	s, factory, store := newTestSession(t)
	if _, err := store.Save("notes.txt", strings.NewReader("pre-staged body")); err != nil {
		t.Fatal(err)
	}

	summary, err := s.Upload(context.Background(),
		ingest.Request{URL: "data/notes.txt"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if summary.FileName != "data/notes.txt" {
		t.Errorf("file name = %q", summary.FileName)
	}
	if got := factory.engines[0].docs[0].Text; got != "pre-staged body" {
		t.Errorf("document text = %q", got)
	}
}

func TestUploadPreStagedReferenceMissingFile(t *testing.T) {
	s, _, _ := newTestSession(t)
	_, err := s.Upload(context.Background(), ingest.Request{URL: "data/absent.txt"}, nil)
	if err == nil {
		t.Fatal("missing staged file should fail")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("err = %v, want fs not-exist", err)
	}
}

func TestAskQuestionEmptyPrompt(t *testing.T) {
	s, _, _ := newTestSession(t)
	if _, err := s.AskQuestion(context.Background(), "  \n ", 0); !errors.Is(err, ingest.ErrEmptyQuestion) {
		t.Errorf("err = %v, want ErrEmptyQuestion", err)
	}
}

func TestAskQuestionWithoutEngine(t *testing.T) {
	s, _, _ := newTestSession(t)
	resp, err := s.AskQuestion(context.Background(), "anyone home?", 0.4)
	if err != nil {
		t.Fatal(err)
	}
	if resp.AIAnswer != "Sorry, no context loaded. Please upload a file or url." {
		t.Errorf("fallback = %q", resp.AIAnswer)
	}
	if resp.UsedTokens != 0 {
		t.Errorf("used tokens = %d", resp.UsedTokens)
	}
}

func TestAskQuestionTracksPerQuestionTokens(t *testing.T) {
	s, factory, _ := newTestSession(t)
	uploadText(t, s, "a.txt", "content")

	resp, err := s.AskQuestion(context.Background(), "q1", 0.7)
	if err != nil {
		t.Fatal(err)
	}
	// Tracker resets per question, so upload tokens do not leak in.
	if resp.UsedTokens != 3 {
		t.Errorf("used tokens = %d, want 3", resp.UsedTokens)
	}
	if factory.engines[0].temperature != 0.7 {
		t.Errorf("temperature = %v", factory.engines[0].temperature)
	}
}

func TestClearHistory(t *testing.T) {
	s, _, _ := newTestSession(t)
	if msg := s.ClearHistory().Message; msg != "No active chat available, please load a document." {
		t.Errorf("message = %q", msg)
	}
	uploadText(t, s, "a.txt", "content")
	if msg := s.ClearHistory().Message; msg != "history cleared" {
		t.Errorf("message = %q", msg)
	}
}

func TestClearStorage(t *testing.T) {
	s, factory, store := newTestSession(t)
	uploadText(t, s, "a.txt", "content")

	resp, err := s.ClearStorage()
	if err != nil {
		t.Fatal(err)
	}
	if resp.Message != "Knowledge base succesfully cleared" {
		t.Errorf("message = %q", resp.Message)
	}
	if !factory.engines[0].cleared || !factory.engines[0].closed {
		t.Error("engine must be cleared and closed")
	}
	files, _ := store.List()
	if len(files) != 0 {
		t.Errorf("staged files remain: %v", files)
	}

	// Next upload starts over with a fresh engine.
	uploadText(t, s, "b.txt", "content")
	if factory.retrievalBuilt != 2 {
		t.Errorf("retrieval engines built = %d, want 2", factory.retrievalBuilt)
	}
}

func TestQuizGuards(t *testing.T) {
	s, _, _ := newTestSession(t)
	ctx := context.Background()

	if _, err := s.Quiz(ctx); !errors.Is(err, ErrNoQuizContext) {
		t.Errorf("err = %v, want ErrNoQuizContext", err)
	}

	uploadText(t, s, "data.sqlite", "x")
	if _, err := s.Quiz(ctx); !errors.Is(err, ErrQuizDatabase) {
		t.Errorf("err = %v, want ErrQuizDatabase", err)
	}

	uploadText(t, s, "a.txt", "content")
	test, err := s.Quiz(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(test.Questions) != 3 {
		t.Errorf("got %d questions", len(test.Questions))
	}
}

func TestStatus(t *testing.T) {
	s, _, _ := newTestSession(t)
	st := s.Status()
	if st.EngineLoaded || st.FileName != "" {
		t.Errorf("empty session status = %+v", st)
	}

	uploadText(t, s, "a.txt", "content")
	st = s.Status()
	if !st.EngineLoaded || st.FileName != "a.txt" || st.TextCategory != "text" {
		t.Errorf("status = %+v", st)
	}
	if st.Documents != 1 {
		t.Errorf("documents = %d", st.Documents)
	}
	if st.UsedTokens != 10 {
		t.Errorf("used tokens = %d", st.UsedTokens)
	}
}
