package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/quaigle/quaigle/internal/config"
	"github.com/quaigle/quaigle/internal/embedding"
	"github.com/quaigle/quaigle/internal/keyword"
	"github.com/quaigle/quaigle/internal/llm"
	"github.com/quaigle/quaigle/internal/models"
	"github.com/quaigle/quaigle/internal/tokencount"
	"github.com/quaigle/quaigle/internal/vector"
	"github.com/quaigle/quaigle/pkg/utils"
)

const answerSystemPrompt = `You are a helpful assistant answering questions about documents the user uploaded.
Answer strictly from the context information below. If the context does not contain the answer, say you do not know instead of guessing. Keep answers concise.`

const classifySystemPrompt = `You classify documents. Respond with JSON only, no prose.`

const quizSystemPrompt = `You write multiple choice quizzes from provided text. Respond with JSON only, no prose.`

// qaTurn is one completed question/answer exchange kept as chat memory.
type qaTurn struct {
	Question string
	Answer   string
}

// RetrievalEngine answers questions over text, PDF, and webpage content via
// hybrid keyword and semantic retrieval. Chunks live in a persisted Bleve
// index; their embeddings live in a vector index saved alongside it.
type RetrievalEngine struct {
	cfg      *config.Config
	provider llm.Provider
	embedder embedding.Embedder
	tracker  *tokencount.Tracker
	logger   *zap.Logger

	chunker    *Chunker
	keywords   *keyword.BleveIndex
	vectors    *vector.MemoryIndex
	indexDir   string
	vectorPath string

	temperature float64
	history     []qaTurn
	closed      bool
}

// NewRetrievalEngine opens (or creates) the indices under cfg.Storage.IndexDir
// and returns an engine over them. Content ingested before a restart stays
// queryable.
func NewRetrievalEngine(cfg *config.Config, provider llm.Provider, embedder embedding.Embedder, tracker *tokencount.Tracker, logger *zap.Logger) (*RetrievalEngine, error) {
	if err := os.MkdirAll(cfg.Storage.IndexDir, 0o755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}
	keywords, err := keyword.NewBleveIndex(filepath.Join(cfg.Storage.IndexDir, "bleve"))
	if err != nil {
		return nil, err
	}
	vectors, err := vector.NewMemoryIndex(embedder.Dimensions())
	if err != nil {
		keywords.Close()
		return nil, err
	}
	vectorPath := filepath.Join(cfg.Storage.IndexDir, "vectors.bin")
	if err := vectors.Load(vectorPath); err != nil {
		keywords.Close()
		return nil, fmt.Errorf("load vector index: %w", err)
	}

	return &RetrievalEngine{
		cfg:         cfg,
		provider:    provider,
		embedder:    embedder,
		tracker:     tracker,
		logger:      logger,
		chunker:     NewChunker(cfg.Chat.ChunkSize, cfg.Chat.ChunkOverlap),
		keywords:    keywords,
		vectors:     vectors,
		indexDir:    cfg.Storage.IndexDir,
		vectorPath:  vectorPath,
		temperature: 0,
	}, nil
}

type docMetadata struct {
	Category    string `json:"category"`
	Description string `json:"description"`
}

// AddDocument classifies, chunks, embeds, and indexes doc.Text, then fills
// doc.Label and doc.Summary.
func (e *RetrievalEngine) AddDocument(ctx context.Context, doc *Document) error {
	if strings.TrimSpace(doc.Text) == "" {
		return fmt.Errorf("document %s contains no text", doc.FileName)
	}

	meta, err := e.classify(ctx, doc.Text)
	if err != nil {
		return err
	}
	doc.Label = meta.Category
	doc.Summary = fmt.Sprintf("You uploaded a %s text, please ask any question about %q.", meta.Category, meta.Description)

	chunks := e.chunker.Chunk(doc.FileName, doc.Text)
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vecs, err := e.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	for _, v := range vecs {
		utils.NormalizeL2(v)
	}
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
	}
	if err := e.vectors.Add(ctx, ids, vecs); err != nil {
		return err
	}
	if err := e.vectors.Save(e.vectorPath); err != nil {
		return fmt.Errorf("persist vector index: %w", err)
	}
	for _, c := range chunks {
		err := e.keywords.Index(ctx, c.ID, &keyword.ChunkDoc{
			DocumentID: c.DocumentID,
			Title:      doc.FileName,
			Content:    c.Content,
		})
		if err != nil {
			return fmt.Errorf("index chunk: %w", err)
		}
	}

	e.logger.Info("document ingested",
		zap.String("file", doc.FileName),
		zap.String("label", doc.Label),
		zap.Int("chunks", len(chunks)))
	return nil
}

func (e *RetrievalEngine) classify(ctx context.Context, text string) (*docMetadata, error) {
	prompt := fmt.Sprintf(
		"Classify the following text into exactly one of these categories: %s.\n"+
			"Also describe its topic in at most eight words.\n"+
			"Return JSON of the form {\"category\": \"...\", \"description\": \"...\"}.\n\nText:\n%s",
		strings.Join(topicLabels, ", "),
		utils.Truncate(text, e.cfg.Chat.MaxContextChars))

	res, err := e.provider.Generate(ctx, llm.Request{
		System: classifySystemPrompt,
		Prompt: prompt,
	})
	if err != nil {
		return nil, fmt.Errorf("classify document: %w", err)
	}
	if err := e.tracker.AddCount(res.TokensUsed); err != nil {
		return nil, err
	}

	var meta docMetadata
	if err := json.Unmarshal([]byte(stripCodeFences(res.Text)), &meta); err != nil {
		e.logger.Warn("unparseable classification, using fallback", zap.Error(err))
		meta = docMetadata{Category: "other", Description: "the uploaded text"}
	}
	meta.Category = normalizeLabel(meta.Category)
	if meta.Description == "" {
		meta.Description = "the uploaded text"
	}
	return &meta, nil
}

// AnswerQuestion retrieves the best-matching chunks and asks the model to
// answer from them, carrying a bounded chat history.
func (e *RetrievalEngine) AnswerQuestion(ctx context.Context, question string) (string, error) {
	contextBlock, err := e.retrieve(ctx, question)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("Context information:\n")
	sb.WriteString(contextBlock)
	if len(e.history) > 0 {
		sb.WriteString("\n\nPrevious conversation:\n")
		for _, turn := range e.history {
			fmt.Fprintf(&sb, "Q: %s\nA: %s\n", turn.Question, turn.Answer)
		}
	}
	sb.WriteString("\n\nQuestion: ")
	sb.WriteString(question)

	res, err := e.provider.Generate(ctx, llm.Request{
		System:      answerSystemPrompt,
		Prompt:      sb.String(),
		Temperature: float32(e.temperature),
	})
	if err != nil {
		return "", fmt.Errorf("answer question: %w", err)
	}
	if err := e.tracker.AddCount(res.TokensUsed); err != nil {
		return "", err
	}

	answer := strings.TrimSpace(res.Text)
	e.history = append(e.history, qaTurn{Question: question, Answer: answer})
	if len(e.history) > e.cfg.Chat.MemoryTurns {
		e.history = e.history[len(e.history)-e.cfg.Chat.MemoryTurns:]
	}
	return answer, nil
}

// retrieve merges keyword and semantic hits into one context block, weighted
// per config, capped at MaxContextChars.
func (e *RetrievalEngine) retrieve(ctx context.Context, question string) (string, error) {
	topK := e.cfg.Chat.TopK

	queryVec, err := e.embedder.Embed(ctx, question)
	if err != nil {
		return "", fmt.Errorf("embed question: %w", err)
	}
	utils.NormalizeL2(queryVec)
	semantic, err := e.vectors.Search(ctx, queryVec, topK)
	if err != nil {
		return "", err
	}
	keywordHits, err := e.keywords.Search(ctx, question, topK)
	if err != nil {
		return "", err
	}

	type scored struct {
		id    string
		score float64
	}
	merged := make(map[string]*scored)
	for _, hit := range semantic {
		merged[hit.ID] = &scored{id: hit.ID, score: e.cfg.Chat.SemanticWeight * hit.Score}
	}
	contents := make(map[string]string)
	for _, hit := range keywordHits {
		contents[hit.ID] = hit.Content
		if s, ok := merged[hit.ID]; ok {
			s.score += e.cfg.Chat.KeywordWeight * hit.Score
		} else {
			merged[hit.ID] = &scored{id: hit.ID, score: e.cfg.Chat.KeywordWeight * hit.Score}
		}
	}

	ranked := make([]*scored, 0, len(merged))
	for _, s := range merged {
		ranked = append(ranked, s)
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	if len(ranked) > topK {
		ranked = ranked[:topK]
	}

	var sb strings.Builder
	for _, s := range ranked {
		content, ok := contents[s.id]
		if !ok {
			// Semantic-only hit; pull the stored chunk text.
			content, err = e.keywords.Content(s.id)
			if err != nil {
				e.logger.Warn("chunk content missing", zap.String("id", s.id), zap.Error(err))
				continue
			}
		}
		sb.WriteString(content)
		sb.WriteString("\n---\n")
	}
	return utils.Truncate(sb.String(), e.cfg.Chat.MaxContextChars), nil
}

// ClearHistory drops the chat memory.
func (e *RetrievalEngine) ClearHistory() string {
	e.history = nil
	return "Chat history succesfully cleared"
}

// ClearStorage closes and deletes the persisted indices.
func (e *RetrievalEngine) ClearStorage() error {
	if !e.closed {
		if err := e.keywords.Close(); err != nil {
			return err
		}
		e.closed = true
	}
	if err := os.RemoveAll(e.indexDir); err != nil {
		return fmt.Errorf("remove index dir: %w", err)
	}
	return nil
}

// UpdateTemperature sets the sampling temperature for following answers.
func (e *RetrievalEngine) UpdateTemperature(temperature float64) {
	e.temperature = temperature
}

// HasContext reports whether any chunks have been indexed.
func (e *RetrievalEngine) HasContext() bool {
	return e.vectors.Size() > 0
}

// GenerateQuiz samples indexed chunks and asks the model for a multiple
// choice test over them.
func (e *RetrievalEngine) GenerateQuiz(ctx context.Context) (*models.MultipleChoiceTest, error) {
	chunks, err := e.keywords.All(ctx, 4*e.cfg.Chat.TopK)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("no content indexed")
	}
	var sb strings.Builder
	for _, c := range chunks {
		sb.WriteString(c.Content)
		sb.WriteString("\n")
	}

	n := e.cfg.Chat.QuizQuestions
	prompt := fmt.Sprintf(
		"Write %d multiple choice questions about the text below. Each question has one correct answer and two plausible wrong answers.\n"+
			"Return JSON of the form {\"questions\": [{\"question\": \"...\", \"correct_answer\": \"...\", \"wrong_answer_1\": \"...\", \"wrong_answer_2\": \"...\"}]}.\n\nText:\n%s",
		n, utils.Truncate(sb.String(), e.cfg.Chat.MaxContextChars))

	res, err := e.provider.Generate(ctx, llm.Request{
		System: quizSystemPrompt,
		Prompt: prompt,
	})
	if err != nil {
		return nil, fmt.Errorf("generate quiz: %w", err)
	}
	if err := e.tracker.AddCount(res.TokensUsed); err != nil {
		return nil, err
	}

	var test models.MultipleChoiceTest
	if err := json.Unmarshal([]byte(stripCodeFences(res.Text)), &test); err != nil {
		return nil, fmt.Errorf("parse quiz response: %w", err)
	}
	if len(test.Questions) == 0 {
		return nil, fmt.Errorf("quiz response contained no questions")
	}
	if len(test.Questions) > n {
		test.Questions = test.Questions[:n]
	}
	return &test, nil
}

// Close closes the indices. The LLM provider and embedder are shared and
// stay open.
func (e *RetrievalEngine) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	return e.keywords.Close()
}

var _ ChatEngine = (*RetrievalEngine)(nil)
