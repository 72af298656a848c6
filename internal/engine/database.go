package engine

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/quaigle/quaigle/internal/llm"
	"github.com/quaigle/quaigle/internal/models"
	"github.com/quaigle/quaigle/internal/tokencount"
)

const sqlSystemPrompt = `You translate questions into SQLite queries.
Given the schema below, respond with a single valid SQLite SELECT statement and nothing else. Never modify data.`

const sqlAnswerSystemPrompt = `You explain SQL query results in plain language.
Answer the user's question using only the query result provided. Keep the answer short.`

var schemaCommentRe = regexp.MustCompile(`(?s)/\*.*?\*/`)

// DatabaseEngine answers questions over an uploaded SQLite file by
// generating SQL, executing it read-only, and phrasing the result.
type DatabaseEngine struct {
	provider llm.Provider
	tracker  *tokencount.Tracker
	logger   *zap.Logger

	db     *sql.DB
	schema string
}

// NewDatabaseEngine returns an engine with no database attached yet.
func NewDatabaseEngine(provider llm.Provider, tracker *tokencount.Tracker, logger *zap.Logger) *DatabaseEngine {
	return &DatabaseEngine{
		provider: provider,
		tracker:  tracker,
		logger:   logger,
	}
}

// AddDocument opens the SQLite file at doc.Path, replacing any previously
// attached database, and summarizes its schema.
func (e *DatabaseEngine) AddDocument(ctx context.Context, doc *Document) error {
	db, err := sql.Open("sqlite3", doc.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("open database: %w", err)
	}

	schema, err := readSchema(ctx, db)
	if err != nil {
		db.Close()
		return err
	}

	if e.db != nil {
		e.db.Close()
	}
	e.db = db
	e.schema = schema

	doc.Label = "database"
	doc.Summary = "Table Info: " + schema

	e.logger.Info("database attached", zap.String("file", doc.FileName))
	return nil
}

// readSchema collects the CREATE statements of all user tables, with SQL
// comments stripped.
func readSchema(ctx context.Context, db *sql.DB) (string, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT sql FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' AND sql IS NOT NULL`)
	if err != nil {
		return "", fmt.Errorf("read schema: %w", err)
	}
	defer rows.Close()

	var statements []string
	for rows.Next() {
		var stmt string
		if err := rows.Scan(&stmt); err != nil {
			return "", fmt.Errorf("read schema: %w", err)
		}
		statements = append(statements, stmt)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("read schema: %w", err)
	}
	if len(statements) == 0 {
		return "", fmt.Errorf("database contains no tables")
	}

	schema := strings.Join(statements, "\n")
	schema = schemaCommentRe.ReplaceAllString(schema, "")
	return strings.TrimSpace(schema), nil
}

// AnswerQuestion runs the two-step chain: generate SQL for the question,
// execute it, then phrase the result in natural language.
func (e *DatabaseEngine) AnswerQuestion(ctx context.Context, question string) (string, error) {
	if e.db == nil {
		return "", fmt.Errorf("no database attached")
	}

	query, err := e.generateSQL(ctx, question)
	if err != nil {
		return "", err
	}
	result, err := e.runQuery(ctx, query)
	if err != nil {
		return "", fmt.Errorf("execute generated query: %w", err)
	}

	prompt := fmt.Sprintf("Question: %s\nSQLQuery: %s\nSQLResult: %s\nAnswer:", question, query, result)
	res, err := e.provider.Generate(ctx, llm.Request{
		System: sqlAnswerSystemPrompt,
		Prompt: prompt,
	})
	if err != nil {
		return "", fmt.Errorf("phrase answer: %w", err)
	}
	if err := e.tracker.AddCount(res.TokensUsed); err != nil {
		return "", err
	}
	return strings.TrimSpace(res.Text), nil
}

func (e *DatabaseEngine) generateSQL(ctx context.Context, question string) (string, error) {
	prompt := fmt.Sprintf("Schema:\n%s\n\nQuestion: %s\nSQLQuery:", e.schema, question)
	res, err := e.provider.Generate(ctx, llm.Request{
		System:        sqlSystemPrompt,
		Prompt:        prompt,
		Temperature:   0,
		StopSequences: []string{"\nSQLResult:"},
	})
	if err != nil {
		return "", fmt.Errorf("generate query: %w", err)
	}
	if err := e.tracker.AddCount(res.TokensUsed); err != nil {
		return "", err
	}

	query := stripCodeFences(res.Text)
	query = strings.TrimPrefix(query, "SQLQuery:")
	return strings.TrimSpace(query), nil
}

// runQuery executes the query and formats the result as one row per line.
func (e *DatabaseEngine) runQuery(ctx context.Context, query string) (string, error) {
	rows, err := e.db.QueryContext(ctx, query)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString(strings.Join(cols, " | "))
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return "", err
		}
		fields := make([]string, len(cols))
		for i, v := range values {
			switch val := v.(type) {
			case nil:
				fields[i] = "NULL"
			case []byte:
				fields[i] = string(val)
			default:
				fields[i] = fmt.Sprintf("%v", val)
			}
		}
		sb.WriteString("\n")
		sb.WriteString(strings.Join(fields, " | "))
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// ClearHistory is a no-op; the database chain keeps no conversation memory.
func (e *DatabaseEngine) ClearHistory() string {
	return "No chat history available for database"
}

// ClearStorage detaches the database. The file itself lives in the staging
// directory and is removed by the caller.
func (e *DatabaseEngine) ClearStorage() error {
	if e.db != nil {
		err := e.db.Close()
		e.db = nil
		e.schema = ""
		return err
	}
	return nil
}

// UpdateTemperature is a no-op; SQL generation always runs at temperature 0.
func (e *DatabaseEngine) UpdateTemperature(temperature float64) {}

// HasContext reports whether a database is attached.
func (e *DatabaseEngine) HasContext() bool {
	return e.db != nil
}

// GenerateQuiz is unsupported for databases.
func (e *DatabaseEngine) GenerateQuiz(ctx context.Context) (*models.MultipleChoiceTest, error) {
	return nil, fmt.Errorf("quiz generation is not available for databases")
}

// Close closes the attached database, if any.
func (e *DatabaseEngine) Close() error {
	if e.db != nil {
		err := e.db.Close()
		e.db = nil
		return err
	}
	return nil
}

var _ ChatEngine = (*DatabaseEngine)(nil)
