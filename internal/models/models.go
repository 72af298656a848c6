// Package models defines core data structures for content categories, API requests, and responses.
package models

// ContentCategory classifies ingested content and determines which chat
// engine variant backs the session.
type ContentCategory string

const (
	CategoryEmpty    ContentCategory = ""
	CategoryText     ContentCategory = "text"
	CategoryPDF      ContentCategory = "pdf"
	CategoryWebpage  ContentCategory = "webpage"
	CategoryDatabase ContentCategory = "database"
)

// IsDatabase reports whether the category belongs to the database engine family.
// Everything that is not a database is served by the retrieval engine.
func (c ContentCategory) IsDatabase() bool {
	return c == CategoryDatabase
}

// TextSummary is the response body of POST /upload.
type TextSummary struct {
	FileName     string `json:"file_name"`
	TextCategory string `json:"text_category"`
	Summary      string `json:"summary"`
	UsedTokens   int    `json:"used_tokens"`
}

// Question is the request body of POST /qa_text.
type Question struct {
	Prompt      string  `json:"prompt"`
	Temperature float64 `json:"temperature"`
}

// QAResponse is the response body of POST /qa_text.
type QAResponse struct {
	UserQuestion string `json:"user_question"`
	AIAnswer     string `json:"ai_answer"`
	UsedTokens   int    `json:"used_tokens"`
}

// TextResponse is a plain confirmation message.
type TextResponse struct {
	Message string `json:"message"`
}

// MultipleChoiceQuestion is one quiz question with one correct and two wrong answers.
type MultipleChoiceQuestion struct {
	Question      string `json:"question"`
	CorrectAnswer string `json:"correct_answer"`
	WrongAnswer1  string `json:"wrong_answer_1"`
	WrongAnswer2  string `json:"wrong_answer_2"`
}

// MultipleChoiceTest is the response body of GET /quiz.
type MultipleChoiceTest struct {
	Questions []MultipleChoiceQuestion `json:"questions"`
}
