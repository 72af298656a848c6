package server

import (
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"

	"go.uber.org/zap"

	"github.com/quaigle/quaigle/internal/ingest"
	"github.com/quaigle/quaigle/internal/models"
	"github.com/quaigle/quaigle/internal/session"
)

const maxUploadBytes = 32 << 20

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	req := ingest.Request{URL: r.FormValue("upload_url")}
	file, header, err := r.FormFile("upload_file")
	switch {
	case err == nil:
		defer file.Close()
		req.FileName = header.Filename
		req.HasFile = true
	case errors.Is(err, http.ErrMissingFile):
		// URL-only upload.
	default:
		s.respondError(w, http.StatusBadRequest, "invalid file upload")
		return
	}

	s.logger.Debug("upload request", zap.String("file", req.FileName), zap.String("url", req.URL))
	summary, err := s.session.Upload(r.Context(), req, file)
	if err != nil {
		s.respondSessionError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, summary)
}

func (s *Server) handleQuestion(w http.ResponseWriter, r *http.Request) {
	var question models.Question
	if err := json.NewDecoder(r.Body).Decode(&question); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("question request", zap.Float64("temperature", question.Temperature))
	response, err := s.session.AskQuestion(r.Context(), question.Prompt, question.Temperature)
	if err != nil {
		s.respondSessionError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleClearStorage(w http.ResponseWriter, r *http.Request) {
	response, err := s.session.ClearStorage()
	if err != nil {
		s.respondSessionError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.session.ClearHistory())
}

func (s *Server) handleQuiz(w http.ResponseWriter, r *http.Request) {
	quiz, err := s.session.Quiz(r.Context())
	if err != nil {
		s.respondSessionError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, quiz)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.session.Status()
	resp := map[string]interface{}{
		"engine_loaded": status.EngineLoaded,
		"text_category": status.TextCategory,
		"file_name":     status.FileName,
		"documents":     status.Documents,
		"used_tokens":   status.UsedTokens,
	}
	if s.watcher != nil {
		resp["staged_files"] = s.watcher.Files()
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// respondSessionError maps user-input errors (bad uploads, empty questions,
// missing staged files, quiz guards) to 400 and everything else to 500.
func (s *Server) respondSessionError(w http.ResponseWriter, err error) {
	switch {
	case ingest.IsUserError(err),
		errors.Is(err, fs.ErrNotExist),
		errors.Is(err, session.ErrNoQuizContext),
		errors.Is(err, session.ErrQuizDatabase):
		s.respondError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("request failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// respondError writes the error detail the way clients of the API expect it.
func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"detail": message})
}
