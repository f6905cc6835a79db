package main

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"pdfquiz"

	"github.com/gorilla/mux"
)

const maxUploadBytes = 20 << 20

// Server exposes the cache gateway, the session cookie and quiz generation
// over JSON HTTP.
type Server struct {
	gateway   *pdfquiz.Gateway
	identity  *pdfquiz.SessionIdentity
	generator pdfquiz.Generator
	explainer pdfquiz.Explainer
}

// NewServer wires the handlers. generator and explainer may be nil.
func NewServer(gateway *pdfquiz.Gateway, identity *pdfquiz.SessionIdentity, generator pdfquiz.Generator, explainer pdfquiz.Explainer) *Server {
	return &Server{
		gateway:   gateway,
		identity:  identity,
		generator: generator,
		explainer: explainer,
	}
}

// Routes returns the HTTP router
func (s *Server) Routes() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/generate-quiz", s.handleGenerate).Methods(http.MethodPost)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/explain", s.handleExplain).Methods(http.MethodPost)
	api.HandleFunc("/session", s.handleIssueSession).Methods(http.MethodPost)
	api.HandleFunc("/session", s.handleReadSession).Methods(http.MethodGet)
	api.HandleFunc("/session", s.handleResetSession).Methods(http.MethodDelete)
	api.HandleFunc("/session/state", s.handleResume).Methods(http.MethodGet)

	api.HandleFunc("/cache", s.handleStoreQuiz).Methods(http.MethodPost)
	api.HandleFunc("/cache", s.handleFetchQuiz).Methods(http.MethodGet)
	api.HandleFunc("/cache", s.handleDeleteQuiz).Methods(http.MethodDelete)

	api.HandleFunc("/cache/results/{session_id}", s.handleStoreResults).Methods(http.MethodPost)
	api.HandleFunc("/cache/results/{session_id}", s.handleFetchResults).Methods(http.MethodGet)
	api.HandleFunc("/cache/results/{session_id}", s.handleDeleteResults).Methods(http.MethodDelete)

	return r
}

type storeQuizRequest struct {
	SessionID string             `json:"session_id"`
	Questions []pdfquiz.Question `json:"questions"`
	Metadata  pdfquiz.Metadata   `json:"metadata"`
}

type resultsResponse struct {
	*pdfquiz.ResultsEntry
	Score      int     `json:"score"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
}

func newResultsResponse(entry *pdfquiz.ResultsEntry) resultsResponse {
	return resultsResponse{
		ResultsEntry: entry,
		Score:        entry.Score(),
		Total:        len(entry.Questions),
		Percentage:   entry.Percentage(),
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleIssueSession(w http.ResponseWriter, r *http.Request) {
	if key, ok := s.identity.Read(r); ok {
		writeJSON(w, http.StatusOK, map[string]string{"session_id": key})
		return
	}
	key, err := s.identity.Issue(w, r)
	if err != nil {
		log.Printf("Failed to issue session: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to issue session")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"session_id": key})
}

func (s *Server) handleReadSession(w http.ResponseWriter, r *http.Request) {
	key, ok := s.identity.Read(r)
	if !ok {
		writeError(w, http.StatusNotFound, "No session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"session_id": key})
}

func (s *Server) handleResetSession(w http.ResponseWriter, r *http.Request) {
	if key, ok := s.identity.Read(r); ok {
		if err := s.gateway.Reset(r.Context(), key); err != nil {
			s.writeCacheError(w, "reset session", err)
			return
		}
	}
	if err := s.identity.Revoke(w, r); err != nil {
		log.Printf("Failed to revoke session: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to revoke session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	key := s.sessionKey(r, "")
	if key == "" {
		writeJSON(w, http.StatusOK, pdfquiz.Resumption{Stage: pdfquiz.StageStart})
		return
	}
	resumption, err := s.gateway.Resume(r.Context(), key)
	if err != nil {
		s.writeCacheError(w, "resume session", err)
		return
	}
	writeJSON(w, http.StatusOK, resumption)
}

func (s *Server) handleStoreQuiz(w http.ResponseWriter, r *http.Request) {
	var req storeQuizRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	key := s.sessionKey(r, req.SessionID)
	if _, err := s.gateway.StoreQuiz(r.Context(), key, req.Questions, req.Metadata); err != nil {
		s.writeCacheError(w, "save quiz cache", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Cache saved successfully"})
}

func (s *Server) handleFetchQuiz(w http.ResponseWriter, r *http.Request) {
	entry, ok, err := s.gateway.FetchQuiz(r.Context(), s.sessionKey(r, ""))
	if err != nil {
		s.writeCacheError(w, "get quiz cache", err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "Cache not found or expired")
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleDeleteQuiz(w http.ResponseWriter, r *http.Request) {
	if err := s.gateway.DeleteQuiz(r.Context(), s.sessionKey(r, "")); err != nil {
		s.writeCacheError(w, "delete quiz cache", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Cache deleted successfully"})
}

func (s *Server) handleStoreResults(w http.ResponseWriter, r *http.Request) {
	var in pdfquiz.ResultsInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	entry, err := s.gateway.StoreResults(r.Context(), mux.Vars(r)["session_id"], in)
	if err != nil {
		s.writeCacheError(w, "save results cache", err)
		return
	}
	writeJSON(w, http.StatusOK, newResultsResponse(entry))
}

func (s *Server) handleFetchResults(w http.ResponseWriter, r *http.Request) {
	entry, ok, err := s.gateway.FetchResults(r.Context(), mux.Vars(r)["session_id"])
	if err != nil {
		s.writeCacheError(w, "get results cache", err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "Results cache not found or expired")
		return
	}
	writeJSON(w, http.StatusOK, newResultsResponse(entry))
}

func (s *Server) handleDeleteResults(w http.ResponseWriter, r *http.Request) {
	if err := s.gateway.DeleteResults(r.Context(), mux.Vars(r)["session_id"]); err != nil {
		s.writeCacheError(w, "delete results cache", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Results cache deleted successfully"})
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if s.generator == nil {
		writeError(w, http.StatusServiceUnavailable, "Quiz generation is not configured")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "A PDF file is required")
		return
	}
	defer file.Close()

	if !strings.HasSuffix(strings.ToLower(header.Filename), ".pdf") {
		writeError(w, http.StatusBadRequest, "File must be a PDF")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read upload")
		return
	}

	numQuestions, err := strconv.Atoi(r.URL.Query().Get("num_questions"))
	if err != nil || numQuestions <= 0 {
		numQuestions = 5
	}

	quiz, err := s.generator.Generate(r.Context(), pdfquiz.GenerationRequest{
		SessionKey:   s.sessionKey(r, ""),
		FileName:     header.Filename,
		PDF:          data,
		NumQuestions: numQuestions,
	})
	if err != nil {
		if errors.Is(err, pdfquiz.ErrNoText) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("Failed to generate quiz from %s: %v", header.Filename, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "success",
		"questions": quiz.Questions,
		"metadata":  quiz.Metadata,
	})
}

func (s *Server) handleExplain(w http.ResponseWriter, r *http.Request) {
	if s.explainer == nil {
		writeError(w, http.StatusServiceUnavailable, "Explanations are not configured")
		return
	}

	var req pdfquiz.ExplanationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	explanation, err := s.explainer.Explain(r.Context(), req)
	if err != nil {
		if pdfquiz.IsValidation(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("Failed to explain answer: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, explanation)
}

// sessionKey picks the explicit key (body, then query) and falls back to the
// session cookie.
func (s *Server) sessionKey(r *http.Request, fromBody string) string {
	if fromBody != "" {
		return fromBody
	}
	if key := r.URL.Query().Get("session_id"); key != "" {
		return key
	}
	key, _ := s.identity.Read(r)
	return key
}

func (s *Server) writeCacheError(w http.ResponseWriter, action string, err error) {
	if pdfquiz.IsValidation(err) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	log.Printf("Failed to %s: %v", action, err)
	writeError(w, http.StatusInternalServerError, "Internal server error")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
