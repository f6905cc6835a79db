package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"pdfquiz"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGenerator struct {
	got pdfquiz.GenerationRequest
	err error
}

func (g *stubGenerator) Generate(_ context.Context, req pdfquiz.GenerationRequest) (*pdfquiz.GeneratedQuiz, error) {
	g.got = req
	if g.err != nil {
		return nil, g.err
	}
	return &pdfquiz.GeneratedQuiz{
		Questions: []pdfquiz.Question{
			{Question: "What do mitochondria produce?", Options: []string{"ATP", "DNA", "RNA", "Fat"}, CorrectIndex: 0},
		},
		Metadata: pdfquiz.Metadata(`{"topic":"biology","num_questions":1}`),
	}, nil
}

type stubExplainer struct {
	got pdfquiz.ExplanationRequest
}

func (e *stubExplainer) Explain(_ context.Context, req pdfquiz.ExplanationRequest) (*pdfquiz.Explanation, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	e.got = req
	return &pdfquiz.Explanation{
		Explanation:   "Mitochondria produce ATP through cellular respiration.",
		CorrectAnswer: req.CorrectAnswer,
		UserAnswer:    req.UserAnswer,
	}, nil
}

func newTestServer(t *testing.T, generator pdfquiz.Generator) http.Handler {
	return newTestServerWithExplainer(t, generator, nil)
}

func newTestServerWithExplainer(t *testing.T, generator pdfquiz.Generator, explainer pdfquiz.Explainer) http.Handler {
	t.Helper()
	gateway := pdfquiz.NewGateway(pdfquiz.NewMemoryBackend(time.Minute), 0, nil)
	t.Cleanup(func() { gateway.Close() })
	identity := pdfquiz.NewSessionIdentity([]byte("test-secret-test-secret-test-sec"), 0, false)
	return NewServer(gateway, identity, generator, explainer).Routes()
}

func do(t *testing.T, h http.Handler, method, target, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

const quizBody = `{
	"session_id": "abc",
	"questions": [
		{"question": "Q1", "options": ["a", "b", "c", "d"], "correct_index": 0},
		{"question": "Q2", "options": ["a", "b", "c", "d"], "correct_index": 1},
		{"question": "Q3", "options": ["a", "b", "c", "d"], "correct_index": 2}
	],
	"metadata": {"topic": "Biology", "num_questions": 3}
}`

func TestHealth(t *testing.T) {
	h := newTestServer(t, nil)
	rec := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decode(t, rec)["status"])
}

func TestSessionLifecycle(t *testing.T) {
	h := newTestServer(t, nil)

	rec := do(t, h, http.MethodGet, "/api/session", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/session", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	key := decode(t, rec)["session_id"].(string)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	cookie := cookies[0]
	assert.Equal(t, pdfquiz.SessionCookieName, cookie.Name)

	// Issuing again with the cookie keeps the same key
	rec = do(t, h, http.MethodPost, "/api/session", "", cookie)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, key, decode(t, rec)["session_id"])

	body := strings.Replace(quizBody, `"session_id": "abc",`, "", 1)
	rec = do(t, h, http.MethodPost, "/api/cache", body, cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/session/state", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "quiz", decode(t, rec)["stage"])

	rec = do(t, h, http.MethodDelete, "/api/session", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	cleared := rec.Result().Cookies()
	require.Len(t, cleared, 1)
	assert.True(t, cleared[0].MaxAge < 0)

	rec = do(t, h, http.MethodGet, "/api/cache?session_id="+key, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestQuizCacheEndpoints(t *testing.T) {
	h := newTestServer(t, nil)

	rec := do(t, h, http.MethodGet, "/api/cache?session_id=abc", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Cache not found or expired", decode(t, rec)["detail"])

	rec = do(t, h, http.MethodPost, "/api/cache", quizBody)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/cache?session_id=abc", "")
	require.Equal(t, http.StatusOK, rec.Code)
	entry := decode(t, rec)
	assert.Len(t, entry["questions"], 3)
	assert.Equal(t, "Biology", entry["metadata"].(map[string]interface{})["topic"])
	assert.NotEmpty(t, entry["inserted_at"])

	rec = do(t, h, http.MethodDelete, "/api/cache?session_id=abc", "")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, h, http.MethodDelete, "/api/cache?session_id=abc", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/cache?session_id=abc", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestQuizCacheValidation(t *testing.T) {
	h := newTestServer(t, nil)

	tests := []struct {
		name string
		body string
	}{
		{"bad json", `{"session_id":`},
		{"no session", strings.Replace(quizBody, `"abc"`, `""`, 1)},
		{"no metadata", `{"session_id": "abc", "questions": [{"question": "Q", "options": ["a", "b"], "correct_index": 0}]}`},
		{"no questions", `{"session_id": "abc", "questions": [], "metadata": {"topic": "x"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/api/cache", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.NotEmpty(t, decode(t, rec)["detail"])
		})
	}
}

func TestResultsHandoff(t *testing.T) {
	h := newTestServer(t, nil)

	rec := do(t, h, http.MethodPost, "/api/cache", quizBody)
	require.Equal(t, http.StatusOK, rec.Code)

	results := `{
		"questions": [
			{"question": "Q1", "options": ["a", "b", "c", "d"], "correct_index": 0},
			{"question": "Q2", "options": ["a", "b", "c", "d"], "correct_index": 1},
			{"question": "Q3", "options": ["a", "b", "c", "d"], "correct_index": 2}
		],
		"metadata": {"topic": "Biology"},
		"userName": "Sam",
		"userAnswers": [0, 1, 3]
	}`
	rec = do(t, h, http.MethodPost, "/api/cache/results/abc", results)
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode(t, rec)
	assert.Equal(t, "Sam", out["userName"])
	assert.EqualValues(t, 2, out["score"])
	assert.EqualValues(t, 3, out["total"])

	rec = do(t, h, http.MethodGet, "/api/cache?session_id=abc", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/session/state?session_id=abc", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "results", decode(t, rec)["stage"])

	rec = do(t, h, http.MethodGet, "/api/cache/results/abc", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []interface{}{0.0, 1.0, 3.0}, decode(t, rec)["userAnswers"])

	rec = do(t, h, http.MethodDelete, "/api/cache/results/abc", "")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, h, http.MethodGet, "/api/cache/results/abc", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestResultsValidation(t *testing.T) {
	h := newTestServer(t, nil)

	mismatched := `{
		"questions": [{"question": "Q1", "options": ["a", "b"], "correct_index": 0}],
		"metadata": {"topic": "Biology"},
		"userName": "Sam",
		"userAnswers": [0, 1]
	}`
	rec := do(t, h, http.MethodPost, "/api/cache/results/abc", mismatched)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/cache/results/abc", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestResumeWithoutSession(t *testing.T) {
	h := newTestServer(t, nil)
	rec := do(t, h, http.MethodGet, "/api/session/state", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "start", decode(t, rec)["stage"])
}

func uploadRequest(t *testing.T, fileName string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/generate-quiz?num_questions=3&session_id=abc", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestGenerateQuiz(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		h := newTestServer(t, nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, uploadRequest(t, "bio.pdf", []byte("%PDF")))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("success", func(t *testing.T) {
		gen := &stubGenerator{}
		h := newTestServer(t, gen)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, uploadRequest(t, "bio.pdf", []byte("%PDF")))
		require.Equal(t, http.StatusOK, rec.Code)

		out := decode(t, rec)
		assert.Equal(t, "success", out["status"])
		assert.Len(t, out["questions"], 1)
		assert.Equal(t, 3, gen.got.NumQuestions)
		assert.Equal(t, "abc", gen.got.SessionKey)
		assert.Equal(t, "bio.pdf", gen.got.FileName)
	})

	t.Run("not a pdf", func(t *testing.T) {
		h := newTestServer(t, &stubGenerator{})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, uploadRequest(t, "notes.txt", []byte("hello")))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("no text", func(t *testing.T) {
		h := newTestServer(t, &stubGenerator{err: pdfquiz.ErrNoText})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, uploadRequest(t, "scan.pdf", []byte("%PDF")))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("generator failure", func(t *testing.T) {
		h := newTestServer(t, &stubGenerator{err: errors.New("model unavailable")})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, uploadRequest(t, "bio.pdf", []byte("%PDF")))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestExplain(t *testing.T) {
	body := `{
		"question": "What do mitochondria produce?",
		"options": ["ATP", "DNA", "RNA", "Fat"],
		"user_answer": "DNA",
		"correct_answer": "ATP"
	}`

	t.Run("not configured", func(t *testing.T) {
		h := newTestServer(t, nil)
		rec := do(t, h, http.MethodPost, "/api/explain", body)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("success", func(t *testing.T) {
		explainer := &stubExplainer{}
		h := newTestServerWithExplainer(t, nil, explainer)
		rec := do(t, h, http.MethodPost, "/api/explain", body)
		require.Equal(t, http.StatusOK, rec.Code)

		out := decode(t, rec)
		assert.Equal(t, "ATP", out["correct_answer"])
		assert.Equal(t, "DNA", out["user_answer"])
		assert.NotEmpty(t, out["explanation"])
		assert.Equal(t, []string{"ATP", "DNA", "RNA", "Fat"}, explainer.got.Options)
	})

	t.Run("missing answer", func(t *testing.T) {
		h := newTestServerWithExplainer(t, nil, &stubExplainer{})
		rec := do(t, h, http.MethodPost, "/api/explain", `{"question": "Q?", "correct_answer": "A"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("bad json", func(t *testing.T) {
		h := newTestServerWithExplainer(t, nil, &stubExplainer{})
		rec := do(t, h, http.MethodPost, "/api/explain", `{"question":`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
