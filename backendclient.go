package pdfquiz

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// BackendClient forwards generation to an external quiz backend exposing
// POST /generate-quiz
type BackendClient struct {
	baseURL string
	client  *http.Client
}

// NewBackendClient creates a client for the backend at baseURL. A nil
// httpClient gets a client with a generous timeout.
func NewBackendClient(baseURL string, httpClient *http.Client) *BackendClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Minute}
	}
	return &BackendClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  httpClient,
	}
}

// Generate uploads the PDF and decodes the backend's questions and metadata
func (bc *BackendClient) Generate(ctx context.Context, req GenerationRequest) (*GeneratedQuiz, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", req.FileName)
	if err != nil {
		return nil, fmt.Errorf("failed to build upload: %w", err)
	}
	if _, err := part.Write(req.PDF); err != nil {
		return nil, fmt.Errorf("failed to build upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to build upload: %w", err)
	}

	endpoint := bc.baseURL + "/generate-quiz"
	if req.NumQuestions > 0 {
		endpoint += "?" + url.Values{"num_questions": {strconv.Itoa(req.NumQuestions)}}.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := bc.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to reach quiz backend: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read quiz backend response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Detail string `json:"detail"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Detail != "" {
			return nil, fmt.Errorf("quiz backend returned %d: %s", resp.StatusCode, apiErr.Detail)
		}
		return nil, fmt.Errorf("quiz backend returned %d", resp.StatusCode)
	}

	var quiz GeneratedQuiz
	if err := json.Unmarshal(data, &quiz); err != nil {
		return nil, fmt.Errorf("failed to decode quiz backend response: %w", err)
	}
	if len(quiz.Questions) == 0 {
		return nil, fmt.Errorf("quiz backend returned no questions")
	}
	return &quiz, nil
}
