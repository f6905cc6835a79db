package pdfquiz

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const (
	// summarizeThreshold is the text length above which the document is
	// summarised before questions are generated
	summarizeThreshold = 4000
	// summarizeInputLimit caps how much text is sent for summarisation
	summarizeInputLimit = 8000
	defaultNumQuestions = 5
	defaultMaxPages     = 8
)

// ErrNoText is returned when an uploaded document has no extractable text
var ErrNoText = errors.New("could not extract text from PDF")

// GenerationRequest is an uploaded document to turn into a quiz
type GenerationRequest struct {
	SessionKey   string
	FileName     string
	PDF          []byte
	NumQuestions int
}

// GeneratedQuiz is what a Generator returns: the questions plus metadata
// ready to be cached. Metadata is passed through as the generator wrote it.
type GeneratedQuiz struct {
	Questions []Question `json:"questions"`
	Metadata  Metadata   `json:"metadata"`
}

// Generator turns an uploaded PDF into a quiz
type Generator interface {
	Generate(ctx context.Context, req GenerationRequest) (*GeneratedQuiz, error)
}

// Explainer explains why a submitted answer is wrong
type Explainer interface {
	Explain(ctx context.Context, req ExplanationRequest) (*Explanation, error)
}

// ExplanationRequest is one answered question from a results page
type ExplanationRequest struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	UserAnswer    string   `json:"user_answer"`
	CorrectAnswer string   `json:"correct_answer"`
}

// Validate reports the first missing field, if any
func (r *ExplanationRequest) Validate() error {
	switch {
	case strings.TrimSpace(r.Question) == "":
		return validationError("question is required")
	case strings.TrimSpace(r.CorrectAnswer) == "":
		return validationError("correct_answer is required")
	case strings.TrimSpace(r.UserAnswer) == "":
		return validationError("user_answer is required")
	}
	return nil
}

// Explanation is the model's answer to an ExplanationRequest
type Explanation struct {
	Explanation   string `json:"explanation"`
	CorrectAnswer string `json:"correct_answer"`
	UserAnswer    string `json:"user_answer"`
}

// chatCompleter is the part of the OpenAI client the generator uses
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIGenerator generates questions in process with the OpenAI API
type OpenAIGenerator struct {
	client   chatCompleter
	model    string
	MaxPages int
	LogDir   string
}

// NewOpenAIGenerator creates a generator with an OpenAI client
func NewOpenAIGenerator(apiKey, model string) *OpenAIGenerator {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIGenerator{
		client:   openai.NewClient(apiKey),
		model:    model,
		MaxPages: defaultMaxPages,
	}
}

// Generate extracts the document text, summarises it when long and asks the
// model for exactly NumQuestions questions.
func (g *OpenAIGenerator) Generate(ctx context.Context, req GenerationRequest) (*GeneratedQuiz, error) {
	started := time.Now()
	if req.NumQuestions <= 0 {
		req.NumQuestions = defaultNumQuestions
	}

	text, info, err := ExtractPDFText(bytes.NewReader(req.PDF), int64(len(req.PDF)), g.MaxPages)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrNoText
	}

	logger := g.openLogger(req)
	defer logger.Close()

	textLength := len(text)
	wasSummarized := textLength > summarizeThreshold
	if wasSummarized {
		text, err = g.summarize(ctx, logger, text)
		if err != nil {
			return nil, err
		}
	}

	questions, err := g.generateQuestions(ctx, logger, text, req.NumQuestions)
	if err != nil {
		return nil, err
	}

	metadata, err := json.Marshal(GenerationMetadata{
		Topic:                 topicFromFileName(req.FileName),
		PDFInfo:               info,
		OriginalTextLength:    textLength,
		WasSummarized:         wasSummarized,
		NumQuestions:          len(questions),
		ProcessingTimeSeconds: time.Since(started).Seconds(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}

	log.Printf("Generated %d questions from %s (%d pages read)", len(questions), req.FileName, info.PagesRead)
	return &GeneratedQuiz{Questions: questions, Metadata: metadata}, nil
}

func (g *OpenAIGenerator) openLogger(req GenerationRequest) *GenerationLogger {
	if g.LogDir == "" || req.SessionKey == "" {
		return nil
	}
	logger, err := NewGenerationLogger(g.LogDir, req.SessionKey, req)
	if err != nil {
		// Continue without logging rather than failing
		log.Printf("Failed to create generation log for session %s: %v", req.SessionKey, err)
		return nil
	}
	return logger
}

func (g *OpenAIGenerator) summarize(ctx context.Context, logger *GenerationLogger, text string) (string, error) {
	if len(text) > summarizeInputLimit {
		text = text[:summarizeInputLimit]
	}
	prompt := "Create a detailed summary of the following text, keeping the most important concepts and information for question generation: \n\n" + text
	logger.LogRequest("summarize", prompt)

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are an expert at summarizing texts while maintaining key points and important concepts.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to summarize text: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no summary in response")
	}

	summary := resp.Choices[0].Message.Content
	logger.LogResponse("summarize", summary)
	VerboseLog("Summarized %d characters into %d", len(text), len(summary))
	return summary, nil
}

func (g *OpenAIGenerator) generateQuestions(ctx context.Context, logger *GenerationLogger, text string, numQuestions int) ([]Question, error) {
	prompt := buildPrompt(text, numQuestions)
	logger.LogRequest("generate", prompt)

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are an expert at creating multiple-choice questions. Always respond with valid JSON.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate questions: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no questions in response")
	}

	content := resp.Choices[0].Message.Content
	logger.LogResponse("generate", content)

	questions, err := parseQuestions(content, numQuestions)
	if err != nil {
		return nil, err
	}
	return questions, nil
}

// Explain asks the model why the user's answer is wrong and the correct one right
func (g *OpenAIGenerator) Explain(ctx context.Context, req ExplanationRequest) (*Explanation, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	VerboseLog("Generating explanation for question: %s", req.Question)
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Temperature: 0.7,
		MaxTokens:   200,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildExplanationPrompt(req),
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate explanation: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no explanation in response")
	}

	return &Explanation{
		Explanation:   strings.TrimSpace(resp.Choices[0].Message.Content),
		CorrectAnswer: req.CorrectAnswer,
		UserAnswer:    req.UserAnswer,
	}, nil
}

// parseQuestions decodes the model response and drops malformed questions
func parseQuestions(content string, numQuestions int) ([]Question, error) {
	var payload struct {
		Questions []Question `json:"questions"`
	}
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return nil, fmt.Errorf("failed to parse questions: %w", err)
	}

	questions := make([]Question, 0, len(payload.Questions))
	for i, q := range payload.Questions {
		if err := validateQuestions([]Question{q}); err != nil || len(q.Options) != 4 {
			VerboseLog("Dropping malformed question %d: %+v", i+1, q)
			continue
		}
		questions = append(questions, q)
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("response does not contain any usable questions")
	}
	if len(questions) > numQuestions {
		questions = questions[:numQuestions]
	}
	return questions, nil
}

func buildPrompt(text string, numQuestions int) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("You are a multiple-choice question generator. Based on the provided text, create EXACTLY %d questions.\n\n", numQuestions))
	sb.WriteString("Rules:\n")
	sb.WriteString("- Each question must have a clear question, EXACTLY 4 options and only ONE correct answer\n")
	sb.WriteString("- Use ONLY information from the provided text\n")
	sb.WriteString("- Vary the difficulty level of questions\n")
	sb.WriteString("- Use clear and objective language\n\n")
	sb.WriteString("Base text:\n")
	sb.WriteString(text)
	sb.WriteString("\n\n")
	sb.WriteString("Return a JSON object with exactly this structure:\n")
	sb.WriteString(`{"questions": [{"question": "Question text", "options": ["A", "B", "C", "D"], "correct_index": 0}]}`)
	sb.WriteString("\n\n")
	sb.WriteString("- correct_index must be a number between 0 and 3\n")
	sb.WriteString(fmt.Sprintf("- Return EXACTLY %d questions\n", numQuestions))
	sb.WriteString("- Do not include explanations or additional text, just the JSON\n")

	return sb.String()
}

func topicFromFileName(name string) string {
	name = strings.TrimSuffix(name, ".pdf")
	name = strings.TrimSuffix(name, ".PDF")
	return strings.TrimSpace(strings.NewReplacer("_", " ", "-", " ").Replace(name))
}

func buildExplanationPrompt(req ExplanationRequest) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Question: %s\n", req.Question))
	sb.WriteString(fmt.Sprintf("Available options: %s\n", strings.Join(req.Options, ", ")))
	sb.WriteString(fmt.Sprintf("User's answer: %s\n", req.UserAnswer))
	sb.WriteString(fmt.Sprintf("Correct answer: %s\n\n", req.CorrectAnswer))
	sb.WriteString(fmt.Sprintf("Please explain why the correct answer is %q and why %q is incorrect.\n", req.CorrectAnswer, req.UserAnswer))
	sb.WriteString("Be educational and encouraging in your explanation.\n")

	return sb.String()
}
