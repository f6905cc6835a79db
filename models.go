package pdfquiz

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// Question is a single multiple choice question. Order of questions in a quiz
// is display and grading order.
type Question struct {
	Question     string   `json:"question"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correct_index"` // 0-based index
}

// Metadata is the generation metadata attached to a quiz. The cache passes it
// through unchanged.
type Metadata = json.RawMessage

// PDFInfo describes how much of an uploaded document was read
type PDFInfo struct {
	TotalPages   int  `json:"total_pages"`
	PagesRead    int  `json:"pages_read"`
	WasTruncated bool `json:"was_truncated"`
}

// GenerationMetadata is the metadata produced by OpenAIGenerator. It leaves
// the generator encoded as opaque Metadata.
type GenerationMetadata struct {
	Topic                 string  `json:"topic,omitempty"`
	PDFInfo               PDFInfo `json:"pdf_info"`
	OriginalTextLength    int     `json:"original_text_length"`
	WasSummarized         bool    `json:"was_summarized"`
	NumQuestions          int     `json:"num_questions"`
	ProcessingTimeSeconds float64 `json:"processingTimeSeconds"`
}

// QuizEntry is the in-progress quiz state cached for a session
type QuizEntry struct {
	Questions  []Question `json:"questions"`
	Metadata   Metadata   `json:"metadata"`
	InsertedAt time.Time  `json:"inserted_at"`
}

// ResultsEntry is the finalized quiz state cached for a session
type ResultsEntry struct {
	Questions   []Question `json:"questions"`
	Metadata    Metadata   `json:"metadata"`
	UserName    string     `json:"userName"`
	UserAnswers []int      `json:"userAnswers"`
	InsertedAt  time.Time  `json:"inserted_at"`
}

// Score returns the number of answers matching the correct option.
func (r *ResultsEntry) Score() int {
	score := 0
	for i, answer := range r.UserAnswers {
		if i < len(r.Questions) && answer == r.Questions[i].CorrectIndex {
			score++
		}
	}
	return score
}

// Percentage returns the score as a percentage of the question count.
func (r *ResultsEntry) Percentage() float64 {
	if len(r.Questions) == 0 {
		return 0
	}
	return float64(r.Score()) * 100 / float64(len(r.Questions))
}

// Topic returns the "topic" field of the metadata, if any.
func Topic(metadata Metadata) string {
	var m struct {
		Topic string `json:"topic"`
	}
	if err := json.Unmarshal(metadata, &m); err != nil {
		return ""
	}
	return m.Topic
}

func metadataPresent(metadata Metadata) bool {
	trimmed := bytes.TrimSpace(metadata)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

func validateQuestions(questions []Question) error {
	if len(questions) == 0 {
		return validationError("questions are required")
	}
	for i, q := range questions {
		if strings.TrimSpace(q.Question) == "" {
			return validationError("question %d has no text", i+1)
		}
		if len(q.Options) < 2 {
			return validationError("question %d needs at least 2 options, got %d", i+1, len(q.Options))
		}
		if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Options) {
			return validationError("question %d has correct_index %d out of range", i+1, q.CorrectIndex)
		}
	}
	return nil
}
