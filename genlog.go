package pdfquiz

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// GenerationLogger writes the prompts and responses of one generation run to
// <dir>/<session>.log. A nil logger discards everything.
type GenerationLogger struct {
	file       *os.File
	mu         sync.Mutex
	sessionKey string
}

// NewGenerationLogger creates a transcript file for a session
func NewGenerationLogger(dir, sessionKey string, req GenerationRequest) (*GenerationLogger, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	filename := filepath.Join(dir, fmt.Sprintf("%s.log", filepath.Base(sessionKey)))
	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}

	logger := &GenerationLogger{
		file:       file,
		sessionKey: sessionKey,
	}

	logger.Logf("=== Quiz Generation Log ===\n")
	logger.Logf("Session: %s\n", sessionKey)
	logger.Logf("File: %s (%d bytes)\n", req.FileName, len(req.PDF))
	logger.Logf("Number of Questions: %d\n", req.NumQuestions)
	logger.Logf("Started: %s\n", time.Now().Format(time.RFC3339))
	logger.Logf("========================\n\n")

	return logger, nil
}

// Logf writes a formatted log entry with timestamp
func (gl *GenerationLogger) Logf(format string, args ...interface{}) {
	if gl == nil {
		return
	}
	gl.mu.Lock()
	defer gl.mu.Unlock()
	gl.write(format, args...)
}

func (gl *GenerationLogger) write(format string, args ...interface{}) {
	if gl.file == nil {
		return
	}
	timestamp := time.Now().Format("15:04:05.000")
	fmt.Fprintf(gl.file, "[%s] %s", timestamp, fmt.Sprintf(format, args...))
	gl.file.Sync()
}

// LogRequest logs a prompt sent to the model
func (gl *GenerationLogger) LogRequest(stage, prompt string) {
	gl.Logf("=== REQUEST (%s) ===\n%s\n\n", stage, prompt)
}

// LogResponse logs a model response
func (gl *GenerationLogger) LogResponse(stage, response string) {
	gl.Logf("=== RESPONSE (%s) ===\n%s\n\n", stage, response)
}

// Close closes the log file
func (gl *GenerationLogger) Close() error {
	if gl == nil {
		return nil
	}
	gl.mu.Lock()
	defer gl.mu.Unlock()

	if gl.file == nil {
		return nil
	}
	gl.write("=== Quiz Generation Complete: %s ===\n", time.Now().Format(time.RFC3339))
	err := gl.file.Close()
	gl.file = nil
	return err
}
