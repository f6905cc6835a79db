package pdfquiz

import (
	"context"
	"log"
	"time"
)

// Stage tells a reloading client which page to restore
type Stage string

const (
	StageStart   Stage = "start"
	StageQuiz    Stage = "quiz"
	StageResults Stage = "results"
)

// Resumption is the state a session resumes into after a page reload
type Resumption struct {
	Stage   Stage         `json:"stage"`
	Quiz    *QuizEntry    `json:"quiz,omitempty"`
	Results *ResultsEntry `json:"results,omitempty"`
}

// Gateway is the single entry point to the quiz and results caches. It owns
// the quiz -> results handoff.
type Gateway struct {
	backend Backend
	quizzes *QuizCache
	results *ResultsCache
}

// NewGateway builds both stores over one backend
func NewGateway(backend Backend, ttl time.Duration, clock Clock) *Gateway {
	return &Gateway{
		backend: backend,
		quizzes: NewQuizCache(backend, ttl, clock),
		results: NewResultsCache(backend, ttl, clock),
	}
}

// StoreQuiz caches the generated quiz for key, replacing any previous one
func (g *Gateway) StoreQuiz(ctx context.Context, key string, questions []Question, metadata Metadata) (*QuizEntry, error) {
	return g.quizzes.Put(ctx, key, questions, metadata)
}

// FetchQuiz returns the live quiz for key. Absence is reported by the bool.
func (g *Gateway) FetchQuiz(ctx context.Context, key string) (*QuizEntry, bool, error) {
	return g.quizzes.Get(ctx, key)
}

// DeleteQuiz removes the quiz for key
func (g *Gateway) DeleteQuiz(ctx context.Context, key string) error {
	return g.quizzes.Delete(ctx, key)
}

// StoreResults caches the finalized results for key and then retires the
// quiz entry for the same key. A failed retirement is logged only: the
// results stay written and the leftover quiz entry expires with its TTL.
func (g *Gateway) StoreResults(ctx context.Context, key string, in ResultsInput) (*ResultsEntry, error) {
	entry, err := g.results.Put(ctx, key, in)
	if err != nil {
		return nil, err
	}
	if err := g.quizzes.Delete(ctx, key); err != nil {
		log.Printf("Failed to delete quiz cache for session %s after storing results: %v", key, err)
	}
	return entry, nil
}

// FetchResults returns the live results for key
func (g *Gateway) FetchResults(ctx context.Context, key string) (*ResultsEntry, bool, error) {
	return g.results.Get(ctx, key)
}

// DeleteResults removes the results for key
func (g *Gateway) DeleteResults(ctx context.Context, key string) error {
	return g.results.Delete(ctx, key)
}

// Reset removes both entries for key
func (g *Gateway) Reset(ctx context.Context, key string) error {
	if err := g.results.Delete(ctx, key); err != nil {
		return err
	}
	return g.quizzes.Delete(ctx, key)
}

// Resume reports where a session should continue. Results win over a quiz
// that is still lingering.
func (g *Gateway) Resume(ctx context.Context, key string) (*Resumption, error) {
	results, ok, err := g.results.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if ok {
		return &Resumption{Stage: StageResults, Results: results}, nil
	}

	quiz, ok, err := g.quizzes.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if ok {
		return &Resumption{Stage: StageQuiz, Quiz: quiz}, nil
	}
	return &Resumption{Stage: StageStart}, nil
}

// Sweep drops expired entries from both stores
func (g *Gateway) Sweep(ctx context.Context) (int, error) {
	quizzes, err := g.quizzes.Sweep(ctx)
	if err != nil {
		return 0, err
	}
	results, err := g.results.Sweep(ctx)
	if err != nil {
		return quizzes, err
	}
	return quizzes + results, nil
}

// RunJanitor sweeps every interval until ctx is done. Backends without
// whole-store sweeps rely on their own expiry and the janitor returns at once.
func (g *Gateway) RunJanitor(ctx context.Context, interval time.Duration) {
	if _, ok := g.backend.(Sweeper); !ok || interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := g.Sweep(ctx)
			if err != nil {
				log.Printf("Cache sweep failed: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("Swept %d expired cache entries", n)
			}
		}
	}
}

// Close releases the backend
func (g *Gateway) Close() error {
	return g.backend.Close()
}
