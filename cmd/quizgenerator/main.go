package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"pdfquiz"
)

func main() {
	var (
		pdfPath      = flag.String("pdf", "", "PDF document to generate questions from (required)")
		numQuestions = flag.Int("questions", 5, "Number of questions to generate")
		maxPages     = flag.Int("pages", 8, "Maximum number of pages to read")
		model        = flag.String("model", "", "OpenAI model (default: OPENAI_MODEL or gpt-4o-mini)")
		outputFile   = flag.String("output", "", "Output file for quiz JSON (default: stdout)")
		apiKey       = flag.String("api-key", "", "OpenAI API key (or set OPENAI_API_KEY env var)")
		sessionKey   = flag.String("session", "", "Also store the quiz in the sqlite cache under this session key")
		sqlitePath   = flag.String("sqlite", "./quizcache.db", "sqlite cache file used with -session")
		ttl          = flag.Duration("ttl", pdfquiz.DefaultTTL, "Cache TTL used with -session")
		verbose      = flag.Bool("verbose", false, "Enable verbose debugging output")
	)

	flag.Parse()

	pdfquiz.SetVerbose(*verbose)

	if *pdfPath == "" {
		log.Fatal("A PDF is required. Use -pdf flag.")
	}

	// Get API key from flag or environment
	if *apiKey == "" {
		*apiKey = os.Getenv("OPENAI_API_KEY")
		if *apiKey == "" {
			log.Fatal("OpenAI API key is required. Use -api-key flag or set OPENAI_API_KEY environment variable.")
		}
	}
	if *model == "" {
		*model = os.Getenv("OPENAI_MODEL")
	}

	data, err := os.ReadFile(*pdfPath)
	if err != nil {
		log.Fatalf("Failed to read %s: %v", *pdfPath, err)
	}

	generator := pdfquiz.NewOpenAIGenerator(*apiKey, *model)
	generator.MaxPages = *maxPages

	// Generate quiz with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	quiz, err := generator.Generate(ctx, pdfquiz.GenerationRequest{
		SessionKey:   *sessionKey,
		FileName:     filepath.Base(*pdfPath),
		PDF:          data,
		NumQuestions: *numQuestions,
	})
	if err != nil {
		log.Fatalf("Failed to generate quiz: %v", err)
	}

	if *sessionKey != "" {
		if err := storeInCache(ctx, *sqlitePath, *sessionKey, *ttl, quiz); err != nil {
			log.Fatalf("Failed to cache quiz: %v", err)
		}
		log.Printf("Cached quiz for session %s in %s", *sessionKey, *sqlitePath)
	}

	// Output the quiz
	output, err := json.MarshalIndent(quiz, "", "  ")
	if err != nil {
		log.Fatalf("Failed to marshal quiz: %v", err)
	}

	if *outputFile != "" {
		if err := os.WriteFile(*outputFile, output, 0644); err != nil {
			log.Fatalf("Failed to write output file: %v", err)
		}
		fmt.Printf("Quiz saved to %s\n", *outputFile)
		return
	}
	fmt.Println(string(output))
}

func storeInCache(ctx context.Context, sqlitePath, sessionKey string, ttl time.Duration, quiz *pdfquiz.GeneratedQuiz) error {
	backend, err := pdfquiz.OpenSQLiteBackend(sqlitePath)
	if err != nil {
		return err
	}
	gateway := pdfquiz.NewGateway(backend, ttl, nil)
	defer gateway.Close()

	_, err = gateway.StoreQuiz(ctx, sessionKey, quiz.Questions, quiz.Metadata)
	return err
}
