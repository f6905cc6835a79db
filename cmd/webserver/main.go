package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pdfquiz"
)

func main() {
	cfg, err := pdfquiz.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	pdfquiz.SetVerbose(cfg.Verbose)

	backend, err := cfg.OpenBackend()
	if err != nil {
		log.Fatalf("Failed to open %s cache backend: %v", cfg.Backend, err)
	}
	gateway := pdfquiz.NewGateway(backend, cfg.CacheTTL, nil)
	defer gateway.Close()

	if cfg.SessionSecret == "" {
		log.Printf("SESSION_SECRET not set, session cookies will not survive a restart")
	}
	identity := pdfquiz.NewSessionIdentity(cfg.SessionKey(), cfg.CacheTTL, cfg.CookieSecure())

	generator := cfg.Generator()
	if generator == nil {
		log.Printf("No QUIZ_BACKEND_URL or OPENAI_API_KEY, /generate-quiz is disabled")
	}

	explainer := cfg.Explainer()
	if explainer == nil {
		log.Printf("No OPENAI_API_KEY, /api/explain is disabled")
	}

	server := NewServer(gateway, identity, generator, explainer)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go gateway.RunJanitor(ctx, cfg.SweepInterval)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	}()

	log.Printf("Starting server on port %s (%s cache, ttl %s)", cfg.Port, cfg.Backend, cfg.CacheTTL)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("Server error: %v", err)
	}
}
