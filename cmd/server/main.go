package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MegaGrindStone/retail-cs-web-ui/internal/assistant"
	"github.com/MegaGrindStone/retail-cs-web-ui/internal/chat"
	"github.com/MegaGrindStone/retail-cs-web-ui/internal/handlers"
	"github.com/MegaGrindStone/retail-cs-web-ui/internal/knowledge"
	"github.com/MegaGrindStone/retail-cs-web-ui/internal/prompt"
	"github.com/joho/godotenv"
)

const sweepInterval = time.Minute

func main() {
	// A missing .env file is fine, the credential may come from the real environment.
	envErr := godotenv.Load()

	cfg, err := loadConfig()
	if err != nil {
		log.Fatal(err)
	}

	level, err := cfg.logLevel()
	if err != nil {
		log.Fatal(err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if envErr != nil {
		logger.Debug("No .env file loaded", slog.String("err", envErr.Error()))
	}

	kb, err := loadKnowledgeBase(cfg.KnowledgeBase)
	if err != nil {
		logger.Error("Failed to load knowledge base", slog.String("err", err.Error()))
		os.Exit(1)
	}

	prompts, err := prompt.NewBuilder(kb)
	if err != nil {
		logger.Error("Failed to create prompt builder", slog.String("err", err.Error()))
		os.Exit(1)
	}

	connector := assistant.NewConnector(cfg.LLM.credentialEnv(), cfg.LLM.builder(logger), cfg.RequestTimeout, logger)
	svc := chat.NewService(connector, prompts, logger)
	sessions := chat.NewRegistry(cfg.SessionIdleTimeout, logger)

	m, err := handlers.NewMain(svc, sessions, connector.CredentialEnv(), logger)
	if err != nil {
		logger.Error("Failed to create handlers", slog.String("err", err.Error()))
		os.Exit(1)
	}

	router, err := m.Routes()
	if err != nil {
		logger.Error("Failed to create routes", slog.String("err", err.Error()))
		os.Exit(1)
	}

	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	defer stopJanitor()
	go sessions.Run(janitorCtx, sweepInterval)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	srv.RegisterOnShutdown(func() {
		stopJanitor()

		if err := m.Shutdown(context.Background()); err != nil {
			logger.Error("Failed to shutdown sse server", slog.String("err", err.Error()))
		}
	})

	// Channel to listen for errors coming from the listener
	serverErrors := make(chan error, 1)

	go func() {
		logger.Info("Server starting", slog.String("port", cfg.Port), slog.String("credentialEnv", connector.CredentialEnv()))
		serverErrors <- srv.ListenAndServe()
	}()

	// Channel to listen for interrupt/terminate signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", slog.String("err", err.Error()))
		}

	case sig := <-shutdown:
		logger.Info("Start shutdown", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Graceful shutdown failed", slog.String("err", err.Error()))
			if err := srv.Close(); err != nil {
				logger.Error("Forcing server close", slog.String("err", err.Error()))
			}
		}
	}
}

func loadKnowledgeBase(path string) (knowledge.Base, error) {
	if path == "" {
		return knowledge.Default(), nil
	}
	kb, err := knowledge.Load(path)
	if err != nil {
		return knowledge.Base{}, fmt.Errorf("error loading knowledge base %s: %w", path, err)
	}
	return kb, nil
}
