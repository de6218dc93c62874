package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Skufu/medintake/internal/analysis"
	"github.com/Skufu/medintake/internal/config"
	"github.com/Skufu/medintake/internal/docqa"
	"github.com/Skufu/medintake/internal/intake"
	"github.com/Skufu/medintake/internal/llm"
	"github.com/Skufu/medintake/internal/logger"
	"github.com/Skufu/medintake/internal/server"
	"github.com/Skufu/medintake/internal/store"
	"github.com/Skufu/medintake/internal/summary"
	"github.com/Skufu/medintake/internal/tracing"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if err := logger.Init(cfg.LogLevel, cfg.LogFile); err != nil {
		return err
	}
	gin.SetMode(cfg.GinMode)

	if cfg.QuestionBankFile != "" && !cmd.Flags().Changed("questions-file") {
		_ = cmd.Flags().Set("questions-file", cfg.QuestionBankFile)
	}
	bank, err := bankFromFlags(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(server.ServiceName, cfg.TraceStdout)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Log.Warnf("tracer shutdown: %v", err)
		}
	}()

	st, err := store.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("session store: %w", err)
	}
	defer st.Close()

	client, err := llm.New(cfg.LLM)
	if err != nil {
		return fmt.Errorf("llm client: %w", err)
	}

	var db server.HealthChecker
	if cfg.StoreDriver != config.StoreMemory {
		db = st
	}

	router := server.NewRouter(server.Deps{
		Intake:   intake.NewController(bank, st, client),
		Summary:  summary.NewGenerator(client, bank),
		Analyzer: analysis.NewAnalyzer(client),
		Docs:     docqa.NewAsker(client, docqa.DefaultBudget),
		DB:       db,
	}, server.Options{
		MaxUploadBytes: cfg.MaxUploadBytes,
		CORSOrigins:    cfg.CORSOrigins,
		StaticDir:      cfg.StaticDir,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Model calls can take up to the LLM timeout.
		WriteTimeout: cfg.LLM.Timeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.Log.WithField("store", cfg.StoreDriver).
		WithField("llm", client.Name()).
		WithField("questions", bank.Len()).
		Infof("server listening on :%s", cfg.Port)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return intake.NewJanitor(st, cfg.SessionTTL).Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		return shutdown(srv)
	})
	return g.Wait()
}

func shutdown(srv *http.Server) error {
	logger.Log.Info("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
