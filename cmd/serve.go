package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fyerfyer/quiz-gen-system/api"
	"github.com/fyerfyer/quiz-gen-system/api/handler"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

func serveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Long: `Run the quiz HTTP API. When queue.enable is set, an asynq worker for
async generation runs in the same process.

Example:
  quizgen serve --config config.yaml --port 5000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

func runServe(ctx context.Context, opts *rootOptions) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	logger, err := setupLogger(cfg.Log)
	if err != nil {
		return err
	}
	logger.Info("Starting quiz generation service...")

	gin.SetMode(cfg.Server.Mode)

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	var taskHandler *handler.TaskHandler
	if a.queue != nil {
		worker, err := a.newWorker()
		if err != nil {
			return err
		}
		if err := worker.Start(); err != nil {
			return fmt.Errorf("failed to start worker: %w", err)
		}
		defer worker.Stop()
		taskHandler = handler.NewTaskHandler(a.queue)
		logger.Info("Embedded worker started")
	}

	router := api.SetupRouter(
		handler.NewQuizHandler(a.service, cfg.Server.MaxUploadSize),
		taskHandler,
		api.RouterConfig{
			RateLimitPerMinute: cfg.Server.RateLimitPerMinute,
			RateLimitBurst:     cfg.Server.RateLimitBurst,
			AllowedOrigins:     cfg.Server.AllowedOrigins,
		},
	)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      api.WithCORS(router, cfg.Server.AllowedOrigins),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Server is running on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("Server exited")
	return nil
}
