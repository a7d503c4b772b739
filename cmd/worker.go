package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func workerCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run only the async generation worker",
		Long: `Consume async quiz generation tasks from redis without serving HTTP.
Requires queue.enable in the config.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if !cfg.Queue.Enable {
				return errors.New("task queue is disabled, set queue.enable in the config")
			}

			logger, err := setupLogger(cfg.Log)
			if err != nil {
				return err
			}

			a, err := newApp(cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			worker, err := a.newWorker()
			if err != nil {
				return err
			}
			if err := worker.Start(); err != nil {
				return fmt.Errorf("failed to start worker: %w", err)
			}
			logger.WithField("concurrency", cfg.Queue.Concurrency).Info("Worker started")

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()
			<-ctx.Done()

			logger.Info("Stopping worker...")
			worker.Stop()
			return nil
		},
	}
}
