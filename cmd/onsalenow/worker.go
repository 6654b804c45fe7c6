package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	applog "onsalenow/internal/log"
	"onsalenow/internal/queue"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume product-created events and send notifications",
	RunE:  runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	if cfg.RabbitURL == "" {
		return fmt.Errorf("RABBITMQ_URL is not set")
	}
	ctx, stop := signalContext()
	defer stop()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	applog.L().Info("worker.start", zap.String("queue", cfg.ProductQueue))
	err = queue.Consume(ctx, cfg.RabbitURL, cfg.ProductQueue, a.HandleProductCreated)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
