package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"onsalenow/internal/http/handlers"
	applog "onsalenow/internal/log"
	"onsalenow/internal/queue"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long:  "Serve the JSON API, the product page and metrics. With a broker configured the product-created consumer runs in-process unless disabled.",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("port", "", "HTTP port (default from $PORT or 8080)")
	serveCmd.Flags().String("views", "./web/templates", "Template directory")
	serveCmd.Flags().Bool("no-consumer", false, "Do not run the product-created consumer in this process")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	port := cfg.Port
	if p, _ := cmd.Flags().GetString("port"); p != "" {
		port = p
	}
	views, _ := cmd.Flags().GetString("views")
	noConsumer, _ := cmd.Flags().GetBool("no-consumer")

	web := handlers.NewApp(a.Deps, views, handlers.Limits{AccessLog: true})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		applog.L().Info("http.listen", zap.String("port", port))
		return web.Listen(":" + port)
	})
	g.Go(func() error {
		<-gctx.Done()
		return web.ShutdownWithTimeout(10 * time.Second)
	})
	if cfg.RabbitURL != "" && cfg.ConsumeInProcess && !noConsumer {
		g.Go(func() error {
			err := queue.Consume(gctx, cfg.RabbitURL, cfg.ProductQueue, a.HandleProductCreated)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}
	return g.Wait()
}
