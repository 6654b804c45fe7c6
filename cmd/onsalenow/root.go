package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"onsalenow/internal/app"
	"onsalenow/internal/config"
	applog "onsalenow/internal/log"
)

var cfg config.Config

var rootCmd = &cobra.Command{
	Use:          "onsalenow",
	Short:        "On Sale Now storefront backend",
	Long:         "Multi-tenant storefront API with brand and category drop notifications.",
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("store", "", "Record store driver: sqlite or mongo")
}

func initConfig() {
	cfg = config.Load()

	if v, _ := rootCmd.PersistentFlags().GetString("log-level"); v != "" {
		cfg.LogLevel = v
	}
	if v, _ := rootCmd.PersistentFlags().GetString("store"); v != "" {
		cfg.StoreDriver = v
	}
	if _, err := applog.Init(cfg.Env, cfg.LogLevel, cfg.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "[warn] logger init: %v\n", err)
	}
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func buildApp(ctx context.Context) (*app.App, error) {
	a, err := app.Build(ctx, cfg)
	if err != nil {
		return nil, err
	}
	applog.L().Info("app.ready",
		zap.String("env", cfg.Env),
		zap.String("store", cfg.StoreDriver),
		zap.Bool("broker", cfg.RabbitURL != ""),
		zap.Bool("redis", cfg.Redis.Addr != ""),
		zap.Bool("s3", cfg.S3.Bucket != ""),
	)
	return a, nil
}
