// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/confpapers/internal/pipeline"
	"github.com/pdiddy/confpapers/internal/secrets"
)

// runTargets runs the download (or retry) pass over the selected targets.
// It fails only when no target could be processed.
func runTargets(cmd *cobra.Command, retry bool) error {
	conference, _ := cmd.Flags().GetString("conference")
	year, _ := cmd.Flags().GetInt("year")
	targets, err := selectTargets(conference, year)
	if err != nil {
		return err
	}

	ua := secrets.UserAgent(viper.GetString("user_agent"), loadedSecrets)
	cfg := pipelineConfig(viper.GetViper(), ua)
	if err := os.MkdirAll(cfg.OutDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := &http.Client{Timeout: cfg.Download.Timeout}
	c := pipeline.New(cfg, client, logger, os.Stdout)

	var stats *pipeline.RunStats
	if retry {
		stats = c.Retry(ctx, targets)
	} else {
		stats = c.Run(ctx, targets)
	}
	stats.PrintSummary(os.Stdout)

	if path := viper.GetString("metrics-file"); path != "" {
		if err := pipeline.WriteMetrics(path, stats); err != nil {
			logger.Warn("metrics not written", zap.Error(err))
		}
	}

	if stats.Processed() == 0 {
		return fmt.Errorf("none of %d target(s) could be processed", len(targets))
	}
	return nil
}
