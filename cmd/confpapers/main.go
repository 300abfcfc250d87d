// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the confpapers CLI. It scrapes
// conference listings, downloads the papers' PDFs and writes one JSON
// manifest per venue/year.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/confpapers/internal/logging"
	"github.com/pdiddy/confpapers/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	// loadedSecrets holds values loaded from .secrets/ at startup.
	loadedSecrets map[string]string

	logger = zap.NewNop()
)

// rootCmd downloads the selected targets.
var rootCmd = &cobra.Command{
	Use:   "confpapers",
	Short: "Download papers from NeurIPS, ICLR, ICML and CVPR",
	Long: `confpapers scrapes conference listings (NeurIPS, ICLR and ICML virtual
sites, CVPR through papers.cool), downloads each paper's PDF and writes a
JSON manifest per venue and year under <out>/<venue>_<year>_papers/.

Without -c and -y the default matrix runs. -c alone runs that venue's
default years; -y alone runs every venue for that year. PDFs already on
disk are skipped, so re-running is cheap.`,
	Example: `  confpapers -c icml -y 2025
  confpapers -c https://neurips.cc -y 2024 --arxiv-fallback
  confpapers -y 2024 --parallel 2`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger = logging.New(viper.GetString("log-level"), viper.GetString("log-format"))

		s, err := secrets.Load(secrets.DefaultDir, logger)
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			logger.Debug("loaded secrets", zap.Strings("keys", keys))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTargets(cmd, false)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./confpapers.yaml or ~/.config/confpapers/confpapers.yaml)")
	pf.StringP("conference", "c", "", "venue short name (neurips, iclr, icml, cvpr) or base URL")
	pf.IntP("year", "y", 0, "conference year")
	pf.StringSlice("event-types", []string{"oral"}, "listing groups to fetch on venues that have them")
	pf.String("out", ".", "output directory")
	pf.Int("parallel", 1, "venue/year targets processed concurrently")
	pf.Bool("arxiv-fallback", false, "search arXiv by title when no PDF URL resolves")
	pf.Bool("no-browser", false, "fetch lazy-loaded listings as a single static page")
	pf.String("metrics-file", "", "write run counters in Prometheus text format to this file")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.String("log-format", "console", "log format: console or json")

	for _, name := range []string{
		"event-types", "out", "parallel", "arxiv-fallback", "no-browser",
		"metrics-file", "log-level", "log-format",
	} {
		_ = viper.BindPFlag(name, pf.Lookup(name))
	}
	setDefaults(viper.GetViper())
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("confpapers")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "confpapers"))
		}
	}

	viper.SetEnvPrefix("CONFPAPERS")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
