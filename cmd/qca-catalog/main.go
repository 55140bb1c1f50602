// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the qca-catalog CLI.
// Commands: normalize, search, partitions, runs, combination, comment,
// config, version.
package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/qca-catalog/internal/logging"
	"github.com/pdiddy/qca-catalog/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	// cfg is the effective configuration after defaults, file and env.
	cfg types.Config

	// configErr is the error from initConfig, surfaced before any command runs.
	configErr error

	logger logging.Logger = logging.NewNopLogger()
)

var (
	okColor   = color.New(color.FgGreen)
	warnColor = color.New(color.FgYellow)
	failColor = color.New(color.FgRed, color.Bold)
)

// rootCmd is the base command for the qca-catalog CLI.
var rootCmd = &cobra.Command{
	Use:   "qca-catalog",
	Short: "Searchable catalog of QCArchive conformer records",
	Long: `qca-catalog normalizes QCArchive singlepoint, optimization and
torsiondrive collections into a partitioned Parquet corpus keyed by canonical
molecular identity, and answers substructure queries against it.

Run normalize to build or refresh the corpus from downloaded collections, then
search with a SMARTS pattern and optional specification, dataset, type and
combination filters.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configErr != nil {
			return configErr
		}
		logCfg := cfg.Log
		if level, _ := cmd.Flags().GetString("log-level"); level != "" {
			logCfg.Level = level
		}
		l, err := logging.NewLogger(logCfg)
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./qca-catalog.yaml or ~/.config/qca-catalog/qca-catalog.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
}

func initConfig() {
	defaults, err := yaml.Marshal(types.DefaultConfig())
	if err != nil {
		configErr = fmt.Errorf("encoding default config: %w", err)
		return
	}
	viper.SetConfigType("yaml")
	if err := viper.ReadConfig(bytes.NewReader(defaults)); err != nil {
		configErr = fmt.Errorf("loading default config: %w", err)
		return
	}

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("qca-catalog")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "qca-catalog"))
		}
	}

	viper.SetEnvPrefix("QCA_CATALOG")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	// Keys omitted from the defaults are not seen by AutomaticEnv.
	viper.BindEnv("report.artifact_url")

	err = viper.MergeInConfig()
	var notFound viper.ConfigFileNotFoundError
	switch {
	case err == nil:
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	case errors.As(err, &notFound) && cfgFile == "":
	default:
		configErr = fmt.Errorf("reading config: %w", err)
		return
	}

	if err := viper.Unmarshal(&cfg); err != nil {
		configErr = fmt.Errorf("decoding config: %w", err)
	}
}

// flagOr returns the named string flag when set, otherwise fallback.
func flagOr(cmd *cobra.Command, name, fallback string) string {
	if v, _ := cmd.Flags().GetString(name); v != "" {
		return v
	}
	return fallback
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		failColor.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
