package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/boddenberg/dealdesk-bfa/internal/config"
	"github.com/boddenberg/dealdesk-bfa/internal/infra/observability"
)

var (
	flagEnvFile  string
	flagTenant   string
	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:           "dealdesk",
	Short:         "Deal pipeline and invoice aging BFF",
	Long:          "Serve the dealdesk API, or inspect the pipeline and receivables from the terminal.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the main entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagEnvFile, "env-file", ".env", "dotenv file loaded before the environment is read")
	rootCmd.PersistentFlags().StringVarP(&flagTenant, "tenant", "t", "", "tenant id (overrides TENANT_ID)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level (overrides LOG_LEVEL)")
}

// loadConfig is the shared config path of every command.
func loadConfig() (*config.Config, *zap.Logger) {
	// a missing .env is fine
	_ = config.LoadDotEnv(flagEnvFile)

	cfg := config.Load()
	if flagTenant != "" {
		cfg.TenantID = flagTenant
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	return cfg, observability.NewLogger(cfg.LogLevel)
}
