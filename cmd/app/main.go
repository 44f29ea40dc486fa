package main

import (
	"fmt"
	"os"

	"TokenLens/pkg/config"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	configPath string
	envFile    string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "tokenlens",
		Short:         "Token research reports aggregated from market, social and on-chain sources",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config/config.yaml", "config file path")
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the config; missing files are ignored")

	root.AddCommand(newServeCmd(), newReportCmd())
	return root
}

// loadConfig reads the dotenv file, then the YAML config with environment
// overrides applied.
func loadConfig() (*config.Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	cfg, err := config.LoadWithEnv(configPath)
	if err != nil {
		return nil, fmt.Errorf("config load failed: %w", err)
	}
	return cfg, nil
}
