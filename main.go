package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tptpredict/config"
	"tptpredict/logger"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "tptpredict",
	Short: "Predict Indonesia's open unemployment rate (TPT) category",
	Long: `tptpredict serves a form that predicts Indonesia's open unemployment rate
category (Rendah, Sedang, Tinggi) from the TPT of other provinces and the
survey period, using a model trained offline.

Examples:
  tptpredict serve                         # Start the web form on :8501
  tptpredict predict --set Aceh=6.5        # Predict from the defaults
  tptpredict features                      # List the model inputs`,
	SilenceUsage: true,
	// Running without a subcommand starts the server.
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the configuration file")
	rootCmd.AddCommand(serveCmd, predictCmd, featuresCmd)
}

// loadConfig reads the configuration and initialises the global logger.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := logger.Init(logger.Options{
		Level:      cfg.Log.Level,
		Env:        cfg.Log.Env,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	}); err != nil {
		return nil, err
	}
	return cfg, nil
}

func main() {
	defer logger.Sync()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
