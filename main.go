package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JonMunkholm/askdb/internal/config"
	"github.com/JonMunkholm/askdb/internal/logging"
)

var (
	envFile string
	cfg     config.Config
	logger  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "askdb",
	Short:         "Ask questions about the school database in plain English",
	Long:          `askdb translates an English question into SQL using a text-generation model, checks the SQL with a rolled-back dry run, and runs it against the school database.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if envFile != "" {
			cfg, err = config.LoadFromEnv(envFile)
		} else {
			cfg, err = config.LoadFromEnv()
		}
		if err != nil {
			return err
		}
		logger, err = logging.New(cfg.Log.Level, cfg.Log.JSON)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file to load (default .env if present)")
	rootCmd.AddCommand(serveCmd, askCmd, validateCmd, seedCmd, schemaCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
