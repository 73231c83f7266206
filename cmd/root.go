// Package cmd implements the llmquery command line: the HTTP server and the
// schema dump utility.
package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"llmquery/config"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:           "llmquery",
	Short:         "Turn natural-language questions into read-only SQL",
	Long:          `llmquery asks an LLM to translate questions about a reporting database into SQL, validates the result against a read-only policy and optionally runs it.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env is optional; variables already set in the environment win.
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load .env: %w", err)
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute runs the CLI application.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to a config file (yaml, json or toml)")
}

func loadConfig() (config.Config, error) {
	v, err := config.NewViper(configFile)
	if err != nil {
		return config.Config{}, err
	}
	return config.Load(v)
}
