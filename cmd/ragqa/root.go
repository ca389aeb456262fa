package main

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"ragqa/internal/config"
	"ragqa/internal/logger"
)

var (
	cfgPath string
	verbose bool
	appCfg  *config.AppConfig
)

var rootCmd = &cobra.Command{
	Use:   "ragqa",
	Short: "Retrieval-augmented question answering over text files",
	Long: `ragqa splits text files into overlapping chunks, embeds them, and answers
questions from the chunks most similar to the question.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to YAML config (default ./config.yaml or ~/.config/ragqa/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log pipeline steps to stderr")
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	_ = godotenv.Load()

	var err error
	path := cfgPath
	if path == "" {
		appCfg, path, err = config.LoadDefault()
	} else {
		appCfg, err = config.Load(path)
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger.SetOutput(cmd.ErrOrStderr())
	logger.SetVerbose(verbose || appCfg.Log.Verbose)
	logger.Debug("config loaded from %s", path)
	return nil
}
