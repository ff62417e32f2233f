package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"orienta-rag/internal/app"
)

var (
	configPath string
	overrides  app.Overrides
)

var rootCmd = &cobra.Command{
	Use:          "orientaqa",
	Short:        "Question answering over Moroccan higher-education brochures",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "orienta.toml", "path to the TOML config file")
	rootCmd.PersistentFlags().StringVar(&overrides.PDFDir, "pdfs", "", "directory holding the source PDFs")
	rootCmd.PersistentFlags().StringVar(&overrides.IndexDir, "index", "", "directory of the persisted index")
	rootCmd.PersistentFlags().StringVar(&overrides.OllamaHost, "ollama", "", "Ollama host (default uses OLLAMA_HOST env var)")
	rootCmd.PersistentFlags().StringVar(&overrides.EmbedModel, "embedding-model", "", "Ollama model for embeddings")
	rootCmd.PersistentFlags().StringVar(&overrides.LLMModel, "model", "", "Ollama model for answering")
	rootCmd.PersistentFlags().StringVar(&overrides.LogLevel, "log-level", "", "log level (debug, info, warn, error)")
}

// open wires the application and loads (or builds) the knowledge base
func open(ctx context.Context) (*app.App, error) {
	a, err := app.New(ctx, configPath, overrides, false)
	if err != nil {
		return nil, err
	}
	if err := a.Manager.Initialize(ctx, false); err != nil {
		a.Close()
		return nil, fmt.Errorf("knowledge base unavailable: %w", err)
	}
	return a, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
