package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"orienta-rag/internal/app"
)

func main() {
	var (
		configPath string
		overrides  app.Overrides
		force      bool
		mirror     bool
	)

	rootCmd := &cobra.Command{
		Use:          "indexer",
		Short:        "Build and inspect the orientation knowledge base",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "orienta.toml", "path to the TOML config file")
	rootCmd.PersistentFlags().StringVar(&overrides.PDFDir, "pdfs", "", "directory holding the source PDFs")
	rootCmd.PersistentFlags().StringVar(&overrides.IndexDir, "index", "", "directory of the persisted index")
	rootCmd.PersistentFlags().StringVar(&overrides.OllamaHost, "ollama", "", "Ollama host (default uses OLLAMA_HOST env var)")
	rootCmd.PersistentFlags().StringVar(&overrides.EmbedModel, "model", "", "Ollama model for embeddings")
	rootCmd.PersistentFlags().StringVar(&overrides.LogLevel, "log-level", "", "log level (debug, info, warn, error)")

	buildCmd := &cobra.Command{
		Use:   "build",
		Short: "Ingest the PDF corpus and persist a new index generation",
		Long: `Loads the persisted index when it matches the embedding model, otherwise
extracts, chunks and embeds every PDF of the corpus directory. --force always
rebuilds. With --pg the new generation is mirrored into PostgreSQL.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := app.New(ctx, configPath, overrides, mirror)
			if err != nil {
				return err
			}
			defer a.Close()

			start := time.Now()
			if err := a.Manager.Initialize(ctx, force); err != nil {
				return fmt.Errorf("failed to build knowledge base: %w", err)
			}

			stats := a.Manager.Stats()
			a.Logger.Info("knowledge base ready",
				zap.String("generation", stats.Index.Generation),
				zap.Int("chunks", stats.Index.ChunkCount),
				zap.Int("sources", len(stats.Index.Sources)),
				zap.Bool("vector_search", stats.Status.VectorSearch),
				zap.Duration("took", time.Since(start)))

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Index generation %s: %d chunks from %d documents\n",
				stats.Index.Generation, stats.Index.ChunkCount, len(stats.Index.Sources))
			if !stats.Status.VectorSearch {
				fmt.Fprintln(out, "Embedding backend unavailable: keyword search only")
			}
			for _, s := range a.Manager.Sources() {
				fmt.Fprintf(out, "  %-40s %3d chunks, %2d pages  %s\n", s.Source, s.Chunks, s.Pages, s.InstitutionName)
			}
			return nil
		},
	}
	buildCmd.Flags().BoolVar(&force, "force", false, "rebuild even when a compatible index exists")
	buildCmd.Flags().BoolVar(&mirror, "pg", false, "mirror the generation into PostgreSQL")
	buildCmd.Flags().StringVar(&overrides.PostgresDSN, "dsn", "", "PostgreSQL connection string for --pg")

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Print statistics of the persisted index as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			a, err := app.New(ctx, configPath, overrides, false)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Manager.Initialize(ctx, false); err != nil {
				return fmt.Errorf("failed to load knowledge base: %w", err)
			}
			data, err := json.MarshalIndent(a.Manager.Stats(), "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal stats: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}

	rootCmd.AddCommand(buildCmd, statsCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
