package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"orienta-rag/internal/llm"
	"orienta-rag/internal/models"
	"orienta-rag/internal/rag"
)

var (
	topK         int
	similarK     int
	modeName     string
	sourceFilter []string
	typeFilter   []string
	minScore     float64
	asJSON       bool
	interactive  bool
)

var queryCmd = &cobra.Command{
	Use:   "query [question]",
	Short: "Rank the chunks answering a question",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := queryOptions()
		if err != nil {
			return err
		}
		ctx := context.Background()
		a, err := open(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		results := a.Manager.Query(ctx, args[0], opts)
		if asJSON {
			return writeJSON(cmd.OutOrStdout(), results)
		}
		printResults(cmd.OutOrStdout(), results)
		return nil
	},
}

var contextCmd = &cobra.Command{
	Use:   "context [question]",
	Short: "Print the context block that would be sent to the LLM",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := open(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		block := a.Manager.ContextFor(ctx, args[0])
		if block == "" {
			fmt.Fprintln(cmd.OutOrStdout(), "No relevant context found.")
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), block)
		return nil
	},
}

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question with the LLM grounded on retrieved context",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !interactive && len(args) == 0 {
			return fmt.Errorf("a question is required in non-interactive mode, or use -i")
		}
		ctx := context.Background()
		a, err := open(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		contextChunks := a.Config.Retrieval.MaxContextChunks
		llmClient, err := llm.NewOllamaLLM(a.Config.LLM.Host, a.Config.LLM.Model)
		if err != nil {
			return fmt.Errorf("failed to create LLM client: %w", err)
		}

		if interactive {
			runInteractiveMode(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), a.Manager, llmClient, contextChunks, a.Logger)
			return nil
		}

		opts := rag.QueryOptions{TopK: contextChunks}
		answer, err := processQuery(ctx, args[0], a.Manager, llmClient, opts, a.Logger)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), formatAnswer(answer))
		return nil
	},
}

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List the indexed documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := open(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		sources := a.Manager.Sources()
		if asJSON {
			return writeJSON(cmd.OutOrStdout(), sources)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Indexed documents:")
		for _, s := range sources {
			fmt.Fprintf(out, "  %s  [%s, %s] %d chunks, %d pages\n",
				s.Source, s.InstitutionName, s.InstitutionType, s.Chunks, s.Pages)
		}
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print knowledge base statistics as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := open(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		return writeJSON(cmd.OutOrStdout(), a.Manager.Stats())
	},
}

var similarCmd = &cobra.Command{
	Use:   "similar [chunk_id]",
	Short: "List the chunks closest to a stored chunk",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := open(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		results, err := a.Manager.Similar(ctx, args[0], similarK)
		if err != nil {
			return err
		}
		if asJSON {
			return writeJSON(cmd.OutOrStdout(), results)
		}
		printResults(cmd.OutOrStdout(), results)
		return nil
	},
}

var keywordsCmd = &cobra.Command{
	Use:   "keywords [question]",
	Short: "Show how the keyword index sees a question",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := open(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		terms := a.Manager.QueryKeywords(args[0])
		if asJSON {
			return writeJSON(cmd.OutOrStdout(), terms)
		}
		out := cmd.OutOrStdout()
		for _, t := range terms {
			if !t.Indexed {
				fmt.Fprintf(out, "  %-24s not indexed\n", t.Term)
				continue
			}
			fmt.Fprintf(out, "  %-24s idf %6.3f  %d chunks\n", t.Term, t.IDF, t.Chunks)
		}
		return nil
	},
}

func init() {
	queryCmd.Flags().IntVarP(&topK, "top-k", "k", 0, "number of results (default from config)")
	queryCmd.Flags().StringVar(&modeName, "mode", "auto", "search mode: auto, hybrid, vector, keyword")
	queryCmd.Flags().StringSliceVar(&sourceFilter, "source", nil, "restrict to these source files")
	queryCmd.Flags().StringSliceVar(&typeFilter, "type", nil, "restrict to these content types")
	queryCmd.Flags().Float64Var(&minScore, "min-score", 0, "drop results scoring below this value (0 applies no floor)")
	queryCmd.Flags().BoolVar(&asJSON, "json", false, "output results as JSON")

	askCmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "run in interactive mode")

	sourcesCmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")

	similarCmd.Flags().IntVarP(&similarK, "top-k", "k", 5, "number of neighbours")
	similarCmd.Flags().BoolVar(&asJSON, "json", false, "output results as JSON")

	keywordsCmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")

	rootCmd.AddCommand(queryCmd, contextCmd, askCmd, sourcesCmd, statsCmd, similarCmd, keywordsCmd)
}

func queryOptions() (rag.QueryOptions, error) {
	mode, ok := models.ParseSearchMode(modeName)
	if !ok {
		return rag.QueryOptions{}, fmt.Errorf("unknown search mode %q", modeName)
	}
	opts := rag.QueryOptions{
		TopK:     topK,
		Mode:     mode,
		MinScore: minScore,
		Sources:  sourceFilter,
	}
	for _, t := range typeFilter {
		ct := models.ParseContentType(t)
		if ct == models.ContentOther && t != string(models.ContentOther) {
			return rag.QueryOptions{}, fmt.Errorf("unknown content type %q", t)
		}
		opts.ContentTypes = append(opts.ContentTypes, ct)
	}
	return opts, nil
}

func runInteractiveMode(ctx context.Context, in io.Reader, out io.Writer, m *rag.Manager, llmClient *llm.OllamaLLM,
	contextChunks int, logger *zap.Logger) {
	scanner := bufio.NewScanner(in)
	var sources []string

	fmt.Fprintln(out, "Assistant d'orientation - posez vos questions sur les écoles (tapez 'exit' pour quitter)")
	fmt.Fprintln(out, "Commandes : /source <fichier.pdf> pour filtrer, /source pour effacer, /sources pour lister")

	for {
		fmt.Fprint(out, "\n> ")
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(input) {
		case "exit", "quit":
			return
		case "":
			continue
		case "/sources":
			for _, s := range m.Sources() {
				fmt.Fprintf(out, "  %s (%d chunks)\n", s.Source, s.Chunks)
			}
			continue
		}

		if strings.HasPrefix(strings.ToLower(input), "/source") {
			name := strings.TrimSpace(input[len("/source"):])
			if name == "" {
				sources = nil
				fmt.Fprintln(out, "Source filter cleared")
			} else {
				sources = []string{name}
				fmt.Fprintf(out, "Source filter set to: %s\n", name)
			}
			continue
		}

		fmt.Fprint(out, "Recherche... ")
		opts := rag.QueryOptions{TopK: contextChunks, Sources: sources}
		answer, err := processQuery(ctx, input, m, llmClient, opts, logger)
		if err != nil {
			fmt.Fprintf(out, "\rError: %v\n", err)
			continue
		}
		fmt.Fprintln(out, "\r"+formatAnswer(answer))
	}
}

func processQuery(ctx context.Context, query string, m *rag.Manager, llmClient *llm.OllamaLLM,
	opts rag.QueryOptions, logger *zap.Logger) (*models.Response, error) {
	start := time.Now()

	results := m.Query(ctx, query, opts)
	block, used := m.FormatContext(results)

	chunks := make([]models.DocumentChunk, 0, used)
	for _, r := range results[:used] {
		chunks = append(chunks, r.Chunk)
	}

	response, err := llmClient.Answer(ctx, query, block, chunks)
	if err != nil {
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}

	logger.Debug("query answered",
		zap.String("query", query), zap.Int("sources", len(chunks)),
		zap.Bool("grounded", response.Grounded), zap.Duration("took", time.Since(start)))
	return response, nil
}

func formatAnswer(response *models.Response) string {
	var sb strings.Builder

	sb.WriteString(response.Answer)
	sb.WriteString("\n\n")

	if !response.Grounded {
		sb.WriteString("(aucune source trouvée dans la documentation)\n")
		return sb.String()
	}

	sb.WriteString("Sources:\n")
	for i, source := range response.Sources {
		name := source.MetaString("institution_name")
		if name == "" {
			name = "N/A"
		}
		sb.WriteString(fmt.Sprintf("  %d. [%s - %s, Page: %d]\n", i+1, source.Source, name, source.PageNumber))
	}

	return sb.String()
}

func printResults(out io.Writer, results []models.SearchResult) {
	if len(results) == 0 {
		fmt.Fprintln(out, "No results found.")
		return
	}
	for i, r := range results {
		fmt.Fprintf(out, "[%d] %s (%.3f)  %s, page %d, %s\n",
			i+1, r.Chunk.ChunkID, r.Score(), r.Chunk.Source, r.Chunk.PageNumber, r.ContentType)
		if len(r.MatchedKeywords) > 0 {
			fmt.Fprintf(out, "    keywords: %s\n", strings.Join(r.MatchedKeywords, ", "))
		}
		fmt.Fprintf(out, "    %s\n", snippet(r.Chunk.Content, 160))
	}
}

func snippet(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	return nil
}
