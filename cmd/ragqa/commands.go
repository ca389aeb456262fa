package main

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"ragqa/internal/domain"
	"ragqa/internal/service"
	"ragqa/internal/tui"
)

var (
	corpus     []string
	topK       int
	askTimeout time.Duration
)

var indexCmd = &cobra.Command{
	Use:   "index FILE...",
	Short: "Chunk, embed and index text files",
	Long: `Builds the index from the given .txt files (glob patterns allowed) and prints
its statistics. With index.snapshot_path configured the index is saved there.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIndex,
}

var searchCmd = &cobra.Command{
	Use:   "search QUERY",
	Short: "Print the chunks most similar to a query",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

var askCmd = &cobra.Command{
	Use:   "ask QUESTION",
	Short: "Answer a question from the corpus",
	Args:  cobra.ExactArgs(1),
	RunE:  runAsk,
}

var tuiCmd = &cobra.Command{
	Use:   "tui FILE...",
	Short: "Ask questions interactively",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runTUI,
}

func init() {
	for _, c := range []*cobra.Command{searchCmd, askCmd} {
		c.Flags().StringSliceVar(&corpus, "corpus", nil, "text files to index (glob patterns allowed)")
		_ = c.MarkFlagRequired("corpus")
	}
	for _, c := range []*cobra.Command{searchCmd, askCmd, tuiCmd} {
		c.Flags().IntVarP(&topK, "top-k", "k", 0, "number of chunks to retrieve (default retriever.top_k)")
	}
	for _, c := range []*cobra.Command{askCmd, tuiCmd} {
		c.Flags().DurationVar(&askTimeout, "timeout", 0, "answer generation timeout (default generator.timeout_secs)")
	}
	rootCmd.AddCommand(indexCmd, searchCmd, askCmd, tuiCmd)
}

func k() int {
	if topK > 0 {
		return topK
	}
	return appCfg.Retriever.TopK
}

func ingest(cmd *cobra.Command, paths []string) (*service.RAGService, service.IngestReport, func(), error) {
	if askTimeout > 0 {
		appCfg.Generator.TimeoutSecs = max(1, int(askTimeout.Round(time.Second)/time.Second))
	}
	svc, closer, err := newService(appCfg)
	if err != nil {
		return nil, service.IngestReport{}, nil, err
	}
	report, err := svc.IngestDocuments(cmd.Context(), paths)
	if err != nil {
		closer()
		return nil, service.IngestReport{}, nil, fmt.Errorf("ingest failed: %w", err)
	}
	return svc, report, closer, nil
}

func runIndex(cmd *cobra.Command, args []string) error {
	_, report, closer, err := ingest(cmd, args)
	if err != nil {
		return err
	}
	defer closer()

	cmd.Printf("Indexed %d chunks from %d documents (dimension %d)\n", report.Chunks, report.Documents, report.Dimension)
	if report.FromSnapshot {
		cmd.Printf("Reused snapshot %s\n", appCfg.Index.SnapshotPath)
	} else if appCfg.Index.SnapshotPath != "" {
		cmd.Printf("Saved snapshot %s\n", appCfg.Index.SnapshotPath)
	}
	if report.Summary != "" {
		cmd.Println()
		cmd.Println(report.Summary)
	}
	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	svc, _, closer, err := ingest(cmd, corpus)
	if err != nil {
		return err
	}
	defer closer()

	results, err := svc.Query(cmd.Context(), args[0], k())
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	if len(results) == 0 {
		cmd.Println("No results found.")
		return nil
	}
	printResults(cmd, results)
	return nil
}

func runAsk(cmd *cobra.Command, args []string) error {
	svc, _, closer, err := ingest(cmd, corpus)
	if err != nil {
		return err
	}
	defer closer()

	ans, err := svc.Ask(cmd.Context(), args[0], k())
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}
	cmd.Println(ans.Text)
	cmd.Println()
	cmd.Println("Sources:")
	printResults(cmd, ans.Sources)
	return nil
}

func runTUI(cmd *cobra.Command, args []string) error {
	svc, report, closer, err := ingest(cmd, args)
	if err != nil {
		return err
	}
	defer closer()

	m := tui.New(cmd.Context(), svc, report.Summary, k(), appCfg.GenerationTimeout())
	_, err = tea.NewProgram(m, tea.WithContext(cmd.Context())).Run()
	return err
}

func printResults(cmd *cobra.Command, results []domain.SearchResult) {
	for i, r := range results {
		cmd.Printf("  [%d] chunk %d (%.3f) %s\n", i+1, r.Chunk.ID, r.Score, r.Chunk.Source)
		cmd.Printf("      %s\n", strings.ReplaceAll(r.Chunk.Text, "\n", "\n      "))
	}
}
