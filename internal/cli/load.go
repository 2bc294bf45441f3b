package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/raphaelgruber/ragchat/internal/config"
	"github.com/raphaelgruber/ragchat/internal/ingest"
	"github.com/raphaelgruber/ragchat/internal/llm"
	"github.com/raphaelgruber/ragchat/internal/parser"
	"github.com/raphaelgruber/ragchat/internal/vectorstore"
)

var (
	loadDir       string
	loadStartID   uint64
	loadBatchSize int
	loadDryRun    bool
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load a directory of .txt files into the vector index",
	Long: `Chunk, embed and store every .txt file in a directory.

The loader talks to the embedding provider and the vector index directly;
no server needs to be running. Chunk ids are assigned sequentially from
--start-id, so re-running with the same start id overwrites earlier points.

The title is derived from the file name ("account_setup.txt" becomes
"account setup"). A file may start with YAML front matter whose title
overrides it:

  ---
  title: Account Setup
  ---
  How do I create an account?

Examples:
  ragchat load
  ragchat load --dir ./docs --start-id 1000
  ragchat load --dry-run`,
	Args: cobra.NoArgs,
	RunE: runLoad,
}

func init() {
	loadCmd.Flags().StringVarP(&loadDir, "dir", "d", "./happytalk_help", "directory of .txt files")
	loadCmd.Flags().Uint64Var(&loadStartID, "start-id", 1, "first chunk id")
	loadCmd.Flags().IntVar(&loadBatchSize, "batch-size", 10, "chunks per upsert")
	loadCmd.Flags().BoolVar(&loadDryRun, "dry-run", false, "chunk only, without embedding or storing")
}

func runLoad(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := checkLoadConfig(cfg, loadDryRun); err != nil {
		return err
	}

	opts := ingest.DefaultOptions()
	opts.StartID = loadStartID
	opts.BatchSize = loadBatchSize
	opts.DryRun = loadDryRun
	opts.Chunk = parser.ChunkConfig{
		MaxSize: cfg.ChunkMaxSize,
		Overlap: cfg.ChunkOverlap,
		Mode:    cfg.ChunkOverlapMode,
	}

	var (
		embedder ingest.Embedder
		upserter ingest.Upserter
	)
	if !loadDryRun {
		e, err := llm.NewEmbedder(ctx, cfg, nil)
		if err != nil {
			return fmt.Errorf("create embedder: %w", err)
		}

		index, err := vectorstore.New(cfg, nil)
		if err != nil {
			return fmt.Errorf("open vector store: %w", err)
		}
		defer index.Close()

		if err := index.EnsureCollection(ctx); err != nil {
			return fmt.Errorf("ensure collection: %w", err)
		}
		embedder, upserter = e, index
	}

	run := func(report func(ingest.Progress)) (ingest.Summary, error) {
		o := opts
		o.Progress = report
		return ingest.NewLoader(embedder, upserter, o).Run(ctx, loadDir)
	}

	if term.IsTerminal(int(os.Stdout.Fd())) {
		_, err := runLoadProgress(run, loadDir, loadDryRun, cancel)
		return loadError(err)
	}

	summary, err := run(func(p ingest.Progress) {
		fmt.Printf("[%d/%d] %s: %d chunks\n", p.FilesDone, p.FilesTotal, p.File, p.Chunks)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return loadError(err)
	}

	fmt.Println()
	if loadDryRun {
		fmt.Println("Dry run complete.")
	}
	fmt.Print(summaryText(summary, loadDryRun))
	return loadError(err)
}

// checkLoadConfig fails fast on settings the loader cannot run without.
func checkLoadConfig(c config.Config, dryRun bool) error {
	if dryRun {
		return nil
	}
	if c.EmbedProvider == config.ProviderGoogleAI && c.GeminiAPIKey == "" {
		return errors.New("GEMINI_API_KEY is not set")
	}
	if c.VectorStore == config.VectorStoreMemory {
		return errors.New("the memory vector store does not persist; set VECTOR_STORE=qdrant")
	}
	if c.QdrantURL == "" {
		return errors.New("QDRANT_URL is not set")
	}
	return nil
}

// loadError treats a user interrupt as a clean exit.
func loadError(err error) error {
	if err == nil || errors.Is(err, context.Canceled) {
		return nil
	}
	return fmt.Errorf("load: %w", err)
}
