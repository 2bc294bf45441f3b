package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/ragchat/internal/client"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show server statistics",
	Long: `Show in-memory runtime statistics of the server: uptime, live
sessions, indexed chunks and subscribers, and timing and token usage per operation.

Example:
  ragchat stats`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	stats, err := gqlClient.GetServerStats(cmd.Context())
	if err != nil {
		return fmt.Errorf("get server stats: %w", err)
	}
	printServerStats(cmd.OutOrStdout(), stats)
	return nil
}

// printServerStats displays server runtime statistics.
func printServerStats(w io.Writer, stats *client.ServerStats) {
	fmt.Fprintf(w, "Server Statistics (in-memory, since restart)\n")
	fmt.Fprintf(w, "═══════════════════════════════════════════════\n")
	fmt.Fprintf(w, "Uptime: %.1f seconds\n", stats.UptimeSeconds)
	fmt.Fprintf(w, "Sessions: %d\n", stats.Sessions)
	if stats.Documents != nil {
		fmt.Fprintf(w, "Indexed chunks: %d\n", *stats.Documents)
	} else {
		fmt.Fprintf(w, "Indexed chunks: unavailable\n")
	}
	fmt.Fprintf(w, "Subscribers: %d chat, %d typing\n", stats.ChatSubscribers, stats.TypingSubscribers)

	for _, op := range stats.Operations {
		fmt.Fprintf(w, "\n%s:\n", op.Operation)
		printOpStats(w, op)
		printTokenStats(w, op)
	}
}

// printOpStats displays timing statistics for an operation.
func printOpStats(w io.Writer, op client.OperationStats) {
	fmt.Fprintf(w, "  Calls: %d (%d failed), Total: %dms\n", op.Count, op.Errors, op.TotalTimeMs)
	fmt.Fprintf(w, "  Time: avg %.1fms, min %dms, max %dms\n",
		op.AvgTimeMs, op.MinTimeMs, op.MaxTimeMs)
}

// printTokenStats displays token statistics if available.
func printTokenStats(w io.Writer, op client.OperationStats) {
	if op.TotalInputTokens == nil || op.TotalOutputTokens == nil {
		return
	}
	fmt.Fprintf(w, "  Tokens: %d in, %d out\n", *op.TotalInputTokens, *op.TotalOutputTokens)
}
