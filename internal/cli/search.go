package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var searchLimit int

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the knowledge base without LLM synthesis",
	Long: `Search the knowledge base by vector similarity.

Returns matching chunks ranked by relevance without generating an answer.
Use the 'chat' command for LLM answers.

Examples:
  ragchat search "opening hours"
  ragchat search "refund policy" -n 10`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 5, "max results")
}

func runSearch(cmd *cobra.Command, args []string) error {
	results, err := gqlClient.Search(cmd.Context(), args[0], searchLimit)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	if len(results) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	fmt.Printf("Found %d results:\n\n", len(results))
	for i, doc := range results {
		fmt.Printf("%d. %s (score %.3f)\n", i+1, doc.Title, doc.Score)
		content := doc.Content
		if !verbose && len([]rune(content)) > 100 {
			content = string([]rune(content)[:100]) + "..."
		}
		fmt.Printf("   %s\n", content)
		if verbose {
			fmt.Printf("   ID: %s\n", doc.ID)
		}
		fmt.Println()
	}

	return nil
}
