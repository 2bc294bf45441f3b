package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/ragchat/internal/client"
)

var (
	chatSession     string
	chatShowSources bool
)

var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Chat with the assistant",
	Long: `Send a message to the assistant and print its answer.

Without a message argument, starts an interactive session that reads one
message per line from stdin until EOF or "exit". The session id is printed
so a later run can continue the conversation with --session.

Examples:
  ragchat chat "How do I reset my password?"
  ragchat chat "And on mobile?" --session 3f2a...
  ragchat chat --sources`,
	Args: cobra.MaximumNArgs(1),
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatSession, "session", "s", "", "continue an existing session")
	chatCmd.Flags().BoolVar(&chatShowSources, "sources", false, "print the documents used for each answer")
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if len(args) == 1 {
		resp, err := gqlClient.Chat(ctx, args[0], chatSession)
		if err != nil {
			return fmt.Errorf("chat: %w", err)
		}
		printChatResponse(resp)
		return nil
	}

	sessionID := chatSession
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			fmt.Print("> ")
			continue
		case line == "exit" || line == "quit":
			return nil
		}

		resp, err := gqlClient.Chat(ctx, line, sessionID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			fmt.Print("> ")
			continue
		}
		if sessionID == "" {
			sessionID = resp.SessionID
			fmt.Printf("(session %s)\n", sessionID)
		}
		printChatResponse(resp)
		fmt.Print("> ")
	}
	return scanner.Err()
}

func printChatResponse(resp *client.ChatResponse) {
	fmt.Println(resp.Response)
	if chatShowSources && len(resp.Sources) > 0 {
		fmt.Println("\nSources:")
		for _, doc := range resp.Sources {
			fmt.Printf("  - %s (%.2f)\n", doc.Title, doc.Score)
		}
	}
	if verbose {
		fmt.Printf("\n[session %s, %s]\n", resp.SessionID, resp.Timestamp.Format("15:04:05"))
	}
	fmt.Println()
}
