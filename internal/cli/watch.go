package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/raphaelgruber/ragchat/internal/client"
)

var watchTyping bool

var watchCmd = &cobra.Command{
	Use:   "watch <session-id>",
	Short: "Stream chat answers for a session",
	Long: `Subscribe to a session and print every answer as it is published.
With --typing, typing indicator changes are printed too.

Press Ctrl+C to stop.

Examples:
  ragchat watch 3f2a...
  ragchat watch 3f2a... --typing`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchTyping, "typing", false, "also show typing indicators")
}

func runWatch(cmd *cobra.Command, args []string) error {
	sessionID := args[0]

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return gqlClient.SubscribeChatStream(ctx, sessionID, func(r client.ChatResponse) error {
			fmt.Printf("[%s] Assistant: %s\n", r.Timestamp.Local().Format("15:04:05"), r.Response)
			return nil
		})
	})

	if watchTyping {
		g.Go(func() error {
			return gqlClient.SubscribeTypingIndicator(ctx, sessionID, func(s client.TypingStatus) error {
				if s.IsTyping {
					fmt.Printf("[%s] %s is typing...\n", s.Timestamp.Local().Format("15:04:05"), s.UserID)
				}
				return nil
			})
		})
	}

	fmt.Printf("Watching session %s (Ctrl+C to stop)\n", sessionID)
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("watch: %w", err)
	}
	return nil
}
