package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var typingCmd = &cobra.Command{
	Use:   "typing <session-id> [<user-id> <true|false>]",
	Short: "Show or set typing indicators",
	Long: `With only a session id, list the users currently typing in that
session. With a user id and state, mark the user as typing or idle;
watchers of the session receive the change through the typingIndicator
subscription.

Examples:
  ragchat typing 3f2a...
  ragchat typing 3f2a... alice true
  ragchat typing 3f2a... alice false`,
	Args: typingArgs,
	RunE: runTyping,
}

func typingArgs(cmd *cobra.Command, args []string) error {
	if len(args) != 1 && len(args) != 3 {
		return fmt.Errorf("accepts 1 or 3 arg(s), received %d", len(args))
	}
	return nil
}

func runTyping(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		users, err := gqlClient.TypingUsers(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("get typing users: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), typingUsersText(users))
		return nil
	}

	isTyping, err := strconv.ParseBool(args[2])
	if err != nil {
		return fmt.Errorf("invalid typing state %q: %w", args[2], err)
	}

	status, err := gqlClient.SetTyping(cmd.Context(), args[0], args[1], isTyping)
	if err != nil {
		return fmt.Errorf("set typing: %w", err)
	}

	state := "idle"
	if status.IsTyping {
		state = "typing"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s is %s\n", status.UserID, state)
	return nil
}

func typingUsersText(users []string) string {
	if len(users) == 0 {
		return "Nobody is typing."
	}
	return "Typing: " + strings.Join(users, ", ")
}
