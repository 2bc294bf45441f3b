package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/ragchat/internal/parser"
)

var uploadTitle string

var uploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Upload a document through the server",
	Long: `Upload one text file to the knowledge base via the uploadKnowledgeBase
mutation. The server chunks and embeds it; either every chunk is stored or
none is.

The title defaults to the file name without extension, with underscores
turned into spaces.

Examples:
  ragchat upload account_setup.txt
  ragchat upload notes.txt --title "Release notes"`,
	Args: cobra.ExactArgs(1),
	RunE: runUpload,
}

func init() {
	uploadCmd.Flags().StringVarP(&uploadTitle, "title", "t", "", "document title")
}

func runUpload(cmd *cobra.Command, args []string) error {
	path := args[0]
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	title := uploadTitle
	if title == "" {
		title = parser.TitleFromFilename(filepath.Base(path))
	}

	result, err := gqlClient.UploadKnowledgeBase(cmd.Context(), string(content), title)
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}

	if !result.Success {
		return errors.New(result.Message)
	}

	fmt.Println(result.Message)
	if result.DocumentID != nil {
		fmt.Printf("Document ID: %s\n", *result.DocumentID)
	}
	return nil
}
