// Package parser turns raw knowledge-base text into embeddable chunks.
package parser

import (
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Document is a source text file prepared for ingestion.
type Document struct {
	// Frontmatter metadata (from YAML)
	Frontmatter map[string]any

	// Title from frontmatter or the file name
	Title string

	// Main content (after frontmatter), trimmed
	Content string
}

// ParseDocument parses a knowledge-base file. An optional YAML front matter
// block delimited by "---" lines may override the title derived from the
// file name.
func ParseDocument(filename, content string) *Document {
	doc := &Document{
		Frontmatter: make(map[string]any),
	}

	remaining := strings.ReplaceAll(content, "\r\n", "\n")
	if strings.HasPrefix(remaining, "---\n") {
		endIdx := strings.Index(remaining[4:], "\n---")
		if endIdx >= 0 {
			frontmatterYAML := remaining[4 : 4+endIdx]
			remaining = strings.TrimPrefix(remaining[4+endIdx+4:], "\n")

			if err := yaml.Unmarshal([]byte(frontmatterYAML), &doc.Frontmatter); err != nil {
				// Ignore YAML errors, just use empty frontmatter
				doc.Frontmatter = make(map[string]any)
			}
		}
	}

	doc.Content = strings.TrimSpace(remaining)
	doc.Title = doc.GetFrontmatterString("title")
	if doc.Title == "" {
		doc.Title = TitleFromFilename(filename)
	}

	return doc
}

// TitleFromFilename strips the directory and ".txt" extension and turns
// underscores into spaces: "account_setup.txt" becomes "account setup".
func TitleFromFilename(filename string) string {
	name := strings.TrimSuffix(filepath.Base(filename), ".txt")
	return strings.TrimSpace(strings.ReplaceAll(name, "_", " "))
}

// ChunkName annotates a title with the chunk position, e.g. "Title (2/5)".
func ChunkName(title string, index, total int) string {
	return fmt.Sprintf("%s (%d/%d)", title, index+1, total)
}

// GetFrontmatterString extracts a string from frontmatter.
func (d *Document) GetFrontmatterString(key string) string {
	if v, ok := d.Frontmatter[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}
