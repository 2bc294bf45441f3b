package models

import "time"

// DocumentChunk is one embeddable slice of an ingested document.
// It lives only until it has been handed to the vector index.
type DocumentChunk struct {
	DocumentID     uint64    // Locally unique, monotonically increasing within one run
	DocumentName   string    // "Title" or "Title (2/5)"
	Contents       string    // Chunk text
	ContentsVector []float32 // Embedding, fixed dimensionality
}

// DocumentPayload is what the vector index stores alongside each vector.
type DocumentPayload struct {
	DocID     uint64    `json:"docId"`
	DocTitle  string    `json:"docTitle"`
	Contents  string    `json:"contents"`
	CreatedAt time.Time `json:"createdAt"`
}

// Payload builds the stored payload for the chunk.
func (c DocumentChunk) Payload(createdAt time.Time) DocumentPayload {
	return DocumentPayload{
		DocID:     c.DocumentID,
		DocTitle:  c.DocumentName,
		Contents:  c.Contents,
		CreatedAt: createdAt,
	}
}

// RetrievalResult is a single nearest-neighbour hit. Higher score is more relevant.
type RetrievalResult struct {
	ID      string          `json:"id"`
	Score   float64         `json:"score"`
	Payload DocumentPayload `json:"payload"`
}

// UploadResult reports the outcome of an interactive knowledge upload.
// Failures are carried here rather than returned as errors.
type UploadResult struct {
	Success          bool    `json:"success"`
	DocumentID       *string `json:"documentId,omitempty"`
	Message          string  `json:"message"`
	DocumentsCreated int     `json:"documentsCreated"`
}

// Document is the client-facing view of a retrieved chunk.
type Document struct {
	ID      string  `json:"id"`
	Title   string  `json:"title"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// Document converts the result for display.
func (r RetrievalResult) Document() Document {
	return Document{
		ID:      r.ID,
		Title:   r.Payload.DocTitle,
		Content: r.Payload.Contents,
		Score:   r.Score,
	}
}
