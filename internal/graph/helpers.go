package graph

import (
	"github.com/raphaelgruber/ragchat/internal/metrics"
	"github.com/raphaelgruber/ragchat/internal/models"
)

// documentsToGraphQL converts retrieved documents. The result is never nil.
func documentsToGraphQL(docs []models.Document) []Document {
	out := make([]Document, len(docs))
	for i, d := range docs {
		out[i] = Document{
			ID:      d.ID,
			Title:   d.Title,
			Content: d.Content,
			Score:   d.Score,
		}
	}
	return out
}

// chatResultToGraphQL converts a models.ChatResult to a GraphQL ChatResponse.
func chatResultToGraphQL(r models.ChatResult) *ChatResponse {
	return &ChatResponse{
		ID:        r.ID,
		SessionID: r.SessionID,
		Response:  r.Response,
		Sources:   documentsToGraphQL(r.Sources),
		Timestamp: r.Timestamp.UTC(),
	}
}

func uploadResultToGraphQL(r models.UploadResult) *UploadResult {
	return &UploadResult{
		Success:          r.Success,
		DocumentID:       r.DocumentID,
		Message:          r.Message,
		DocumentsCreated: r.DocumentsCreated,
	}
}

func typingStatusToGraphQL(s models.TypingStatus) *TypingStatus {
	return &TypingStatus{
		UserID:    s.UserID,
		IsTyping:  s.IsTyping,
		Timestamp: s.Timestamp.UTC(),
	}
}

// snapshotToOperations converts the operations that have run so far.
func snapshotToOperations(snap metrics.Snapshot) []OperationStats {
	out := make([]OperationStats, 0, len(snap.Operations))
	for _, op := range snap.Operations {
		out = append(out, OperationStats{
			Operation:         op.Operation,
			Count:             op.Count,
			Errors:            op.Errors,
			TotalTimeMs:       op.TotalTimeMs,
			AvgTimeMs:         op.AvgTimeMs,
			MinTimeMs:         op.MinTimeMs,
			MaxTimeMs:         op.MaxTimeMs,
			TotalInputTokens:  op.TotalInputTokens,
			TotalOutputTokens: op.TotalOutputTokens,
		})
	}
	return out
}
