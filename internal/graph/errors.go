package graph

import (
	"context"
	"errors"
	"log/slog"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"

	"github.com/raphaelgruber/ragchat/internal/service"
)

// FallbackMessage is shown to users whenever a chat cannot be answered.
const FallbackMessage = "Sorry, I couldn't generate a response right now. Please try again."

// Error codes reported in extensions.code.
const (
	CodeEmptyMessage     = "EMPTY_MESSAGE"
	CodeEmbeddingFailed  = "EMBEDDING_FAILED"
	CodeSearchFailed     = "SEARCH_FAILED"
	CodeGenerationFailed = "GENERATION_FAILED"
	CodeInternal         = "INTERNAL"

	CodeIntrospectionDisabled = "INTROSPECTION_DISABLED"
	CodeIntrospectionFailed   = "INTROSPECTION_FAILED"
)

var (
	errInternal              = errors.New("internal error")
	errIntrospection         = errors.New("introspection failed")
	errIntrospectionDisabled = errors.New("introspection is disabled")
)

// errorCode maps a resolver error to its extensions.code.
func errorCode(err error) string {
	switch {
	case errors.Is(err, service.ErrEmptyMessage):
		return CodeEmptyMessage
	case errors.Is(err, service.ErrEmbeddingFailed):
		return CodeEmbeddingFailed
	case errors.Is(err, service.ErrSearchFailed):
		return CodeSearchFailed
	case errors.Is(err, service.ErrGenerationFailed):
		return CodeGenerationFailed
	case errors.Is(err, errIntrospectionDisabled):
		return CodeIntrospectionDisabled
	case errors.Is(err, errIntrospection):
		return CodeIntrospectionFailed
	default:
		return CodeInternal
	}
}

// presentError converts a resolver error into the error sent to clients.
// The underlying error is logged and never leaves the server. Only chat
// failures are answered with FallbackMessage.
func presentError(ctx context.Context, path ast.Path, err error) *gqlerror.Error {
	code := errorCode(err)

	message := FallbackMessage
	level := slog.LevelWarn
	switch code {
	case CodeEmptyMessage:
		message = "Message must not be empty."
	case CodeIntrospectionDisabled:
		message = "Introspection is disabled."
		level = slog.LevelDebug
	case CodeIntrospectionFailed:
		message = "Introspection failed."
	case CodeInternal:
		level = slog.LevelError
	}
	slog.Log(ctx, level, "graphql resolver failed", "path", path.String(), "code", code, "error", err)

	return &gqlerror.Error{
		Err:        err,
		Message:    message,
		Path:       path,
		Extensions: map[string]any{"code": code},
	}
}
