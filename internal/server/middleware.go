package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/99designs/gqlgen/graphql"
)

// maxArgLogLen is the maximum length for logged variables before truncation.
const maxArgLogLen = 200

// slowRequestThreshold is the duration above which operations are logged at WARN level.
// Chat waits on an LLM, so the bar is higher than for plain lookups.
const slowRequestThreshold = 5 * time.Second

// OperationLogger returns gqlgen middleware that logs every operation with
// timing. Slow operations are logged at WARN level, failures at ERROR.
// Variables are truncated to 200 characters. Subscriptions log once per
// delivered event.
func OperationLogger(logger *slog.Logger) graphql.OperationMiddleware {
	return func(ctx context.Context, next graphql.OperationHandler) graphql.ResponseHandler {
		opCtx := graphql.GetOperationContext(ctx)
		start := time.Now()
		responses := next(ctx)

		return func(ctx context.Context) *graphql.Response {
			resp := responses(ctx)
			if resp == nil {
				return nil
			}

			duration := time.Since(start)
			attrs := []any{
				"operation", operationName(opCtx),
				"duration_ms", duration.Milliseconds(),
			}
			if vars := formatVariables(opCtx.Variables); vars != "" {
				attrs = append(attrs, "variables", truncate(vars, maxArgLogLen))
			}

			switch {
			case len(resp.Errors) > 0:
				attrs = append(attrs, "error", resp.Errors.Error())
				logger.Error("operation failed", attrs...)
			case duration > slowRequestThreshold:
				logger.Warn("slow operation", attrs...)
			default:
				logger.Debug("operation completed", attrs...)
			}

			start = time.Now()
			return resp
		}
	}
}

// RequestLogger logs the method, path and status of each HTTP request.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Hijack hands the connection to the WebSocket transport.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func operationName(opCtx *graphql.OperationContext) string {
	if opCtx.OperationName != "" {
		return opCtx.OperationName
	}
	if opCtx.Operation != nil {
		if opCtx.Operation.Name != "" {
			return opCtx.Operation.Name
		}
		if len(opCtx.Operation.SelectionSet) > 0 {
			return string(opCtx.Operation.Operation)
		}
	}
	return "anonymous"
}

// formatVariables formats operation variables for logging.
func formatVariables(vars map[string]any) string {
	if len(vars) == 0 {
		return ""
	}
	return fmt.Sprintf("%+v", vars)
}

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen < 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
