// Package vectorstore stores document chunk embeddings and answers
// nearest-neighbour queries.
package vectorstore

import (
	"errors"
	"fmt"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Sentinel errors for vector index operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrCollectionNotFound indicates the collection has not been created yet.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrDimensionMismatch indicates a vector whose length differs from the
	// collection's configured size.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrUnavailable indicates the index could not be reached. Callers may retry.
	ErrUnavailable = errors.New("vector index unavailable")
)

// wrapQdrantError inspects the gRPC status carried by a Qdrant error and
// wraps it with the matching sentinel. Unknown errors are returned as-is.
func wrapQdrantError(err error) error {
	if err == nil {
		return nil
	}

	st, ok := status.FromError(err)
	if !ok {
		return err
	}

	switch st.Code() {
	case codes.NotFound:
		return fmt.Errorf("%w: %w", ErrCollectionNotFound, err)
	case codes.Unavailable, codes.DeadlineExceeded:
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	case codes.InvalidArgument:
		if strings.Contains(strings.ToLower(st.Message()), "dimension") {
			return fmt.Errorf("%w: %w", ErrDimensionMismatch, err)
		}
	}
	return err
}
