package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrTemporary    = errors.New("temporary failure")

	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrUnsupportedStrategy  = errors.New("unsupported chunking strategy")
	ErrArgument             = errors.New("invalid tool arguments")
	ErrUnknownTool          = errors.New("unknown tool")
	ErrStoreUnavailable     = errors.New("store unavailable")
	ErrPartialIngestion     = errors.New("partial ingestion failure")
	ErrModelUnresponsive    = errors.New("model unresponsive")
	ErrHistoryConflict      = errors.New("chat history version conflict")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
