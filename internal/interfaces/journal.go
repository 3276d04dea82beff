package interfaces

import (
	"context"

	"llm-fx-advisor/internal/types"
)

// Journal persists every advisory outcome.
type Journal interface {
	Record(ctx context.Context, entry types.JournalEntry) error
	Close() error
}
