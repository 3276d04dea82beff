package journal

import (
	"context"
	"fmt"
	"strings"

	"llm-fx-advisor/internal/interfaces"
	"llm-fx-advisor/internal/types"
)

// Params select a journal backend.
type Params struct {
	Backend    string
	Dir        string
	SQLitePath string
}

func New(p Params) (interfaces.Journal, error) {
	switch strings.ToLower(p.Backend) {
	case "", "jsonl":
		return NewJSONL(p.Dir), nil
	case "sqlite":
		return NewSQLite(p.SQLitePath)
	case "noop", "none":
		return Noop{}, nil
	default:
		return nil, fmt.Errorf("unknown journal backend %q", p.Backend)
	}
}

// Noop discards entries.
type Noop struct{}

func (Noop) Record(context.Context, types.JournalEntry) error { return nil }
func (Noop) Close() error                                     { return nil }
