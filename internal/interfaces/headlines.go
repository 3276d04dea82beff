package interfaces

import "context"

// HeadlineProvider returns recent news headlines for a symbol. Failures degrade to none.
type HeadlineProvider interface {
	Headlines(ctx context.Context, symbol string, limit int) []string
}
