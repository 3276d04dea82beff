package noop

import (
	"context"

	"llm-fx-advisor/internal/interfaces"
	"llm-fx-advisor/internal/logger"
)

// Oracle is used when no provider is configured. It always answers WAIT.
type Oracle struct{}

var _ interfaces.Oracle = Oracle{}

func New() Oracle { return Oracle{} }

func (Oracle) Name() string { return "noop" }

func (Oracle) Complete(ctx context.Context, prompt string) (string, error) {
	logger.Debug(ctx, "Noop oracle called - always returns WAIT", "prompt_length", len(prompt))
	return `{"signal": "WAIT", "confidence": 0, "reason": "no advisory provider configured"}`, nil
}
