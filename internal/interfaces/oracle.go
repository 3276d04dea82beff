package interfaces

import "context"

// Oracle is a generative model endpoint: prompt in, free text out.
// Transport, auth and timeout failures wrap types.ErrOracleUnavailable.
type Oracle interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Name() string
}
