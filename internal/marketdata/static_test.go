package marketdata

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llm-fx-advisor/internal/types"
)

func TestStaticIsDeterministic(t *testing.T) {
	now := time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC)
	src := NewStaticAt(now)

	a, err := src.Fetch(context.Background(), "EURUSD", types.TF5m, "1d")
	require.NoError(t, err)
	b, err := src.Fetch(context.Background(), "EURUSD", types.TF5m, "1d")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a.Bars, 288)
	last, _ := a.Last()
	assert.Equal(t, now, last.Time)
	for _, bar := range a.Bars {
		assert.GreaterOrEqual(t, bar.High, bar.Low)
	}
}
