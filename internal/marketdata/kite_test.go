package marketdata

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	kiteconnect "github.com/zerodha/gokiteconnect/v4"
	"github.com/zerodha/gokiteconnect/v4/models"
)

func TestPickInstrument(t *testing.T) {
	now := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	all := kiteconnect.Instruments{
		{InstrumentToken: 1, Tradingsymbol: "USDINR25FEBFUT", Name: "USDINR", InstrumentType: "FUT", Expiry: models.Time{Time: time.Date(2025, 2, 26, 0, 0, 0, 0, time.UTC)}},
		{InstrumentToken: 3, Tradingsymbol: "USDINR25APRFUT", Name: "USDINR", InstrumentType: "FUT", Expiry: models.Time{Time: time.Date(2025, 4, 28, 0, 0, 0, 0, time.UTC)}},
		{InstrumentToken: 2, Tradingsymbol: "USDINR25MARFUT", Name: "USDINR", InstrumentType: "FUT", Expiry: models.Time{Time: time.Date(2025, 3, 27, 0, 0, 0, 0, time.UTC)}},
		{InstrumentToken: 4, Tradingsymbol: "USDINR25MAR83CE", Name: "USDINR", InstrumentType: "CE", Expiry: models.Time{Time: time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC)}},
	}

	inst, ok := pickInstrument(all, "USDINR", now)
	require.True(t, ok)
	assert.Equal(t, 2, inst.InstrumentToken)

	inst, ok = pickInstrument(all, "usdinr25aprfut", now)
	require.True(t, ok)
	assert.Equal(t, 3, inst.InstrumentToken)

	_, ok = pickInstrument(all, "EURINR", now)
	assert.False(t, ok)
}

func TestNewKiteNeedsCredentials(t *testing.T) {
	_, err := NewKite(KiteParams{})
	assert.Error(t, err)

	k, err := NewKite(KiteParams{APIKey: "key", AccessToken: "token"})
	require.NoError(t, err)
	assert.Equal(t, "CDS", k.exchange)
	assert.Equal(t, "kite", k.Name())
}
