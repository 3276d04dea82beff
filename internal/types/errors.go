package types

import (
	"errors"
	"fmt"
)

var (
	// ErrDataUnavailable: the provider returned no rows or does not know the symbol.
	ErrDataUnavailable = errors.New("market data unavailable")
	// ErrInsufficientData: too few bars to warm up the requested indicators.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrOracleUnavailable: transport, auth or timeout failure talking to the oracle.
	ErrOracleUnavailable = errors.New("advisory oracle unavailable")
	// ErrAdvisoryParse never escapes the parser; it is turned into an ERROR result.
	ErrAdvisoryParse = errors.New("advisory parse error")
	// ErrAdvisoryInFlight: the session already has an advisory request running.
	ErrAdvisoryInFlight = errors.New("advisory request already in flight")
)

// InsufficientDataError tells the host how many bars would have been enough.
type InsufficientDataError struct {
	Need int
	Have int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: need at least %d bars, have %d", e.Need, e.Have)
}

func (e *InsufficientDataError) Is(target error) bool {
	return target == ErrInsufficientData
}
