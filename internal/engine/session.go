package engine

import (
	"context"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"llm-fx-advisor/internal/interfaces"
	"llm-fx-advisor/internal/types"
)

// Status is where a session is in its refresh cycle.
type Status string

const (
	// StatusReady: created, nothing fetched yet.
	StatusReady    Status = "Ready"
	StatusAnalyzed Status = "Analyzed"
	StatusAdvised  Status = "Advised"
	StatusFailed   Status = "Failed"
)

// Session is the state a host keeps between refreshes. It is a value: Refresh takes one
// and returns the next, so the pipeline itself holds nothing for the host.
type Session struct {
	ID        string                 `json:"id"`
	Symbol    string                 `json:"symbol"`
	Timeframe types.Timeframe        `json:"timeframe"`
	Period    types.Period           `json:"period"`
	Status    Status                 `json:"status"`
	Analysis  *types.Analysis        `json:"analysis,omitempty"`
	Request   *types.AdvisoryRequest `json:"request,omitempty"`
	Advisory  *types.AdvisoryResult  `json:"advisory,omitempty"`
	LastError string                 `json:"last_error,omitempty"`
	Refreshes int                    `json:"refreshes"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// NewSession starts in the Ready state. An empty id gets a ULID.
func NewSession(id, symbol string, tf types.Timeframe, period types.Period) Session {
	if id == "" {
		id = ulid.Make().String()
	}
	return Session{
		ID:        id,
		Symbol:    strings.ToUpper(strings.TrimSpace(symbol)),
		Timeframe: tf,
		Period:    period,
		Status:    StatusReady,
		UpdatedAt: time.Now(),
	}
}

// Refresh re-runs the analysis for sess and, when advise is set, asks the oracle.
// A data-layer failure is recorded on the returned session and also returned.
// The previous advisory stays on the session until a new one replaces it.
func Refresh(ctx context.Context, adv interfaces.Advisor, sess Session, advise bool) (Session, error) {
	sess.Refreshes++
	sess.UpdatedAt = time.Now()

	a, err := adv.Analyze(ctx, sess.Symbol, sess.Timeframe, sess.Period)
	if err != nil {
		sess.Status = StatusFailed
		sess.LastError = err.Error()
		return sess, err
	}
	sess.Analysis = &a
	sess.Status = StatusAnalyzed
	sess.LastError = ""

	if !advise {
		return sess, nil
	}

	req, res, err := adv.Advise(ctx, sess.ID, a)
	if err != nil {
		sess.LastError = err.Error()
		return sess, err
	}
	sess.Request = &req
	sess.Advisory = &res
	sess.Status = StatusAdvised
	if res.IsError() {
		sess.LastError = res.Reason
	}
	return sess, nil
}
