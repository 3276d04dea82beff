package server

import (
	"errors"
	"strings"

	"github.com/labstack/echo/v4"

	"llm-fx-advisor/internal/engine"
	"llm-fx-advisor/internal/types"
)

type signalRequest struct {
	Symbol    string `param:"symbol" validate:"required,alphanum,min=3,max=12"`
	Timeframe string `query:"timeframe" validate:"omitempty,oneof=1m 5m 15m 30m 1h 1d"`
	Period    string `query:"period" validate:"omitempty,oneof=1d 5d 1mo 3mo 6mo 1y"`
}

type adviceRequest struct {
	SessionID string `json:"session_id" validate:"omitempty,max=64"`
	Symbol    string `json:"symbol" validate:"required,alphanum,min=3,max=12"`
	Timeframe string `json:"timeframe" validate:"omitempty,oneof=1m 5m 15m 30m 1h 1d"`
	Period    string `json:"period" validate:"omitempty,oneof=1d 5d 1mo 3mo 6mo 1y"`
}

type historyRequest struct {
	Symbol string `param:"symbol" validate:"required,alphanum"`
	Limit  int    `query:"limit" default:"20" validate:"gte=1,lte=200"`
}

func (s *Server) timeframe(v string) types.Timeframe {
	if v == "" {
		v = s.cfg.Timeframe
	}
	return types.Timeframe(v)
}

func (s *Server) period(v string) types.Period {
	if v == "" {
		v = s.cfg.Period
	}
	return types.Period(v)
}

func (s *Server) health(c echo.Context) error {
	return success(c, map[string]any{
		"status":   "ok",
		"provider": s.cfg.MarketData.Provider,
		"oracle":   s.oracleName,
		"sessions": len(s.sessions.List()),
	})
}

// signal runs the deterministic half only; it never calls the oracle.
func (s *Server) signal(c echo.Context) error {
	req := &signalRequest{}
	if verr := readAndValidate(c, req); verr != nil {
		return badRequest(c, verr)
	}

	a, err := s.advisor.Analyze(c.Request().Context(), req.Symbol, s.timeframe(req.Timeframe), s.period(req.Period))
	if err != nil {
		return pipelineError(c, err)
	}
	return success(c, a)
}

// advice refreshes a session and returns it. The oracle is asked only when advisories are enabled.
func (s *Server) advice(c echo.Context) error {
	req := &adviceRequest{}
	if verr := readAndValidate(c, req); verr != nil {
		return badRequest(c, verr)
	}

	symbol := strings.ToUpper(req.Symbol)
	tf, period := s.timeframe(req.Timeframe), s.period(req.Period)
	sess := s.sessions.GetOrCreate(req.SessionID, func() engine.Session {
		return engine.NewSession(req.SessionID, symbol, tf, period)
	})
	sess.Symbol, sess.Timeframe, sess.Period = symbol, tf, period

	next, err := engine.Refresh(c.Request().Context(), s.advisor, sess, s.cfg.Advisory.Enabled)
	if err != nil {
		if !errors.Is(err, types.ErrAdvisoryInFlight) {
			s.sessions.Put(next)
		}
		return pipelineError(c, err)
	}
	s.sessions.Put(next)
	return success(c, next)
}

func (s *Server) getSession(c echo.Context) error {
	sess, ok := s.sessions.Get(c.Param("id"))
	if !ok {
		return notFound(c, "session "+c.Param("id")+" not found")
	}
	return success(c, sess)
}

func (s *Server) listSessions(c echo.Context) error {
	return success(c, s.sessions.List())
}

func (s *Server) models(c echo.Context) error {
	return success(c, map[string]any{
		"provider": s.cfg.LLM.Provider,
		"model":    s.cfg.LLM.Model,
		"models":   s.cfg.LLM.Models,
	})
}

func (s *Server) historyFor(c echo.Context) error {
	if s.history == nil {
		return notFound(c, "history needs the sqlite journal backend")
	}
	req := &historyRequest{}
	if verr := readAndValidate(c, req); verr != nil {
		return badRequest(c, verr)
	}
	rows, err := s.history.Recent(c.Request().Context(), strings.ToUpper(req.Symbol), req.Limit)
	if err != nil {
		return pipelineError(c, err)
	}
	return success(c, rows)
}
