package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"llm-fx-advisor/internal/types"
)

// APIResponse is the envelope every endpoint returns.
type APIResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// AppError is an error with an HTTP status and a stable code.
type AppError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Params  map[string]any `json:"params,omitempty"`
	Status  int            `json:"-"`
}

func dataResponse(c echo.Context, status int, data any) error {
	return c.JSON(status, APIResponse{
		Status:  status,
		Message: http.StatusText(status),
		Data:    data,
	})
}

func success(c echo.Context, data any) error {
	return dataResponse(c, http.StatusOK, data)
}

func badRequest(c echo.Context, data any) error {
	return dataResponse(c, http.StatusBadRequest, data)
}

func notFound(c echo.Context, msg string) error {
	return dataResponse(c, http.StatusNotFound, []AppError{{Code: "ERR_NOT_FOUND", Message: msg}})
}

// pipelineError maps the pipeline's sentinels onto HTTP statuses.
func pipelineError(c echo.Context, err error) error {
	appErr := AppError{Code: "ERR_INTERNAL", Message: err.Error(), Status: http.StatusInternalServerError}

	var ide *types.InsufficientDataError
	switch {
	case errors.As(err, &ide):
		appErr.Code = "ERR_INSUFFICIENT_DATA"
		appErr.Status = http.StatusUnprocessableEntity
		appErr.Params = map[string]any{"need": ide.Need, "have": ide.Have}
	case errors.Is(err, types.ErrInsufficientData):
		appErr.Code = "ERR_INSUFFICIENT_DATA"
		appErr.Status = http.StatusUnprocessableEntity
	case errors.Is(err, types.ErrDataUnavailable):
		appErr.Code = "ERR_DATA_UNAVAILABLE"
		appErr.Status = http.StatusNotFound
	case errors.Is(err, types.ErrAdvisoryInFlight):
		appErr.Code = "ERR_IN_FLIGHT"
		appErr.Status = http.StatusConflict
	}
	return dataResponse(c, appErr.Status, []AppError{appErr})
}
