package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/example/codecycle/internal/auth"
	"github.com/example/codecycle/internal/review"
)

// errorResponse is the body of every failed request
type errorResponse struct {
	Error string `json:"error"`
}

func badRequest(msg string) error {
	return echo.NewHTTPError(http.StatusBadRequest, msg)
}

// statusFor maps an engine error to its HTTP status and client message
func statusFor(err error) (int, string) {
	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		if msg, ok := he.Message.(string); ok {
			return he.Code, msg
		}
		return he.Code, http.StatusText(he.Code)
	case errors.Is(err, review.ErrNotAuthenticated):
		return http.StatusUnauthorized, "Unauthorized"
	case errors.Is(err, review.ErrInvalidOutcome):
		return http.StatusBadRequest, review.ErrInvalidOutcome.Error()
	case errors.Is(err, review.ErrInvalidSettings):
		// settings errors carry the bound that was violated
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, auth.ErrMissingFields):
		return http.StatusBadRequest, "Missing required fields"
	case errors.Is(err, review.ErrProblemNotFound):
		return http.StatusNotFound, "Problem not found"
	case errors.Is(err, review.ErrRepositoryUnavailable):
		return http.StatusServiceUnavailable, "Storage is temporarily unavailable"
	}
	return http.StatusInternalServerError, "Internal server error"
}

// handleError is the echo error handler; 5xx causes are logged, never returned
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code, msg := statusFor(err)
	if code >= http.StatusInternalServerError {
		s.log.Error("request failed",
			"method", c.Request().Method,
			"path", c.Path(),
			"status", code,
			"error", err,
		)
	}
	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, errorResponse{Error: msg})
	}
	if err != nil {
		s.log.Warn("failed to write error response", "error", err)
	}
}
