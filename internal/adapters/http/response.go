package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/taskboard/api/internal/domain/entities"
)

// Response is the envelope every endpoint answers with
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
	Count   *int        `json:"count,omitempty"`
}

func respond(c echo.Context, code int, data interface{}) error {
	return c.JSON(code, Response{Success: true, Data: data})
}

func respondList[T any](c echo.Context, items []T) error {
	count := len(items)
	return c.JSON(http.StatusOK, Response{Success: true, Data: items, Count: &count})
}

func respondMessage(c echo.Context, code int, message string) error {
	return c.JSON(code, Response{Success: true, Message: message})
}

const (
	msgTaskNotFound   = "Task not found"
	msgTitleRequired  = "Please provide a title"
	msgInvalidStatus  = "Invalid status"
	msgInvalidPayload = "Invalid request format"
	msgServerError    = "Server error"
)

// mapTaskError turns a task service error into the HTTP error the client sees
func mapTaskError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, entities.ErrTitleRequired):
		return echo.NewHTTPError(http.StatusBadRequest, msgTitleRequired)
	case errors.Is(err, entities.ErrInvalidStatus):
		return echo.NewHTTPError(http.StatusBadRequest, msgInvalidStatus)
	case errors.Is(err, entities.ErrInvalidPriority):
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid priority")
	case errors.Is(err, entities.ErrInvalidInput):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, entities.ErrTaskNotFound):
		return echo.NewHTTPError(http.StatusNotFound, msgTaskNotFound)
	default:
		return serverError(err)
	}
}

// serverError passes the underlying message through
func serverError(err error) *echo.HTTPError {
	msg := msgServerError
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	return echo.NewHTTPError(http.StatusInternalServerError, msg).SetInternal(err)
}
