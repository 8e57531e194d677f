package util

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/meowerlab/meower/core"
)

// HTTPErrorHandler answers every unhandled error with {message}.
// Framework errors keep their status; anything else is an internal failure.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	message := err.Error()

	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		message = fmt.Sprint(he.Message)
	}

	if code >= http.StatusInternalServerError {
		slog.ErrorContext(
			c.Request().Context(), "request failed",
			slog.String("error", err.Error()),
			slog.String("method", c.Request().Method),
			slog.String("path", c.Path()),
		)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, core.MessageResponse{Message: message})
	}
	if err != nil {
		slog.Error("failed to write error response", slog.String("error", err.Error()))
	}
}
