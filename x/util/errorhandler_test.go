package util

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/meowerlab/meower/core"
)

func TestHTTPErrorHandler(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		code    int
		message string
	}{
		{"internal failure", errors.Wrap(errors.New("connection refused"), "failed to list mews"), http.StatusInternalServerError, "failed to list mews: connection refused"},
		{"framework error", echo.NewHTTPError(http.StatusNotFound, "Not Found"), http.StatusNotFound, "Not Found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/mews", nil)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			HTTPErrorHandler(tt.err, c)

			assert.Equal(t, tt.code, rec.Code)
			var body core.MessageResponse
			assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.message, body.Message)
		})
	}
}
