// Package mew handles posting and listing mews
package mew

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/otel"

	"github.com/meowerlab/meower/core"
)

var tracer = otel.Tracer("mew")

const greeting = "Meower! 😹 🐈"

// MaxBodySize caps create request bodies
const MaxBodySize = "100K"

// Handler is the interface for handling HTTP requests
type Handler interface {
	Greet(c echo.Context) error
	List(c echo.Context) error
	ListPage(c echo.Context) error
	Create(c echo.Context) error
}

type handler struct {
	service Service
}

// NewHandler creates a new handler
func NewHandler(service Service) Handler {
	return &handler{service: service}
}

// RegisterRoutes mounts the mew endpoints. Create is served on the legacy and the v2 path.
func RegisterRoutes(e *echo.Echo, h Handler) {
	bodyLimit := middleware.BodyLimit(MaxBodySize)

	e.GET("/", h.Greet)
	e.GET("/mews", h.List)
	e.POST("/mews", h.Create, bodyLimit)
	e.GET("/v2/mews", h.ListPage)
	e.POST("/v2/mews", h.Create, bodyLimit)
}

// Greet returns a static greeting
func (h handler) Greet(c echo.Context) error {
	return c.JSON(http.StatusOK, core.MessageResponse{Message: greeting})
}

// List returns every mew
func (h handler) List(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "Mew.Handler.List")
	defer span.End()

	mews, err := h.service.List(ctx)
	if err != nil {
		span.RecordError(err)
		return err
	}

	return c.JSON(http.StatusOK, mews)
}

// ListPage returns a window of mews
// Input: query parameters "skip", "limit" and "sort", all optional
func (h handler) ListPage(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "Mew.Handler.ListPage")
	defer span.End()

	page, err := h.service.ListPage(ctx, PageQuery{
		Skip:  c.QueryParam("skip"),
		Limit: c.QueryParam("limit"),
		Sort:  c.QueryParam("sort"),
	})
	if err != nil {
		span.RecordError(err)
		return err
	}

	return c.JSON(http.StatusOK, page)
}

// Create posts a new mew
// Input: {name, content}
// Output: the persisted mew
func (h handler) Create(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "Mew.Handler.Create")
	defer span.End()

	var input CreateInput
	req := c.Request()
	if req.Body != nil && strings.HasPrefix(req.Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		err := json.NewDecoder(req.Body).Decode(&input)
		var typeErr *json.UnmarshalTypeError
		switch {
		case err == nil, errors.Is(err, io.EOF):
		case errors.As(err, &typeErr):
			// well-formed but not an object: nothing usable, validation answers
			input = CreateInput{}
		default:
			// rejected before the rate limiter sees the request
			span.RecordError(err)
			return echo.NewHTTPError(http.StatusBadRequest, "Malformed JSON body").SetInternal(err)
		}
	}

	created, err := h.service.Create(ctx, c.RealIP(), input)
	if err != nil {
		var limited core.ErrorRateLimited
		if errors.As(err, &limited) {
			c.Response().Header().Set("Retry-After", retryAfterSeconds(limited))
			return c.JSON(http.StatusTooManyRequests, core.MessageResponse{Message: core.RateLimitedMessage})
		}
		var invalid core.ErrorInvalidMew
		if errors.As(err, &invalid) {
			return c.JSON(http.StatusUnprocessableEntity, core.MessageResponse{Message: core.InvalidMewMessage})
		}
		span.RecordError(err)
		return err
	}

	return c.JSON(http.StatusOK, created)
}

func retryAfterSeconds(err core.ErrorRateLimited) string {
	seconds := int64(math.Ceil(err.RetryAfter.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	return strconv.FormatInt(seconds, 10)
}
