// Package client talks to a Meower server over HTTP
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"

	"github.com/meowerlab/meower/core"
)

const (
	defaultTimeout = 10 * time.Second
)

var tracer = otel.Tracer("client")

type Client interface {
	Greet(ctx context.Context) (string, error)
	ListMews(ctx context.Context) ([]core.Mew, error)
	ListPage(ctx context.Context, query PageQuery) (core.Page, error)
	CreateMew(ctx context.Context, name, content string) (core.Mew, error)
}

// PageQuery selects a window of mews. Zero values let the server pick its defaults.
type PageQuery struct {
	Skip  int64
	Limit int64
	Sort  core.SortDirection
}

type client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the server at baseURL, e.g. "http://localhost:5000"
func NewClient(baseURL string) Client {
	return &client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   defaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

func (c *client) Greet(ctx context.Context) (string, error) {
	ctx, span := tracer.Start(ctx, "Client.Greet")
	defer span.End()

	var response core.MessageResponse
	err := c.do(ctx, http.MethodGet, "/", nil, &response)
	if err != nil {
		span.RecordError(err)
		return "", err
	}

	return response.Message, nil
}

func (c *client) ListMews(ctx context.Context) ([]core.Mew, error) {
	ctx, span := tracer.Start(ctx, "Client.ListMews")
	defer span.End()

	var mews []core.Mew
	err := c.do(ctx, http.MethodGet, "/mews", nil, &mews)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	return mews, nil
}

func (c *client) ListPage(ctx context.Context, query PageQuery) (core.Page, error) {
	ctx, span := tracer.Start(ctx, "Client.ListPage")
	defer span.End()

	values := url.Values{}
	if query.Skip != 0 {
		values.Set("skip", strconv.FormatInt(query.Skip, 10))
	}
	if query.Limit != 0 {
		values.Set("limit", strconv.FormatInt(query.Limit, 10))
	}
	values.Set("sort", query.Sort.String())

	var page core.Page
	err := c.do(ctx, http.MethodGet, "/v2/mews?"+values.Encode(), nil, &page)
	if err != nil {
		span.RecordError(err)
		return core.Page{}, err
	}

	return page, nil
}

func (c *client) CreateMew(ctx context.Context, name, content string) (core.Mew, error) {
	ctx, span := tracer.Start(ctx, "Client.CreateMew")
	defer span.End()

	body, err := json.Marshal(map[string]string{"name": name, "content": content})
	if err != nil {
		span.RecordError(err)
		return core.Mew{}, err
	}

	var mew core.Mew
	err = c.do(ctx, http.MethodPost, "/v2/mews", body, &mew)
	if err != nil {
		span.RecordError(err)
		return core.Mew{}, err
	}

	return mew, nil
}

// do sends a request and decodes a successful response into out.
// 422 and 429 answers map back to the core error types.
func (c *client) do(ctx context.Context, method, path string, body []byte, out interface{}) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	switch {
	case resp.StatusCode == http.StatusUnprocessableEntity:
		return core.NewErrorInvalidMew()
	case resp.StatusCode == http.StatusTooManyRequests:
		seconds, _ := strconv.Atoi(resp.Header.Get("Retry-After"))
		return core.NewErrorRateLimited(time.Duration(seconds) * time.Second)
	case resp.StatusCode >= 300:
		var message core.MessageResponse
		if json.Unmarshal(payload, &message) == nil && message.Message != "" {
			return fmt.Errorf("%s %s: %d %s", method, path, resp.StatusCode, message.Message)
		}
		return fmt.Errorf("%s %s: %d", method, path, resp.StatusCode)
	}

	return json.Unmarshal(payload, out)
}
