// Package pipeline is the agent's gateway to the data pipeline service. All
// outbound query/stats calls go through Client; connectivity failures are
// translated into ErrUnreachable so the dispatch layer can surface a fixed
// instructional message instead of a raw transport error.
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dvollmer/homescope/internal/log"
	"github.com/dvollmer/homescope/internal/record"
	"github.com/dvollmer/homescope/internal/toolcall"
)

// ErrUnreachable signals the pipeline service is not listening. Its message
// tells the operator exactly what to start and where.
var ErrUnreachable = errors.New(
	"Cannot reach the data pipeline service. Make sure the pipeline is running on port 8000.")

// Endpoint paths on the pipeline service.
const (
	QueryPath  = "/tools/housing_query"
	StatsPath  = "/tools/housing_stats"
	HealthPath = "/health"
)

// requestTimeout bounds every query/stats call.
const requestTimeout = 10 * time.Second

// healthTimeout bounds the health probe; it should answer fast or not at all.
const healthTimeout = 2 * time.Second

// ResultSet is the pipeline's response envelope. Rows preserve the order of
// the response payload; Error carries an error embedded in an otherwise
// successful response body, which the gateway does NOT act on; interpreting
// it is the caller's responsibility.
type ResultSet struct {
	Result []record.Record `json:"result"`
	Count  int             `json:"count"`
	Error  string          `json:"error,omitempty"`
}

// Client is the HTTP bridge to the pipeline service.
type Client struct {
	baseURL string
	http    *http.Client
	logger  log.Logger
}

// New creates a Client for the pipeline at baseURL (no trailing slash).
func New(baseURL string, logger log.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: requestTimeout},
		logger:  logger,
	}
}

// Query invokes the row-query operation with the tool call's parameters.
func (c *Client) Query(ctx context.Context, params toolcall.Params) (*ResultSet, error) {
	return c.post(ctx, QueryPath, params)
}

// Stats invokes the aggregation operation with the tool call's parameters.
func (c *Client) Stats(ctx context.Context, params toolcall.Params) (*ResultSet, error) {
	return c.post(ctx, StatsPath, params)
}

// post sends the payload and decodes the envelope. A connection-level failure
// wraps ErrUnreachable; a response of any HTTP status is decoded verbatim.
func (c *Client) post(ctx context.Context, path string, payload any) (*ResultSet, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding pipeline payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building pipeline request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("pipeline unreachable", "path", path, "error", err)
		return nil, fmt.Errorf("%w (%v)", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("reading pipeline response: %w", err)
	}

	var rs ResultSet
	if err := json.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("decoding pipeline response: %w", err)
	}
	return &rs, nil
}

// Healthy probes the pipeline's health endpoint.
func (c *Client) Healthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+HealthPath, nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK
}
