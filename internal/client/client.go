// Package client talks to a running model server over HTTP.
package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"career-pulse/internal/ml"

	"github.com/go-resty/resty/v2"
)

type Client struct {
	base string
	rest *resty.Client
}

func New(base string, timeout time.Duration) *Client {
	r := resty.New()
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(5 * time.Second) // default fallback
	}
	r.SetHeader("Accept", "application/json")
	return &Client{base: strings.TrimRight(base, "/"), rest: r}
}

// APIError is a non-2xx reply from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("model server: %d %s", e.Status, e.Message)
}

// Predict asks the server for the career matching named features.
func (c *Client) Predict(ctx context.Context, features map[string]float64) (*ml.PredictionResponse, error) {
	return c.predict(ctx, ml.PredictionRequest{Features: features})
}

// PredictVector asks the server for the career matching a vector in schema
// order.
func (c *Client) PredictVector(ctx context.Context, v []float64) (*ml.PredictionResponse, error) {
	return c.predict(ctx, ml.PredictionRequest{Vector: v})
}

func (c *Client) predict(ctx context.Context, req ml.PredictionRequest) (*ml.PredictionResponse, error) {
	out := &ml.PredictionResponse{}
	apiErr := &ml.ErrorResponse{}
	resp, err := c.rest.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(out).
		SetError(apiErr).
		Post(c.base + "/predict")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.IsError() {
		return nil, &APIError{Status: resp.StatusCode(), Message: apiErr.Error}
	}
	return out, nil
}

// Health returns the server's health status.
func (c *Client) Health(ctx context.Context) (*ml.HealthStatus, error) {
	out := &ml.HealthStatus{}
	if err := c.get(ctx, "/health", out); err != nil {
		return nil, err
	}
	return out, nil
}

// Info describes the model the server is using.
func (c *Client) Info(ctx context.Context) (*ml.InfoResponse, error) {
	out := &ml.InfoResponse{}
	if err := c.get(ctx, "/model/info", out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	resp, err := c.rest.R().
		SetContext(ctx).
		SetResult(out).
		Get(c.base + path)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return &APIError{Status: resp.StatusCode(), Message: strings.TrimSpace(resp.String())}
	}
	return nil
}
