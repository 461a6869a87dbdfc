// Package client is a thin HTTP client for the iris inference API.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"iris-service/internal/contract"

	"github.com/go-resty/resty/v2"
)

// APIError is a non-2xx response from the service.
type APIError struct {
	StatusCode int                   `json:"-"`
	Code       string                `json:"error"`
	Message    string                `json:"message"`
	Detail     []contract.FieldError `json:"detail,omitempty"`
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("iris api: %d %s: %s", e.StatusCode, e.Code, e.Message)
	for _, d := range e.Detail {
		msg += fmt.Sprintf("; %s: %s", d.Field, d.Message)
	}
	return msg
}

type Client struct {
	base string
	rest *resty.Client
}

func New(base string, timeout time.Duration) *Client {
	r := resty.New()
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(5 * time.Second)
	}
	r.SetHeader("Accept", "application/json")
	return &Client{base: strings.TrimRight(base, "/"), rest: r}
}

// Health returns the service health. A degraded service answers 503 with a
// health body, which is returned without error.
func (c *Client) Health(ctx context.Context) (contract.HealthStatus, error) {
	var health contract.HealthStatus
	resp, err := c.rest.R().
		SetContext(ctx).
		Get(c.base + "/health")
	if err != nil {
		return health, fmt.Errorf("request failed: %w", err)
	}

	switch resp.StatusCode() {
	case http.StatusOK, http.StatusServiceUnavailable:
		if err := json.Unmarshal(resp.Body(), &health); err != nil {
			return health, fmt.Errorf("decode health: %w", err)
		}
		return health, nil
	default:
		return health, apiError(resp)
	}
}

// Contract returns the raw contract description as served.
func (c *Client) Contract(ctx context.Context) ([]byte, error) {
	resp, err := c.rest.R().
		SetContext(ctx).
		Get(c.base + "/contract")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, apiError(resp)
	}
	return resp.Body(), nil
}

// Predict submits one feature vector.
func (c *Client) Predict(ctx context.Context, features contract.FeatureVector) (contract.PredictionResult, error) {
	var result contract.PredictionResult
	resp, err := c.rest.R().
		SetContext(ctx).
		SetBody(contract.PredictionRequest{Features: features}).
		SetResult(&result).
		Post(c.base + "/predict")
	if err != nil {
		return result, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return result, apiError(resp)
	}
	return result, nil
}

func apiError(resp *resty.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode()}
	if err := json.Unmarshal(resp.Body(), apiErr); err != nil || apiErr.Code == "" {
		apiErr.Code = "unexpected_response"
		apiErr.Message = strings.TrimSpace(resp.String())
	}
	return apiErr
}
