package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"blackcat-storefront/internal/config"
	appmetrics "blackcat-storefront/internal/metrics"
	"blackcat-storefront/internal/payload"
	"github.com/VictoriaMetrics/metrics"
	"github.com/pkg/errors"
)

const APIKeyHeader = "X-API-Key"

const maxResponseBytes = 1 << 20

var (
	createSaleDuration = metrics.GetOrCreateHistogram(`gateway_request_duration_milliseconds{op="create_sale"}`)
	saleStatusDuration = metrics.GetOrCreateHistogram(`gateway_request_duration_milliseconds{op="sale_status"}`)
	transportErrors    = metrics.GetOrCreateCounter(`gateway_requests_total{result="transport_error"}`)
	upstreamFailures   = metrics.GetOrCreateCounter(`gateway_requests_total{result="upstream_error"}`)
	upstreamSuccesses  = metrics.GetOrCreateCounter(`gateway_requests_total{result="success"}`)
)

// Response is an upstream reply. Body holds the raw JSON as received.
type Response struct {
	StatusCode int
	Body       []byte
}

func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Message extracts the upstream "message" field, empty when absent or not a string.
func (r *Response) Message() string {
	var body struct {
		Message any `json:"message"`
	}
	if err := json.Unmarshal(r.Body, &body); err != nil {
		return ""
	}
	msg, _ := body.Message.(string)
	return msg
}

// ValidJSON reports whether the body is a well formed JSON document.
func (r *Response) ValidJSON() bool {
	return json.Valid(r.Body)
}

// Client talks to the upstream payment gateway.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

func NewClient(cfg config.Gateway, logger *slog.Logger) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
	}
}

func (c *Client) CreateSale(ctx context.Context, apiKey string, sale payload.Sale) (*Response, error) {
	defer appmetrics.Since(createSaleDuration, time.Now())

	body, err := json.Marshal(sale)
	if err != nil {
		return nil, errors.Wrap(err, "marshalling sale")
	}

	return c.do(ctx, http.MethodPost, c.baseURL+"/sales/create-sale", apiKey, body)
}

// SaleStatus fetches the status of a sale. id is escaped but callers are expected to validate it first.
func (c *Client) SaleStatus(ctx context.Context, apiKey, id string) (*Response, error) {
	defer appmetrics.Since(saleStatusDuration, time.Now())

	return c.do(ctx, http.MethodGet, fmt.Sprintf("%s/sales/%s/status", c.baseURL, url.PathEscape(id)), apiKey, nil)
}

func (c *Client) do(ctx context.Context, method, endpoint, apiKey string, body []byte) (*Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, errors.Wrap(err, "creating gateway request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(APIKeyHeader, apiKey)

	c.logger.DebugContext(ctx, "Calling payment gateway", "method", method, "url", endpoint)

	resp, err := c.client.Do(req)
	if err != nil {
		transportErrors.Inc()
		return nil, errors.Wrap(err, "calling payment gateway")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		transportErrors.Inc()
		return nil, errors.Wrap(err, "reading gateway response")
	}

	result := &Response{StatusCode: resp.StatusCode, Body: respBody}
	if result.OK() {
		upstreamSuccesses.Inc()
	} else {
		upstreamFailures.Inc()
		c.logger.WarnContext(ctx, "Payment gateway returned an error", "status", resp.StatusCode, "body", string(respBody))
	}

	return result, nil
}
