package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/YelzhanWeb/opskitchen/internal/adapter/logger"
	"github.com/YelzhanWeb/opskitchen/internal/config"
	"github.com/YelzhanWeb/opskitchen/internal/domain"
)

// Client talks to the order service. It is the authoritative read side: the
// snapshot that seeds the reconciled collection and the fetch-by-id used for
// backfills.
type Client struct {
	baseURL   string
	apiKey    string
	apiKeyHdr string
	http      *http.Client
	logger    logger.Logger
}

func NewClient(cfg config.ServerConfig, lgr logger.Logger) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	header := cfg.APIKeyHeader
	if header == "" {
		header = "X-API-Key"
	}

	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:    cfg.APIKey,
		apiKeyHdr: header,
		http:      &http.Client{Timeout: timeout},
		logger:    lgr,
	}
}

func (c *Client) ListOrders(ctx context.Context, locationID string, statuses []domain.OrderStatus) ([]domain.Order, error) {
	params := url.Values{}
	if len(statuses) > 0 {
		parts := make([]string, len(statuses))
		for i, s := range statuses {
			parts[i] = string(s)
		}
		params.Set("status", strings.Join(parts, ","))
	}

	var orders []domain.Order
	path := fmt.Sprintf("/locations/%s/orders", url.PathEscape(locationID))
	if err := c.getJSON(ctx, path, params, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (c *Client) ListKitchenOrders(ctx context.Context, locationID string) ([]domain.Order, error) {
	var orders []domain.Order
	path := fmt.Sprintf("/locations/%s/kitchen/orders", url.PathEscape(locationID))
	if err := c.getJSON(ctx, path, nil, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (c *Client) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	var order domain.Order
	path := fmt.Sprintf("/orders/%s", url.PathEscape(orderID))
	if err := c.getJSON(ctx, path, nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// UpdateStatus requests a transition server-side. The result is never applied
// locally; the engine waits for the corresponding event.
func (c *Client) UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus) error {
	body, err := json.Marshal(map[string]string{"status": string(status)})
	if err != nil {
		return fmt.Errorf("failed to marshal status update: %w", err)
	}

	path := fmt.Sprintf("/orders/%s/status", url.PathEscape(orderID))
	req, err := c.newRequest(ctx, http.MethodPatch, path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("order service request failed: %w", err)
	}
	defer resp.Body.Close()

	return checkStatus(resp)
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out interface{}) error {
	endpoint := path
	if len(params) > 0 {
		endpoint = path + "?" + params.Encode()
	}

	req, err := c.newRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("order service request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode order service response: %w", err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set(c.apiKeyHdr, c.apiKey)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	return req, nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return fmt.Errorf("order service error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}
