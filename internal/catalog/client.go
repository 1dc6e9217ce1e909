package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/acuervo/catalog-mirror/internal/progress"
)

// ClientConfig captures the knobs for the remote catalog client.
type ClientConfig struct {
	// BaseURL is the API root, e.g. "https://tienda.mercadona.es/api/".
	BaseURL string
	// Warehouse is appended to every request as the ?wh= selector.
	Warehouse string
	// RequestDelay is waited before every request. The remote is strictly
	// sequential; this is the politeness budget, not a rate limiter.
	RequestDelay time.Duration
	// Timeout bounds each HTTP request.
	Timeout time.Duration
}

// Client issues the three read operations against the remote catalog API.
// All calls are sequential; Client is not safe for concurrent use.
type Client struct {
	cfg     ClientConfig
	http    *http.Client
	emitter progress.Emitter
	logger  *zap.Logger
	done    atomic.Int64
}

// NewClient constructs a Client. A nil emitter disables progress events.
func NewClient(cfg ClientConfig, emitter progress.Emitter, logger *zap.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("api.base_url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if emitter == nil {
		emitter = progress.NopEmitter{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		emitter: emitter,
		logger:  logger,
	}, nil
}

// SetHTTPClient replaces the underlying HTTP client. Intended for tests.
func (c *Client) SetHTTPClient(hc *http.Client) {
	c.http = hc
}

// DoneRequests returns the number of successfully completed requests.
func (c *Client) DoneRequests() int64 {
	return c.done.Load()
}

// ListCategories fetches the flattened set of leaf category ids from the
// remote taxonomy, in remote order, deduplicated.
func (c *Client) ListCategories(ctx context.Context) ([]int, error) {
	body, err := c.getJSON(ctx, "categories/")
	if err != nil {
		return nil, err
	}

	var categories []int
	seen := make(map[int]struct{})
	results, _ := body["results"].([]any)
	for _, result := range results {
		group, ok := result.(map[string]any)
		if !ok {
			continue
		}
		leaves, _ := group["categories"].([]any)
		for _, leaf := range leaves {
			entry, ok := leaf.(map[string]any)
			if !ok {
				continue
			}
			id, ok := numericID(entry["id"])
			if !ok {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			categories = append(categories, id)
		}
	}

	c.emitter.Emit(progress.Event{
		Kind:  progress.KindCategoryAvailable,
		Count: int64(len(categories)),
	})
	return categories, nil
}

// ListCategoryProducts fetches and concatenates products from all
// sub-groupings the remote nests under one category id, in listing order.
func (c *Client) ListCategoryProducts(ctx context.Context, categoryID int) ([]RawProduct, error) {
	body, err := c.getJSON(ctx, "categories/"+strconv.Itoa(categoryID)+"/")
	if err != nil {
		return nil, err
	}

	var products []RawProduct
	groups, _ := body["categories"].([]any)
	for _, group := range groups {
		entry, ok := group.(map[string]any)
		if !ok {
			continue
		}
		items, _ := entry["products"].([]any)
		for _, item := range items {
			product, ok := item.(map[string]any)
			if !ok {
				continue
			}
			products = append(products, RawProduct(product))
		}
	}

	c.emitter.Emit(progress.Event{
		Kind:       progress.KindCategoryProducts,
		CategoryID: categoryID,
		Count:      int64(len(products)),
	})
	return products, nil
}

// FetchProductDetail fetches the extended record for one product. Detail
// payloads include fields like EAN that listings omit.
func (c *Client) FetchProductDetail(ctx context.Context, productID string) (RawProduct, error) {
	body, err := c.getJSON(ctx, "products/"+productID+"/")
	if err != nil {
		return nil, err
	}

	c.emitter.Emit(progress.Event{
		Kind:      progress.KindProductAvailable,
		ProductID: productID,
	})
	return RawProduct(body), nil
}

// getJSON waits the configured delay, issues one GET, and decodes the body.
// The done-request counter advances only after a successful decode.
func (c *Client) getJSON(ctx context.Context, path string) (map[string]any, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	reqURL, err := c.buildURL(path)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("remote request", zap.String("url", reqURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", reqURL, err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Code: resp.StatusCode, URL: reqURL}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", reqURL, err)
	}
	body := make(map[string]any)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &body); err != nil {
			return nil, fmt.Errorf("decode %s: %w", reqURL, err)
		}
	}

	c.done.Add(1)
	return body, nil
}

func (c *Client) buildURL(path string) (string, error) {
	u, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	u = u.JoinPath(path)
	if c.cfg.Warehouse != "" {
		q := u.Query()
		q.Set("wh", c.cfg.Warehouse)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// wait blocks for the configured inter-request delay or until ctx is done.
func (c *Client) wait(ctx context.Context) error {
	if c.cfg.RequestDelay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(c.cfg.RequestDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func numericID(v any) (int, bool) {
	switch val := v.(type) {
	case float64:
		return int(val), true
	case string:
		id, err := strconv.Atoi(val)
		if err != nil {
			return 0, false
		}
		return id, true
	default:
		return 0, false
	}
}
