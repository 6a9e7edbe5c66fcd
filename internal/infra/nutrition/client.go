// Package nutrition looks up nutrition facts from the API-Ninjas nutrition API.
package nutrition

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vietddude/nutriscan/internal/core/domain"
	"github.com/vietddude/nutriscan/internal/infra/transport"
)

const DefaultBaseURL = "https://api.api-ninjas.com/v1"

// Config holds nutrition API settings.
type Config struct {
	APIKey  string        `yaml:"api_key"`
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"` // per attempt
}

// Client queries GET {base}/nutrition?query=.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient creates a new nutrition client.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        50,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Lookup returns the records matching query. An empty slice means the API
// knows nothing about the food; that is not an error.
func (c *Client) Lookup(ctx context.Context, query string) ([]domain.NutritionRecord, error) {
	const op = "nutrition lookup"

	endpoint := c.cfg.BaseURL + "/nutrition?query=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transport.FromErr(op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transport.FromErr(op, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, transport.FromResponse(op, resp, body, nil)
	}

	var records []domain.NutritionRecord
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", op, err)
	}
	if records == nil {
		records = []domain.NutritionRecord{}
	}
	return records, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
