// Package gemini is a minimal client for the Gemini generateContent REST API.
package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genproto/googleapis/rpc/code"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vietddude/nutriscan/internal/infra/transport"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com"
	DefaultModel   = "gemini-1.5-flash"
)

// Config holds Gemini connection settings.
type Config struct {
	APIKey  string        `yaml:"api_key"`
	BaseURL string        `yaml:"base_url"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"` // per attempt
}

// Content is one generation request: a prompt and an optional image.
type Content struct {
	Prompt   string
	Image    []byte
	MimeType string
	// JSON asks the model to answer with application/json.
	JSON bool
}

// Response is the generated text.
type Response struct {
	Text         string
	FinishReason string
}

// Client calls generateContent. Safe for concurrent use.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient creates a new Gemini client.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.cfg.Model
}

// Generate sends content to the model and returns the concatenated text of
// the first candidate. Failures are *transport.Error values; upstream error
// bodies are carried as a gRPC status so callers can match on the code.
func (c *Client) Generate(ctx context.Context, in Content) (*Response, error) {
	const op = "gemini generateContent"

	parts := []part{{Text: in.Prompt}}
	if len(in.Image) > 0 {
		mime := in.MimeType
		if mime == "" {
			mime = http.DetectContentType(in.Image)
		}
		parts = append(parts, part{InlineData: &inlineData{
			MimeType: mime,
			Data:     base64.StdEncoding.EncodeToString(in.Image),
		}})
	}
	req := generateRequest{Contents: []content{{Role: "user", Parts: parts}}}
	if in.JSON {
		req.GenerationConfig = &generationConfig{ResponseMimeType: "application/json"}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.cfg.BaseURL, c.cfg.Model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.cfg.APIKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, transport.FromErr(op, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transport.FromErr(op, err)
	}

	if resp.StatusCode >= 400 {
		return nil, transport.FromResponse(op, resp, respBody, statusFromBody(resp.StatusCode, respBody))
	}

	var genResp generateResponse
	if err := json.Unmarshal(respBody, &genResp); err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", op, err)
	}

	if genResp.PromptFeedback != nil && genResp.PromptFeedback.BlockReason != "" {
		return nil, fmt.Errorf("%s: prompt blocked: %s", op, genResp.PromptFeedback.BlockReason)
	}
	if len(genResp.Candidates) == 0 {
		return nil, fmt.Errorf("%s: no candidates in response", op)
	}

	cand := genResp.Candidates[0]
	var sb strings.Builder
	for _, p := range cand.Content.Parts {
		sb.WriteString(p.Text)
	}
	if sb.Len() == 0 {
		return nil, fmt.Errorf("%s: empty candidate (finish reason %s)", op, cand.FinishReason)
	}

	return &Response{Text: sb.String(), FinishReason: cand.FinishReason}, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// statusFromBody turns a Gemini error body into a gRPC status error.
// The status name is kept in the message, e.g. "RESOURCE_EXHAUSTED: quota".
func statusFromBody(httpStatus int, body []byte) error {
	var er errorResponse
	_ = json.Unmarshal(body, &er)

	msg := er.Error.Message
	if msg == "" {
		msg = http.StatusText(httpStatus)
	}
	if er.Error.Status == "" {
		return errors.New(msg)
	}

	c := codes.Unknown
	if v, ok := code.Code_value[er.Error.Status]; ok {
		c = codes.Code(v)
	}
	return status.Error(c, er.Error.Status+": "+msg)
}
