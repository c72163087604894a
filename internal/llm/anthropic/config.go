package anthropic

import (
	"log/slog"
	"net/http"
	"time"
)

const (
	// DefaultModel is the model the original tool was tuned against.
	DefaultModel = "claude-3-5-sonnet-20241022"
	// DefaultBaseURL is the Anthropic API endpoint.
	DefaultBaseURL = "https://api.anthropic.com"
	// APIVersion is the required anthropic-version header.
	APIVersion = "2023-06-01"
)

// Config for the Anthropic client.
type Config struct {
	APIKey    string        // used when the request carries no key
	BaseURL   string        // default https://api.anthropic.com
	Model     string        // e.g. "claude-3-5-sonnet-20241022"
	MaxTokens int           // default 1024
	Timeout   time.Duration // 0 keeps the transport default (no client timeout)
}

type Client struct {
	cfg  Config
	http *http.Client
	log  *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  logger,
	}
}

// WithHTTPClient swaps the transport, mainly for tests.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.http = hc
	return c
}
