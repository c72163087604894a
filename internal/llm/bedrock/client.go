// Package bedrock runs the traveler extraction through Claude on AWS Bedrock.
package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/traveler-renamer/internal/llm"
)

const (
	DefaultModelID   = "anthropic.claude-3-5-sonnet-20241022-v2:0"
	AnthropicVersion = "bedrock-2023-05-31"
)

// InvokeAPI is the slice of the Bedrock runtime client we use.
type InvokeAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

type Config struct {
	ModelID   string
	Region    string
	MaxTokens int
}

type Client struct {
	api InvokeAPI
	cfg Config
	log *slog.Logger
}

// NewClient loads the default AWS credential chain for cfg.Region.
func NewClient(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewWithAPI(bedrockruntime.NewFromConfig(awsCfg), cfg, logger), nil
}

// NewWithAPI wraps an existing runtime client.
func NewWithAPI(api InvokeAPI, cfg Config, logger *slog.Logger) *Client {
	if cfg.ModelID == "" {
		cfg.ModelID = DefaultModelID
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{api: api, cfg: cfg, log: logger}
}

type invokeBody struct {
	AnthropicVersion string        `json:"anthropic_version"`
	MaxTokens        int           `json:"max_tokens"`
	Messages         []llm.Message `json:"messages"`
}

type invokeResponse struct {
	Content    []llm.ResponseBlock `json:"content"`
	StopReason string              `json:"stop_reason"`
}

// ExtractFields implements llm.FieldExtractor. req.APIKey is ignored; AWS credentials apply.
func (c *Client) ExtractFields(ctx context.Context, req llm.ExtractRequest) (llm.TravelerFields, []byte, error) {
	rid := uuid.New().String()
	start := time.Now()

	body, err := json.Marshal(invokeBody{
		AnthropicVersion: AnthropicVersion,
		MaxTokens:        c.cfg.MaxTokens,
		Messages:         []llm.Message{llm.BuildDocumentMessage(req.Data)},
	})
	if err != nil {
		return llm.TravelerFields{}, nil, fmt.Errorf("marshal request: %w", err)
	}

	c.log.Info("llm.extract.start", "req_id", rid, "provider", "bedrock", "model", c.cfg.ModelID, "file", req.Filename)

	out, err := c.api.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(c.cfg.ModelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		c.log.Error("llm.extract.invoke_error", "req_id", rid, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return llm.TravelerFields{}, nil, fmt.Errorf("bedrock invoke: %w", err)
	}

	var resp invokeResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return llm.TravelerFields{}, out.Body, fmt.Errorf("decode bedrock response: %w", err)
	}
	text, ok := llm.FirstText(resp.Content)
	if !ok {
		return llm.TravelerFields{}, out.Body, errors.New("no text block in bedrock response")
	}
	fields, cleaned, err := llm.ParseFields(text, c.log)
	if err != nil {
		c.log.Error("llm.extract.parse_failed", "req_id", rid, "error", err, "content", text)
		return llm.TravelerFields{}, []byte(text), fmt.Errorf("parse model answer: %w", err)
	}

	c.log.Info("llm.extract.ok", "req_id", rid, "provider", "bedrock",
		"part_number", fields.Value(llm.FieldPartNumber),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return fields, cleaned, nil
}
