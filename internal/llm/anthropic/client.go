package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/traveler-renamer/internal/common"
	"github.com/joseph-ayodele/traveler-renamer/internal/llm"
)

// ErrNoCredential is returned when neither the request nor the config carries an API key.
var ErrNoCredential = common.NewAppError("NO_CREDENTIAL", "anthropic api key is required", common.ErrUnauthorized)

type messagesRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	Messages  []llm.Message `json:"messages"`
}

type messagesResponse struct {
	ID         string              `json:"id"`
	Content    []llm.ResponseBlock `json:"content"`
	StopReason string              `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// ExtractFields implements llm.FieldExtractor with one Messages API call carrying the PDF
// as a base64 document block. No retries.
func (c *Client) ExtractFields(ctx context.Context, req llm.ExtractRequest) (llm.TravelerFields, []byte, error) {
	rid := uuid.New().String()
	start := time.Now()

	apiKey := strings.TrimSpace(req.APIKey)
	if apiKey == "" {
		apiKey = strings.TrimSpace(c.cfg.APIKey)
	}
	if apiKey == "" {
		return llm.TravelerFields{}, nil, ErrNoCredential
	}

	c.log.Info("llm.extract.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"file", req.Filename,
		"pdf_bytes", len(req.Data),
	)

	body := messagesRequest{
		Model:     c.cfg.Model,
		MaxTokens: c.cfg.MaxTokens,
		Messages:  []llm.Message{llm.BuildDocumentMessage(req.Data)},
	}
	headers := map[string]string{
		"x-api-key":         apiKey,
		"anthropic-version": APIVersion,
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/v1/messages"
	raw, status, err := llm.SendJSON(ctx, c.http, endpoint, body, headers, c.log)
	if err != nil {
		c.log.Error("llm.extract.http_error",
			"req_id", rid, "status", status, "error", err,
			"auth_error", llm.IsAuthError(err),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.TravelerFields{}, raw, fmt.Errorf("anthropic messages: %w", err)
	}

	var mr messagesResponse
	if err := json.Unmarshal(raw, &mr); err != nil {
		c.log.Error("llm.extract.decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.TravelerFields{}, raw, fmt.Errorf("decode anthropic response: %w", err)
	}
	text, ok := llm.FirstText(mr.Content)
	if !ok {
		c.log.Error("llm.extract.no_text",
			"req_id", rid, "raw", string(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.TravelerFields{}, raw, errors.New("no text block in anthropic response")
	}

	fields, cleaned, err := llm.ParseFields(text, c.log)
	if err != nil {
		c.log.Error("llm.extract.parse_failed",
			"req_id", rid, "error", err, "content", text,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.TravelerFields{}, []byte(text), fmt.Errorf("parse model answer: %w", err)
	}

	c.log.Info("llm.extract.ok",
		"req_id", rid,
		"message_id", mr.ID,
		"customer", fields.Value(llm.FieldCustomer),
		"part_number", fields.Value(llm.FieldPartNumber),
		"description", fields.Value(llm.FieldDescription),
		"input_tokens", mr.Usage.InputTokens,
		"output_tokens", mr.Usage.OutputTokens,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return fields, cleaned, nil
}
