package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/traveler-renamer/internal/common"
	"github.com/joseph-ayodele/traveler-renamer/internal/llm"
)

func newTestServer(t *testing.T, status int, answer string, seen *messagesRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "sk-test", r.Header.Get("x-api-key"))
		assert.Equal(t, APIVersion, r.Header.Get("anthropic-version"))
		if seen != nil {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(seen))
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(answer))
	}))
}

func textAnswer(t *testing.T, text string) string {
	t.Helper()
	b, err := json.Marshal(map[string]any{
		"id":      "msg_1",
		"content": []map[string]string{{"type": "text", "text": text}},
	})
	require.NoError(t, err)
	return string(b)
}

func TestExtractFieldsOK(t *testing.T) {
	var seen messagesRequest
	srv := newTestServer(t, http.StatusOK,
		textAnswer(t, `{"Customer":"Acme","Part Number":"PN-100","Description":"Bracket"}`), &seen)
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL}, nil)
	fields, raw, err := c.ExtractFields(context.Background(), llm.ExtractRequest{
		Filename: "job1.pdf", Data: []byte("%PDF"), APIKey: "sk-test",
	})
	require.NoError(t, err)
	assert.Equal(t, llm.Fields("Acme", "PN-100", "Bracket"), fields)
	assert.JSONEq(t, `{"Customer":"Acme","Part Number":"PN-100","Description":"Bracket"}`, string(raw))

	assert.Equal(t, DefaultModel, seen.Model)
	assert.Equal(t, 1024, seen.MaxTokens)
	require.Len(t, seen.Messages, 1)
	require.Len(t, seen.Messages[0].Content, 2)
	assert.Equal(t, "document", seen.Messages[0].Content[0].Type)
	assert.Equal(t, "base64", seen.Messages[0].Content[0].Source.Type)
}

func TestExtractFieldsUsesConfiguredKeyAsFallback(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, textAnswer(t, `{}`), nil)
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, APIKey: "sk-test"}, nil)
	fields, _, err := c.ExtractFields(context.Background(), llm.ExtractRequest{Filename: "a.pdf"})
	require.NoError(t, err)
	assert.True(t, fields.IsEmpty())
}

func TestExtractFieldsFailures(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		answer   string
		wantAuth bool
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, answer: `{"type":"error"}`, wantAuth: true},
		{name: "overloaded", status: 529, answer: `{"type":"error"}`},
		{name: "not json", status: http.StatusOK, answer: `<html>`},
		{name: "prose answer", status: http.StatusOK, answer: textAnswer(t, "Sorry, I cannot help.")},
		{name: "no text block", status: http.StatusOK, answer: `{"content":[]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, tt.status, tt.answer, nil)
			defer srv.Close()

			c := NewClient(Config{BaseURL: srv.URL}, nil)
			fields, _, err := c.ExtractFields(context.Background(), llm.ExtractRequest{APIKey: "sk-test"})
			require.Error(t, err)
			assert.True(t, fields.IsEmpty())
			assert.Equal(t, tt.wantAuth, errors.Is(err, common.ErrUnauthorized))
		})
	}
}

func TestExtractFieldsWithoutKey(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://127.0.0.1:1"}, nil)
	_, _, err := c.ExtractFields(context.Background(), llm.ExtractRequest{Data: []byte("%PDF")})
	require.ErrorIs(t, err, ErrNoCredential)
	assert.True(t, llm.IsAuthError(err))
}
