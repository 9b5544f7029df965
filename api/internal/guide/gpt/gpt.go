package gpt

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"snap-to-spec/api/internal/guide"
	"snap-to-spec/api/internal/guide/types"
	"snap-to-spec/api/internal/ingest"
	"snap-to-spec/api/internal/util"
)

type Engine struct {
	APIKey  string
	Model   string
	BaseURL string // empty means api.openai.com
	httpc   *http.Client
}

func New(key, model string) *Engine {
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: 10 * time.Second,
		// vision requests are slow to first byte
		ResponseHeaderTimeout: 120 * time.Second,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   100,
	}
	return &Engine{
		APIKey: strings.TrimSpace(key),
		Model:  strings.TrimSpace(model),
		httpc:  &http.Client{Transport: tr},
	}
}

// WithHTTPClient overrides the internal HTTP client (e.g., for custom timeouts or tracing).
func (e *Engine) WithHTTPClient(c *http.Client) *Engine {
	if c != nil {
		e.httpc = c
	}
	return e
}

func (e *Engine) Name() string     { return "gpt" }
func (e *Engine) GetModel() string { return e.Model }

func (e *Engine) WithModel(model string) guide.Engine {
	c := *e
	c.Model = strings.TrimSpace(model)
	return &c
}

func (e *Engine) client() *openai.Client {
	cfg := openai.DefaultConfig(e.APIKey)
	if e.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(e.BaseURL, "/")
	}
	cfg.HTTPClient = e.httpc
	return openai.NewClientWithConfig(cfg)
}

// Generate sends the image as a data URL and asks for json_schema output in strict mode.
func (e *Engine) Generate(ctx context.Context, img ingest.Payload) (string, error) {
	if e.APIKey == "" {
		return "", fmt.Errorf("%w: OPENAI_API_KEY is empty", guide.ErrNotConfigured)
	}

	req := openai.ChatCompletionRequest{
		Model: e.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: types.SystemInstruction},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    util.MakeDataURL(img.MIME, img.Base64),
							Detail: openai.ImageURLDetailAuto,
						},
					},
					{Type: openai.ChatMessagePartTypeText, Text: types.UserPrompt},
				},
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "repair_guide",
				Schema: types.StrictJSONSchema,
				Strict: true,
			},
		},
	}

	resp, err := e.client().CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("openai chat: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	if r := strings.TrimSpace(resp.Choices[0].Message.Refusal); r != "" {
		return "", fmt.Errorf("openai refused: %s", r)
	}
	return resp.Choices[0].Message.Content, nil
}
