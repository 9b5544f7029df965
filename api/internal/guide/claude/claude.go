// Package claude runs the guide request against Anthropic's Messages API.
// The Messages API has no response-schema knob, so the schema travels in the system prompt.
package claude

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"snap-to-spec/api/internal/guide"
	"snap-to-spec/api/internal/guide/types"
	"snap-to-spec/api/internal/ingest"
)

const maxTokens = 4096

type Engine struct {
	APIKey  string
	Model   string
	BaseURL string
}

func New(key, model string) *Engine {
	return &Engine{
		APIKey: strings.TrimSpace(key),
		Model:  strings.TrimSpace(model),
	}
}

func (e *Engine) Name() string     { return "claude" }
func (e *Engine) GetModel() string { return e.Model }

func (e *Engine) WithModel(model string) guide.Engine {
	c := *e
	c.Model = strings.TrimSpace(model)
	return &c
}

func (e *Engine) Generate(ctx context.Context, img ingest.Payload) (string, error) {
	if e.APIKey == "" {
		return "", fmt.Errorf("%w: ANTHROPIC_API_KEY is empty", guide.ErrNotConfigured)
	}
	opts := []option.RequestOption{
		option.WithAPIKey(e.APIKey),
		option.WithMaxRetries(0),
	}
	if e.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(e.BaseURL))
	}
	client := anthropic.NewClient(opts...)

	msg, err := client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(e.Model),
		MaxTokens: maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: SystemPrompt()},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewImageBlockBase64(img.MIME, img.Base64),
				anthropic.NewTextBlock(types.UserPrompt),
			),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic messages: %w", err)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		switch v := block.AsAny().(type) {
		case anthropic.TextBlock:
			b.WriteString(v.Text)
		}
	}
	return b.String(), nil
}

// SystemPrompt is the fixed instruction followed by the JSON schema the answer must match.
func SystemPrompt() string {
	return types.SystemInstruction +
		"\nOutput ONLY the JSON object, no prose and no code fences. JSON schema:\n" +
		string(types.StrictJSONSchema)
}
