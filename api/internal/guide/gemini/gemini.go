// Package gemini runs the guide request against the Gemini API through the unified genai SDK.
// GenerateContent there is a single HTTP call; the SDK only retries file uploads.
package gemini

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"snap-to-spec/api/internal/guide"
	"snap-to-spec/api/internal/guide/types"
	"snap-to-spec/api/internal/ingest"
)

type Engine struct {
	APIKey string
	Model  string

	// BaseURL overrides generativelanguage.googleapis.com.
	BaseURL string
}

func New(apiKey, model string) *Engine {
	return &Engine{
		APIKey: strings.TrimSpace(apiKey),
		Model:  strings.TrimSpace(model),
	}
}

func (e *Engine) Name() string     { return "gemini" }
func (e *Engine) GetModel() string { return e.Model }

// WithModel returns a copy bound to another Gemini model; e is left untouched.
func (e *Engine) WithModel(model string) guide.Engine {
	c := *e
	c.Model = strings.TrimSpace(model)
	return &c
}

// Generate asks Gemini for a RepairGuide as JSON constrained by ResponseSchema.
func (e *Engine) Generate(ctx context.Context, img ingest.Payload) (string, error) {
	if e.APIKey == "" {
		return "", fmt.Errorf("%w: GEMINI_API_KEY is empty", guide.ErrNotConfigured)
	}
	cc := &genai.ClientConfig{
		APIKey:  e.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if e.BaseURL != "" {
		cc.HTTPOptions.BaseURL = e.BaseURL
	}
	out, err := Call(ctx, cc, e.Model, img)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	return out, nil
}

// Call sends one guide request through a genai client built from cc.
// Both the Gemini API and Vertex AI backends go through here.
func Call(ctx context.Context, cc *genai.ClientConfig, model string, img ingest.Payload) (string, error) {
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return "", fmt.Errorf("client: %w", err)
	}
	contents, config := Request(img)
	resp, err := client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

// Request is the image plus fixed prompt, with the system instruction and JSON schema in the config.
func Request(img ingest.Payload) ([]*genai.Content, *genai.GenerateContentConfig) {
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(types.SystemInstruction, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    ResponseSchema(),
	}
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(img.Data, img.MIME),
			genai.NewPartFromText(types.UserPrompt),
		}, genai.RoleUser),
	}
	return contents, config
}

// ResponseSchema is the guide contract in genai's schema type.
func ResponseSchema() *genai.Schema {
	str := func(desc string) *genai.Schema {
		return &genai.Schema{Type: genai.TypeString, Description: desc}
	}
	list := func(desc string) *genai.Schema {
		return &genai.Schema{Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}, Description: desc}
	}
	levels := make([]string, 0, len(types.DifficultyLevels))
	for _, l := range types.DifficultyLevels {
		levels = append(levels, string(l))
	}

	model := str(types.DescModelNumber)
	model.Nullable = genai.Ptr(true)

	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"itemName":        str(types.DescItemName),
			"modelNumber":     model,
			"damageAnalysis":  str(types.DescDamageAnalysis),
			"difficultyLevel": {Type: genai.TypeString, Enum: levels, Description: types.DescDifficultyLevel},
			"toolsRequired":   list(types.DescToolsRequired),
			"estimatedTime":   str(types.DescEstimatedTime),
			"safetyWarnings":  list(types.DescSafetyWarnings),
			"repairSteps": {
				Type:        genai.TypeArray,
				Description: types.DescRepairSteps,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"stepNumber":  {Type: genai.TypeInteger},
						"action":      {Type: genai.TypeString},
						"explanation": {Type: genai.TypeString},
					},
					Required: types.RequiredStepFields,
				},
			},
		},
		Required: types.RequiredFields,
	}
}
