// Package vertex runs the guide request against Gemini on Vertex AI through the unified genai SDK.
// Credentials come from Application Default Credentials; the project id is the required setting.
package vertex

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"snap-to-spec/api/internal/guide"
	"snap-to-spec/api/internal/guide/gemini"
	"snap-to-spec/api/internal/ingest"
)

type Engine struct {
	Project  string
	Location string
	Model    string
}

func New(project, location, model string) *Engine {
	return &Engine{
		Project:  strings.TrimSpace(project),
		Location: strings.TrimSpace(location),
		Model:    strings.TrimSpace(model),
	}
}

func (e *Engine) Name() string     { return "vertex" }
func (e *Engine) GetModel() string { return e.Model }

func (e *Engine) WithModel(model string) guide.Engine {
	c := *e
	c.Model = strings.TrimSpace(model)
	return &c
}

// Generate sends the same request shape as the Gemini API engine, routed to Vertex AI.
func (e *Engine) Generate(ctx context.Context, img ingest.Payload) (string, error) {
	if e.Project == "" {
		return "", fmt.Errorf("%w: VERTEX_PROJECT is empty", guide.ErrNotConfigured)
	}
	out, err := gemini.Call(ctx, &genai.ClientConfig{
		Project:  e.Project,
		Location: e.Location,
		Backend:  genai.BackendVertexAI,
	}, e.Model, img)
	if err != nil {
		return "", fmt.Errorf("vertex generate: %w", err)
	}
	return out, nil
}
