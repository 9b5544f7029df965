// Package engines wires the configured providers into a guide.Engines set.
package engines

import (
	"snap-to-spec/api/internal/config"
	"snap-to-spec/api/internal/guide"
	"snap-to-spec/api/internal/guide/claude"
	"snap-to-spec/api/internal/guide/gemini"
	"snap-to-spec/api/internal/guide/gpt"
	"snap-to-spec/api/internal/guide/vertex"
)

// New builds every engine. Engines with a missing credential are still returned;
// they fail with guide.ErrNotConfigured on first use.
func New(cfg *config.Config) *guide.Engines {
	return &guide.Engines{
		Gemini:  gemini.New(cfg.GeminiAPIKey, cfg.GeminiModel),
		Vertex:  vertex.New(cfg.VertexProject, cfg.VertexLocation, cfg.VertexModel),
		OpenAI:  gpt.New(cfg.OpenAIAPIKey, cfg.OpenAIModel),
		Claude:  claude.New(cfg.AnthropicAPIKey, cfg.AnthropicModel),
		Default: cfg.Provider,
	}
}
