// Package adk wraps Google ADK-Go model construction for the out-of-process
// LLM worker (domain/llmworker), grounded on the teacher's own ADK
// integration: the same ModelFactory shape, reused here for lore text and
// image generation instead of document extraction.
package adk

import (
	"context"
	"fmt"
	"log/slog"

	"go.uber.org/fx"
	"google.golang.org/adk/model"
	"google.golang.org/adk/model/gemini"
	"google.golang.org/genai"

	"github.com/chris-arsenault/penguin-tales-sub002/internal/config"
)

// Module provides the ADK ModelFactory as an fx module.
var Module = fx.Module("adk",
	fx.Provide(provideModelFactory),
)

func provideModelFactory(cfg *config.Config, log *slog.Logger) *ModelFactory {
	return NewModelFactory(&cfg.LLM, log)
}

// ModelFactory creates ADK-compatible LLM models from configuration.
type ModelFactory struct {
	cfg *config.LLMConfig
	log *slog.Logger
}

// NewModelFactory creates a new ModelFactory with the given configuration.
func NewModelFactory(cfg *config.LLMConfig, log *slog.Logger) *ModelFactory {
	return &ModelFactory{cfg: cfg, log: log}
}

// CreateModel creates an ADK-compatible Gemini model using the configured
// default text model.
func (f *ModelFactory) CreateModel(ctx context.Context) (model.LLM, error) {
	return f.CreateModelWithName(ctx, f.cfg.Model)
}

// CreateModelWithName creates an ADK-compatible Gemini model with a specific
// model name, letting the lore prompt assembly pick text vs. image models.
func (f *ModelFactory) CreateModelWithName(ctx context.Context, modelName string) (model.LLM, error) {
	if f.cfg.GCPProjectID == "" {
		return nil, fmt.Errorf("GCP project ID is required for Vertex AI")
	}
	if f.cfg.VertexAILocation == "" {
		return nil, fmt.Errorf("Vertex AI location is required")
	}
	if modelName == "" {
		return nil, fmt.Errorf("model name is required")
	}

	clientCfg := &genai.ClientConfig{
		Backend:  genai.BackendVertexAI,
		Project:  f.cfg.GCPProjectID,
		Location: f.cfg.VertexAILocation,
	}

	f.log.Debug("creating ADK Gemini model",
		slog.String("model", modelName),
		slog.String("project", f.cfg.GCPProjectID),
		slog.String("location", f.cfg.VertexAILocation),
	)

	llm, err := gemini.NewModel(ctx, modelName, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini model: %w", err)
	}

	return llm, nil
}

// DefaultGenerateConfig returns the GenerateContentConfig used for lore text
// generation (spec §6 TaskText/TaskEraNarrative/TaskRelationship).
func (f *ModelFactory) DefaultGenerateConfig() *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		Temperature:     ptrFloat32(float32(f.cfg.Temperature)),
		MaxOutputTokens: int32(f.cfg.MaxOutputTokens),
	}
}

// IsEnabled reports whether the LLM configuration names any backend
// (config.LLMConfig.IsEnabled). CreateModel still fails unless the Vertex AI
// project and location are set.
func (f *ModelFactory) IsEnabled() bool {
	return f.cfg.IsEnabled()
}

// ModelName returns the configured default text model name.
func (f *ModelFactory) ModelName() string {
	return f.cfg.Model
}

func ptrFloat32(v float32) *float32 {
	return &v
}
