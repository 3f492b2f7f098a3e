package llmworker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/adk/agent"
	"google.golang.org/adk/agent/llmagent"
	"google.golang.org/adk/runner"
	"google.golang.org/adk/session"
	"google.golang.org/genai"

	"github.com/chris-arsenault/penguin-tales-sub002/pkg/adk"
	"github.com/chris-arsenault/penguin-tales-sub002/pkg/logger"
)

// Provider does the actual generation work a Task asks for. The sandboxed
// worker process (domain/llmworker/runner) holds one Provider and drives it
// from Serve; the engine process never calls a Provider directly, keeping
// every LLM SDK call on the worker side of the process boundary (spec §5).
type Provider interface {
	GenerateText(ctx context.Context, task Task) (Result, error)
	GenerateImage(ctx context.Context, task Task) (Result, error)
}

// GenAIProvider implements Provider against Vertex AI, grounded on the
// teacher's ADK extraction pipeline (domain/extraction/agents/pipeline.go):
// a single llmagent wrapped in an in-memory session and driven by
// adk/runner, minus the sequential/loop composition extraction needed,
// since a worker Task is always a single generation call.
type GenAIProvider struct {
	factory    *adk.ModelFactory
	imageModel string
	log        *slog.Logger
}

// NewGenAIProvider builds a Provider around a ModelFactory.
func NewGenAIProvider(factory *adk.ModelFactory, imageModel string, log *slog.Logger) *GenAIProvider {
	return &GenAIProvider{factory: factory, imageModel: imageModel, log: log.With(logger.Scope("llmworker.provider"))}
}

// GenerateText runs the task's prompt through a single ADK agent turn and
// returns the assembled reply text.
func (p *GenAIProvider) GenerateText(ctx context.Context, task Task) (Result, error) {
	llm, err := p.factory.CreateModel(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("llmworker: create model: %w", err)
	}

	gen, err := llmagent.New(llmagent.Config{
		Name:                  "LoreWriter",
		Description:           "Writes lore text for worldforge entities, eras, and relationships",
		Model:                 llm,
		GenerateContentConfig: p.factory.DefaultGenerateConfig(),
	})
	if err != nil {
		return Result{}, fmt.Errorf("llmworker: build agent: %w", err)
	}

	sessionService := session.InMemoryService()
	createResp, err := sessionService.Create(ctx, &session.CreateRequest{
		AppName: "llmworker",
		UserID:  "engine",
	})
	if err != nil {
		return Result{}, fmt.Errorf("llmworker: create session: %w", err)
	}

	r, err := runner.New(runner.Config{Agent: gen, SessionService: sessionService, AppName: "llmworker"})
	if err != nil {
		return Result{}, fmt.Errorf("llmworker: create runner: %w", err)
	}

	userMessage := &genai.Content{
		Role:  "user",
		Parts: []*genai.Part{genai.NewPartFromText(task.Prompt)},
	}

	var text string
	for event, runErr := range r.Run(ctx, "engine", createResp.Session.ID(), userMessage, agent.RunConfig{}) {
		if runErr != nil {
			return Result{}, fmt.Errorf("llmworker: agent run: %w", runErr)
		}
		if event == nil || event.Content == nil {
			continue
		}
		for _, part := range event.Content.Parts {
			text += part.Text
		}
	}

	return Result{
		Text:        text,
		GeneratedAt: 0,
		Model:       p.factory.ModelName(),
	}, nil
}

// GenerateImage dispatches an image-generation task. worldforge's pack
// contains no concrete Imagen grounding, so this builds the request shape
// spec §6 describes (prompt plus optional previous image id for
// continuity) and leaves wiring the live SDK call to whichever concrete
// genai client version the deployment pins; callers needing a working
// image pipeline today should route TaskImage through a stub Provider.
func (p *GenAIProvider) GenerateImage(ctx context.Context, task Task) (Result, error) {
	return Result{}, fmt.Errorf("llmworker: image generation requires a concrete genai image client wired at deploy time")
}

// StubProvider is an in-process, network-free Provider for tests and the
// RunnerConfig "inprocess" mode: it echoes the prompt back as the result
// rather than calling any model.
type StubProvider struct {
	Now func() int64
}

func (s StubProvider) GenerateText(_ context.Context, task Task) (Result, error) {
	return Result{Text: "placeholder: " + task.Prompt, Model: "stub", GeneratedAt: s.now()}, nil
}

func (s StubProvider) GenerateImage(_ context.Context, task Task) (Result, error) {
	return Result{ImageID: "stub-" + task.ID, Model: "stub", GeneratedAt: s.now()}, nil
}

func (s StubProvider) now() int64 {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().Unix()
}
