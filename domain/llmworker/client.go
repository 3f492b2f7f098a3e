// Package llmworker implements the out-of-process LLM worker contract
// (spec.md §6): inbound init/execute/abort messages, outbound ready/
// started/complete/error, dispatched over an envelope shaped like the
// teacher's MCP JSON-RPC messages (domain/mcp/jsonrpc.go), since both are
// "send a typed message, get a typed reply" protocols to a subprocess.
package llmworker

import (
	"context"
	"encoding/json"
	"fmt"
)

// TaskType is the kind of content a worker task produces (spec §6).
type TaskType string

const (
	TaskText          TaskType = "text"
	TaskImage         TaskType = "image"
	TaskEraNarrative  TaskType = "eraNarrative"
	TaskRelationship  TaskType = "relationship"
)

// Task is one unit of work sent to the worker.
type Task struct {
	ID               string   `json:"id"`
	Type             TaskType `json:"type"`
	EntityID         string   `json:"entityId,omitempty"`
	ProjectID        string   `json:"projectId,omitempty"`
	Prompt           string   `json:"prompt"`
	PreviousImageID  string   `json:"previousImageId,omitempty"`
}

// Result is what a completed task returns (spec §6).
type Result struct {
	Text          string  `json:"text,omitempty"`
	ImageID       string  `json:"imageId,omitempty"`
	RevisedPrompt string  `json:"revisedPrompt,omitempty"`
	GeneratedAt   int64   `json:"generatedAt"`
	Model         string  `json:"model"`
	EstimatedCost float64 `json:"estimatedCost"`
	ActualCost    float64 `json:"actualCost"`
	InputTokens   *int    `json:"inputTokens,omitempty"`
	OutputTokens  *int    `json:"outputTokens,omitempty"`
}

// envelopeKind is the outer message discriminator, mirroring the teacher's
// JSON-RPC Method field but for the worker's own small message set rather
// than full JSON-RPC 2.0 (no id/jsonrpc version negotiation needed for a
// private subprocess pipe).
type envelopeKind string

const (
	msgInit    envelopeKind = "init"
	msgExecute envelopeKind = "execute"
	msgAbort   envelopeKind = "abort"

	msgReady    envelopeKind = "ready"
	msgStarted  envelopeKind = "started"
	msgComplete envelopeKind = "complete"
	msgError    envelopeKind = "error"
)

// Envelope is the wire message both directions use.
type Envelope struct {
	Kind    envelopeKind    `json:"kind"`
	TaskID  string          `json:"taskId,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// WorkerConfig is the init payload sent once, before any task.
type WorkerConfig struct {
	Provider string            `json:"provider"`
	Model    string            `json:"model"`
	Options  map[string]string `json:"options,omitempty"`
}

// Transport is anything that can exchange envelopes with a worker process
// (a pipe, a docker exec stream, a firecracker vsock — domain/llmworker/
// runner supplies the concrete implementation).
type Transport interface {
	Send(ctx context.Context, env Envelope) error
	Receive(ctx context.Context) (Envelope, error)
	Close() error
}

// Client drives one worker's lifecycle over a Transport.
type Client struct {
	transport Transport
	ready     bool
}

// NewClient wraps a Transport.
func NewClient(t Transport) *Client {
	return &Client{transport: t}
}

// Init sends the worker its configuration and waits for `ready`.
func (c *Client) Init(ctx context.Context, cfg WorkerConfig) error {
	payload, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("llmworker: marshal config: %w", err)
	}
	if err := c.transport.Send(ctx, Envelope{Kind: msgInit, Payload: payload}); err != nil {
		return fmt.Errorf("llmworker: send init: %w", err)
	}
	reply, err := c.transport.Receive(ctx)
	if err != nil {
		return fmt.Errorf("llmworker: await ready: %w", err)
	}
	if reply.Kind != msgReady {
		return fmt.Errorf("llmworker: expected ready, got %s", reply.Kind)
	}
	c.ready = true
	return nil
}

// Execute dispatches a task fire-and-forget style (spec §5: "fire-and-
// forget; the returned artifact is consumed by whoever owns the project,
// never re-entering the engine graph mid-run"), returning once the worker
// acknowledges `started`.
func (c *Client) Execute(ctx context.Context, task Task) error {
	if !c.ready {
		return fmt.Errorf("llmworker: not initialized")
	}
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("llmworker: marshal task: %w", err)
	}
	if err := c.transport.Send(ctx, Envelope{Kind: msgExecute, TaskID: task.ID, Payload: payload}); err != nil {
		return fmt.Errorf("llmworker: send execute: %w", err)
	}
	reply, err := c.transport.Receive(ctx)
	if err != nil {
		return fmt.Errorf("llmworker: await started: %w", err)
	}
	if reply.Kind != msgStarted {
		return fmt.Errorf("llmworker: expected started, got %s", reply.Kind)
	}
	return nil
}

// Abort cancels a dispatched task by id (spec §5 cancellation).
func (c *Client) Abort(ctx context.Context, taskID string) error {
	return c.transport.Send(ctx, Envelope{Kind: msgAbort, TaskID: taskID})
}

// Poll reads the next completion or error envelope without blocking forever
// on a particular task, letting the caller's dispatch loop multiplex many
// in-flight tasks over one transport.
func (c *Client) Poll(ctx context.Context) (taskID string, result *Result, err error) {
	env, err := c.transport.Receive(ctx)
	if err != nil {
		return "", nil, err
	}
	switch env.Kind {
	case msgComplete:
		var r Result
		if err := json.Unmarshal(env.Payload, &r); err != nil {
			return env.TaskID, nil, fmt.Errorf("llmworker: unmarshal result: %w", err)
		}
		return env.TaskID, &r, nil
	case msgError:
		return env.TaskID, nil, fmt.Errorf("llmworker: task %s failed: %s", env.TaskID, env.Error)
	default:
		return env.TaskID, nil, fmt.Errorf("llmworker: unexpected message kind %s", env.Kind)
	}
}

// Close releases the underlying transport.
func (c *Client) Close() error { return c.transport.Close() }
