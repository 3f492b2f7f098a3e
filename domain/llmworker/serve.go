package llmworker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/chris-arsenault/penguin-tales-sub002/pkg/logger"
)

// Serve runs the worker-side message loop: read init, reply ready, then for
// every execute read a Task, dispatch to provider, and push back started
// followed by complete/error. This is the function cmd/worldforge's
// "worker" subcommand runs inside the sandboxed process; the engine side
// never calls it, only Client (domain/llmworker/client.go) from across the
// Transport boundary.
func Serve(ctx context.Context, t Transport, provider Provider, log *slog.Logger) error {
	log = log.With(logger.Scope("llmworker.serve"))

	initEnv, err := t.Receive(ctx)
	if err != nil {
		return fmt.Errorf("llmworker: await init: %w", err)
	}
	if initEnv.Kind != msgInit {
		return fmt.Errorf("llmworker: expected init, got %s", initEnv.Kind)
	}
	var cfg WorkerConfig
	if err := json.Unmarshal(initEnv.Payload, &cfg); err != nil {
		return fmt.Errorf("llmworker: unmarshal init config: %w", err)
	}
	log.Info("worker initialized", slog.String("provider", cfg.Provider), slog.String("model", cfg.Model))
	if err := t.Send(ctx, Envelope{Kind: msgReady}); err != nil {
		return fmt.Errorf("llmworker: send ready: %w", err)
	}

	aborted := map[string]bool{}

	for {
		env, err := t.Receive(ctx)
		if err != nil {
			return fmt.Errorf("llmworker: receive: %w", err)
		}

		switch env.Kind {
		case msgAbort:
			aborted[env.TaskID] = true
			continue
		case msgExecute:
			var task Task
			if err := json.Unmarshal(env.Payload, &task); err != nil {
				_ = t.Send(ctx, Envelope{Kind: msgError, TaskID: env.TaskID, Error: err.Error()})
				continue
			}
			if err := t.Send(ctx, Envelope{Kind: msgStarted, TaskID: task.ID}); err != nil {
				return fmt.Errorf("llmworker: send started: %w", err)
			}

			result, err := dispatch(ctx, provider, task)
			if aborted[task.ID] {
				delete(aborted, task.ID)
				continue // discard a result for an aborted task, per spec §5
			}
			if err != nil {
				log.Warn("task failed", slog.String("task_id", task.ID), logger.Error(err))
				_ = t.Send(ctx, Envelope{Kind: msgError, TaskID: task.ID, Error: err.Error()})
				continue
			}

			payload, err := json.Marshal(result)
			if err != nil {
				_ = t.Send(ctx, Envelope{Kind: msgError, TaskID: task.ID, Error: err.Error()})
				continue
			}
			if err := t.Send(ctx, Envelope{Kind: msgComplete, TaskID: task.ID, Payload: payload}); err != nil {
				return fmt.Errorf("llmworker: send complete: %w", err)
			}
		default:
			log.Warn("unexpected message kind", slog.String("kind", string(env.Kind)))
		}
	}
}

func dispatch(ctx context.Context, provider Provider, task Task) (Result, error) {
	switch task.Type {
	case TaskImage:
		return provider.GenerateImage(ctx, task)
	default:
		return provider.GenerateText(ctx, task)
	}
}
