package runner

import (
	"context"
	"errors"

	"github.com/chris-arsenault/penguin-tales-sub002/domain/llmworker"
)

// pipeTransport is one end of an in-process envelope pipe: what it Sends is
// read by the peer's Receive, and vice versa.
type pipeTransport struct {
	out    chan<- llmworker.Envelope
	in     <-chan llmworker.Envelope
	closed chan struct{}
}

// NewInProcessTransportPair wires a worker directly into the calling
// process instead of a sandboxed one (internal/config.RunnerConfig's
// "inprocess" mode: "test stub, no real isolation — used when neither
// sandbox is available"). The two returned Transports exchange the same
// Envelope values DockerTransport/FirecrackerTransport do, just over Go
// channels instead of a stdio/vsock stream, so llmworker.Client and
// llmworker.Serve need no knowledge of which they're talking to.
func NewInProcessTransportPair() (client, worker llmworker.Transport) {
	toWorker := make(chan llmworker.Envelope, 8)
	toClient := make(chan llmworker.Envelope, 8)
	closed := make(chan struct{})

	return &pipeTransport{out: toWorker, in: toClient, closed: closed},
		&pipeTransport{out: toClient, in: toWorker, closed: closed}
}

func (p *pipeTransport) Send(ctx context.Context, env llmworker.Envelope) error {
	select {
	case p.out <- env:
		return nil
	case <-p.closed:
		return errors.New("runner: in-process transport closed")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *pipeTransport) Receive(ctx context.Context) (llmworker.Envelope, error) {
	select {
	case env := <-p.in:
		return env, nil
	case <-p.closed:
		return llmworker.Envelope{}, errors.New("runner: in-process transport closed")
	case <-ctx.Done():
		return llmworker.Envelope{}, ctx.Err()
	}
}

// Close closes the shared channel once; the peer's blocked Send/Receive
// calls then return the closed error instead of blocking forever.
func (p *pipeTransport) Close() error {
	select {
	case <-p.closed:
	default:
		close(p.closed)
	}
	return nil
}
