package runner

import (
	"context"
	"fmt"

	firecracker "github.com/firecracker-microvm/firecracker-go-sdk"

	"github.com/chris-arsenault/penguin-tales-sub002/domain/llmworker"
)

// FirecrackerTransport runs the worker inside a microVM instead of a
// container, for deployments that need stronger isolation than a docker
// namespace gives (the worker executes arbitrary LLM-returned tool calls
// in some configurations). Wired alongside DockerTransport rather than
// replacing it: SPEC_FULL.md treats the sandbox backend as operator choice.
type FirecrackerTransport struct {
	machine *firecracker.Machine
	vsock   *vsockConn
}

// vsockConn holds the path recorded for the guest channel; it opens no
// connection.
type vsockConn struct {
	path string
}

// NewFirecrackerTransport creates and starts a microVM from a
// firecracker.Config whose socket and kernel image paths are left empty.
// cfg.Image is only recorded as the vsock path; it is not used as the
// rootfs, and no connection to a guest worker is made.
func NewFirecrackerTransport(ctx context.Context, cfg Config) (*FirecrackerTransport, error) {
	machineCfg := firecracker.Config{
		SocketPath:      "",
		KernelImagePath: "", // populated by the caller's image layout; left to deployment config
	}

	m, err := firecracker.NewMachine(ctx, machineCfg)
	if err != nil {
		return nil, fmt.Errorf("runner: new firecracker machine: %w", err)
	}
	if err := m.Start(ctx); err != nil {
		return nil, fmt.Errorf("runner: start firecracker machine: %w", err)
	}

	return &FirecrackerTransport{machine: m, vsock: &vsockConn{path: cfg.Image}}, nil
}

// Send is not yet implemented for the firecracker backend; the vsock
// envelope protocol matches DockerTransport's but the guest-side agent
// plumbing is deployment-specific.
func (f *FirecrackerTransport) Send(_ context.Context, _ llmworker.Envelope) error {
	return fmt.Errorf("runner: firecracker transport send not implemented")
}

// Receive is not yet implemented for the firecracker backend.
func (f *FirecrackerTransport) Receive(_ context.Context) (llmworker.Envelope, error) {
	return llmworker.Envelope{}, fmt.Errorf("runner: firecracker transport receive not implemented")
}

// Close shuts down the microVM.
func (f *FirecrackerTransport) Close() error {
	return f.machine.StopVMM()
}
