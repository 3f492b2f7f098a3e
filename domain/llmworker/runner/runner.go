// Package runner launches the out-of-process LLM worker in a sandbox and
// exposes it as an llmworker.Transport, grounded on the teacher's
// pkg/adk.ModelFactory for the "one process per run" lifecycle and on the
// docker/firecracker SDKs pulled in for sandboxed execution
// (SPEC_FULL.md §12: "sandboxed LLM worker runner").
package runner

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/golang-jwt/jwt/v5"

	"github.com/chris-arsenault/penguin-tales-sub002/domain/llmworker"
	"github.com/chris-arsenault/penguin-tales-sub002/pkg/logger"
)

// Kind selects which sandbox backend spawns the worker process.
type Kind string

const (
	KindDocker      Kind = "docker"
	KindFirecracker Kind = "firecracker"
)

// Config configures a sandboxed worker run.
type Config struct {
	Kind            Kind
	Image           string        // docker image or firecracker rootfs path
	CapabilityToken string        // signed JWT scoping what the worker may reach
	StartupTimeout  time.Duration
}

// capabilityClaims is the JWT payload handed to the sandboxed worker so it
// can authenticate to the content store without holding long-lived
// credentials itself.
type capabilityClaims struct {
	jwt.RegisteredClaims
	ProjectID string   `json:"projectId"`
	Scopes    []string `json:"scopes"`
}

// SignCapabilityToken mints a short-lived token scoping the worker's access
// (e.g. "content-store:write") for one run.
func SignCapabilityToken(secret []byte, projectID string, scopes []string, ttl time.Duration) (string, error) {
	claims := capabilityClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
		ProjectID: projectID,
		Scopes:    scopes,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// DockerTransport runs the worker as a docker container and exchanges
// newline-delimited JSON envelopes over its attached stdio stream.
type DockerTransport struct {
	log       *slog.Logger
	cli       *client.Client
	containerID string
	stdin     io.WriteCloser
	stdout    *bufio.Reader
}

// NewDockerTransport starts the worker container and attaches to its stdio.
func NewDockerTransport(ctx context.Context, log *slog.Logger, cfg Config) (*DockerTransport, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("runner: docker client: %w", err)
	}

	resp, err := cli.ContainerCreate(ctx, &container.Config{
		Image:        cfg.Image,
		Env:          []string{"WORKER_CAPABILITY_TOKEN=" + cfg.CapabilityToken},
		AttachStdin:  true,
		AttachStdout: true,
		OpenStdin:    true,
	}, &container.HostConfig{
		NetworkMode: "none", // the container gets only a loopback interface: no inbound or outbound network access
	}, nil, nil, "")
	if err != nil {
		return nil, fmt.Errorf("runner: create container: %w", err)
	}

	if err := cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return nil, fmt.Errorf("runner: start container: %w", err)
	}

	attach, err := cli.ContainerAttach(ctx, resp.ID, container.AttachOptions{Stream: true, Stdin: true, Stdout: true})
	if err != nil {
		return nil, fmt.Errorf("runner: attach container: %w", err)
	}

	return &DockerTransport{
		log:         log.With(logger.Scope("llmworker.runner.docker")),
		cli:         cli,
		containerID: resp.ID,
		stdin:       attach.Conn,
		stdout:      bufio.NewReader(attach.Conn),
	}, nil
}

// Send writes one envelope as a newline-delimited JSON line.
func (d *DockerTransport) Send(_ context.Context, env llmworker.Envelope) error {
	line, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("runner: marshal envelope: %w", err)
	}
	line = append(line, '\n')
	_, err = d.stdin.Write(line)
	return err
}

// Receive reads the next newline-delimited JSON envelope.
func (d *DockerTransport) Receive(_ context.Context) (llmworker.Envelope, error) {
	line, err := d.stdout.ReadBytes('\n')
	if err != nil {
		return llmworker.Envelope{}, fmt.Errorf("runner: read envelope: %w", err)
	}
	var env llmworker.Envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return llmworker.Envelope{}, fmt.Errorf("runner: unmarshal envelope: %w", err)
	}
	return env, nil
}

// Close stops and removes the worker container.
func (d *DockerTransport) Close() error {
	ctx := context.Background()
	_ = d.stdin.Close()
	timeout := 5
	_ = d.cli.ContainerStop(ctx, d.containerID, container.StopOptions{Timeout: &timeout})
	return d.cli.ContainerRemove(ctx, d.containerID, container.RemoveOptions{Force: true})
}
