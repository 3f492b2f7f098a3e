// Package config is the process-level configuration layer: everything read
// from the environment before tick 1, as distinct from domain/config's
// EngineConfig (the per-run simulation manifest loaded from a file path).
// Same split the teacher draws between internal/config (env-tagged process
// settings) and its domain packages' own JSON-configured objects.
package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(NewConfig),
)

// Config holds process-wide configuration for the worldforge binary.
type Config struct {
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	Environment string `env:"ENVIRONMENT" envDefault:"local"`

	// RNGSeed seeds the shared deterministic RNG (pkg/rng). cmd/worldforge
	// replaces zero with the fixed seed 1, so an unset seed still gives a
	// reproducible run.
	RNGSeed int64 `env:"RNG_SEED" envDefault:"0"`

	// OutputDir is where the JSON export (spec.md §6 "Exported state") and
	// any snapshot artifacts are written.
	OutputDir string `env:"OUTPUT_DIR" envDefault:"./out"`

	// EngineConfigPath/TemplatePackPath locate the two files every run
	// needs: the domain/config.EngineConfig manifest and the
	// domain/templatepacks.Pack bundle cmd/worldforge compiles against
	// domain/worldtemplates/domain/worldsystems.
	EngineConfigPath string `env:"ENGINE_CONFIG_PATH" envDefault:"./world.json"`
	TemplatePackPath string `env:"TEMPLATE_PACK_PATH" envDefault:"./templatepack.json"`

	// Culture selects the namegen culture profile used for the run.
	Culture string `env:"CULTURE" envDefault:"default"`

	// Continuous switches cmd/worldforge from a batch Run (stop at
	// maxTicks/hardCap) to internal/runmode's wall-clock-driven loop.
	Continuous    bool          `env:"CONTINUOUS" envDefault:"false"`
	TickInterval  time.Duration `env:"TICK_INTERVAL" envDefault:"5s"`

	// MetricsAddr, when non-empty, starts the optional debug introspection
	// server (internal/server) bound to this address. Empty disables it.
	MetricsAddr string `env:"METRICS_ADDR" envDefault:""`

	LLM      LLMConfig
	Storage  StorageConfig
	Runner   RunnerConfig
	Otel     OtelConfig
	Snapshot SnapshotConfig

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// LLMConfig holds credentials for the out-of-process LLM worker (spec §6).
type LLMConfig struct {
	// GCPProjectID/VertexAILocation select the Vertex AI backend.
	GCPProjectID     string `env:"GCP_PROJECT_ID" envDefault:""`
	VertexAILocation string `env:"VERTEX_AI_LOCATION" envDefault:"global"`

	Model           string        `env:"LLM_MODEL" envDefault:"gemini-3-flash-preview"`
	ImageModel      string        `env:"LLM_IMAGE_MODEL" envDefault:"imagen-4.0-generate-001"`
	MaxOutputTokens int           `env:"LLM_MAX_OUTPUT_TOKENS" envDefault:"8192"`
	Temperature     float64       `env:"LLM_TEMPERATURE" envDefault:"0.7"`
	Timeout         time.Duration `env:"LLM_TIMEOUT" envDefault:"120s"`

	// GoogleAPIKey counts as a configured backend for IsEnabled;
	// pkg/adk.ModelFactory builds Vertex AI models only and does not read it.
	GoogleAPIKey string `env:"GOOGLE_API_KEY" envDefault:""`

	// CapabilityTokenSecret signs the short-lived JWTs the sandboxed worker
	// uses to push artifacts back to the content store (domain/llmworker/
	// runner.SignCapabilityToken).
	CapabilityTokenSecret string        `env:"LLM_CAPABILITY_SECRET" envDefault:""`
	CapabilityTokenTTL    time.Duration `env:"LLM_CAPABILITY_TTL" envDefault:"15m"`

	// NetworkDisabled short-circuits IsEnabled, e.g. for tests.
	NetworkDisabled bool `env:"LLM_NETWORK_DISABLED" envDefault:"false"`
}

// UseVertexAI returns true if Vertex AI credentials are present.
func (l *LLMConfig) UseVertexAI() bool {
	return l.GCPProjectID != "" && l.VertexAILocation != ""
}

// IsEnabled returns true if the worker has any usable LLM backend.
func (l *LLMConfig) IsEnabled() bool {
	if l.NetworkDisabled {
		return false
	}
	return l.UseVertexAI() || l.GoogleAPIKey != ""
}

// StorageConfig holds S3-compatible credentials for the generated-image
// content store (pkg/storage).
type StorageConfig struct {
	Endpoint        string `env:"STORAGE_ENDPOINT" envDefault:""`
	AccessKeyID     string `env:"STORAGE_ACCESS_KEY" envDefault:""`
	SecretAccessKey string `env:"STORAGE_SECRET_KEY" envDefault:""`
	Bucket          string `env:"STORAGE_BUCKET" envDefault:"worldforge-images"`
	Region          string `env:"STORAGE_REGION" envDefault:"us-east-1"`
	UseSSL          bool   `env:"STORAGE_USE_SSL" envDefault:"false"`
}

// IsConfigured returns true if storage credentials are present.
func (s *StorageConfig) IsConfigured() bool {
	return s.Endpoint != "" && s.AccessKeyID != "" && s.SecretAccessKey != ""
}

// RunnerConfig selects how the out-of-process LLM worker is sandboxed
// (domain/llmworker/runner).
type RunnerConfig struct {
	// Mode is "docker", "firecracker", or "inprocess" (test stub, no real
	// isolation — used when neither sandbox is available).
	Mode           string        `env:"RUNNER_MODE" envDefault:"inprocess"`
	Image          string        `env:"RUNNER_IMAGE" envDefault:""`
	StartupTimeout time.Duration `env:"RUNNER_STARTUP_TIMEOUT" envDefault:"30s"`
}

// SnapshotConfig holds PostgreSQL connection settings for the optional
// snapshot store (pkg/snapshotstore). Persistence is opt-in (spec.md §13:
// "no mandated persistence format beyond JSON") — a run with no Host
// configured never touches Postgres at all.
type SnapshotConfig struct {
	Host         string        `env:"SNAPSHOT_POSTGRES_HOST" envDefault:""`
	Port         int           `env:"SNAPSHOT_POSTGRES_PORT" envDefault:"5432"`
	User         string        `env:"SNAPSHOT_POSTGRES_USER" envDefault:"worldforge"`
	Password     string        `env:"SNAPSHOT_POSTGRES_PASSWORD" envDefault:""`
	Database     string        `env:"SNAPSHOT_POSTGRES_DB" envDefault:"worldforge"`
	SSLMode      string        `env:"SNAPSHOT_POSTGRES_SSL_MODE" envDefault:"disable"`
	MaxOpenConns int           `env:"SNAPSHOT_DB_MAX_OPEN_CONNS" envDefault:"10"`
	MaxIdleConns int           `env:"SNAPSHOT_DB_MAX_IDLE_CONNS" envDefault:"2"`
	MaxIdleTime  time.Duration `env:"SNAPSHOT_DB_MAX_IDLE_TIME" envDefault:"5m"`
	QueryDebug   bool          `env:"SNAPSHOT_DB_QUERY_DEBUG" envDefault:"false"`
}

// Enabled returns true if a snapshot database host is configured.
func (s *SnapshotConfig) Enabled() bool {
	return s.Host != ""
}

// DSN returns the PostgreSQL connection string.
func (s *SnapshotConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		s.User, s.Password, s.Host, s.Port, s.Database, s.SSLMode,
	)
}

// NewConfig loads process configuration from environment variables.
func NewConfig(log *slog.Logger) (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	log.Info("configuration loaded",
		slog.String("environment", cfg.Environment),
		slog.String("output_dir", cfg.OutputDir),
		slog.Bool("llm_enabled", cfg.LLM.IsEnabled()),
		slog.Bool("storage_configured", cfg.Storage.IsConfigured()),
		slog.String("runner_mode", cfg.Runner.Mode),
		slog.Bool("snapshot_store_enabled", cfg.Snapshot.Enabled()),
	)

	return cfg, nil
}
