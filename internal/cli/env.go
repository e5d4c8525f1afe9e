package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/alnah/go-narrate/internal/blob"
	"github.com/alnah/go-narrate/internal/config"
	"github.com/alnah/go-narrate/internal/narrate"
	"github.com/alnah/go-narrate/internal/segment"
	"github.com/alnah/go-narrate/internal/server"
	"github.com/alnah/go-narrate/internal/store"
	"github.com/alnah/go-narrate/internal/tts"
)

// Env holds injectable dependencies for CLI commands.
// This is the central injection point for testing CLI commands in isolation.
//
// All fields have sensible defaults via DefaultEnv(). Tests can override
// specific fields using the With* options or by creating a custom Env.
type Env struct {
	// I/O and environment
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Getenv func(string) string

	// Factories for domain objects
	ConfigLoader   ConfigLoader
	Migrator       Migrator
	BackendFactory BackendFactory
	NewLogger      func(debug bool) (*zap.SugaredLogger, error)
}

// ConfigLoader loads configuration.
type ConfigLoader interface {
	Load(path string, getenv func(string) string) (config.Config, error)
}

// Migrator applies database migrations.
type Migrator interface {
	Migrate(databaseURL string) (uint, error)
}

// BackendFactory connects the services commands run against.
type BackendFactory interface {
	Open(ctx context.Context, cfg config.Config, log *zap.SugaredLogger) (*Backend, error)
}

// SweepRunner fails abandoned jobs on demand and on a ticker.
type SweepRunner interface {
	server.Sweeper
	Run(ctx context.Context) error
}

// Backend is the wired pipeline. Close releases its connections and may be nil.
type Backend struct {
	Generator   server.Generator
	Regenerator server.Regenerator
	Records     server.RecordStore
	Jobs        server.JobReader
	Usage       server.UsageLister
	Audio       server.AudioSource
	Blobs       blob.Deleter
	Sweeper     SweepRunner
	DB          server.Pinger
	Close       func()
}

// EnvOption configures an Env.
type EnvOption func(*Env)

// WithStdin sets the stdin reader.
func WithStdin(r io.Reader) EnvOption {
	return func(e *Env) {
		e.Stdin = r
	}
}

// WithStdout sets the stdout writer.
func WithStdout(w io.Writer) EnvOption {
	return func(e *Env) {
		e.Stdout = w
	}
}

// WithStderr sets the stderr writer.
func WithStderr(w io.Writer) EnvOption {
	return func(e *Env) {
		e.Stderr = w
	}
}

// WithGetenv sets the environment variable getter.
func WithGetenv(fn func(string) string) EnvOption {
	return func(e *Env) {
		e.Getenv = fn
	}
}

// WithConfigLoader sets the config loader.
func WithConfigLoader(l ConfigLoader) EnvOption {
	return func(e *Env) {
		e.ConfigLoader = l
	}
}

// WithMigrator sets the migrator.
func WithMigrator(m Migrator) EnvOption {
	return func(e *Env) {
		e.Migrator = m
	}
}

// WithBackendFactory sets the backend factory.
func WithBackendFactory(f BackendFactory) EnvOption {
	return func(e *Env) {
		e.BackendFactory = f
	}
}

// WithLoggerFactory sets the logger constructor.
func WithLoggerFactory(fn func(debug bool) (*zap.SugaredLogger, error)) EnvOption {
	return func(e *Env) {
		e.NewLogger = fn
	}
}

// DefaultEnv returns an Env with production defaults.
func DefaultEnv() *Env {
	return &Env{
		Stdin:          os.Stdin,
		Stdout:         os.Stdout,
		Stderr:         os.Stderr,
		Getenv:         os.Getenv,
		ConfigLoader:   defaultConfigLoader{},
		Migrator:       defaultMigrator{},
		BackendFactory: defaultBackendFactory{},
		NewLogger:      newZapLogger,
	}
}

// NewEnv creates an Env with the given options applied to defaults.
func NewEnv(opts ...EnvOption) *Env {
	env := DefaultEnv()
	for _, opt := range opts {
		opt(env)
	}
	return env
}

// ---------------------------------------------------------------------------
// Default implementations - delegate to real packages
// ---------------------------------------------------------------------------

type defaultConfigLoader struct{}

func (defaultConfigLoader) Load(path string, getenv func(string) string) (config.Config, error) {
	return config.Load(path, getenv)
}

type defaultMigrator struct{}

func (defaultMigrator) Migrate(databaseURL string) (uint, error) {
	return store.Migrate(databaseURL)
}

func newZapLogger(debug bool) (*zap.SugaredLogger, error) {
	var (
		l   *zap.Logger
		err error
	)
	if debug {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return l.Sugar(), nil
}

// defaultBackendFactory connects Postgres and NATS and wires the pipeline.
type defaultBackendFactory struct{}

func (defaultBackendFactory) Open(ctx context.Context, cfg config.Config, log *zap.SugaredLogger) (*Backend, error) {
	pool, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
	}
	blobs, closeNATS, err := blob.Dial(cfg.NATS.URL, cfg.NATS.Bucket, cfg.PublicURL)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
	}

	generations := store.NewGenerationRepository(pool)
	jobs := store.NewJobRepository(pool)
	usage := store.NewUsageRepository(pool)
	synths := tts.BuildRegistry(cfg.Registry())
	if len(synths.Available()) == 0 {
		log.Warnw("no speech provider configured", "env", []string{config.EnvElevenLabsKey, config.EnvInworldKey})
	}

	segOpts := []segment.Option{
		segment.WithFallbackHook(func(err error) {
			log.Warnw("assisted segmentation discarded, packing paragraphs", "error", err)
		}),
	}
	if splitter, err := segment.NewOpenAISplitterFromKey(cfg.Secrets.OpenAIKey, segment.WithModel(cfg.Segmenter.Model)); err == nil {
		segOpts = append(segOpts, segment.WithSplitter(splitter))
	} else {
		log.Infow("assisted segmentation disabled", "reason", err)
	}

	opts := []narrate.Option{
		narrate.WithLogger(log),
		narrate.WithUsageStore(usage),
		narrate.WithPauseMarker(cfg.PauseMarker()),
	}
	return &Backend{
		Generator:   narrate.NewGenerator(segment.New(segOpts...), synths, blobs, generations, jobs, opts...),
		Regenerator: narrate.NewRegenerator(synths, blobs, generations, opts...),
		Records:     generations,
		Jobs:        jobs,
		Usage:       usage,
		Audio:       blobs,
		Blobs:       blobs,
		Sweeper:     narrate.NewSweeper(jobs, cfg.Jobs.StaleAfter, cfg.Jobs.SweepInterval, narrate.WithLogger(log)),
		DB:          pool,
		Close: func() {
			closeNATS()
			pool.Close()
		},
	}, nil
}

// Compile-time interface verification.
var (
	_ ConfigLoader   = defaultConfigLoader{}
	_ Migrator       = defaultMigrator{}
	_ BackendFactory = defaultBackendFactory{}
	_ SweepRunner    = (*narrate.Sweeper)(nil)
)
