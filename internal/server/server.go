// Package server exposes the narration pipeline over HTTP: the streamed
// generation endpoint, job polling, segment regeneration, record browsing and
// the audio assets themselves.
package server

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/alnah/go-narrate/internal/blob"
	"github.com/alnah/go-narrate/internal/model"
	"github.com/alnah/go-narrate/internal/narrate"
	"github.com/alnah/go-narrate/internal/store"
)

// maxBodyBytes bounds request bodies. Scripts are the largest payload.
const maxBodyBytes = 4 << 20

// Generator starts generation jobs.
type Generator interface {
	Generate(ctx context.Context, req narrate.Request) (<-chan narrate.Event, error)
}

// Regenerator replaces one segment of a record.
type Regenerator interface {
	Regenerate(ctx context.Context, req narrate.RegenerateRequest) (*model.Generation, error)
}

// RecordStore reads and deletes generation records.
type RecordStore interface {
	Get(ctx context.Context, id int64) (*model.Generation, error)
	ListByURL(ctx context.Context, url string) ([]*model.Generation, error)
	Delete(ctx context.Context, id int64) error
}

// JobReader reads generation jobs.
type JobReader interface {
	Get(ctx context.Context, id int64) (*model.Job, error)
	ListActive(ctx context.Context, url string) ([]*model.Job, error)
}

// UsageLister lists cached provider usage.
type UsageLister interface {
	List(ctx context.Context) ([]model.Usage, error)
}

// AudioSource reads stored audio by object name.
type AudioSource interface {
	Open(ctx context.Context, name string) (data []byte, contentType string, err error)
}

// Sweeper fails abandoned jobs, throttled.
type Sweeper interface {
	MaybeSweep(ctx context.Context) bool
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Compile-time interface compliance checks.
var (
	_ Generator   = (*narrate.Generator)(nil)
	_ Regenerator = (*narrate.Regenerator)(nil)
	_ RecordStore = (*store.GenerationRepository)(nil)
	_ JobReader   = (*store.JobRepository)(nil)
	_ UsageLister = (*store.UsageRepository)(nil)
	_ AudioSource = (*blob.NATSStore)(nil)
	_ Sweeper     = (*narrate.Sweeper)(nil)
)

// Deps are the collaborators of a Server. Sweeper may be nil.
type Deps struct {
	Generator   Generator
	Regenerator Regenerator
	Records     RecordStore
	Jobs        JobReader
	Usage       UsageLister
	Audio       AudioSource
	Blobs       blob.Deleter
	Sweeper     Sweeper
	DB          Pinger
	Logger      *zap.SugaredLogger
}

// Server routes HTTP requests to the pipeline.
type Server struct {
	Deps
	log *zap.SugaredLogger
}

// New creates a Server.
func New(d Deps) *Server {
	log := d.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Server{Deps: d, log: log}
}

// Handler returns the routed handler wrapped in request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/generations", s.handleGenerate)
	mux.HandleFunc("GET /api/generations", s.handleListGenerations)
	mux.HandleFunc("GET /api/generations/{id}", s.handleGetGeneration)
	mux.HandleFunc("DELETE /api/generations/{id}", s.handleDeleteGeneration)
	mux.HandleFunc("POST /api/regenerate", s.handleRegenerate)
	mux.HandleFunc("GET /api/jobs", s.handleJobs)
	mux.HandleFunc("GET /api/usage", s.handleUsage)
	mux.HandleFunc("GET /audio/{name...}", s.handleAudio)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return loggingMiddleware(mux, s.log)
}
