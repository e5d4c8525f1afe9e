package cli

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/alnah/go-narrate/internal/config"
	"github.com/alnah/go-narrate/internal/model"
	"github.com/alnah/go-narrate/internal/narrate"
	"github.com/alnah/go-narrate/internal/store"
)

// ---------------------------------------------------------------------------
// Mock ConfigLoader
// ---------------------------------------------------------------------------

type mockConfigLoader struct {
	LoadFunc func(path string) (config.Config, error)

	mu    sync.Mutex
	paths []string
}

func (m *mockConfigLoader) Load(path string, _ func(string) string) (config.Config, error) {
	m.mu.Lock()
	m.paths = append(m.paths, path)
	m.mu.Unlock()

	if m.LoadFunc != nil {
		return m.LoadFunc(path)
	}
	cfg := config.Default()
	cfg.ListenAddr = "127.0.0.1:0"
	return cfg, nil
}

func (m *mockConfigLoader) Paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.paths...)
}

// ---------------------------------------------------------------------------
// Mock Migrator
// ---------------------------------------------------------------------------

type mockMigrator struct {
	MigrateFunc func(databaseURL string) (uint, error)

	mu   sync.Mutex
	urls []string
}

func (m *mockMigrator) Migrate(databaseURL string) (uint, error) {
	m.mu.Lock()
	m.urls = append(m.urls, databaseURL)
	m.mu.Unlock()

	if m.MigrateFunc != nil {
		return m.MigrateFunc(databaseURL)
	}
	return 1, nil
}

func (m *mockMigrator) URLs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.urls...)
}

// ---------------------------------------------------------------------------
// Mock BackendFactory
// ---------------------------------------------------------------------------

type mockBackendFactory struct {
	OpenErr error

	generator   *mockGenerator
	regenerator *mockRegenerator
	jobs        *mockJobs
	sweeper     *mockSweeper

	mu     sync.Mutex
	opened []config.Config
	closed int
}

func newMockBackendFactory() *mockBackendFactory {
	return &mockBackendFactory{
		generator:   &mockGenerator{},
		regenerator: &mockRegenerator{},
		jobs:        &mockJobs{},
		sweeper:     &mockSweeper{},
	}
}

func (m *mockBackendFactory) Open(_ context.Context, cfg config.Config, _ *zap.SugaredLogger) (*Backend, error) {
	m.mu.Lock()
	m.opened = append(m.opened, cfg)
	m.mu.Unlock()

	if m.OpenErr != nil {
		return nil, m.OpenErr
	}
	return &Backend{
		Generator:   m.generator,
		Regenerator: m.regenerator,
		Records:     mockRecords{},
		Jobs:        m.jobs,
		Usage:       mockUsage{},
		Audio:       mockAudio{},
		Blobs:       mockBlobs{},
		Sweeper:     m.sweeper,
		DB:          mockPinger{},
		Close: func() {
			m.mu.Lock()
			m.closed++
			m.mu.Unlock()
		},
	}, nil
}

func (m *mockBackendFactory) Opened() []config.Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]config.Config(nil), m.opened...)
}

func (m *mockBackendFactory) Closed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// ---------------------------------------------------------------------------
// Mock Generator
// ---------------------------------------------------------------------------

type mockGenerator struct {
	Events      []narrate.Event
	GenerateErr error

	mu       sync.Mutex
	requests []narrate.Request
}

func (m *mockGenerator) Generate(_ context.Context, req narrate.Request) (<-chan narrate.Event, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.GenerateErr != nil {
		return nil, m.GenerateErr
	}
	ch := make(chan narrate.Event, len(m.Events))
	for _, ev := range m.Events {
		ch <- ev
	}
	close(ch)
	return ch, nil
}

func (m *mockGenerator) Requests() []narrate.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]narrate.Request(nil), m.requests...)
}

// ---------------------------------------------------------------------------
// Mock Regenerator
// ---------------------------------------------------------------------------

type mockRegenerator struct {
	RegenerateFunc func(req narrate.RegenerateRequest) (*model.Generation, error)

	mu       sync.Mutex
	requests []narrate.RegenerateRequest
}

func (m *mockRegenerator) Regenerate(_ context.Context, req narrate.RegenerateRequest) (*model.Generation, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.RegenerateFunc != nil {
		return m.RegenerateFunc(req)
	}
	return sampleRecord(), nil
}

func (m *mockRegenerator) Requests() []narrate.RegenerateRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]narrate.RegenerateRequest(nil), m.requests...)
}

// ---------------------------------------------------------------------------
// Mock JobReader + Sweeper
// ---------------------------------------------------------------------------

type mockJobs struct {
	GetFunc        func(id int64) (*model.Job, error)
	ListActiveFunc func(url string) ([]*model.Job, error)
}

func (m *mockJobs) Get(_ context.Context, id int64) (*model.Job, error) {
	if m.GetFunc != nil {
		return m.GetFunc(id)
	}
	return nil, store.ErrNotFound
}

func (m *mockJobs) ListActive(_ context.Context, url string) ([]*model.Job, error) {
	if m.ListActiveFunc != nil {
		return m.ListActiveFunc(url)
	}
	return []*model.Job{}, nil
}

type mockSweeper struct {
	mu         sync.Mutex
	maybeCalls int
	runCalls   int
}

func (m *mockSweeper) MaybeSweep(context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.maybeCalls++
	return true
}

func (m *mockSweeper) Run(ctx context.Context) error {
	m.mu.Lock()
	m.runCalls++
	m.mu.Unlock()
	<-ctx.Done()
	return nil
}

func (m *mockSweeper) MaybeCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maybeCalls
}

func (m *mockSweeper) RunCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runCalls
}

// ---------------------------------------------------------------------------
// Inert collaborators for the server wiring
// ---------------------------------------------------------------------------

type mockRecords struct{}

func (mockRecords) Get(context.Context, int64) (*model.Generation, error) {
	return sampleRecord(), nil
}

func (mockRecords) ListByURL(context.Context, string) ([]*model.Generation, error) {
	return []*model.Generation{sampleRecord()}, nil
}

func (mockRecords) Delete(context.Context, int64) error { return nil }

type mockUsage struct{}

func (mockUsage) List(context.Context) ([]model.Usage, error) { return nil, nil }

type mockAudio struct{}

func (mockAudio) Open(context.Context, string) ([]byte, string, error) {
	return []byte("ID3"), "audio/mpeg", nil
}

type mockBlobs struct{}

func (mockBlobs) Delete(context.Context, string) error { return nil }

type mockPinger struct{}

func (mockPinger) Ping(context.Context) error { return nil }

// ---------------------------------------------------------------------------
// Fixtures
// ---------------------------------------------------------------------------

func sampleRecord() *model.Generation {
	return &model.Generation{
		ID:       42,
		URL:      "https://blog.example/post",
		Title:    "Hello World",
		AudioURL: "http://localhost:8080/audio/narrations/2026-10-18-hello-world-v1/full-abcd1234.mp3",
		Provider: "elevenlabs",
		VoiceID:  "voice-1",
		Label:    "2026-10-18-hello-world-v1",
		ChunkMap: []model.ChunkEntry{
			{Index: 0, Text: "First.", StartTime: 0, EndTime: 1.5, DurationMs: 1500, BlobURL: "http://localhost:8080/audio/a.mp3"},
			{Index: 1, Text: "Second.", StartTime: 1.5, EndTime: 4, DurationMs: 2500, BlobURL: "http://localhost:8080/audio/b.mp3"},
		},
	}
}
