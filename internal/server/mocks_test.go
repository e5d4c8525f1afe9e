package server_test

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/alnah/go-narrate/internal/blob"
	"github.com/alnah/go-narrate/internal/model"
	"github.com/alnah/go-narrate/internal/narrate"
	"github.com/alnah/go-narrate/internal/store"
)

// ---------------------------------------------------------------------------
// Mock Generator
// ---------------------------------------------------------------------------

type mockGenerator struct {
	Err    error
	Events []narrate.Event

	mu       sync.Mutex
	requests []narrate.Request
	ctxErr   error
	drained  chan struct{}
}

func newMockGenerator(events ...narrate.Event) *mockGenerator {
	return &mockGenerator{Events: events, drained: make(chan struct{})}
}

// Generate sends Events on an unbuffered channel, so it only finishes when
// the consumer reads every event.
func (m *mockGenerator) Generate(ctx context.Context, req narrate.Request) (<-chan narrate.Event, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	ch := make(chan narrate.Event)
	go func() {
		defer close(m.drained)
		defer close(ch)
		for _, e := range m.Events {
			ch <- e
		}
		m.mu.Lock()
		m.ctxErr = ctx.Err()
		m.mu.Unlock()
	}()
	return ch, nil
}

func (m *mockGenerator) Requests() []narrate.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]narrate.Request(nil), m.requests...)
}

func (m *mockGenerator) CtxErr() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ctxErr
}

// ---------------------------------------------------------------------------
// Mock Regenerator
// ---------------------------------------------------------------------------

type mockRegenerator struct {
	RegenerateFunc func(req narrate.RegenerateRequest) (*model.Generation, error)
}

func (m *mockRegenerator) Regenerate(_ context.Context, req narrate.RegenerateRequest) (*model.Generation, error) {
	if m.RegenerateFunc != nil {
		return m.RegenerateFunc(req)
	}
	return nil, errors.New("not configured")
}

// ---------------------------------------------------------------------------
// Mock stores
// ---------------------------------------------------------------------------

type mockRecords struct {
	DeleteErr error

	mu      sync.Mutex
	records map[int64]*model.Generation
	deleted []int64
}

func newMockRecords(recs ...*model.Generation) *mockRecords {
	m := &mockRecords{records: map[int64]*model.Generation{}}
	for _, r := range recs {
		m.records[r.ID] = r
	}
	return m
}

func (m *mockRecords) Get(_ context.Context, id int64) (*model.Generation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok {
		return nil, fmt.Errorf("get generation %d: %w", id, store.ErrNotFound)
	}
	return r, nil
}

func (m *mockRecords) ListByURL(_ context.Context, url string) ([]*model.Generation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*model.Generation{}
	for _, r := range m.records {
		if r.URL == url {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockRecords) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	delete(m.records, id)
	m.deleted = append(m.deleted, id)
	return nil
}

type mockJobs struct {
	jobs map[int64]*model.Job
}

func (m *mockJobs) Get(_ context.Context, id int64) (*model.Job, error) {
	j, ok := m.jobs[id]
	if !ok {
		return nil, fmt.Errorf("get job %d: %w", id, store.ErrNotFound)
	}
	return j, nil
}

func (m *mockJobs) ListActive(_ context.Context, url string) ([]*model.Job, error) {
	out := []*model.Job{}
	for _, j := range m.jobs {
		if j.URL == url && !j.Status.IsTerminal() {
			out = append(out, j)
		}
	}
	return out, nil
}

type mockUsage struct {
	usage []model.Usage
}

func (m *mockUsage) List(context.Context) ([]model.Usage, error) {
	return m.usage, nil
}

type mockAudio struct {
	objects map[string][]byte
}

func (m *mockAudio) Open(_ context.Context, name string) ([]byte, string, error) {
	data, ok := m.objects[name]
	if !ok {
		return nil, "", fmt.Errorf("%q: %w", name, blob.ErrNotFound)
	}
	return data, "audio/mpeg", nil
}

type mockDeleter struct {
	mu   sync.Mutex
	urls []string
}

func (m *mockDeleter) Delete(_ context.Context, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.urls = append(m.urls, url)
	return nil
}

func (m *mockDeleter) URLs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.urls...)
}

type mockSweeper struct {
	mu    sync.Mutex
	calls int
}

func (m *mockSweeper) MaybeSweep(context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return true
}

func (m *mockSweeper) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockPinger struct {
	err error
}

func (m mockPinger) Ping(context.Context) error { return m.err }
