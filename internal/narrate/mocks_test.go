package narrate_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/alnah/go-narrate/internal/blob"
	"github.com/alnah/go-narrate/internal/model"
	"github.com/alnah/go-narrate/internal/store"
	"github.com/alnah/go-narrate/internal/tts"
)

// frame returns an n-byte MP3 buffer at 128 kbps: n*8/128 ms of audio.
func frame(n int) []byte {
	buf := make([]byte, n)
	copy(buf, []byte{0xFF, 0xFB, 0x90, 0x00})
	return buf
}

// withID3 prefixes buf with a fake tag that contains no frame sync.
func withID3(buf []byte) []byte {
	return append([]byte("ID3\x04\x00\x00\x00\x00\x00\x0aTAGDATA..."), buf...)
}

// ---------------------------------------------------------------------------
// Mock Synthesizer + registry
// ---------------------------------------------------------------------------

type mockSynth struct {
	provider tts.Provider
	maxChars int

	// AudioFunc returns audio for the nth call (0-based). Defaults to frame(1600).
	AudioFunc func(n int, text string) ([]byte, error)
	UsageFunc func(ctx context.Context) (model.Usage, error)

	mu    sync.Mutex
	texts []string
}

func (m *mockSynth) Synthesize(_ context.Context, text, _ string, _ model.Options) ([]byte, error) {
	m.mu.Lock()
	n := len(m.texts)
	m.texts = append(m.texts, text)
	m.mu.Unlock()

	if m.AudioFunc != nil {
		return m.AudioFunc(n, text)
	}
	return frame(1600), nil
}

func (m *mockSynth) MaxChars() int          { return m.maxChars }
func (m *mockSynth) Provider() tts.Provider { return m.provider }
func (m *mockSynth) Model() string          { return "test-model" }

func (m *mockSynth) Texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.texts...)
}

// reportingSynth also reports usage.
type reportingSynth struct {
	*mockSynth
}

func (r reportingSynth) Usage(ctx context.Context) (model.Usage, error) {
	if r.UsageFunc != nil {
		return r.UsageFunc(ctx)
	}
	return model.Usage{Provider: r.provider.String(), CharacterCount: 10, CharacterLimit: 100}, nil
}

type mockRegistry struct {
	synth tts.Synthesizer
}

func (m mockRegistry) Synthesizer(p tts.Provider) (tts.Synthesizer, error) {
	if m.synth == nil || (!p.IsZero() && p != m.synth.Provider()) {
		return nil, fmt.Errorf("%s: %w", p, tts.ErrMissingCredentials)
	}
	return m.synth, nil
}

// ---------------------------------------------------------------------------
// Mock blob store
// ---------------------------------------------------------------------------

const blobBase = "mem://audio/"

type memBlobs struct {
	// PutErr, when set, is consulted before each Put with the 0-based call number.
	PutErr    func(n int, name string) error
	DeleteErr error

	mu      sync.Mutex
	objects map[string][]byte
	puts    int
	deleted []string
}

func newMemBlobs() *memBlobs {
	return &memBlobs{objects: map[string][]byte{}}
}

func (m *memBlobs) Put(_ context.Context, name string, data []byte, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.puts
	m.puts++
	if m.PutErr != nil {
		if err := m.PutErr(n, name); err != nil {
			return "", err
		}
	}
	url := blobBase + name
	if _, ok := m.objects[url]; ok {
		return "", blob.ErrExists
	}
	m.objects[url] = append([]byte(nil), data...)
	return url, nil
}

func (m *memBlobs) Get(_ context.Context, url string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[url]
	if !ok {
		return nil, fmt.Errorf("%s: %w", url, blob.ErrNotFound)
	}
	return data, nil
}

func (m *memBlobs) Delete(_ context.Context, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, url)
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	delete(m.objects, url)
	return nil
}

func (m *memBlobs) Has(url string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[url]
	return ok
}

func (m *memBlobs) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

func (m *memBlobs) Deleted() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.deleted...)
}

// seed stores data under name without counting a Put.
func (m *memBlobs) seed(name string, data []byte) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[blobBase+name] = data
	return blobBase + name
}

// ---------------------------------------------------------------------------
// Mock stores
// ---------------------------------------------------------------------------

type memGenerations struct {
	CreateErr error
	UpdateErr error

	mu      sync.Mutex
	nextID  int64
	records map[int64]model.Generation
	updates int
}

func newMemGenerations() *memGenerations {
	return &memGenerations{nextID: 1, records: map[int64]model.Generation{}}
}

func (m *memGenerations) Create(_ context.Context, g *model.Generation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return m.CreateErr
	}
	g.ID = m.nextID
	m.nextID++
	g.CreatedAt = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	g.UpdatedAt = g.CreatedAt
	m.records[g.ID] = cloneGeneration(*g)
	return nil
}

func (m *memGenerations) Get(_ context.Context, id int64) (*model.Generation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.records[id]
	if !ok {
		return nil, fmt.Errorf("get generation %d: %w", id, store.ErrNotFound)
	}
	g = cloneGeneration(g)
	return &g, nil
}

func (m *memGenerations) CountByURL(_ context.Context, url string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, g := range m.records {
		if g.URL == url {
			n++
		}
	}
	return n, nil
}

func (m *memGenerations) UpdateChunkMap(_ context.Context, g *model.Generation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpdateErr != nil {
		return m.UpdateErr
	}
	cur, ok := m.records[g.ID]
	if !ok {
		return store.ErrNotFound
	}
	cur.ChunkMap = append([]model.ChunkEntry(nil), g.ChunkMap...)
	cur.AudioURL = g.AudioURL
	cur.Script = g.Script
	m.records[g.ID] = cur
	m.updates++
	return nil
}

func (m *memGenerations) Record(id int64) model.Generation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneGeneration(m.records[id])
}

func (m *memGenerations) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

func cloneGeneration(g model.Generation) model.Generation {
	g.ChunkMap = append([]model.ChunkEntry(nil), g.ChunkMap...)
	return g
}

type transition struct {
	Status   model.JobStatus
	Message  string
	ResultID *int64
}

type memJobs struct {
	CreateErr     error
	TransitionErr error
	SweepFunc     func(cutoff time.Time, message string) (int64, error)

	mu          sync.Mutex
	created     int
	transitions []transition
	sweeps      []time.Time
}

func (m *memJobs) Create(_ context.Context, url, title string) (*model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	m.created++
	return &model.Job{ID: int64(100 + m.created), URL: url, Title: title, Status: model.JobPending}, nil
}

func (m *memJobs) Transition(_ context.Context, _ int64, status model.JobStatus, message string, resultID *int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitions = append(m.transitions, transition{status, message, resultID})
	return m.TransitionErr
}

func (m *memJobs) SweepStale(_ context.Context, cutoff time.Time, message string) (int64, error) {
	m.mu.Lock()
	m.sweeps = append(m.sweeps, cutoff)
	m.mu.Unlock()
	if m.SweepFunc != nil {
		return m.SweepFunc(cutoff, message)
	}
	return 0, nil
}

func (m *memJobs) Created() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.created
}

func (m *memJobs) Transitions() []transition {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]transition(nil), m.transitions...)
}

func (m *memJobs) Sweeps() []time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]time.Time(nil), m.sweeps...)
}

type memUsage struct {
	mu    sync.Mutex
	saved []model.Usage
}

func (m *memUsage) Save(_ context.Context, u model.Usage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, u)
	return nil
}

func (m *memUsage) Saved() []model.Usage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Usage(nil), m.saved...)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

var errBoom = errors.New("boom")

// paragraphs returns n paragraphs of whole sentences, each just under 500 chars.
func paragraphs(n int) string {
	sentence := "The quick brown fox jumps over the lazy dog. "
	para := strings.TrimSpace(strings.Repeat(sentence, 11))
	parts := make([]string, n)
	for i := range parts {
		parts[i] = para
	}
	return strings.Join(parts, "\n\n")
}
