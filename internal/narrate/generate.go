package narrate

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/alnah/go-narrate/internal/blob"
	"github.com/alnah/go-narrate/internal/chunkmap"
	"github.com/alnah/go-narrate/internal/model"
	"github.com/alnah/go-narrate/internal/tts"
)

// EventType tags a line of the generation stream.
type EventType string

// Event types. Every stream starts with EventJob and ends with exactly one
// of EventDone or EventError.
const (
	EventJob    EventType = "job"
	EventStatus EventType = "status"
	EventDone   EventType = "done"
	EventError  EventType = "error"
)

// Step names the pipeline stage reported by a status event.
type Step string

// Pipeline steps, in order.
const (
	StepSegmenting Step = "segmenting"
	StepChunking   Step = "chunking"
	StepGenerating Step = "generating"
	StepCombining  Step = "combining"
	StepUploading  Step = "uploading"
	StepSaving     Step = "saving"
)

// Progress counts synthesized segments.
type Progress struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

// Event is one line of the generation stream.
type Event struct {
	Type       EventType         `json:"type"`
	JobID      int64             `json:"jobId,omitempty"`
	Step       Step              `json:"step,omitempty"`
	Message    string            `json:"message,omitempty"`
	Progress   *Progress         `json:"progress,omitempty"`
	Entry      *model.Generation `json:"entry,omitempty"`
	Chunks     int               `json:"chunks,omitempty"`
	TotalChars int               `json:"totalChars,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// IsTerminal reports whether e ends the stream.
func (e Event) IsTerminal() bool {
	return e.Type == EventDone || e.Type == EventError
}

// Request asks for a narration of Script.
type Request struct {
	URL      string        `json:"url"`
	Title    string        `json:"title"`
	Script   string        `json:"script"`
	Provider tts.Provider  `json:"-"`
	VoiceID  string        `json:"voiceId"`
	Options  model.Options `json:"options"`
}

// Validate rejects requests that cannot start a job.
func (r Request) Validate() error {
	if err := validateSourceURL(r.URL); err != nil {
		return err
	}
	if strings.TrimSpace(r.Script) == "" {
		return fmt.Errorf("script is required: %w", ErrInvalidRequest)
	}
	if strings.TrimSpace(r.VoiceID) == "" {
		return fmt.Errorf("voice id is required: %w", ErrInvalidRequest)
	}
	return nil
}

func validateSourceURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("url is required: %w", ErrInvalidRequest)
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("malformed url %q: %w", raw, ErrInvalidRequest)
	}
	return nil
}

// Generator runs generation jobs.
type Generator struct {
	options
	segmenter   Segmenter
	synths      Synthesizers
	blobs       blob.Store
	generations GenerationStore
	jobs        JobStore
}

// NewGenerator creates a Generator.
func NewGenerator(seg Segmenter, synths Synthesizers, blobs blob.Store, generations GenerationStore, jobs JobStore, opts ...Option) *Generator {
	return &Generator{
		options:     newOptions(opts),
		segmenter:   seg,
		synths:      synths,
		blobs:       blobs,
		generations: generations,
		jobs:        jobs,
	}
}

// Generate validates req, resolves its provider, persists a pending job and
// starts the pipeline. Validation and configuration errors are returned
// before any job exists.
//
// The returned channel carries the job event first and a terminal event
// last, then closes. The caller must drain it: the pipeline blocks on a full
// channel. Cancelling ctx aborts the pipeline and fails the job; callers that
// must survive a disconnect pass a context detached with context.WithoutCancel.
func (g *Generator) Generate(ctx context.Context, req Request) (<-chan Event, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	synth, err := g.synths.Synthesizer(req.Provider)
	if err != nil {
		return nil, err
	}
	job, err := g.jobs.Create(ctx, req.URL, req.Title)
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	events := make(chan Event, 8)
	go g.run(ctx, job.ID, synth, req, events)
	return events, nil
}

func (g *Generator) run(ctx context.Context, jobID int64, synth tts.Synthesizer, req Request, events chan<- Event) {
	defer close(events)
	events <- Event{Type: EventJob, JobID: jobID}

	emit := func(step Step, progress *Progress, format string, args ...any) {
		events <- Event{Type: EventStatus, JobID: jobID, Step: step, Message: fmt.Sprintf(format, args...), Progress: progress}
	}

	rec, chars, err := g.pipeline(ctx, jobID, synth, req, emit)
	// Job state must reach a terminal status even when ctx is gone.
	final := context.WithoutCancel(ctx)
	if err != nil {
		g.log.Errorw("generation failed", "job", jobID, "url", req.URL, "error", err)
		g.transition(final, jobID, model.JobError, err.Error(), nil)
		events <- Event{Type: EventError, JobID: jobID, Error: err.Error()}
		return
	}

	g.transition(final, jobID, model.JobDone, "", &rec.ID)
	g.refreshUsage(final, synth)
	g.log.Infow("generation done", "job", jobID, "record", rec.ID, "label", rec.Label, "chunks", len(rec.ChunkMap))
	events <- Event{Type: EventDone, JobID: jobID, Entry: rec, Chunks: len(rec.ChunkMap), TotalChars: chars}
}

type emitFunc func(step Step, progress *Progress, format string, args ...any)

func (g *Generator) pipeline(ctx context.Context, jobID int64, synth tts.Synthesizer, req Request, emit emitFunc) (*model.Generation, int, error) {
	limit := synth.MaxChars() - utf8.RuneCountInString(g.pauseMarker)
	emit(StepSegmenting, nil, "Splitting script for %s (limit %d chars)", synth.Provider(), limit)
	segments := g.segmenter.Segment(ctx, req.Script, limit)

	total := len(segments)
	chars := 0
	for _, s := range segments {
		chars += utf8.RuneCountInString(s)
	}
	emit(StepChunking, &Progress{Current: 0, Total: total}, "Split into %d segments", total)

	g.transition(ctx, jobID, model.JobGenerating, "", nil)
	pieces := make([]chunkmap.Piece, 0, total)
	for i, text := range segments {
		emit(StepGenerating, &Progress{Current: i + 1, Total: total}, "Synthesizing segment %d of %d", i+1, total)
		audio, err := synth.Synthesize(ctx, text+g.pauseMarker, req.VoiceID, req.Options)
		if err != nil {
			return nil, 0, fmt.Errorf("segment %d: %w", i, err)
		}
		pieces = append(pieces, chunkmap.Piece{Text: text, Audio: audio})
	}

	emit(StepCombining, nil, "Combining %d segments", total)
	entries, combined := chunkmap.Build(pieces)

	g.transition(ctx, jobID, model.JobUploading, "", nil)
	emit(StepUploading, nil, "Uploading audio")
	count, err := g.generations.CountByURL(ctx, req.URL)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count versions: %w", err)
	}
	label := Label(g.now(), req.Title, count+1)

	rec := &model.Generation{
		URL:      req.URL,
		Title:    req.Title,
		Script:   strings.TrimSpace(req.Script),
		Provider: synth.Provider().String(),
		Model:    synth.Model(),
		VoiceID:  req.VoiceID,
		Options:  req.Options,
		Label:    label,
		ChunkMap: entries,
	}
	if err := g.upload(ctx, rec, pieces, combined); err != nil {
		return nil, 0, err
	}

	emit(StepSaving, nil, "Saving %s", label)
	if err := g.generations.Create(ctx, rec); err != nil {
		blob.BestEffortDeleteAll(context.WithoutCancel(ctx), g.blobs, rec.BlobURLs(), g.log)
		return nil, 0, fmt.Errorf("failed to save generation: %w", err)
	}
	return rec, chars, nil
}

// upload stores every segment and the combined asset and fills their URLs
// into rec. On failure, blobs already stored by this call are deleted.
func (g *Generator) upload(ctx context.Context, rec *model.Generation, pieces []chunkmap.Piece, combined []byte) error {
	for i, p := range pieces {
		u, err := g.blobs.Put(ctx, segmentName(rec.Label, i, g.newID()), p.Audio, audioContentType)
		if err != nil {
			blob.BestEffortDeleteAll(context.WithoutCancel(ctx), g.blobs, rec.BlobURLs(), g.log)
			return fmt.Errorf("failed to upload segment %d: %w", i, err)
		}
		rec.ChunkMap[i].BlobURL = u
	}
	u, err := g.blobs.Put(ctx, combinedName(rec.Label, g.newID()), combined, audioContentType)
	if err != nil {
		blob.BestEffortDeleteAll(context.WithoutCancel(ctx), g.blobs, rec.BlobURLs(), g.log)
		return fmt.Errorf("failed to upload combined audio: %w", err)
	}
	rec.AudioURL = u
	return nil
}

// transition records a job status change. Failures are logged only: the
// stream outcome stands on its own.
func (g *Generator) transition(ctx context.Context, jobID int64, status model.JobStatus, message string, resultID *int64) {
	if err := g.jobs.Transition(ctx, jobID, status, message, resultID); err != nil {
		g.log.Warnw("job status update failed", "job", jobID, "status", status, "error", err)
	}
}

// refreshUsage caches the provider's usage figures when it reports them.
func (g *Generator) refreshUsage(ctx context.Context, synth tts.Synthesizer) {
	reporter, ok := synth.(tts.UsageReporter)
	if !ok || g.usage == nil {
		return
	}
	u, err := reporter.Usage(ctx)
	if err == nil {
		err = g.usage.Save(ctx, u)
	}
	if err != nil {
		g.log.Warnw("usage refresh failed", "provider", synth.Provider(), "error", err)
	}
}
