package narrate

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/alnah/go-narrate/internal/blob"
	"github.com/alnah/go-narrate/internal/chunkmap"
	"github.com/alnah/go-narrate/internal/model"
	"github.com/alnah/go-narrate/internal/mp3"
	"github.com/alnah/go-narrate/internal/tts"
)

// maxParallelFetch bounds concurrent blob reads while rebuilding the combined asset.
const maxParallelFetch = 4

// RegenerateRequest asks to replace the text of one segment of a record.
// Empty VoiceID and nil Options keep the record's own settings.
type RegenerateRequest struct {
	RecordID     int64          `json:"recordId"`
	SegmentIndex int            `json:"segmentIndex"`
	NewText      string         `json:"newText"`
	VoiceID      string         `json:"voiceId,omitempty"`
	Options      *model.Options `json:"options,omitempty"`
}

// Validate rejects requests that cannot target a segment.
func (r RegenerateRequest) Validate() error {
	if r.RecordID <= 0 {
		return fmt.Errorf("record id must be positive: %w", ErrInvalidRequest)
	}
	if r.SegmentIndex < 0 {
		return fmt.Errorf("segment index must not be negative: %w", ErrInvalidRequest)
	}
	if strings.TrimSpace(r.NewText) == "" {
		return fmt.Errorf("new text is required: %w", ErrInvalidRequest)
	}
	return nil
}

// Regenerator replaces single segments of stored narrations.
type Regenerator struct {
	options
	synths      Synthesizers
	blobs       blob.Store
	generations GenerationStore
}

// NewRegenerator creates a Regenerator.
func NewRegenerator(synths Synthesizers, blobs blob.Store, generations GenerationStore, opts ...Option) *Regenerator {
	return &Regenerator{
		options:     newOptions(opts),
		synths:      synths,
		blobs:       blobs,
		generations: generations,
	}
}

// Regenerate synthesizes new audio for one segment, rebuilds the combined
// asset from the stored segments, and commits the new chunk map, combined
// URL and script in one write. The record is untouched if any step before
// that write fails. Superseded blobs are deleted after the write.
func (r *Regenerator) Regenerate(ctx context.Context, req RegenerateRequest) (*model.Generation, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	rec, err := r.generations.Get(ctx, req.RecordID)
	if err != nil {
		return nil, err
	}
	idx := req.SegmentIndex
	if idx >= len(rec.ChunkMap) {
		return nil, fmt.Errorf("record %d has %d segments, no index %d: %w", rec.ID, len(rec.ChunkMap), idx, ErrSegmentNotFound)
	}

	provider, err := tts.ParseProvider(rec.Provider)
	if err != nil {
		return nil, err
	}
	synth, err := r.synths.Synthesizer(provider)
	if err != nil {
		return nil, err
	}

	text := strings.TrimSpace(req.NewText)
	limit := synth.MaxChars() - utf8.RuneCountInString(r.pauseMarker)
	if n := utf8.RuneCountInString(text); n > limit {
		return nil, fmt.Errorf("%d chars, limit %d: %w", n, limit, tts.ErrTextTooLong)
	}
	voiceID := rec.VoiceID
	if req.VoiceID != "" {
		voiceID = req.VoiceID
	}
	opts := rec.Options
	if req.Options != nil {
		opts = *req.Options
	}

	audio, err := synth.Synthesize(ctx, text+r.pauseMarker, voiceID, opts)
	if err != nil {
		return nil, fmt.Errorf("segment %d: %w", idx, err)
	}

	cleanup := context.WithoutCancel(ctx)
	segURL, err := r.blobs.Put(ctx, segmentName(rec.Label, idx, r.newID()), audio, audioContentType)
	if err != nil {
		return nil, fmt.Errorf("failed to upload segment %d: %w", idx, err)
	}

	buffers, err := r.fetchSegments(ctx, rec.ChunkMap, idx, audio)
	if err != nil {
		blob.BestEffortDelete(cleanup, r.blobs, segURL, r.log)
		return nil, err
	}
	fullURL, err := r.blobs.Put(ctx, combinedName(rec.Label, r.newID()), mp3.Concat(buffers...), audioContentType)
	if err != nil {
		blob.BestEffortDelete(cleanup, r.blobs, segURL, r.log)
		return nil, fmt.Errorf("failed to upload combined audio: %w", err)
	}

	entries, _ := chunkmap.Replace(rec.ChunkMap, idx, text, mp3.EstimateDurationMs(audio), segURL)
	updated := *rec
	updated.ChunkMap = entries
	updated.AudioURL = fullURL
	updated.Script = chunkmap.Script(entries)

	if err := r.generations.UpdateChunkMap(ctx, &updated); err != nil {
		blob.BestEffortDeleteAll(cleanup, r.blobs, []string{fullURL, segURL}, r.log)
		return nil, fmt.Errorf("failed to save regenerated segment: %w", err)
	}

	blob.BestEffortDeleteAll(cleanup, r.blobs, []string{rec.ChunkMap[idx].BlobURL, rec.AudioURL}, r.log)
	r.log.Infow("segment regenerated", "record", rec.ID, "index", idx, "durationMs", entries[idx].DurationMs)
	return &updated, nil
}

// fetchSegments returns the audio of every segment in index order, using
// replacement for segment idx and the stored blobs for the others.
func (r *Regenerator) fetchSegments(ctx context.Context, entries []model.ChunkEntry, idx int, replacement []byte) ([][]byte, error) {
	buffers := make([][]byte, len(entries))
	buffers[idx] = replacement

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelFetch)
	for i, e := range entries {
		if i == idx {
			continue
		}
		g.Go(func() error {
			data, err := r.blobs.Get(ctx, e.BlobURL)
			if err != nil {
				return fmt.Errorf("failed to fetch segment %d: %w", i, err)
			}
			buffers[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return buffers, nil
}
