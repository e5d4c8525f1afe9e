package narrate_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/alnah/go-narrate/internal/chunkmap"
	"github.com/alnah/go-narrate/internal/model"
	"github.com/alnah/go-narrate/internal/mp3"
	"github.com/alnah/go-narrate/internal/narrate"
	"github.com/alnah/go-narrate/internal/store"
	"github.com/alnah/go-narrate/internal/tts"
)

type regenHarness struct {
	synth       *mockSynth
	blobs       *memBlobs
	generations *memGenerations
	regen       *narrate.Regenerator
	audio       [][]byte
	before      model.Generation
}

// newRegenHarness stores a 3-segment record whose segment 0 starts with a tag.
func newRegenHarness(t *testing.T) *regenHarness {
	t.Helper()
	h := &regenHarness{
		synth:       &mockSynth{provider: tts.ProviderElevenLabs, maxChars: 4000},
		blobs:       newMemBlobs(),
		generations: newMemGenerations(),
		audio:       [][]byte{withID3(frame(1600)), frame(3200), frame(4800)},
	}
	h.synth.AudioFunc = func(int, string) ([]byte, error) { return frame(800), nil }

	texts := []string{"First part.", "Second part.", "Third part."}
	pieces := make([]chunkmap.Piece, len(texts))
	for i := range texts {
		pieces[i] = chunkmap.Piece{Text: texts[i], Audio: h.audio[i]}
	}
	entries, combined := chunkmap.Build(pieces)
	label := "2026-10-18-hello-world-v1"
	for i := range entries {
		entries[i].BlobURL = h.blobs.seed(narrate.SegmentName(label, i, "00000000"), h.audio[i])
	}
	rec := &model.Generation{
		URL:      "https://blog.example/posts/hello",
		Title:    "Hello World",
		Script:   chunkmap.Script(entries),
		AudioURL: h.blobs.seed(narrate.CombinedName(label, "00000000"), combined),
		Provider: "elevenlabs",
		VoiceID:  "voice-1",
		Label:    label,
		ChunkMap: entries,
	}
	if err := h.generations.Create(context.Background(), rec); err != nil {
		t.Fatal(err)
	}
	h.before = h.generations.Record(rec.ID)

	ids := 0
	h.regen = narrate.NewRegenerator(mockRegistry{synth: h.synth}, h.blobs, h.generations,
		narrate.WithIDSource(func() string {
			ids++
			return []string{"", "11111111", "22222222", "33333333"}[ids%4]
		}),
	)
	return h
}

func (h *regenHarness) request(index int, text string) narrate.RegenerateRequest {
	return narrate.RegenerateRequest{RecordID: h.before.ID, SegmentIndex: index, NewText: text}
}

// ---------------------------------------------------------------------------
// TestRegenerate
// ---------------------------------------------------------------------------

func TestRegenerate_MiddleSegment(t *testing.T) {
	t.Parallel()

	h := newRegenHarness(t)

	got, err := h.regen.Regenerate(context.Background(), h.request(1, "  Short replacement.\n"))
	if err != nil {
		t.Fatalf("Regenerate() error = %v", err)
	}

	if len(got.ChunkMap) != 3 {
		t.Fatalf("chunk map length = %d, want 3", len(got.ChunkMap))
	}
	if got.ChunkMap[0] != h.before.ChunkMap[0] {
		t.Errorf("entry 0 changed: %+v -> %+v", h.before.ChunkMap[0], got.ChunkMap[0])
	}
	if got.ChunkMap[2].Text != h.before.ChunkMap[2].Text || got.ChunkMap[2].BlobURL != h.before.ChunkMap[2].BlobURL {
		t.Errorf("entry 2 text or blob changed")
	}
	wantScript := "First part.\n\nShort replacement.\n\nThird part."
	if got.Script != wantScript {
		t.Errorf("Script = %q, want %q", got.Script, wantScript)
	}

	e1 := got.ChunkMap[1]
	if e1.Text != "Short replacement." || e1.DurationMs != 50 {
		t.Errorf("entry 1 = %+v, want new text and 50ms", e1)
	}
	if e1.StartTime != h.before.ChunkMap[1].StartTime {
		t.Errorf("entry 1 startTime moved: %v", e1.StartTime)
	}
	if e2 := got.ChunkMap[2]; e2.StartTime != e1.EndTime || e2.EndTime != e2.StartTime+e2.DurationMs/1000 {
		t.Errorf("entry 2 not retimed: %+v", e2)
	}

	if texts := h.synth.Texts(); len(texts) != 1 || texts[0] != "Short replacement."+narrate.DefaultPauseMarker {
		t.Errorf("synthesized = %q, want only the new segment", texts)
	}
	if stored := h.generations.Record(got.ID); stored.AudioURL != got.AudioURL || stored.Script != wantScript {
		t.Error("record not persisted")
	}
}

func TestRegenerate_CombinedAssetChangesOnlyTargetRegion(t *testing.T) {
	t.Parallel()

	h := newRegenHarness(t)
	oldCombined, _ := h.blobs.Get(context.Background(), h.before.AudioURL)

	got, err := h.regen.Regenerate(context.Background(), h.request(1, "Short replacement."))
	if err != nil {
		t.Fatalf("Regenerate() error = %v", err)
	}
	newCombined, err := h.blobs.Get(context.Background(), got.AudioURL)
	if err != nil {
		t.Fatalf("combined blob missing: %v", err)
	}

	first := h.audio[0]
	third := h.audio[2][mp3.FindFrameSync(h.audio[2]):]
	if !bytes.HasPrefix(newCombined, first) || !bytes.HasPrefix(oldCombined, first) {
		t.Error("segment 0 bytes moved")
	}
	if !bytes.HasSuffix(newCombined, third) {
		t.Error("segment 2 bytes changed")
	}
	if want := len(oldCombined) - len(h.audio[1]) + 800; len(newCombined) != want {
		t.Errorf("combined length = %d, want %d", len(newCombined), want)
	}
}

func TestRegenerate_FirstSegmentKeepsTagFreeJoin(t *testing.T) {
	t.Parallel()

	h := newRegenHarness(t)
	got, err := h.regen.Regenerate(context.Background(), h.request(0, "New opening."))
	if err != nil {
		t.Fatalf("Regenerate() error = %v", err)
	}
	combined, _ := h.blobs.Get(context.Background(), got.AudioURL)
	want := mp3.Concat(frame(800), h.audio[1], h.audio[2])
	if !bytes.Equal(combined, want) {
		t.Errorf("combined = %d bytes, want %d", len(combined), len(want))
	}
	if got.ChunkMap[1].StartTime != 0.05 {
		t.Errorf("entry 1 startTime = %v, want 0.05", got.ChunkMap[1].StartTime)
	}
}

func TestRegenerate_SupersededBlobsDeleted(t *testing.T) {
	t.Parallel()

	h := newRegenHarness(t)
	got, err := h.regen.Regenerate(context.Background(), h.request(1, "Short replacement."))
	if err != nil {
		t.Fatalf("Regenerate() error = %v", err)
	}

	if h.blobs.Has(h.before.ChunkMap[1].BlobURL) || h.blobs.Has(h.before.AudioURL) {
		t.Error("superseded blobs still stored")
	}
	for _, u := range got.BlobURLs() {
		if !h.blobs.Has(u) {
			t.Errorf("blob %s missing", u)
		}
	}
	if got.ChunkMap[1].BlobURL == h.before.ChunkMap[1].BlobURL {
		t.Error("segment blob overwritten in place")
	}
}

func TestRegenerate_OldBlobDeleteFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	h := newRegenHarness(t)
	h.blobs.DeleteErr = errBoom

	if _, err := h.regen.Regenerate(context.Background(), h.request(2, "New ending.")); err != nil {
		t.Fatalf("Regenerate() error = %v, want nil", err)
	}
}

func TestRegenerate_Rejections(t *testing.T) {
	t.Parallel()

	long := make([]byte, 3997)
	for i := range long {
		long[i] = 'a'
	}

	tests := []struct {
		name    string
		req     func(h *regenHarness) narrate.RegenerateRequest
		wantErr []error
	}{
		{
			name:    "blank text",
			req:     func(h *regenHarness) narrate.RegenerateRequest { return h.request(1, "   ") },
			wantErr: []error{narrate.ErrInvalidRequest},
		},
		{
			name:    "negative index",
			req:     func(h *regenHarness) narrate.RegenerateRequest { return h.request(-1, "x.") },
			wantErr: []error{narrate.ErrInvalidRequest},
		},
		{
			name: "unknown record",
			req: func(h *regenHarness) narrate.RegenerateRequest {
				return narrate.RegenerateRequest{RecordID: 999, SegmentIndex: 0, NewText: "x."}
			},
			wantErr: []error{store.ErrNotFound},
		},
		{
			name:    "index past end",
			req:     func(h *regenHarness) narrate.RegenerateRequest { return h.request(3, "x.") },
			wantErr: []error{narrate.ErrSegmentNotFound, store.ErrNotFound},
		},
		{
			name:    "text over provider limit",
			req:     func(h *regenHarness) narrate.RegenerateRequest { return h.request(0, string(long)) },
			wantErr: []error{tts.ErrTextTooLong},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := newRegenHarness(t)

			_, err := h.regen.Regenerate(context.Background(), tt.req(h))

			for _, want := range tt.wantErr {
				if !errors.Is(err, want) {
					t.Errorf("error = %v, want %v", err, want)
				}
			}
			if len(h.synth.Texts()) != 0 {
				t.Error("synthesizer called")
			}
			if h.blobs.Len() != 4 {
				t.Errorf("blobs = %d, want 4 untouched", h.blobs.Len())
			}
		})
	}
}

// assertUntouched checks that the stored record and its blobs are as before
// and that no new blob survived.
func assertUntouched(t *testing.T, h *regenHarness) {
	t.Helper()
	rec := h.generations.Record(h.before.ID)
	if rec.AudioURL != h.before.AudioURL || rec.Script != h.before.Script {
		t.Error("record mutated")
	}
	for i := range rec.ChunkMap {
		if rec.ChunkMap[i] != h.before.ChunkMap[i] {
			t.Errorf("entry %d mutated", i)
		}
	}
	for _, u := range h.before.BlobURLs() {
		if !h.blobs.Has(u) {
			t.Errorf("original blob %s deleted", u)
		}
	}
	if h.blobs.Len() != 4 {
		t.Errorf("blobs = %d, want the 4 originals", h.blobs.Len())
	}
}

func TestRegenerate_FailuresLeaveRecordUntouched(t *testing.T) {
	t.Parallel()

	t.Run("synthesis error", func(t *testing.T) {
		t.Parallel()
		h := newRegenHarness(t)
		h.synth.AudioFunc = func(int, string) ([]byte, error) { return nil, errBoom }

		if _, err := h.regen.Regenerate(context.Background(), h.request(1, "x.")); !errors.Is(err, errBoom) {
			t.Fatalf("error = %v", err)
		}
		assertUntouched(t, h)
	})

	t.Run("missing sibling blob", func(t *testing.T) {
		t.Parallel()
		h := newRegenHarness(t)
		// Drop segment 2's blob directly, bypassing delete tracking.
		h.blobs.mu.Lock()
		delete(h.blobs.objects, h.before.ChunkMap[2].BlobURL)
		h.blobs.mu.Unlock()

		_, err := h.regen.Regenerate(context.Background(), h.request(1, "x."))
		if err == nil {
			t.Fatal("expected error")
		}
		if h.blobs.Len() != 3 {
			t.Errorf("blobs = %d, want new segment removed", h.blobs.Len())
		}
		if h.generations.Record(h.before.ID).AudioURL != h.before.AudioURL {
			t.Error("record mutated")
		}
	})

	t.Run("combined upload error", func(t *testing.T) {
		t.Parallel()
		h := newRegenHarness(t)
		h.blobs.PutErr = func(n int, _ string) error {
			if n == 1 {
				return errBoom
			}
			return nil
		}

		if _, err := h.regen.Regenerate(context.Background(), h.request(1, "x.")); !errors.Is(err, errBoom) {
			t.Fatalf("error = %v", err)
		}
		assertUntouched(t, h)
	})

	t.Run("update error", func(t *testing.T) {
		t.Parallel()
		h := newRegenHarness(t)
		h.generations.UpdateErr = errBoom

		if _, err := h.regen.Regenerate(context.Background(), h.request(1, "x.")); !errors.Is(err, errBoom) {
			t.Fatalf("error = %v", err)
		}
		assertUntouched(t, h)
	})
}
