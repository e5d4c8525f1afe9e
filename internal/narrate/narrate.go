// Package narrate runs the narration pipeline: it segments a script, synthesizes
// each segment in order, stitches the audio, uploads every asset and persists
// the resulting record. It also regenerates single segments of an existing
// record and sweeps abandoned jobs.
//
// External I/O always happens before the single database write that commits
// an outcome. Blobs uploaded by a failed run are deleted best-effort.
package narrate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/alnah/go-narrate/internal/model"
	"github.com/alnah/go-narrate/internal/store"
	"github.com/alnah/go-narrate/internal/tts"
)

// Sentinel errors.
var (
	// ErrInvalidRequest indicates a request was rejected before any I/O.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrSegmentNotFound indicates the record has no segment at the requested index.
	// It matches store.ErrNotFound as well.
	ErrSegmentNotFound = fmt.Errorf("segment %w", store.ErrNotFound)
)

// DefaultPauseMarker is appended to every segment before synthesis so the
// voice trails off at stitch points.
const DefaultPauseMarker = " ..."

const audioContentType = "audio/mpeg"

// Segmenter splits a script into provider-sized segments. It never fails.
type Segmenter interface {
	Segment(ctx context.Context, text string, maxChars int) []string
}

// Synthesizers resolves a provider to its configured adapter.
type Synthesizers interface {
	Synthesizer(p tts.Provider) (tts.Synthesizer, error)
}

// GenerationStore persists generation records.
type GenerationStore interface {
	Create(ctx context.Context, g *model.Generation) error
	Get(ctx context.Context, id int64) (*model.Generation, error)
	CountByURL(ctx context.Context, url string) (int, error)
	UpdateChunkMap(ctx context.Context, g *model.Generation) error
}

// JobStore persists generation jobs.
type JobStore interface {
	Create(ctx context.Context, url, title string) (*model.Job, error)
	Transition(ctx context.Context, id int64, status model.JobStatus, message string, resultID *int64) error
}

// UsageStore caches provider usage figures.
type UsageStore interface {
	Save(ctx context.Context, u model.Usage) error
}

// Compile-time interface compliance checks.
var (
	_ GenerationStore = (*store.GenerationRepository)(nil)
	_ JobStore        = (*store.JobRepository)(nil)
	_ UsageStore      = (*store.UsageRepository)(nil)
	_ Synthesizers    = (*tts.Registry)(nil)
)

// Label returns the version label of a narration: the creation date, the
// first two words of the title and the per-URL version number,
// e.g. "2026-10-18-hello-world-v3".
func Label(createdAt time.Time, title string, version int) string {
	words := titleWords(title, 2)
	if len(words) == 0 {
		words = []string{"untitled"}
	}
	return fmt.Sprintf("%s-%s-v%d", createdAt.Format(time.DateOnly), strings.Join(words, "-"), version)
}

// titleWords returns up to n lowercase words of title with every
// non-alphanumeric rune removed.
func titleWords(title string, n int) []string {
	var words []string
	for _, w := range strings.Fields(strings.ToLower(title)) {
		w = strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				return r
			}
			return -1
		}, w)
		if w == "" {
			continue
		}
		words = append(words, w)
		if len(words) == n {
			break
		}
	}
	return words
}

func segmentName(label string, index int, id string) string {
	return fmt.Sprintf("narrations/%s/segment-%03d-%s.mp3", label, index, id)
}

func combinedName(label, id string) string {
	return fmt.Sprintf("narrations/%s/full-%s.mp3", label, id)
}

// shortID returns a fresh 8-character suffix for blob names.
func shortID() string {
	return uuid.NewString()[:8]
}
