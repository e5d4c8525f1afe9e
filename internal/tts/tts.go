// Package tts adapts third-party speech synthesis APIs to one interface.
//
// Each adapter owns its per-request character ceiling and its own rules for
// which tuning options it sends. Callers must size segments with MaxChars of
// the adapter they will use; the ceilings differ between providers.
package tts

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"unicode/utf8"

	"github.com/alnah/go-narrate/internal/apierr"
	"github.com/alnah/go-narrate/internal/model"
)

// Sentinel errors.
var (
	// ErrMissingCredentials indicates no API key is configured for a provider.
	ErrMissingCredentials = errors.New("missing provider credentials")

	// ErrEmptyText indicates there is nothing to synthesize.
	ErrEmptyText = errors.New("empty text")

	// ErrTextTooLong indicates text exceeds the provider's per-request ceiling.
	ErrTextTooLong = errors.New("text exceeds provider limit")

	// ErrInvalidOption indicates a tuning option is out of its valid range.
	ErrInvalidOption = errors.New("invalid synthesis option")

	// ErrEmptyAudio indicates the provider answered 2xx without audio.
	ErrEmptyAudio = errors.New("provider returned no audio")
)

// maxResponseSize bounds how much audio a single response may carry (50MB).
const maxResponseSize = 50 * 1024 * 1024

// httpDoer abstracts the HTTP client for testing.
type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Synthesizer turns text into MP3 audio.
type Synthesizer interface {
	// Synthesize returns raw MP3 bytes for text spoken by voiceID.
	Synthesize(ctx context.Context, text, voiceID string, opts model.Options) ([]byte, error)

	// MaxChars is the per-request character ceiling.
	MaxChars() int

	Provider() Provider
	Model() string
}

// UsageReporter is implemented by synthesizers that can report account usage.
type UsageReporter interface {
	Usage(ctx context.Context) (model.Usage, error)
}

// checkText rejects empty text and text over the ceiling before any I/O.
func checkText(text string, maxChars int) error {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return ErrEmptyText
	}
	if n > maxChars {
		return fmt.Errorf("%d chars, limit %d: %w", n, maxChars, ErrTextTooLong)
	}
	return nil
}

// classifyTransportError maps client-side failures to apierr sentinels.
func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("request timed out: %w", apierr.ErrTimeout)
	}
	return err
}
