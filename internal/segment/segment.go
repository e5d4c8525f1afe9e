// Package segment splits a narration script into segments that fit a speech
// provider's per-request character limit.
//
// A Segmenter first asks a language model (a Splitter) for natural topic
// boundaries and checks the answer itself: segments must fit the limit, end
// on a sentence boundary outside any list, and reproduce the script word for
// word. Any failure
// falls back to Pack, the deterministic paragraph and sentence packer.
// Segmentation never fails.
package segment

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

var (
	// listItem matches a line starting with a bullet or an ordinal marker.
	listItem = regexp.MustCompile(`^\s*([-*•]|\d+[.)])\s+`)

	wordSpan = regexp.MustCompile(`\S+`)
)

// Splitter proposes segment boundaries for a script.
type Splitter interface {
	Split(ctx context.Context, text string, maxChars int) ([]string, error)
}

// Segmenter splits scripts, preferring a Splitter and falling back to Pack.
type Segmenter struct {
	splitter   Splitter
	onFallback func(err error)
}

// Option configures a Segmenter.
type Option func(*Segmenter)

// WithSplitter sets the assisted splitter. Without one, Pack is always used.
func WithSplitter(s Splitter) Option {
	return func(sg *Segmenter) {
		sg.splitter = s
	}
}

// WithFallbackHook sets a callback invoked with the reason whenever the
// assisted split is discarded.
func WithFallbackHook(fn func(err error)) Option {
	return func(sg *Segmenter) {
		sg.onFallback = fn
	}
}

// New creates a Segmenter.
func New(opts ...Option) *Segmenter {
	s := &Segmenter{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Segment returns text split into ordered segments of at most maxChars
// characters each. Text that already fits is returned trimmed as one segment.
// The result is never empty.
func (s *Segmenter) Segment(ctx context.Context, text string, maxChars int) []string {
	if length(text) <= maxChars {
		return []string{strings.TrimSpace(text)}
	}
	trimmed := strings.TrimSpace(text)

	if s.splitter != nil {
		segments, err := s.splitter.Split(ctx, trimmed, maxChars)
		if err == nil {
			segments = nonEmpty(segments)
			err = validate(trimmed, segments, maxChars)
		}
		if err == nil {
			return segments
		}
		if s.onFallback != nil {
			s.onFallback(err)
		}
	}

	return Pack(trimmed, maxChars)
}

// validate checks an assisted split against the original text.
//
// The segments must reproduce the text word for word and each must fit
// maxChars. A boundary must follow a sentence and must not fall inside a
// list. Under smallLimit boundaries sit on blank lines only. When the text
// holds several sentences, so does every segment.
func validate(text string, segments []string, maxChars int) error {
	if len(segments) == 0 {
		return fmt.Errorf("no segments returned: %w", ErrInvalidSplit)
	}
	if normalize(strings.Join(segments, " ")) != normalize(text) {
		return fmt.Errorf("segments do not reproduce the script: %w", ErrInvalidSplit)
	}

	gaps := boundaryGaps(text, segments)
	multi := sentenceCount(text) > 1
	for i, seg := range segments {
		if n := length(seg); n > maxChars {
			return fmt.Errorf("segment %d has %d chars, limit %d: %w", i, n, maxChars, ErrInvalidSplit)
		}
		if multi && len(segments) > 1 && sentenceCount(seg) < 2 {
			return fmt.Errorf("segment %d holds a single sentence: %w", i, ErrInvalidSplit)
		}
		if i == len(segments)-1 {
			continue
		}
		if !endsSentence(seg) {
			return fmt.Errorf("segment %d ends mid-sentence: %w", i, ErrInvalidSplit)
		}
		atBreak := paragraphBreak.MatchString(gaps[i])
		if !atBreak && startsListItem(segments[i+1]) {
			return fmt.Errorf("segment %d splits a list: %w", i+1, ErrInvalidSplit)
		}
		if maxChars <= smallLimit && !atBreak {
			return fmt.Errorf("segment %d does not end on a paragraph break: %w", i, ErrInvalidSplit)
		}
	}
	return nil
}

// boundaryGaps returns, for each boundary between segments, the whitespace
// of text found between the last word of one segment and the first word of
// the next. Segments must already reproduce text word for word.
func boundaryGaps(text string, segments []string) []string {
	words := wordSpan.FindAllStringIndex(text, -1)
	gaps := make([]string, 0, len(segments))
	n := 0
	for _, seg := range segments[:len(segments)-1] {
		n += len(strings.Fields(seg))
		if n <= 0 || n >= len(words) {
			gaps = append(gaps, "")
			continue
		}
		gaps = append(gaps, text[words[n-1][1]:words[n][0]])
	}
	return gaps
}

// sentenceCount counts sentences, taking each list item as one.
func sentenceCount(s string) int {
	n := len(splitSentences(s))
	for _, line := range strings.Split(s, "\n") {
		if listItem.MatchString(line) {
			n++
		}
	}
	return n
}

func startsListItem(seg string) bool {
	first, _, _ := strings.Cut(strings.TrimSpace(seg), "\n")
	return listItem.MatchString(first)
}

// endsSentence reports whether seg ends on terminal punctuation, allowing
// closing quotes or brackets after it, or ends with a list item.
func endsSentence(seg string) bool {
	seg = strings.TrimRight(seg, "\"'”’)] \t\n")
	if seg == "" {
		return false
	}
	switch seg[len(seg)-1] {
	case '.', '!', '?':
		return true
	}
	return listItem.MatchString(seg[strings.LastIndexByte(seg, '\n')+1:])
}

// normalize collapses every whitespace run to one space.
func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
