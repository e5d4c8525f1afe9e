// Package model defines the persisted shapes of a narration: generation
// records with their chunk maps, generation jobs, and provider usage.
package model

import (
	"strings"
	"time"
)

// ChunkEntry is one segment of a narration: its text, its position in the
// combined audio, and the location of its own playable MP3.
//
// Within a chunk map, entries are ordered by Index with no gaps, StartTime is
// the sum of all previous durations in seconds, and EndTime is
// StartTime + DurationMs/1000.
type ChunkEntry struct {
	Index      int     `json:"index"`
	Text       string  `json:"text"`
	StartTime  float64 `json:"startTime"`
	EndTime    float64 `json:"endTime"`
	DurationMs float64 `json:"durationMs"`
	BlobURL    string  `json:"blobUrl"`
}

// Options are the tunable synthesis parameters. Zero values mean provider default.
type Options struct {
	Stability    *float64 `json:"stability,omitempty"`
	Temperature  float64  `json:"temperature,omitempty"`
	SpeakingRate float64  `json:"speakingRate,omitempty"`
}

// Generation is one finished narration of a source URL.
type Generation struct {
	ID        int64        `json:"id"`
	URL       string       `json:"url"`
	Title     string       `json:"title"`
	Script    string       `json:"script"`
	AudioURL  string       `json:"audioUrl"`
	Provider  string       `json:"provider"`
	Model     string       `json:"model"`
	VoiceID   string       `json:"voiceId"`
	Options   Options      `json:"options"`
	Label     string       `json:"label"`
	ChunkMap  []ChunkEntry `json:"chunkMap"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// DurationMs returns the total narration length.
func (g *Generation) DurationMs() float64 {
	var total float64
	for _, e := range g.ChunkMap {
		total += e.DurationMs
	}
	return total
}

// BlobURLs returns every blob the record owns: the combined asset first,
// then each segment in index order. Empty URLs are skipped.
func (g *Generation) BlobURLs() []string {
	urls := make([]string, 0, len(g.ChunkMap)+1)
	if g.AudioURL != "" {
		urls = append(urls, g.AudioURL)
	}
	for _, e := range g.ChunkMap {
		if e.BlobURL != "" {
			urls = append(urls, e.BlobURL)
		}
	}
	return urls
}

// JobStatus is the lifecycle state of a GenerationJob.
type JobStatus string

// Job statuses. Done and Error are terminal.
const (
	JobPending    JobStatus = "pending"
	JobGenerating JobStatus = "generating"
	JobUploading  JobStatus = "uploading"
	JobDone       JobStatus = "done"
	JobError      JobStatus = "error"
)

// IsTerminal reports whether no further transition is allowed.
func (s JobStatus) IsTerminal() bool {
	return s == JobDone || s == JobError
}

// Job tracks one accepted generation request so a disconnected client can
// poll for its outcome.
type Job struct {
	ID            int64     `json:"id"`
	URL           string    `json:"url"`
	Title         string    `json:"title"`
	Status        JobStatus `json:"status"`
	Message       string    `json:"message"`
	ResultEntryID *int64    `json:"resultEntryId,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Usage is a provider's character consumption as last reported.
type Usage struct {
	Provider       string    `json:"provider"`
	CharacterCount int64     `json:"characterCount"`
	CharacterLimit int64     `json:"characterLimit"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Remaining returns the characters left, never negative.
func (u Usage) Remaining() int64 {
	return max(u.CharacterLimit-u.CharacterCount, 0)
}

// JoinTexts joins segment texts in index order with a blank line between them.
func JoinTexts(entries []ChunkEntry) string {
	texts := make([]string, len(entries))
	for i, e := range entries {
		texts[i] = e.Text
	}
	return strings.Join(texts, "\n\n")
}
