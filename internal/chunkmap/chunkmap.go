// Package chunkmap builds the per-segment timing map of a narration and the
// combined audio it describes. It is the one place where segment timing and
// the byte layout of the combined asset are derived from the same ordered input.
package chunkmap

import (
	"github.com/alnah/go-narrate/internal/model"
	"github.com/alnah/go-narrate/internal/mp3"
)

// Piece is one synthesized segment: its text and raw MP3 bytes.
type Piece struct {
	Text  string
	Audio []byte
}

// Build estimates each piece's duration, lays the pieces end to end in the
// given order, and concatenates their audio in that same order.
// BlobURL is left empty; the caller fills it after uploading each piece.
func Build(pieces []Piece) ([]model.ChunkEntry, []byte) {
	entries := make([]model.ChunkEntry, len(pieces))
	audio := make([][]byte, len(pieces))
	for i, p := range pieces {
		entries[i] = model.ChunkEntry{
			Index:      i,
			Text:       p.Text,
			DurationMs: mp3.EstimateDurationMs(p.Audio),
		}
		audio[i] = p.Audio
	}
	return Retime(entries), mp3.Concat(audio...)
}

// Retime renumbers entries 0..n-1 and recomputes every start and end time as
// a running sum from the first entry. The input slice is not modified.
func Retime(entries []model.ChunkEntry) []model.ChunkEntry {
	out := make([]model.ChunkEntry, len(entries))
	var elapsedMs float64
	for i, e := range entries {
		e.Index = i
		e.StartTime = elapsedMs / 1000
		elapsedMs += e.DurationMs
		e.EndTime = elapsedMs / 1000
		out[i] = e
	}
	return out
}

// Replace returns a retimed copy of entries where the entry at index takes
// the given text, duration and blob URL. ok is false when index is out of range.
func Replace(entries []model.ChunkEntry, index int, text string, durationMs float64, blobURL string) (_ []model.ChunkEntry, ok bool) {
	if index < 0 || index >= len(entries) {
		return nil, false
	}
	updated := make([]model.ChunkEntry, len(entries))
	copy(updated, entries)
	updated[index].Text = text
	updated[index].DurationMs = durationMs
	updated[index].BlobURL = blobURL
	return Retime(updated), true
}

// Script returns the narration text reconstructed from the chunk map.
func Script(entries []model.ChunkEntry) string {
	return model.JoinTexts(entries)
}
