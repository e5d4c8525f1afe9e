// Package mp3 provides byte-level helpers for MPEG audio streams: locating
// the first frame, estimating playback duration from the frame header, and
// stitching independently encoded buffers into one playable stream.
//
// Nothing here decodes audio. All functions operate on raw bytes and never
// return an error; malformed input degrades to a best-effort answer.
package mp3

import "encoding/binary"

// FallbackBitrateKbps is assumed when no usable frame header is found.
const FallbackBitrateKbps = 128

// headerSize is the length in bytes of an MPEG audio frame header.
const headerSize = 4

// bitrateTable maps the 4-bit bitrate index of an MPEG-1 Layer III header to kbps.
// Index 0 (free format) and 15 (bad) are unknown.
var bitrateTable = [16]int{0, 32, 40, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, 0}

// FindFrameSync returns the offset of the first MPEG frame sync in buf:
// a 0xFF byte followed by a byte whose top three bits are set.
// Leading ID3v2 tags or any other non-audio prefix are skipped.
// Returns 0 when no sync is found, so the whole buffer is treated as frame data.
func FindFrameSync(buf []byte) int {
	for i := 0; i+1 < len(buf); i++ {
		if buf[i] == 0xFF && buf[i+1]&0xE0 == 0xE0 {
			return i
		}
	}
	return 0
}

// BitrateKbps returns the bitrate encoded in the frame header at the first
// frame sync of buf, or FallbackBitrateKbps when it cannot be determined.
func BitrateKbps(buf []byte) int {
	offset := FindFrameSync(buf)
	if len(buf)-offset < headerSize {
		return FallbackBitrateKbps
	}
	header := binary.BigEndian.Uint32(buf[offset : offset+headerSize])
	if kbps := bitrateTable[(header>>12)&0x0F]; kbps > 0 {
		return kbps
	}
	return FallbackBitrateKbps
}

// EstimateDurationMs estimates the playback duration of buf in milliseconds.
//
// The estimate assumes a constant bitrate read from the first frame header.
// Variable-bitrate streams produce an approximation only.
func EstimateDurationMs(buf []byte) float64 {
	offset := FindFrameSync(buf)
	if len(buf)-offset < headerSize {
		return float64(len(buf)) * 8 / FallbackBitrateKbps
	}
	return float64(len(buf)-offset) * 8 / float64(BitrateKbps(buf))
}

// Concat joins MP3 buffers into one continuous stream.
//
// The first buffer is copied unmodified. Every later buffer contributes only
// the bytes from its first frame sync onward, dropping its leading metadata.
// Zero buffers yield an empty (non-nil) slice.
func Concat(bufs ...[]byte) []byte {
	size := 0
	for i, b := range bufs {
		if i == 0 {
			size += len(b)
			continue
		}
		size += len(b) - FindFrameSync(b)
	}

	out := make([]byte, 0, size)
	for i, b := range bufs {
		if i == 0 {
			out = append(out, b...)
			continue
		}
		out = append(out, b[FindFrameSync(b):]...)
	}
	return out
}
