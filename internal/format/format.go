// Package format renders narration timings for terminal output.
package format

import (
	"fmt"
	"math"
)

// Seconds formats a position or length in seconds as MM:SS.t, or H:MM:SS.t
// from one hour on. Negative values are shown as zero.
func Seconds(s float64) string {
	if s < 0 || math.IsNaN(s) {
		s = 0
	}
	tenths := int64(math.Round(s * 10))
	h := tenths / 36000
	m := tenths / 600 % 60
	sec := tenths / 10 % 60
	t := tenths % 10
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d.%d", h, m, sec, t)
	}
	return fmt.Sprintf("%02d:%02d.%d", m, sec, t)
}

// Millis formats a duration in milliseconds like Seconds.
func Millis(ms float64) string {
	return Seconds(ms / 1000)
}
