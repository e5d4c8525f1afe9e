package segment

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	// paragraphBreak matches a blank line, tolerating trailing spaces.
	paragraphBreak = regexp.MustCompile(`\n[ \t\r\f\v]*\n\s*`)

	// sentenceEnd matches terminal punctuation, optional closing quotes or
	// brackets, then the whitespace that separates it from the next sentence.
	sentenceEnd = regexp.MustCompile(`[.!?]+["'”’)\]]*\s+`)
)

// length counts characters, not bytes.
func length(s string) int {
	return utf8.RuneCountInString(s)
}

// Pack splits text without any external help.
//
// Whole paragraphs are packed greedily, joined by a blank line, and the
// running segment is flushed whenever the next paragraph would push it past
// maxChars. A paragraph that alone exceeds maxChars is split at sentence
// boundaries and those sentences are packed the same way. A single sentence
// longer than maxChars is kept whole.
//
// The result is never empty: text that yields no segment is returned trimmed
// as the only element.
func Pack(text string, maxChars int) []string {
	text = strings.TrimSpace(text)
	if maxChars <= 0 || length(text) <= maxChars {
		return []string{text}
	}

	var out []string
	var buf string
	flush := func() {
		if buf != "" {
			out = append(out, buf)
			buf = ""
		}
	}

	for _, para := range splitParagraphs(text) {
		if length(para) > maxChars {
			flush()
			out = append(out, packUnits(splitSentences(para), " ", maxChars)...)
			continue
		}
		if buf == "" {
			buf = para
			continue
		}
		if length(buf)+2+length(para) > maxChars {
			flush()
			buf = para
			continue
		}
		buf += "\n\n" + para
	}
	flush()

	if len(out) == 0 {
		return []string{text}
	}
	return out
}

// packUnits greedily joins units with sep while staying within maxChars.
func packUnits(units []string, sep string, maxChars int) []string {
	var out []string
	var buf string
	for _, u := range units {
		switch {
		case buf == "":
			buf = u
		case length(buf)+length(sep)+length(u) > maxChars:
			out = append(out, buf)
			buf = u
		default:
			buf += sep + u
		}
	}
	if buf != "" {
		out = append(out, buf)
	}
	return out
}

// splitParagraphs splits on blank lines, dropping empty paragraphs.
func splitParagraphs(text string) []string {
	return nonEmpty(paragraphBreak.Split(text, -1))
}

// splitSentences cuts text after each sentence terminator. Text after the
// last terminator becomes its own trailing sentence, so nothing is lost.
func splitSentences(text string) []string {
	var parts []string
	start := 0
	for _, loc := range sentenceEnd.FindAllStringIndex(text, -1) {
		parts = append(parts, text[start:loc[1]])
		start = loc[1]
	}
	parts = append(parts, text[start:])
	return nonEmpty(parts)
}

func nonEmpty(parts []string) []string {
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
