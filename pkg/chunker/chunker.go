// Package chunker splits document text into overlapping passages.
//
// Two modes exist. Words windows over whitespace-normalized words and snaps the
// window back to its last sentence end when that end is far enough in. Chars
// windows over raw runes with no snapping, which keeps dialogue layouts intact.
package chunker

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

type Mode string

const (
	ModeWords Mode = "words"
	ModeChars Mode = "chars"
)

const (
	// sentenceSnapMin is the rune index the last '.' must exceed before a word window is truncated at it.
	sentenceSnapMin = 200
	// MinCharWindow is the smallest character window Chars will use.
	MinCharWindow = 400
)

// Split dispatches on mode. Unknown modes fall back to words.
func Split(mode Mode, text string, size, overlap int) []string {
	if mode == ModeChars {
		return Chars(NormalizeDialogue(text), size, overlap)
	}
	return Words(text, size, overlap)
}

// Words returns windows of at most size words with overlap words carried into the next window.
func Words(text string, size, overlap int) []string {
	words := strings.Fields(text)
	if len(words) == 0 || size <= 0 {
		return nil
	}
	if overlap < 0 {
		overlap = 0
	}

	var chunks []string
	start := 0
	for start < len(words) {
		end := min(len(words), start+size)
		chunk := strings.Join(words[start:end], " ")

		if end < len(words) {
			if lp := strings.LastIndexByte(chunk, '.'); lp >= 0 && utf8.RuneCountInString(chunk[:lp]) > sentenceSnapMin {
				used := len(strings.Split(chunk[:lp+1], " "))
				// A '.' inside a word ("2.5") leaves its tail for the next window.
				if lp+1 < len(chunk) && chunk[lp+1] != ' ' && used > 1 {
					used--
				}
				chunk = chunk[:lp+1]
				end = start + used
			}
		}

		chunks = append(chunks, strings.TrimSpace(chunk))
		if end >= len(words) {
			break
		}

		next := max(0, end-overlap)
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

// Chars returns rune windows of size (floored at MinCharWindow) overlapping by at most size/2.
func Chars(text string, size, overlap int) []string {
	runes := []rune(text)
	n := len(runes)
	if n == 0 {
		return nil
	}
	size = max(MinCharWindow, size)
	overlap = max(0, min(overlap, size/2))

	var chunks []string
	for i := 0; ; {
		j := min(i+size, n)
		chunks = append(chunks, string(runes[i:j]))
		if j >= n {
			break
		}
		i = j - overlap
	}
	return chunks
}

// NormalizeDialogue converts CRLF and CR to LF and trims trailing whitespace from every line.
func NormalizeDialogue(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRightFunc(line, unicode.IsSpace)
	}
	return strings.Join(lines, "\n")
}
