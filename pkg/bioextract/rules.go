// Package bioextract pulls short biographical statements about a persona out of ingested
// biography text using keyword, name, date and place heuristics.
package bioextract

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

const minSentenceLen = 30

var Triggers = []string{
	"born", "birth", "grew up", "upbringing", "childhood", "parents", "mother", "father",
	"family", "married", "spouse", "wife", "husband", "children", "son", "daughter",
	"school", "college", "university", "education", "degree", "phd", "doctorate",
	"career", "appointed", "professor", "tenure", "joined", "worked at",
	"prize", "award", "nobel", "fellow", "elected", "won",
	"moved to", "emigrated", "immigrated", "lived in", "resided", "died", "passed away",
}

type TagRule struct {
	Tag      string
	Keywords []string
}

// TagRules are evaluated in order; every matching rule contributes its tag.
var TagRules = []TagRule{
	{"early-life", []string{"born", "birth", "grew up", "childhood", "parents", "family"}},
	{"education", []string{"school", "college", "university", "education", "degree", "phd", "doctorate"}},
	{"awards", []string{"prize", "award", "nobel", "fellow", "won"}},
	{"career", []string{"career", "appointed", "professor", "joined", "worked at", "tenure"}},
	{"death", []string{"died", "passed away"}},
}

const fallbackTag = "biography"

var (
	dateRe = regexp.MustCompile(`\b((?:Jan(?:uary)?|Feb(?:ruary)?|Mar(?:ch)?|Apr(?:il)?|` +
		`May|Jun(?:e)?|Jul(?:y)?|Aug(?:ust)?|Sep(?:t(?:ember)?)?|` +
		`Oct(?:ober)?|Nov(?:ember)?|Dec(?:ember)?)\s+\d{1,2},\s+\d{4}|\d{4})\b`)
	locationRe            = regexp.MustCompile(`\b(?:in|at|from)\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+){0,3})`)
	whitespaceRe          = regexp.MustCompile(`\s+`)
	trailingParentheticRe = regexp.MustCompile(`\s*\([^)]{30,}\)$`)
)

// SplitSentences breaks after '.', '!' or '?' when whitespace and then an upper-case letter follow.
func SplitSentences(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var out []string
	emit := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}

	start := 0
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		i += size
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		j := i
		for j < len(text) {
			ws, wsSize := utf8.DecodeRuneInString(text[j:])
			if !unicode.IsSpace(ws) {
				break
			}
			j += wsSize
		}
		if j == i || j >= len(text) {
			continue
		}
		if next, _ := utf8.DecodeRuneInString(text[j:]); next >= 'A' && next <= 'Z' {
			emit(text[start:i])
			start = j
			i = j
		}
	}
	emit(text[start:])
	return out
}

func containsAny(lower string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// LooksBiographical requires a minimum length, a trigger keyword and the persona's full or last name.
func LooksBiographical(sentence, personaName string) bool {
	if len(sentence) < minSentenceLen {
		return false
	}
	if !containsAny(strings.ToLower(sentence), Triggers) {
		return false
	}
	name := strings.TrimSpace(personaName)
	last := name
	if fields := strings.Fields(name); len(fields) > 0 {
		last = fields[len(fields)-1]
	}
	return strings.Contains(sentence, name) || strings.Contains(sentence, last)
}

// NormalizeFact collapses whitespace and drops a long trailing parenthetical.
func NormalizeFact(s string) string {
	s = strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
	return trailingParentheticRe.ReplaceAllString(s, "")
}

func GuessTags(s string) []string {
	lower := strings.ToLower(s)
	var tags []string
	for _, rule := range TagRules {
		if containsAny(lower, rule.Keywords) {
			tags = append(tags, rule.Tag)
		}
	}
	if len(tags) == 0 {
		tags = append(tags, fallbackTag)
	}
	return tags
}

// ParseDate returns the first "Month D, YYYY" or bare year. A bare year maps to January 1.
func ParseDate(s string) *time.Time {
	m := dateRe.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	txt := whitespaceRe.ReplaceAllString(m[1], " ")
	if len(txt) == 4 {
		year, err := strconv.Atoi(txt)
		if err != nil {
			return nil
		}
		d := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
		return &d
	}
	for _, layout := range []string{"January 2, 2006", "Jan 2, 2006"} {
		if d, err := time.Parse(layout, txt); err == nil {
			return &d
		}
	}
	return nil
}

func ParseLocation(s string) *string {
	m := locationRe.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	return &m[1]
}

// Candidates returns normalized, de-duplicated biographical sentences about the persona in text order.
func Candidates(texts []string, personaName string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, text := range texts {
		for _, s := range SplitSentences(text) {
			if !LooksBiographical(s, personaName) {
				continue
			}
			fact := NormalizeFact(s)
			if _, dup := seen[fact]; dup {
				continue
			}
			seen[fact] = struct{}{}
			out = append(out, fact)
		}
	}
	return out
}
