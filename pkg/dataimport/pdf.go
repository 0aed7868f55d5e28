package dataimport

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/samber/lo"
)

const (
	minRepeatPages   = 3
	repeatPageRatio  = 0.5
	maxRunningHeader = 60
)

var (
	pageNumberRe = regexp.MustCompile(`(?i)^(?:\d+|page\s*\d+)$`)
	hyphenWrapRe = regexp.MustCompile(`(\w)-\n(\w)`)
	spaceRunRe   = regexp.MustCompile(`[ \t]+`)
	blankRunRe   = regexp.MustCompile(`\n{3,}`)
)

// ExtractPDFPages returns the plain text of each page. Empty pages yield "".
func ExtractPDFPages(path string) ([]string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	pages := make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("read pdf %s page %d: %w", path, i, err)
		}
		pages = append(pages, text)
	}
	return pages, nil
}

// CleanPDFPages joins pages into one text: running headers and footers and page
// numbers are dropped, words hyphenated across lines are rejoined and whitespace
// runs collapse.
func CleanPDFPages(pages []string) string {
	threshold := max(minRepeatPages, int(math.Floor(float64(len(pages))*repeatPageRatio)))

	seen := map[string]int{}
	pageLines := make([][]string, len(pages))
	for i, page := range pages {
		lines := strings.Split(strings.ReplaceAll(page, "\r\n", "\n"), "\n")
		pageLines[i] = lines
		for _, l := range lines {
			if s := strings.TrimSpace(l); s != "" {
				seen[s]++
			}
		}
	}

	cleaned := make([]string, 0, len(pages))
	for _, lines := range pageLines {
		kept := lo.Filter(lines, func(l string, _ int) bool {
			s := strings.TrimSpace(l)
			if s == "" {
				return true
			}
			if pageNumberRe.MatchString(s) {
				return false
			}
			return !(seen[s] >= threshold && len(s) <= maxRunningHeader)
		})
		cleaned = append(cleaned, strings.Join(kept, "\n"))
	}

	text := strings.Join(cleaned, "\n\n")
	text = hyphenWrapRe.ReplaceAllString(text, "$1$2")
	text = spaceRunRe.ReplaceAllString(text, " ")
	text = blankRunRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
