// Package style derives a lightweight speaking-style profile from a persona's ingested text.
package style

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/samber/lo"

	"github.com/EternisAI/persona-twin/pkg/store"
)

const (
	DefaultTopN     = 30
	catchphraseTopN = 10
	minWordLen      = 3
)

const basePrompt = "Use concise sentences. Favor the most frequent words and collocations below. " +
	"Show warmth yet directness if appropriate. Avoid exaggerated verbosity. Reflect the cadence of interview answers."

var tokenRe = regexp.MustCompile(`[a-zA-Z']+`)

var stopwords = lo.SliceToMap(strings.Fields(`a an the and or but if is are was were be being been of to in on for with as by
from at that this these those i you he she it we they me him her us them my your his its our their not no do does did
so such just really very like kind sort lot lots maybe perhaps actually honestly literally`),
	func(w string) (string, struct{}) { return w, struct{}{} })

func Tokenize(text string) []string {
	return lo.Map(tokenRe.FindAllString(text, -1), func(t string, _ int) string { return strings.ToLower(t) })
}

func contentWord(w string) bool {
	if len(w) < minWordLen {
		return false
	}
	_, stop := stopwords[w]
	return !stop
}

// Profile counts n-grams over the token stream. Ties keep first-occurrence order.
func Profile(text string, topN int) store.TopPhrases {
	if topN <= 0 {
		topN = DefaultTopN
	}
	toks := Tokenize(text)

	uni := newCounter()
	bi := newCounter()
	tri := newCounter()
	for i, t := range toks {
		if contentWord(t) {
			uni.add(t)
		}
		if i+1 < len(toks) && contentWord(t) && contentWord(toks[i+1]) {
			bi.add(t + " " + toks[i+1])
		}
		if i+2 < len(toks) && contentWord(t) && contentWord(toks[i+1]) && contentWord(toks[i+2]) {
			tri.add(t + " " + toks[i+1] + " " + toks[i+2])
		}
	}

	bigrams := bi.top(topN)
	return store.TopPhrases{
		Unigrams: uni.top(topN),
		Bigrams:  bigrams,
		Trigrams: tri.top(topN),
		Catchphrases: lo.Map(lo.Slice(bigrams, 0, catchphraseTopN), func(p store.PhraseCount, _ int) string {
			return p.Phrase
		}),
	}
}

// Prompt is the stored style prompt: fixed guidance plus the catchphrases, when any.
func Prompt(phrases store.TopPhrases) string {
	if len(phrases.Catchphrases) == 0 {
		return basePrompt
	}
	return basePrompt + "\nCharacteristic phrases: " + strings.Join(phrases.Catchphrases, "; ") + "."
}

type counter struct {
	counts map[string]int
	order  []string
}

func newCounter() *counter { return &counter{counts: map[string]int{}} }

func (c *counter) add(k string) {
	if _, ok := c.counts[k]; !ok {
		c.order = append(c.order, k)
	}
	c.counts[k]++
}

func (c *counter) top(n int) []store.PhraseCount {
	out := lo.Map(c.order, func(k string, _ int) store.PhraseCount {
		return store.PhraseCount{Phrase: k, Count: c.counts[k]}
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return lo.Slice(out, 0, n)
}

type Store interface {
	GetPersonaByName(ctx context.Context, name string) (store.Persona, error)
	ChunkTextsForPersona(ctx context.Context, personaID int64) ([]string, error)
	UpdateStyleProfile(ctx context.Context, personaID int64, stylePrompt string, phrases store.TopPhrases) error
}

type Profiler struct {
	store  Store
	logger *log.Logger
}

func NewProfiler(s Store, logger *log.Logger) (*Profiler, error) {
	if s == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	return &Profiler{store: s, logger: logger}, nil
}

// Compute profiles every chunk of the persona and stores the result.
func (p *Profiler) Compute(ctx context.Context, personaName string, topN int) (store.TopPhrases, error) {
	persona, err := p.store.GetPersonaByName(ctx, personaName)
	if err != nil {
		return store.TopPhrases{}, err
	}
	texts, err := p.store.ChunkTextsForPersona(ctx, persona.ID)
	if err != nil {
		return store.TopPhrases{}, err
	}

	phrases := Profile(strings.Join(texts, "\n"), topN)
	if err := p.store.UpdateStyleProfile(ctx, persona.ID, Prompt(phrases), phrases); err != nil {
		return store.TopPhrases{}, err
	}
	p.logger.Info("Updated style profile", "persona", persona.Name, "chunks", len(texts),
		"unigrams", len(phrases.Unigrams), "catchphrases", len(phrases.Catchphrases))
	return phrases, nil
}
