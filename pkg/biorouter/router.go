// Package biorouter decides whether a user turn asks about the persona's own life and, when
// it does, fetches the closest biographical facts to ground the answer.
package biorouter

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/samber/lo"

	"github.com/EternisAI/persona-twin/pkg/store"
)

const DefaultTopK = 5

type Topic string

const (
	TopicOrigins   Topic = "origins"
	TopicFamily    Topic = "family"
	TopicEducation Topic = "education"
	TopicTimeline  Topic = "timeline"
	TopicAwards    Topic = "awards"
)

type Trigger struct {
	Phrase string
	Topic  Topic
}

// Triggers is matched as case-insensitive substrings, so "born" also covers "reborn".
var Triggers = []Trigger{
	{"born", TopicOrigins},
	{"birth", TopicOrigins},
	{"upbringing", TopicOrigins},
	{"grew up", TopicOrigins},
	{"where from", TopicOrigins},
	{"early life", TopicOrigins},
	{"family", TopicFamily},
	{"parents", TopicFamily},
	{"married", TopicFamily},
	{"children", TopicFamily},
	{"education", TopicEducation},
	{"school", TopicEducation},
	{"university", TopicEducation},
	{"college", TopicEducation},
	{"when did", TopicTimeline},
	{"where did", TopicTimeline},
	{"timeline", TopicTimeline},
	{"award", TopicAwards},
	{"prize", TopicAwards},
	{"nobel", TopicAwards},
}

// Match returns the topics whose triggers occur in the utterance, in table order without repeats.
func Match(utterance string) []Topic {
	u := strings.ToLower(utterance)
	var topics []Topic
	for _, t := range Triggers {
		if strings.Contains(u, t.Phrase) {
			topics = append(topics, t.Topic)
		}
	}
	return lo.Uniq(topics)
}

func IsBiographical(utterance string) bool {
	return len(Match(utterance)) > 0
}

type QueryEmbedder interface {
	EmbedOne(ctx context.Context, input string) ([]float32, error)
}

type FactSearcher interface {
	SearchFacts(ctx context.Context, query []float32, personaID int64, k int) ([]store.Hit, error)
}

type Router struct {
	embedder QueryEmbedder
	facts    FactSearcher
	topK     int
	logger   *log.Logger
}

type NewRouterInput struct {
	Embedder QueryEmbedder
	Facts    FactSearcher
	TopK     int
	Logger   *log.Logger
}

func NewRouter(input NewRouterInput) (*Router, error) {
	if input.Embedder == nil {
		return nil, fmt.Errorf("embedder cannot be nil")
	}
	if input.Facts == nil {
		return nil, fmt.Errorf("fact searcher cannot be nil")
	}
	if input.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	topK := input.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Router{embedder: input.Embedder, facts: input.Facts, topK: topK, logger: input.Logger}, nil
}

// Resolve returns fact texts for a biographical utterance, most similar first. Non-biographical
// utterances return nil without touching the backends. Embedding or search failures are logged
// and yield an empty result so the chat turn can proceed ungrounded.
func (r *Router) Resolve(ctx context.Context, personaID int64, utterance string) []string {
	topics := Match(utterance)
	if len(topics) == 0 {
		return nil
	}

	vec, err := r.embedder.EmbedOne(ctx, utterance)
	if err != nil {
		r.logger.Warn("Bio grounding skipped: embedding failed", "persona_id", personaID, "error", err)
		return []string{}
	}

	hits, err := r.facts.SearchFacts(ctx, vec, personaID, r.topK)
	if err != nil {
		r.logger.Warn("Bio grounding skipped: fact search failed", "persona_id", personaID, "error", err)
		return []string{}
	}

	facts := lo.Map(hits, func(h store.Hit, _ int) string { return h.Text })
	if len(facts) > r.topK {
		facts = facts[:r.topK]
	}
	r.logger.Debug("Bio grounding", "persona_id", personaID, "topics", topics, "facts", len(facts))
	return facts
}
