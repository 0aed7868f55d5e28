package prompts

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var refDate = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func TestBuildPersonaSystemMessagesIdentityOnly(t *testing.T) {
	msgs, err := BuildPersonaSystemMessages(PersonaSystemPrompt{
		Name:          "Richard Feynman",
		StylePrompt:   "   ",
		ReferenceDate: refDate,
	})
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	identity := msgs[0]
	assert.Equal(t, RoleSystem, identity.Role)
	assert.True(t, strings.HasPrefix(identity.Content, "You are Richard Feynman. Answer in first person as Richard Feynman.\n"))
	assert.Contains(t, identity.Content, "tone=clear, curious, witty.")
	assert.Contains(t, identity.Content, "cadence when appropriate.")
	assert.Contains(t, identity.Content, "Context date: 2024-06-01")
	assert.NotContains(t, identity.Content, "{{")
}

func TestBuildPersonaSystemMessagesWithStyleAndFacts(t *testing.T) {
	msgs, err := BuildPersonaSystemMessages(PersonaSystemPrompt{
		Name:          "Marie Curie",
		StylePrompt:   "Speak plainly.\nFavor precise terms.",
		BioFacts:      []string{"Born in Warsaw in 1867.", "Won two Nobel prizes."},
		ReferenceDate: refDate,
	})
	require.NoError(t, err)
	require.Len(t, msgs, 3)

	for _, m := range msgs {
		assert.Equal(t, RoleSystem, m.Role)
	}
	assert.Contains(t, msgs[0].Content, "tone=based on the style prompt below")
	assert.Contains(t, msgs[0].Content, "cadence matching the style prompt below")
	assert.Equal(t, "Style prompt for Marie Curie:\nSpeak plainly.\nFavor precise terms.", msgs[1].Content)
	assert.Equal(t,
		"Biographical facts (authoritative; do not contradict):\n- Born in Warsaw in 1867.\n- Won two Nobel prizes.",
		msgs[2].Content)
}

func TestBuildPersonaSystemMessagesFactsWithoutStyle(t *testing.T) {
	msgs, err := BuildPersonaSystemMessages(PersonaSystemPrompt{
		Name:     "Ada",
		BioFacts: []string{"Studied mathematics."},
	})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[0].Content, "tone=clear, curious, witty")
	assert.Contains(t, msgs[0].Content, "Context date: "+time.Now().Format(time.DateOnly)[:4])
	assert.True(t, strings.HasPrefix(msgs[1].Content, "Biographical facts"))
}

func TestBuildPersonaSystemMessagesIsPure(t *testing.T) {
	in := PersonaSystemPrompt{Name: "Ada", StylePrompt: "Brief.", BioFacts: []string{"a", "b"}, ReferenceDate: refDate}
	first, err := BuildPersonaSystemMessages(in)
	require.NoError(t, err)
	second, err := BuildPersonaSystemMessages(in)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, []string{"a", "b"}, in.BioFacts)
}
