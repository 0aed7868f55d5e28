package prompts

import (
	"bytes"
	_ "embed"
	"strings"
	"text/template"
	"time"
)

//go:embed templates/persona_identity.tmpl
var personaIdentityTemplate string

var personaIdentityTmpl = template.Must(template.New("persona_identity").Parse(personaIdentityTemplate))

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

const (
	defaultToneHint   = "clear, curious, witty"
	defaultPhraseHint = "when appropriate"
	styledToneHint    = "based on the style prompt below"
	styledPhraseHint  = "matching the style prompt below"
)

// Message is one chat message. It carries no behaviour and is safe to share.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type PersonaSystemPrompt struct {
	Name        string
	StylePrompt string
	BioFacts    []string
	// ReferenceDate defaults to today when zero.
	ReferenceDate time.Time
}

type personaIdentityData struct {
	Name       string
	ToneHint   string
	PhraseHint string
	Today      string
}

// BuildPersonaSystemMessages returns identity, then style (when set), then facts (when any).
func BuildPersonaSystemMessages(data PersonaSystemPrompt) ([]Message, error) {
	today := data.ReferenceDate
	if today.IsZero() {
		today = time.Now()
	}
	style := strings.TrimSpace(data.StylePrompt)

	identity := personaIdentityData{
		Name:       data.Name,
		ToneHint:   defaultToneHint,
		PhraseHint: defaultPhraseHint,
		Today:      today.Format(time.DateOnly),
	}
	if style != "" {
		identity.ToneHint = styledToneHint
		identity.PhraseHint = styledPhraseHint
	}

	var buf bytes.Buffer
	if err := personaIdentityTmpl.Execute(&buf, identity); err != nil {
		return nil, err
	}

	msgs := []Message{{Role: RoleSystem, Content: buf.String()}}
	if style != "" {
		msgs = append(msgs, Message{Role: RoleSystem, Content: "Style prompt for " + data.Name + ":\n" + style})
	}
	if len(data.BioFacts) > 0 {
		var b strings.Builder
		b.WriteString("Biographical facts (authoritative; do not contradict):")
		for _, f := range data.BioFacts {
			b.WriteString("\n- ")
			b.WriteString(f)
		}
		msgs = append(msgs, Message{Role: RoleSystem, Content: b.String()})
	}
	return msgs, nil
}
