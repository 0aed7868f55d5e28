package chat

import (
	"encoding/json"
	"strings"

	"github.com/EternisAI/persona-twin/pkg/apperr"
	"github.com/EternisAI/persona-twin/pkg/llm"
	"github.com/EternisAI/persona-twin/pkg/prompts"
)

// Request is the body of a chat call. Either Message or Messages must be set.
type Request struct {
	PersonaID   *int64            `json:"persona_id,omitempty"`
	PersonaName string            `json:"persona_name,omitempty"`
	Message     string            `json:"message,omitempty"`
	Messages    []prompts.Message `json:"messages,omitempty"`
	Temperature *float64          `json:"temperature,omitempty"`
	TopP        *float64          `json:"top_p,omitempty"`
	MaxTokens   *int              `json:"max_tokens,omitempty"`
	Stream      bool              `json:"stream,omitempty"`
}

// UnmarshalJSON also accepts "persona" for persona_name and "question" for message.
func (r *Request) UnmarshalJSON(data []byte) error {
	type plain Request
	var aux struct {
		plain
		Persona  string `json:"persona"`
		Question string `json:"question"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*r = Request(aux.plain)
	if r.PersonaName == "" {
		r.PersonaName = aux.Persona
	}
	if r.Message == "" {
		r.Message = aux.Question
	}
	return nil
}

var allowedRoles = map[string]struct{}{
	prompts.RoleUser:      {},
	prompts.RoleAssistant: {},
	prompts.RoleSystem:    {},
}

func (r Request) Validate() error {
	if strings.TrimSpace(r.Message) == "" && len(r.Messages) == 0 {
		return apperr.InvalidInput("chat", "either 'message' (or 'question') or 'messages' is required")
	}
	for i, m := range r.Messages {
		if _, ok := allowedRoles[m.Role]; !ok {
			return apperr.InvalidInput("chat", "messages[%d]: role must be one of user, assistant, system; got %q", i, m.Role)
		}
	}
	if r.MaxTokens != nil && *r.MaxTokens <= 0 {
		return apperr.InvalidInput("chat", "max_tokens must be positive")
	}
	return nil
}

// History is the conversation to send after the system messages. A bare
// Message becomes a single user turn.
func (r Request) History() []prompts.Message {
	if len(r.Messages) > 0 {
		return r.Messages
	}
	return []prompts.Message{{Role: prompts.RoleUser, Content: r.Message}}
}

// LastUserUtterance is the most recent non-empty user turn, trimmed.
func (r Request) LastUserUtterance() string {
	h := r.History()
	for i := len(h) - 1; i >= 0; i-- {
		if h[i].Role != prompts.RoleUser {
			continue
		}
		if c := strings.TrimSpace(h[i].Content); c != "" {
			return c
		}
	}
	return ""
}

func (r Request) Params() llm.Params {
	p := llm.DefaultParams
	if r.Temperature != nil {
		p.Temperature = *r.Temperature
	}
	if r.TopP != nil {
		p.TopP = *r.TopP
	}
	if r.MaxTokens != nil {
		p.MaxTokens = *r.MaxTokens
	}
	return p
}

type Response struct {
	Answer      string `json:"answer"`
	PersonaID   int64  `json:"persona_id"`
	PersonaName string `json:"persona_name"`
}
