package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi"
	"github.com/samber/lo"

	"github.com/EternisAI/persona-twin/pkg/apperr"
	"github.com/EternisAI/persona-twin/pkg/chat"
	"github.com/EternisAI/persona-twin/pkg/store"
)

const (
	stylePreviewLen = 120
	defaultPassageK = 6
	maxPassageK     = 50
)

type personaSummary struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	HasStyle     bool    `json:"has_style"`
	StylePreview *string `json:"style_preview"`
}

type personaDetail struct {
	ID          int64             `json:"id"`
	Name        string            `json:"name"`
	StylePrompt *string           `json:"style_prompt"`
	TopPhrases  *store.TopPhrases `json:"top_phrases"`
}

type passage struct {
	ID    int64   `json:"id"`
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

type passagesResponse struct {
	PersonaID int64     `json:"persona_id"`
	Query     string    `json:"query"`
	Passages  []passage `json:"passages"`
}

func summarize(p store.Persona) personaSummary {
	s := personaSummary{ID: p.ID, Name: p.Name, HasStyle: p.Style() != ""}
	if s.HasStyle {
		runes := []rune(*p.StylePrompt)
		s.StylePreview = lo.ToPtr(string(runes[:min(len(runes), stylePreviewLen)]))
	}
	return s
}

func (h *handlers) listPersonas(w http.ResponseWriter, r *http.Request) {
	personas, err := h.personas.ListPersonas(r.Context())
	if err != nil {
		h.writeError(w, r, h.logs.ForHandler("api.personas"), err)
		return
	}
	writeJSON(w, http.StatusOK, lo.Map(personas, func(p store.Persona, _ int) personaSummary { return summarize(p) }))
}

func (h *handlers) getPersona(w http.ResponseWriter, r *http.Request) {
	id, ok := personaID(w, r)
	if !ok {
		return
	}
	p, err := h.personas.GetPersona(r.Context(), id)
	if errors.Is(err, apperr.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	if err != nil {
		h.writeError(w, r, h.logs.ForHandler("api.personas"), err)
		return
	}
	writeJSON(w, http.StatusOK, personaDetail{ID: p.ID, Name: p.Name, StylePrompt: p.StylePrompt, TopPhrases: p.TopPhrases})
}

func (h *handlers) searchPassages(w http.ResponseWriter, r *http.Request) {
	logger := h.logs.ForHandler("api.passages")
	id, ok := personaID(w, r)
	if !ok {
		return
	}
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeDetail(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}
	k := defaultPassageK
	if raw := r.URL.Query().Get("k"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxPassageK {
			writeDetail(w, http.StatusBadRequest, "query parameter 'k' must be an integer in [1, 50]")
			return
		}
		k = n
	}

	if _, err := h.personas.GetPersona(r.Context(), id); err != nil {
		h.writeError(w, r, logger, err)
		return
	}
	vec, err := h.embedder.EmbedOne(r.Context(), q)
	if err != nil {
		h.writeError(w, r, logger, err)
		return
	}
	hits, err := h.chunks.SearchChunks(r.Context(), vec, id, k)
	if err != nil {
		h.writeError(w, r, logger, err)
		return
	}
	writeJSON(w, http.StatusOK, passagesResponse{
		PersonaID: id,
		Query:     q,
		Passages:  lo.Map(hits, func(hit store.Hit, _ int) passage { return passage(hit) }),
	})
}

func (h *handlers) postChat(w http.ResponseWriter, r *http.Request) {
	logger := h.logs.ForHandler("api.chat")

	var req chat.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid request body: "+err.Error())
		return
	}
	resp, err := h.chat.Reply(r.Context(), req)
	if err != nil {
		h.writeError(w, r, logger, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func personaID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "persona id must be an integer")
		return 0, false
	}
	return id, true
}

// statusFor maps error kinds onto HTTP statuses.
func statusFor(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindInvalidInput:
		return http.StatusUnprocessableEntity
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindBackendUnavailable, apperr.KindMalformedResponse:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// detail is the client-facing message: the cause of an app error without its kind prefix.
func detail(err error) string {
	var e *apperr.Error
	if errors.As(err, &e) && e.Err != nil {
		return e.Err.Error()
	}
	return err.Error()
}

func (h *handlers) writeError(w http.ResponseWriter, r *http.Request, logger *log.Logger, err error) {
	status := statusFor(err)
	logger = logger.With("request_id", requestID(r.Context()))
	switch {
	case status == http.StatusNotFound:
		logger.Debug("Not found", "error", err)
	case status >= http.StatusInternalServerError:
		logger.Error("Request failed", "status", status, "error", err)
	default:
		logger.Warn("Rejected request", "status", status, "error", err)
	}

	msg := detail(err)
	if status == http.StatusBadGateway {
		msg = "upstream call failed: " + msg
	}
	if status == http.StatusInternalServerError && apperr.KindOf(err) != apperr.KindConfiguration {
		msg = "internal error"
	}
	writeDetail(w, status, msg)
}

func writeDetail(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
