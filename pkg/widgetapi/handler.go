// Package widgetapi serves display cards as JSON to out-of-process views
// such as a desktop widget or tray helper.
//
// Routes:
//
//	GET /healthz          liveness check
//	GET /cards            every card in display order
//	GET /cards/{position} one card, 1-based, clamped to the available range
package widgetapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/otpkeeper/pkg/display"
	"github.com/dmitrymomot/otpkeeper/pkg/logger"
)

// Source produces cards for the current instant.
type Source interface {
	Cards(ctx context.Context) ([]display.Card, error)
	// Card takes a 0-based index.
	Card(ctx context.Context, index int) (display.Card, error)
}

type cardsResponse struct {
	Count int            `json:"count"`
	Cards []display.Card `json:"cards"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewRouter mounts the widget routes.
func NewRouter(src Source, log *slog.Logger) chi.Router {
	if log == nil {
		log = logger.Nop()
	}
	h := &handler{src: src, log: log.With(logger.Component("widgetapi"))}

	r := chi.NewRouter()
	r.Get("/healthz", h.health)
	r.Route("/cards", func(r chi.Router) {
		r.Get("/", h.list)
		r.Get("/{position}", h.get)
	})
	return r
}

type handler struct {
	src Source
	log *slog.Logger
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ALIVE"))
}

func (h *handler) list(w http.ResponseWriter, r *http.Request) {
	cards, err := h.src.Cards(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if cards == nil {
		cards = []display.Card{}
	}
	writeJSON(w, http.StatusOK, cardsResponse{Count: len(cards), Cards: cards})
}

func (h *handler) get(w http.ResponseWriter, r *http.Request) {
	position, err := strconv.Atoi(chi.URLParam(r, "position"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "position must be an integer"})
		return
	}
	card, err := h.src.Card(r.Context(), position-1)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	h.log.ErrorContext(r.Context(), "cards unavailable", logger.Error(err))
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "cards unavailable"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
