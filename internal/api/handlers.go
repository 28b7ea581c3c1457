package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/ansuz/internal/anki"
	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/exportservice"
	"github.com/starford/ansuz/internal/sse"
)

// Handler holds API route handlers.
type Handler struct {
	svc    *exportservice.Service
	broker *sse.Broker
}

// NewHandler creates a new Handler. broker may be nil.
func NewHandler(svc *exportservice.Service, broker *sse.Broker) *Handler {
	return &Handler{svc: svc, broker: broker}
}

// deckName extracts the deck name from the URL, decoding any escapes
// OpenAPI clients may apply.
func deckName(r *http.Request) string {
	raw := chi.URLParam(r, "name")
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// ListDecks handles GET /api/decks.
func (h *Handler) ListDecks(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListDecks(r.Context())
	if err != nil {
		slog.Error("list decks failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, DeckListResponse{Decks: items, Total: len(items)})
}

// GetDeck handles GET /api/decks/{name}.
func (h *Handler) GetDeck(w http.ResponseWriter, r *http.Request) {
	name := deckName(r)
	if name == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("name is required"))
		return
	}
	deck, err := h.svc.GetDeck(r.Context(), name)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("get deck failed", slog.String("deck", name), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, deck)
}

// GetCards handles GET /api/decks/{name}/cards.
func (h *Handler) GetCards(w http.ResponseWriter, r *http.Request) {
	name := deckName(r)
	deck, err := h.svc.GetDeck(r.Context(), name)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("get cards failed", slog.String("deck", name), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"deck":  deck.Name,
		"cards": deck.Cards,
	})
}

// CreateDeck handles POST /api/decks.
func (h *Handler) CreateDeck(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req CreateDeckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Name == "" || req.Content == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("name and content are required"))
		return
	}
	if strings.ContainsAny(req.Name, `/\`) {
		writeJSON(w, http.StatusBadRequest, errorBody("deck name must not contain path separators"))
		return
	}
	deck, err := h.svc.CreateDeck(r.Context(), req.Name, []byte(req.Content))
	if err != nil {
		if errors.Is(err, apperr.ErrAlreadyExists) {
			writeJSON(w, http.StatusConflict, errorBody("deck already exists"))
		} else {
			slog.Error("create deck failed", slog.String("deck", req.Name), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	if h.broker != nil {
		h.broker.PublishDeckEvent("created", req.Name)
	}
	writeJSON(w, http.StatusCreated, deck)
}

// UpdateDeck handles PUT /api/decks/{name}.
func (h *Handler) UpdateDeck(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	name := deckName(r)
	if name == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("name is required"))
		return
	}
	var req UpdateDeckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Content == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("content is required"))
		return
	}

	ifMatch := r.Header.Get("If-Match")
	// Strip surrounding quotes if present (standard ETag format).
	ifMatch = strings.Trim(ifMatch, `"`)

	deck, err := h.svc.UpdateDeck(r.Context(), name, []byte(req.Content), ifMatch)
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		case errors.Is(err, apperr.ErrConflict):
			writeJSON(w, http.StatusConflict, errorBody("checksum mismatch"))
		default:
			slog.Error("update deck failed", slog.String("deck", name), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	if h.broker != nil {
		h.broker.PublishDeckEvent("updated", name)
	}
	writeJSON(w, http.StatusOK, deck)
}

// DeleteDeck handles DELETE /api/decks/{name}.
func (h *Handler) DeleteDeck(w http.ResponseWriter, r *http.Request) {
	name := deckName(r)
	if name == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("name is required"))
		return
	}
	if err := h.svc.DeleteDeck(r.Context(), name); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("delete deck failed", slog.String("deck", name), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	if h.broker != nil {
		h.broker.PublishDeckEvent("deleted", name)
	}
	w.WriteHeader(http.StatusNoContent)
}

// Search handles GET /api/search.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		slog.Error("search failed", slog.String("query", q), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if results == nil {
		results = []CardHit{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// Export handles POST /api/export and streams the apkg archive back.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req ExportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}

	pkg, err := h.svc.Export(r.Context(), req.Decks, anki.Options{
		ParentDeckName: req.ParentDeckName,
		NoteTypeName:   req.NoteTypeName,
	})
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			writeJSON(w, http.StatusNotFound, errorBody("deck not found"))
		case errors.Is(err, anki.ErrNoCards):
			writeJSON(w, http.StatusUnprocessableEntity, errorBody("no cards to export"))
		case errors.Is(err, anki.ErrEngineUnavailable):
			writeJSON(w, http.StatusServiceUnavailable, errorBody("export engine unavailable"))
		default:
			slog.Error("export failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}

	if h.broker != nil {
		h.broker.PublishExportCompleted(pkg.Filename, pkg.CardCount)
	}

	w.Header().Set("Content-Type", "application/apkg")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", pkg.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(pkg.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pkg.Data)
}
