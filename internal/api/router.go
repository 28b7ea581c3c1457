package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/starford/ansuz/internal/exportservice"
	"github.com/starford/ansuz/internal/sse"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// broker, if non-nil, is mounted at GET /events inside the auth group and
// receives deck/export events from the handlers.
// vaultRoot is used to resolve the assets directory.
func NewRouter(svc *exportservice.Service, authEnabled bool, token string, broker *sse.Broker, vaultRoot string) chi.Router {
	h := NewHandler(svc, broker)
	ah := NewAssetHandler(vaultRoot)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Decks CRUD.
	r.Get("/decks", h.ListDecks)
	r.Post("/decks", h.CreateDeck)
	r.Get("/decks/{name}", h.GetDeck)
	r.Put("/decks/{name}", h.UpdateDeck)
	r.Delete("/decks/{name}", h.DeleteDeck)
	r.Get("/decks/{name}/cards", h.GetCards)

	// Search.
	r.Get("/search", h.Search)

	// Anki package export.
	r.Post("/export", h.Export)

	// Asset upload (auth-protected).
	r.Post("/assets", ah.Upload)

	// SSE endpoint (protected by same auth middleware).
	if broker != nil {
		r.Get("/events", broker.ServeHTTP)
	}

	return r
}
