package api

import (
	"github.com/starford/ansuz/internal/deckstore"
	"github.com/starford/ansuz/internal/exportservice"
)

// CreateDeckRequest is the request body for creating a deck.
type CreateDeckRequest struct {
	Name    string `json:"name" example:"biology"`
	Content string `json:"content" example:"---\ntitle: Biology\n---\n\n## Q\n\nA"`
}

// UpdateDeckRequest is the request body for updating a deck.
type UpdateDeckRequest struct {
	Content string `json:"content" example:"## Updated\n\nContent"`
}

// ExportRequest is the request body for POST /export. An empty deck list
// exports every deck in the store.
type ExportRequest struct {
	Decks          []string `json:"decks" example:"biology,geology"`
	ParentDeckName string   `json:"parent_deck_name,omitempty" example:"My Export"`
	NoteTypeName   string   `json:"note_type_name,omitempty" example:"Basic"`
}

// DeckDetail is the full deck response type (aliased from the domain layer).
type DeckDetail = exportservice.DeckDetail

// DeckListItem is a lightweight item in a list response (aliased from the domain layer).
type DeckListItem = exportservice.DeckListItem

// DeckListResponse wraps deck listings.
type DeckListResponse struct {
	Decks []DeckListItem `json:"decks"`
	Total int            `json:"total" example:"42"`
}

// CardHit is a single card search result (aliased from the store layer).
type CardHit = deckstore.CardHit

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []CardHit `json:"results"`
}

// AssetUploadResponse is returned after a successful asset upload.
type AssetUploadResponse struct {
	Filename string `json:"filename" example:"diagram.png"`
	Size     int64  `json:"size" example:"12345"`
	URL      string `json:"url" example:"/assets/diagram.png"`
}
