// Package models defines the domain types for Ansuz.
package models

import "time"

// Card is a single flashcard. Front and Back hold arbitrary HTML and may
// embed media as data: URIs or reference it by http(s) URL.
type Card struct {
	Front string   `json:"front"`
	Back  string   `json:"back"`
	Tags  []string `json:"tags,omitempty"`
}

// Deck is a named collection of cards.
type Deck struct {
	Name  string `json:"name"`
	Cards []Card `json:"cards"`
}

// DeckMetadata is a lightweight representation returned by list operations.
type DeckMetadata struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}
