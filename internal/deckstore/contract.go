package deckstore

import "github.com/starford/ansuz/internal/models"

// DeckIndex defines the interface for deck store operations. Consumers
// should depend on this interface rather than the concrete *DB type to
// facilitate testing with mocks.
type DeckIndex interface {
	UpsertDeck(d DeckRow, cards []models.Card) error
	DeleteDeck(name string) error
	GetChecksum(name string) (string, error)
	GetDeck(name string) (*DeckRow, error)
	ListDecks() ([]DeckRow, error)
	Cards(name string) ([]models.Card, error)
	AllChecksums() (map[string]string, error)
	SearchCards(query string, limit int) ([]CardHit, error)
	Close() error
}

// Verify *DB satisfies DeckIndex at compile time.
var _ DeckIndex = (*DB)(nil)
