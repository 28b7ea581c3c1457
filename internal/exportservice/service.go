// Package exportservice coordinates the deck vault, the deck store and
// the Anki exporter behind one service type used by the API and the MCP
// server.
package exportservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/starford/ansuz/internal/anki"
	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/checksum"
	"github.com/starford/ansuz/internal/deckfile"
	"github.com/starford/ansuz/internal/deckstore"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/storage"
)

// DeckDetail is the full representation of a deck.
type DeckDetail struct {
	Name      string        `json:"name"`
	Title     string        `json:"title"`
	Content   string        `json:"content"`
	Checksum  string        `json:"checksum"`
	Tags      []string      `json:"tags"`
	Cards     []models.Card `json:"cards"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// DeckListItem is a lightweight item in a list response.
type DeckListItem struct {
	Name      string    `json:"name"`
	Title     string    `json:"title"`
	Checksum  string    `json:"checksum"`
	Tags      []string  `json:"tags"`
	CardCount int       `json:"card_count"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Service coordinates vault, store and exporter operations.
type Service struct {
	store    storage.Provider
	db       *deckstore.DB
	exporter *anki.Exporter
	logger   *slog.Logger
}

// NewService creates a new deck service.
func NewService(store storage.Provider, db *deckstore.DB, exporter *anki.Exporter, logger *slog.Logger) *Service {
	return &Service{store: store, db: db, exporter: exporter, logger: logger}
}

// GetDeck reads a deck from storage and parses its cards.
func (s *Service) GetDeck(_ context.Context, name string) (*DeckDetail, error) {
	row, err := s.db.GetDeck(name)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, apperr.ErrNotFound
	}
	data, err := s.store.Read(row.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return s.buildDeckDetail(name, data)
}

// CreateDeck writes a new deck file and indexes it. The deck file lives
// at the vault root as <name>.md.
func (s *Service) CreateDeck(_ context.Context, name string, content []byte) (*DeckDetail, error) {
	path := name + ".md"
	if _, err := s.store.Read(path); err == nil {
		return nil, apperr.ErrAlreadyExists
	}
	if err := s.store.Write(path, content); err != nil {
		return nil, err
	}
	if err := s.indexDeck(name, path, content); err != nil {
		return nil, err
	}
	return s.buildDeckDetail(name, content)
}

// UpdateDeck writes updated content with optimistic concurrency.
func (s *Service) UpdateDeck(_ context.Context, name string, content []byte, ifMatch string) (*DeckDetail, error) {
	row, err := s.db.GetDeck(name)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, apperr.ErrNotFound
	}
	existing, err := s.store.Read(row.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	if ifMatch != "" && ifMatch != checksum.Sum(existing) {
		return nil, apperr.ErrConflict
	}
	if err := s.store.Write(row.Path, content); err != nil {
		return nil, err
	}
	if err := s.indexDeck(name, row.Path, content); err != nil {
		return nil, err
	}
	return s.buildDeckDetail(name, content)
}

// DeleteDeck removes a deck from storage and the store.
func (s *Service) DeleteDeck(_ context.Context, name string) error {
	row, err := s.db.GetDeck(name)
	if err != nil {
		return err
	}
	if row == nil {
		return apperr.ErrNotFound
	}
	if err := s.store.Delete(row.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return s.db.DeleteDeck(name)
}

// AddCard appends a card section to an existing deck file and reindexes.
func (s *Service) AddCard(ctx context.Context, name string, front, back string, tags []string) (*DeckDetail, error) {
	row, err := s.db.GetDeck(name)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, apperr.ErrNotFound
	}
	existing, err := s.store.Read(row.Path)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	b.Write(existing)
	if len(existing) > 0 && existing[len(existing)-1] != '\n' {
		b.WriteByte('\n')
	}
	b.WriteString("\n## ")
	b.WriteString(front)
	b.WriteString("\n\n")
	b.WriteString(back)
	b.WriteByte('\n')
	for _, tag := range tags {
		b.WriteString("#" + tag + " ")
	}
	if len(tags) > 0 {
		b.WriteByte('\n')
	}

	return s.UpdateDeck(ctx, name, []byte(b.String()), "")
}

// ListDecks returns all decks sorted by name.
func (s *Service) ListDecks(_ context.Context) ([]DeckListItem, error) {
	rows, err := s.db.ListDecks()
	if err != nil {
		return nil, err
	}
	items := make([]DeckListItem, len(rows))
	for i, r := range rows {
		items[i] = DeckListItem{
			Name:      r.Name,
			Title:     r.Title,
			Checksum:  r.Checksum,
			Tags:      nonNilSlice(r.Tags),
			CardCount: r.CardCount,
			UpdatedAt: r.UpdatedAt,
		}
	}
	return items, nil
}

// Search delegates card search to the store.
func (s *Service) Search(_ context.Context, query string, limit int) ([]deckstore.CardHit, error) {
	return s.db.SearchCards(query, limit)
}

// Export builds an Anki package from the named decks. An empty names
// slice exports every deck in the store.
func (s *Service) Export(ctx context.Context, names []string, opts anki.Options) (*anki.Package, error) {
	if len(names) == 0 {
		rows, err := s.db.ListDecks()
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			names = append(names, r.Name)
		}
	}

	decks := make([]models.Deck, 0, len(names))
	for _, name := range names {
		row, err := s.db.GetDeck(name)
		if err != nil {
			return nil, err
		}
		if row == nil {
			return nil, fmt.Errorf("exportservice: deck %q: %w", name, apperr.ErrNotFound)
		}
		cards, err := s.db.Cards(name)
		if err != nil {
			return nil, err
		}
		title := row.Title
		if title == "" {
			title = row.Name
		}
		decks = append(decks, models.Deck{Name: title, Cards: cards})
	}

	pkg, err := s.exporter.Export(ctx, decks, opts)
	if err != nil {
		return nil, err
	}
	s.logger.Info("export complete",
		slog.Int("decks", len(decks)),
		slog.Int("cards", pkg.CardCount),
		slog.String("filename", pkg.Filename))
	return pkg, nil
}

// indexDeck parses data and upserts it into the store.
func (s *Service) indexDeck(name, path string, data []byte) error {
	res, err := deckfile.Parse(data)
	if err != nil {
		return err
	}
	title := res.Title
	if title == "" {
		title = name
	}
	return s.db.UpsertDeck(deckstore.DeckRow{
		Name:      name,
		Path:      path,
		Title:     title,
		Checksum:  checksum.Sum(data),
		Tags:      nonNilSlice(res.Tags),
		UpdatedAt: time.Now(),
	}, res.Cards)
}

// buildDeckDetail constructs a DeckDetail from raw data without re-reading
// the file.
func (s *Service) buildDeckDetail(name string, data []byte) (*DeckDetail, error) {
	res, err := deckfile.Parse(data)
	if err != nil {
		return nil, err
	}
	title := res.Title
	if title == "" {
		title = name
	}
	return &DeckDetail{
		Name:      name,
		Title:     title,
		Content:   string(data),
		Checksum:  checksum.Sum(data),
		Tags:      nonNilSlice(res.Tags),
		Cards:     nonNilSlice(res.Cards),
		UpdatedAt: time.Now(),
	}, nil
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
