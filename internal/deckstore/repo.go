package deckstore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/starford/ansuz/internal/models"
)

// DeckRow represents a row in the decks table.
type DeckRow struct {
	Name      string
	Path      string
	Title     string
	Checksum  string
	Tags      []string
	CardCount int
	UpdatedAt time.Time
}

// CardHit is one card search result.
type CardHit struct {
	Deck     string
	Position int
	Front    string
	Back     string
}

// UpsertDeck inserts or replaces a deck and its cards within a transaction.
func (db *DB) UpsertDeck(d DeckRow, cards []models.Card) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("deckstore: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	tagsJSON, _ := json.Marshal(d.Tags)

	_, err = tx.Exec(`
		INSERT INTO decks (name, path, title, checksum, tags, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			path       = excluded.path,
			title      = excluded.title,
			checksum   = excluded.checksum,
			tags       = excluded.tags,
			updated_at = excluded.updated_at
	`, d.Name, d.Path, d.Title, d.Checksum, string(tagsJSON), d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("deckstore: upsert deck: %w", err)
	}

	// Replace cards: delete old then bulk insert in file order.
	_, _ = tx.Exec(`DELETE FROM cards WHERE deck = ?`, d.Name)
	if len(cards) > 0 {
		stmt, err := tx.Prepare(`INSERT INTO cards (deck, position, front, back, tags) VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("deckstore: prepare card insert: %w", err)
		}
		defer stmt.Close()
		for i, c := range cards {
			cardTags, _ := json.Marshal(c.Tags)
			if _, err := stmt.Exec(d.Name, i, c.Front, c.Back, string(cardTags)); err != nil {
				return fmt.Errorf("deckstore: insert card: %w", err)
			}
		}
	}

	return tx.Commit()
}

// DeleteDeck removes a deck and its cards.
func (db *DB) DeleteDeck(name string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("deckstore: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, _ = tx.Exec(`DELETE FROM cards WHERE deck = ?`, name)
	_, _ = tx.Exec(`DELETE FROM decks WHERE name = ?`, name)

	return tx.Commit()
}

// GetChecksum returns the stored checksum for a deck, or empty string if
// not found.
func (db *DB) GetChecksum(name string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM decks WHERE name = ?`, name).Scan(&cs)
	if err != nil {
		return "", nil // not found is fine
	}
	return cs, nil
}

// GetDeck returns one deck row, or nil when it does not exist.
func (db *DB) GetDeck(name string) (*DeckRow, error) {
	row := db.conn.QueryRow(`
		SELECT d.name, d.path, d.title, d.checksum, d.tags, d.updated_at,
		       (SELECT count(*) FROM cards c WHERE c.deck = d.name)
		FROM decks d WHERE d.name = ?
	`, name)

	var d DeckRow
	var tagsJSON string
	err := row.Scan(&d.Name, &d.Path, &d.Title, &d.Checksum, &tagsJSON, &d.UpdatedAt, &d.CardCount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("deckstore: get deck: %w", err)
	}
	_ = json.Unmarshal([]byte(tagsJSON), &d.Tags)
	return &d, nil
}

// ListDecks returns every deck with its card count, sorted by name.
func (db *DB) ListDecks() ([]DeckRow, error) {
	rows, err := db.conn.Query(`
		SELECT d.name, d.path, d.title, d.checksum, d.tags, d.updated_at,
		       (SELECT count(*) FROM cards c WHERE c.deck = d.name)
		FROM decks d ORDER BY d.name
	`)
	if err != nil {
		return nil, fmt.Errorf("deckstore: list decks: %w", err)
	}
	defer rows.Close()

	var out []DeckRow
	for rows.Next() {
		var d DeckRow
		var tagsJSON string
		if err := rows.Scan(&d.Name, &d.Path, &d.Title, &d.Checksum, &tagsJSON, &d.UpdatedAt, &d.CardCount); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(tagsJSON), &d.Tags)
		out = append(out, d)
	}
	return out, rows.Err()
}

// Cards returns a deck's cards in file order.
func (db *DB) Cards(name string) ([]models.Card, error) {
	rows, err := db.conn.Query(`SELECT front, back, tags FROM cards WHERE deck = ? ORDER BY position`, name)
	if err != nil {
		return nil, fmt.Errorf("deckstore: cards: %w", err)
	}
	defer rows.Close()

	var out []models.Card
	for rows.Next() {
		var c models.Card
		var tagsJSON string
		if err := rows.Scan(&c.Front, &c.Back, &tagsJSON); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(tagsJSON), &c.Tags)
		out = append(out, c)
	}
	return out, rows.Err()
}

// AllChecksums returns every deck name with its stored checksum.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT name, checksum FROM decks`)
	if err != nil {
		return nil, fmt.Errorf("deckstore: all checksums: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var name, cs string
		if err := rows.Scan(&name, &cs); err != nil {
			return nil, err
		}
		out[name] = cs
	}
	return out, rows.Err()
}

// SearchCards performs a LIKE-based search over card fronts and backs.
func (db *DB) SearchCards(query string, limit int) ([]CardHit, error) {
	if limit <= 0 {
		limit = 20
	}
	like := "%" + query + "%"
	rows, err := db.conn.Query(`
		SELECT deck, position, front, back
		FROM cards
		WHERE front LIKE ? OR back LIKE ?
		ORDER BY deck, position
		LIMIT ?
	`, like, like, limit)
	if err != nil {
		return nil, fmt.Errorf("deckstore: search: %w", err)
	}
	defer rows.Close()

	var out []CardHit
	for rows.Next() {
		var h CardHit
		if err := rows.Scan(&h.Deck, &h.Position, &h.Front, &h.Back); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
