package deckstore

import (
	"log/slog"

	"github.com/starford/ansuz/internal/deckfile"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/storage"
)

// Sync walks the vault and brings the store up to date:
//   - new/changed deck files are parsed and upserted
//   - decks whose files are gone from disk are deleted from the store
func Sync(db *DB, store storage.Provider, logger *slog.Logger) error {
	metas, err := store.List("")
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Name] = struct{}{}

		if checksums[m.Name] == m.Checksum {
			continue
		}

		data, err := store.Read(m.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if err := indexDeck(db, m, data); err != nil {
			logger.Warn("sync: index failed", slog.String("deck", m.Name), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("deck", m.Name))
		}
	}

	// Remove stale entries.
	for name := range checksums {
		if _, ok := disk[name]; !ok {
			if err := db.DeleteDeck(name); err != nil {
				logger.Warn("sync: delete failed", slog.String("deck", name), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("deck", name))
			}
		}
	}

	return nil
}

// indexDeck parses a deck file and upserts it into the store.
func indexDeck(db *DB, m models.DeckMetadata, data []byte) error {
	res, err := deckfile.Parse(data)
	if err != nil {
		return err
	}

	title := res.Title
	if title == "" {
		title = m.Name
	}

	return db.UpsertDeck(DeckRow{
		Name:      m.Name,
		Path:      m.Path,
		Title:     title,
		Checksum:  m.Checksum,
		Tags:      res.Tags,
		UpdatedAt: m.UpdatedAt,
	}, res.Cards)
}
