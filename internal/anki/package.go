package anki

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/ansuz/internal/models"
)

// Defaults applied when Options fields are left empty.
const (
	DefaultParentDeckName = "AddFlashcard Export"
	DefaultNoteTypeName   = "AddFlashcard Basic"

	// DefaultMaxVideoBytes bounds data-URI video payloads pulled into the
	// archive. Zero disables the limit.
	DefaultMaxVideoBytes = 2 << 20
)

// Options customizes one export call.
type Options struct {
	// ParentDeckName is the deck every exported deck is nested under.
	ParentDeckName string
	// NoteTypeName names the shared note type (model) of the export.
	NoteTypeName string
	// OnProgress, if set, is called after each card with a non-decreasing
	// fraction in (0,1], ending at exactly 1.
	OnProgress func(fraction float64)
}

// Package is a finished .apkg archive ready for download or writing to disk.
type Package struct {
	Filename   string
	Data       []byte
	CardCount  int
	MediaCount int
}

// Exporter builds .apkg packages. It is stateless between calls apart from
// a one-time engine availability probe, so a single value can be shared;
// concurrent export calls are not defended against (the wall-clock ID
// scheme can collide) — callers serialize.
type Exporter struct {
	logger        *slog.Logger
	maxVideoBytes int64

	probeOnce sync.Once
	probeErr  error
}

// NewExporter creates an exporter. maxVideoBytes bounds inline video
// extraction (0 = unlimited).
func NewExporter(logger *slog.Logger, maxVideoBytes int64) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{logger: logger, maxVideoBytes: maxVideoBytes}
}

// engineReady probes the SQLite driver exactly once per process and caches
// the result, so an unavailable engine surfaces as the same descriptive
// error on every call.
func (e *Exporter) engineReady() error {
	e.probeOnce.Do(func() {
		db, err := sql.Open("sqlite3", ":memory:")
		if err == nil {
			err = db.Ping()
			_ = db.Close()
		}
		if err != nil {
			e.probeErr = fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
		}
	})
	return e.probeErr
}

// ExportDeck packages a single deck. It is the one-element case of Export.
func (e *Exporter) ExportDeck(ctx context.Context, deckName string, cards []models.Card, opts Options) (*Package, error) {
	return e.Export(ctx, []models.Deck{{Name: deckName, Cards: cards}}, opts)
}

// Export packages one or more decks into a single .apkg archive. It either
// completes and returns the archive or fails with nothing persisted; there
// is no partial-success mode.
func (e *Exporter) Export(ctx context.Context, decks []models.Deck, opts Options) (*Package, error) {
	total := 0
	for _, d := range decks {
		total += len(d.Cards)
	}
	if total == 0 {
		return nil, ErrNoCards
	}
	if err := e.engineReady(); err != nil {
		return nil, err
	}

	if opts.ParentDeckName == "" {
		opts.ParentDeckName = DefaultParentDeckName
	}
	if opts.NoteTypeName == "" {
		opts.NoteTypeName = DefaultNoteTypeName
	}

	now := time.Now()
	x := newExtractor(e.logger, now.UnixMilli(), e.maxVideoBytes)

	dir, err := os.MkdirTemp("", "ansuz-apkg-*")
	if err != nil {
		return nil, fmt.Errorf("anki: create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	dbPath := filepath.Join(dir, "collection.anki2")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}
	if err := buildCollection(ctx, db, decks, opts, now, x); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := db.Close(); err != nil {
		return nil, fmt.Errorf("anki: close collection: %w", err)
	}

	collection, err := os.ReadFile(dbPath)
	if err != nil {
		return nil, fmt.Errorf("anki: read collection bytes: %w", err)
	}

	media := x.mediaFiles()
	archive, err := buildArchive(collection, media)
	if err != nil {
		return nil, err
	}

	e.logger.Info("anki: export complete",
		slog.Int("decks", len(decks)),
		slog.Int("cards", total),
		slog.Int("media", len(media)),
		slog.Int("bytes", len(archive)))

	return &Package{
		Filename:   packageFilename(decks, opts.ParentDeckName),
		Data:       archive,
		CardCount:  total,
		MediaCount: len(media),
	}, nil
}

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

// packageFilename derives <slug>.apkg from the deck name (single-deck
// export) or the parent deck name (multi-deck export).
func packageFilename(decks []models.Deck, parent string) string {
	name := parent
	if len(decks) == 1 {
		name = decks[0].Name
	}
	slug := strings.Trim(slugRe.ReplaceAllString(strings.ToLower(name), "-"), "-")
	if slug == "" {
		slug = "deck"
	}
	return slug + ".apkg"
}
