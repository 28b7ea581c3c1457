package anki

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/starford/ansuz/internal/checksum"
	"github.com/starford/ansuz/internal/models"
)

// fieldSep is Anki's reserved unit separator between note fields. Field
// content must never contain it, so it is stripped before joining.
const fieldSep = "\x1f"

func itoa(v int64) string { return strconv.FormatInt(v, 10) }

func sanitizeField(s string) string {
	return strings.ReplaceAll(s, fieldSep, "")
}

// buildCollection applies the schema and populates the col, notes, and
// cards tables. Later inserts reference IDs assigned earlier, so the order
// is fixed: model and deck IDs first, then the col row, then one note and
// one card per input card. Any insert failure is fatal for the whole
// export — the schema is fully controlled here, so a failure indicates a
// bug rather than bad input.
func buildCollection(ctx context.Context, db *sql.DB, decks []models.Deck, opts Options, now time.Time, x *extractor) error {
	total := 0
	for _, d := range decks {
		total += len(d.Cards)
	}
	ids := newIDGen(now.UnixMilli(), len(decks), total)
	modSec := now.Unix()
	modMilli := now.UnixMilli()

	if _, err := db.ExecContext(ctx, collectionSchemaSQL); err != nil {
		return fmt.Errorf("anki: apply collection schema: %w", err)
	}

	m := newModel(ids.model(), ids.deck(0), modSec, opts.NoteTypeName)
	modelsBlob, err := json.Marshal(map[string]model{itoa(m.ID): m})
	if err != nil {
		return fmt.Errorf("anki: encode models: %w", err)
	}

	// Deck id 1 ("Default") must always exist — Anki's format assumes it.
	// Requested decks are nested under the parent deck via :: qualification
	// so an import lands under a single parent in the deck browser.
	deckRecords := map[string]deckRecord{
		"1": newDeckRecord(1, "Default", modSec, true),
	}
	deckIDs := make([]int64, len(decks))
	for i, d := range decks {
		id := ids.deck(i)
		deckIDs[i] = id
		deckRecords[itoa(id)] = newDeckRecord(id, opts.ParentDeckName+"::"+d.Name, modSec, false)
	}
	decksBlob, err := json.Marshal(deckRecords)
	if err != nil {
		return fmt.Errorf("anki: encode decks: %w", err)
	}

	confBlob, err := json.Marshal(newCollectionConfig(m.ID, deckIDs))
	if err != nil {
		return fmt.Errorf("anki: encode conf: %w", err)
	}
	dconfBlob, err := json.Marshal(map[string]deckConfig{"1": defaultDeckConfig()})
	if err != nil {
		return fmt.Errorf("anki: encode dconf: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO col (id, crt, mod, scm, ver, dty, usn, ls, conf, models, decks, dconf, tags)
		VALUES (1, ?, ?, ?, 11, 0, 0, 0, ?, ?, ?, ?, '{}')
	`, now.Unix(), modMilli, modMilli, string(confBlob), string(modelsBlob), string(decksBlob), string(dconfBlob))
	if err != nil {
		return fmt.Errorf("anki: insert col row: %w", err)
	}

	noteStmt, err := db.PrepareContext(ctx, `
		INSERT INTO notes (id, guid, mid, mod, usn, tags, flds, sfld, csum, flags, data)
		VALUES (?, ?, ?, ?, -1, ?, ?, ?, ?, 0, '')
	`)
	if err != nil {
		return fmt.Errorf("anki: prepare note insert: %w", err)
	}
	defer noteStmt.Close()

	cardStmt, err := db.PrepareContext(ctx, `
		INSERT INTO cards (id, nid, did, ord, mod, usn, type, queue, due,
		                   ivl, factor, reps, lapses, left, odue, odid, flags, data)
		VALUES (?, ?, ?, 0, ?, -1, 0, 0, ?, 0, 0, 0, 0, 0, 0, 0, 0, '')
	`)
	if err != nil {
		return fmt.Errorf("anki: prepare card insert: %w", err)
	}
	defer cardStmt.Close()

	j := 0
	for i, d := range decks {
		for _, c := range d.Cards {
			front := sanitizeField(x.rewrite(c.Front))
			back := sanitizeField(x.rewrite(c.Back))
			csum := checksum.Field(front)

			noteID := ids.note(j)
			_, err = noteStmt.ExecContext(ctx,
				noteID, uuid.NewString(), m.ID, modSec,
				strings.Join(c.Tags, " "), front+fieldSep+back, front, int64(csum))
			if err != nil {
				return fmt.Errorf("anki: insert note: %w", err)
			}

			// due increases strictly across the whole export so the new-card
			// queue matches insertion order.
			j++
			_, err = cardStmt.ExecContext(ctx, ids.card(j-1), noteID, deckIDs[i], modSec, j)
			if err != nil {
				return fmt.Errorf("anki: insert card: %w", err)
			}

			if opts.OnProgress != nil {
				opts.OnProgress(float64(j) / float64(total))
			}
		}
	}

	return nil
}
