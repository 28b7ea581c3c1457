package anki

import (
	"archive/zip"
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/starford/ansuz/internal/checksum"
	"github.com/starford/ansuz/internal/models"
)

func testExporter(t *testing.T) *Exporter {
	t.Helper()
	return NewExporter(testLogger(), DefaultMaxVideoBytes)
}

// readArchive unpacks a package into entry-name → bytes.
func readArchive(t *testing.T, pkg *Package) map[string][]byte {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(pkg.Data), int64(len(pkg.Data)))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	out := make(map[string][]byte, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open entry %s: %v", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("read entry %s: %v", f.Name, err)
		}
		if _, dup := out[f.Name]; dup {
			t.Fatalf("duplicate archive entry %s", f.Name)
		}
		out[f.Name] = data
	}
	return out
}

// openCollection writes the collection entry to disk and opens it.
func openCollection(t *testing.T, entries map[string][]byte) *sql.DB {
	t.Helper()
	data, ok := entries[collectionEntryName]
	if !ok {
		t.Fatal("collection.anki2 missing from archive")
	}
	path := filepath.Join(t.TempDir(), "collection.anki2")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("open collection: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestExportRejectsZeroCards(t *testing.T) {
	e := testExporter(t)

	_, err := e.ExportDeck(context.Background(), "Empty", nil, Options{})
	if !errors.Is(err, ErrNoCards) {
		t.Errorf("ExportDeck with no cards: err = %v, want ErrNoCards", err)
	}

	_, err = e.Export(context.Background(), []models.Deck{{Name: "A"}, {Name: "B"}}, Options{})
	if !errors.Is(err, ErrNoCards) {
		t.Errorf("Export with empty decks: err = %v, want ErrNoCards", err)
	}
}

func TestExportBasicCard(t *testing.T) {
	e := testExporter(t)
	pkg, err := e.ExportDeck(context.Background(), "Test",
		[]models.Card{{Front: "<p>Q</p>", Back: "<p>A</p>"}}, Options{})
	if err != nil {
		t.Fatalf("ExportDeck: %v", err)
	}
	if pkg.Filename != "test.apkg" {
		t.Errorf("filename = %q, want %q", pkg.Filename, "test.apkg")
	}

	entries := readArchive(t, pkg)
	if string(entries["media"]) != "{}" {
		t.Errorf("media manifest = %q, want empty object", entries["media"])
	}

	db := openCollection(t, entries)
	var flds, sfld string
	var csum int64
	if err := db.QueryRow(`SELECT flds, sfld, csum FROM notes`).Scan(&flds, &sfld, &csum); err != nil {
		t.Fatalf("read note: %v", err)
	}
	if want := "<p>Q</p>\x1f<p>A</p>"; flds != want {
		t.Errorf("flds = %q, want %q", flds, want)
	}
	if sfld != "<p>Q</p>" {
		t.Errorf("sfld = %q, want %q", sfld, "<p>Q</p>")
	}
	if want := int64(checksum.Field("<p>Q</p>")); csum != want {
		t.Errorf("csum = %d, want %d", csum, want)
	}
}

func TestExportFieldSeparatorStripped(t *testing.T) {
	e := testExporter(t)
	pkg, err := e.ExportDeck(context.Background(), "Sep",
		[]models.Card{{Front: "a\x1fb", Back: "c\x1fd"}}, Options{})
	if err != nil {
		t.Fatalf("ExportDeck: %v", err)
	}
	db := openCollection(t, readArchive(t, pkg))
	var flds string
	if err := db.QueryRow(`SELECT flds FROM notes`).Scan(&flds); err != nil {
		t.Fatal(err)
	}
	if strings.Count(flds, "\x1f") != 1 {
		t.Errorf("flds must contain exactly one separator, got %q", flds)
	}
	parts := strings.Split(flds, "\x1f")
	if parts[0] != "ab" || parts[1] != "cd" {
		t.Errorf("separator not stripped from field content: %q", flds)
	}
}

func TestExportImageExtraction(t *testing.T) {
	e := testExporter(t)
	pkg, err := e.ExportDeck(context.Background(), "Pics", []models.Card{
		{Front: "Q", Back: `A <img src="data:image/png;base64,AAAA">`},
	}, Options{})
	if err != nil {
		t.Fatalf("ExportDeck: %v", err)
	}
	entries := readArchive(t, pkg)

	nameRe := regexp.MustCompile(`^img_\d+_0\.png$`)
	var imgName string
	for name := range entries {
		if nameRe.MatchString(name) {
			imgName = name
		}
	}
	if imgName == "" {
		t.Fatal("no extracted image entry in archive")
	}
	if got := entries[imgName]; !bytes.Equal(got, []byte{0, 0, 0}) {
		t.Errorf("image bytes = %v, want [0 0 0]", got)
	}

	var manifest map[string]string
	if err := json.Unmarshal(entries["media"], &manifest); err != nil {
		t.Fatalf("parse manifest: %v", err)
	}
	if manifest["0"] != imgName {
		t.Errorf("manifest[0] = %q, want %q", manifest["0"], imgName)
	}

	db := openCollection(t, entries)
	var flds string
	if err := db.QueryRow(`SELECT flds FROM notes`).Scan(&flds); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(flds, `src="`+imgName+`"`) {
		t.Errorf("back field should reference %s: %q", imgName, flds)
	}
}

func TestExportAudioExtraction(t *testing.T) {
	e := testExporter(t)
	pkg, err := e.ExportDeck(context.Background(), "Audio", []models.Card{
		{Front: `listen <audio src="data:audio/mpeg;base64,AAAA"></audio>`, Back: "A"},
	}, Options{})
	if err != nil {
		t.Fatalf("ExportDeck: %v", err)
	}
	db := openCollection(t, readArchive(t, pkg))
	var flds string
	if err := db.QueryRow(`SELECT flds FROM notes`).Scan(&flds); err != nil {
		t.Fatal(err)
	}
	front := strings.Split(flds, "\x1f")[0]
	if !regexp.MustCompile(`^listen \[sound:audio_\d+_0\.mp3\]$`).MatchString(front) {
		t.Errorf("front = %q, want literal [sound:...] reference", front)
	}
	if strings.Contains(front, "<audio") {
		t.Errorf("audio element must not survive: %q", front)
	}
}

// Note and card IDs are unique and occupy disjoint spaces.
func TestExportIDSpaces(t *testing.T) {
	e := testExporter(t)
	decks := []models.Deck{
		{Name: "One", Cards: []models.Card{{Front: "1", Back: "a"}, {Front: "2", Back: "b"}}},
		{Name: "Two", Cards: []models.Card{{Front: "3", Back: "c"}}},
	}
	pkg, err := e.Export(context.Background(), decks, Options{})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	db := openCollection(t, readArchive(t, pkg))

	ids := make(map[int64]string)
	for _, q := range []struct{ table string }{{"notes"}, {"cards"}} {
		rows, err := db.Query(`SELECT id FROM ` + q.table)
		if err != nil {
			t.Fatal(err)
		}
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				t.Fatal(err)
			}
			if prev, dup := ids[id]; dup {
				t.Errorf("id %d appears in both %s and %s", id, prev, q.table)
			}
			ids[id] = q.table
		}
		rows.Close()
	}
	if len(ids) != 6 {
		t.Errorf("expected 6 distinct ids (3 notes + 3 cards), got %d", len(ids))
	}
}

func TestExportDeckNesting(t *testing.T) {
	e := testExporter(t)
	pkg, err := e.ExportDeck(context.Background(), "Biology",
		[]models.Card{{Front: "Q", Back: "A"}}, Options{ParentDeckName: "MyExport"})
	if err != nil {
		t.Fatalf("ExportDeck: %v", err)
	}
	db := openCollection(t, readArchive(t, pkg))

	var decksBlob string
	if err := db.QueryRow(`SELECT decks FROM col WHERE id = 1`).Scan(&decksBlob); err != nil {
		t.Fatalf("read col: %v", err)
	}
	var decks map[string]deckRecord
	if err := json.Unmarshal([]byte(decksBlob), &decks); err != nil {
		t.Fatalf("parse decks blob: %v", err)
	}

	def, ok := decks["1"]
	if !ok || def.ID != 1 || def.Name != "Default" {
		t.Errorf("mandatory Default deck missing or wrong: %+v", def)
	}
	found := false
	for _, d := range decks {
		if d.Name == "MyExport::Biology" {
			found = true
		}
	}
	if !found {
		t.Errorf("no deck named MyExport::Biology in %v", decks)
	}
}

func TestExportProgressMonotonic(t *testing.T) {
	e := testExporter(t)
	cards := make([]models.Card, 5)
	for i := range cards {
		cards[i] = models.Card{Front: "Q", Back: "A"}
	}

	var fractions []float64
	_, err := e.ExportDeck(context.Background(), "Prog", cards, Options{
		OnProgress: func(f float64) { fractions = append(fractions, f) },
	})
	if err != nil {
		t.Fatalf("ExportDeck: %v", err)
	}
	if len(fractions) == 0 {
		t.Fatal("progress callback never invoked")
	}
	for i := 1; i < len(fractions); i++ {
		if fractions[i] < fractions[i-1] {
			t.Errorf("progress decreased: %v", fractions)
		}
	}
	if last := fractions[len(fractions)-1]; last != 1 {
		t.Errorf("final fraction = %v, want exactly 1", last)
	}
}

// Two decks of 3 and 2 cards: 5 notes, 5 cards, 3 deck entries, due 1..5.
func TestExportMultipleDecks(t *testing.T) {
	e := testExporter(t)
	decks := []models.Deck{
		{Name: "First", Cards: []models.Card{
			{Front: "1", Back: "a"}, {Front: "2", Back: "b"}, {Front: "3", Back: "c"},
		}},
		{Name: "Second", Cards: []models.Card{
			{Front: "4", Back: "d"}, {Front: "5", Back: "e"},
		}},
	}
	pkg, err := e.Export(context.Background(), decks, Options{})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if pkg.CardCount != 5 {
		t.Errorf("CardCount = %d, want 5", pkg.CardCount)
	}
	db := openCollection(t, readArchive(t, pkg))

	var notes, cards int
	if err := db.QueryRow(`SELECT count(*) FROM notes`).Scan(&notes); err != nil {
		t.Fatal(err)
	}
	if err := db.QueryRow(`SELECT count(*) FROM cards`).Scan(&cards); err != nil {
		t.Fatal(err)
	}
	if notes != 5 || cards != 5 {
		t.Errorf("notes = %d, cards = %d, want 5 and 5", notes, cards)
	}

	rows, err := db.Query(`SELECT due FROM cards ORDER BY id`)
	if err != nil {
		t.Fatal(err)
	}
	defer rows.Close()
	want := 1
	for rows.Next() {
		var due int
		if err := rows.Scan(&due); err != nil {
			t.Fatal(err)
		}
		if due != want {
			t.Errorf("due = %d, want %d", due, want)
		}
		want++
	}

	var decksBlob string
	if err := db.QueryRow(`SELECT decks FROM col`).Scan(&decksBlob); err != nil {
		t.Fatal(err)
	}
	var deckMap map[string]deckRecord
	if err := json.Unmarshal([]byte(decksBlob), &deckMap); err != nil {
		t.Fatal(err)
	}
	if len(deckMap) != 3 {
		t.Errorf("decks blob has %d entries, want 3 (Default + 2 named)", len(deckMap))
	}
}

// Every filename referenced from note fields exists exactly once in the
// archive and exactly once in the manifest.
func TestExportMediaReferentialIntegrity(t *testing.T) {
	e := testExporter(t)
	pkg, err := e.ExportDeck(context.Background(), "Media", []models.Card{
		{Front: `<img src="data:image/png;base64,AAAA">`, Back: `<img src="data:image/jpeg;base64,AAAB">`},
		{Front: `<audio src="data:audio/mpeg;base64,AAAA">`, Back: "plain"},
	}, Options{})
	if err != nil {
		t.Fatalf("ExportDeck: %v", err)
	}
	entries := readArchive(t, pkg)
	if pkg.MediaCount != 3 {
		t.Fatalf("MediaCount = %d, want 3", pkg.MediaCount)
	}

	var manifest map[string]string
	if err := json.Unmarshal(entries["media"], &manifest); err != nil {
		t.Fatal(err)
	}
	if len(manifest) != 3 {
		t.Errorf("manifest has %d entries, want 3", len(manifest))
	}

	db := openCollection(t, entries)
	rows, err := db.Query(`SELECT flds FROM notes`)
	if err != nil {
		t.Fatal(err)
	}
	defer rows.Close()

	refRe := regexp.MustCompile(`src="([^"]+)"|\[sound:([^\]]+)\]`)
	for rows.Next() {
		var flds string
		if err := rows.Scan(&flds); err != nil {
			t.Fatal(err)
		}
		for _, m := range refRe.FindAllStringSubmatch(flds, -1) {
			name := m[1]
			if name == "" {
				name = m[2]
			}
			if _, ok := entries[name]; !ok {
				t.Errorf("referenced media %q missing from archive", name)
			}
			indexed := 0
			for _, v := range manifest {
				if v == name {
					indexed++
				}
			}
			if indexed != 1 {
				t.Errorf("media %q indexed %d times in manifest, want 1", name, indexed)
			}
		}
	}
}

func TestPackageFilename(t *testing.T) {
	single := []models.Deck{{Name: "My Deck!"}}
	if got := packageFilename(single, "Parent"); got != "my-deck.apkg" {
		t.Errorf("single-deck filename = %q", got)
	}
	multi := []models.Deck{{Name: "A"}, {Name: "B"}}
	if got := packageFilename(multi, "AddFlashcard Export"); got != "addflashcard-export.apkg" {
		t.Errorf("multi-deck filename = %q", got)
	}
	if got := packageFilename([]models.Deck{{Name: "!!!"}}, ""); got != "deck.apkg" {
		t.Errorf("fallback filename = %q", got)
	}
}

func TestExportTagsJoined(t *testing.T) {
	e := testExporter(t)
	pkg, err := e.ExportDeck(context.Background(), "Tagged",
		[]models.Card{{Front: "Q", Back: "A", Tags: []string{"bio", "exam"}}}, Options{})
	if err != nil {
		t.Fatalf("ExportDeck: %v", err)
	}
	db := openCollection(t, readArchive(t, pkg))
	var tags string
	if err := db.QueryRow(`SELECT tags FROM notes`).Scan(&tags); err != nil {
		t.Fatal(err)
	}
	if tags != "bio exam" {
		t.Errorf("tags = %q, want %q", tags, "bio exam")
	}
}

func TestExportEmptyAuxTables(t *testing.T) {
	e := testExporter(t)
	pkg, err := e.ExportDeck(context.Background(), "Aux",
		[]models.Card{{Front: "Q", Back: "A"}}, Options{})
	if err != nil {
		t.Fatalf("ExportDeck: %v", err)
	}
	db := openCollection(t, readArchive(t, pkg))
	for _, table := range []string{"revlog", "graves"} {
		var n int
		if err := db.QueryRow(`SELECT count(*) FROM ` + table).Scan(&n); err != nil {
			t.Fatalf("%s table missing: %v", table, err)
		}
		if n != 0 {
			t.Errorf("%s should be empty, has %d rows", table, n)
		}
	}
}
