package anki

// idGen hands out collection IDs derived from a single wall-clock base
// timestamp (milliseconds) taken at export start. Notes and cards occupy
// disjoint ranges so a note ID can never equal a card ID within one export.
// Uniqueness across exports or machines is not guaranteed — Anki remaps IDs
// on import.
type idGen struct {
	base  int64
	decks int64
	cards int64
}

func newIDGen(base int64, deckCount, cardCount int) idGen {
	return idGen{base: base, decks: int64(deckCount), cards: int64(cardCount)}
}

// model returns the shared note-type ID for the export.
func (g idGen) model() int64 { return g.base }

// deck returns the ID for the i-th requested deck.
func (g idGen) deck(i int) int64 { return g.base + 1 + int64(i) }

// note returns the ID for the j-th note across the whole export.
func (g idGen) note(j int) int64 { return g.base + 1 + g.decks + int64(j) }

// card returns the ID for the j-th card across the whole export.
func (g idGen) card(j int) int64 { return g.base + 1 + g.decks + g.cards + int64(j) }
