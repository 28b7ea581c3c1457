package anki

// Typed representations of the JSON blobs stored in the col row. Anki's
// collection format (schema version 11) keys these by stringified integer
// ID; the structs below are serialized with encoding/json only at the row
// insertion boundary so required fields are checked at compile time.

// noteField describes one field of a note type.
type noteField struct {
	Name   string   `json:"name"`
	Ord    int      `json:"ord"`
	Sticky bool     `json:"sticky"`
	RTL    bool     `json:"rtl"`
	Font   string   `json:"font"`
	Size   int      `json:"size"`
	Media  []string `json:"media"`
}

// template describes one card template of a note type.
type template struct {
	Name  string `json:"name"`
	Ord   int    `json:"ord"`
	Qfmt  string `json:"qfmt"`
	Afmt  string `json:"afmt"`
	Bqfmt string `json:"bqfmt"`
	Bafmt string `json:"bafmt"`
	DID   *int64 `json:"did"`
}

// model is an Anki note type: field names, card templates, and CSS.
type model struct {
	ID        int64       `json:"id"`
	Name      string      `json:"name"`
	Type      int         `json:"type"`
	Mod       int64       `json:"mod"`
	Usn       int         `json:"usn"`
	SortField int         `json:"sortf"`
	DeckID    int64       `json:"did"`
	Templates []template  `json:"tmpls"`
	Fields    []noteField `json:"flds"`
	CSS       string      `json:"css"`
	LatexPre  string      `json:"latexPre"`
	LatexPost string      `json:"latexPost"`
	Req       [][3]any    `json:"req"`
	Tags      []string    `json:"tags"`
	Vers      []string    `json:"vers"`
}

// deckRecord is one entry in the decks blob.
type deckRecord struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Mod       int64  `json:"mod"`
	Usn       int    `json:"usn"`
	Collapsed bool   `json:"collapsed"`
	Desc      string `json:"desc"`
	Dyn       int    `json:"dyn"`
	Conf      int64  `json:"conf"`
	ExtendNew int    `json:"extendNew"`
	ExtendRev int    `json:"extendRev"`
	NewToday  [2]int `json:"newToday"`
	RevToday  [2]int `json:"revToday"`
	LrnToday  [2]int `json:"lrnToday"`
	TimeToday [2]int `json:"timeToday"`
}

// deckConfig is one deck-options group in the dconf blob. Values are fixed
// defaults; the exporter does not expose scheduling customization.
type deckConfig struct {
	ID       int64          `json:"id"`
	Name     string         `json:"name"`
	Mod      int64          `json:"mod"`
	Usn      int            `json:"usn"`
	MaxTaken int            `json:"maxTaken"`
	Timer    int            `json:"timer"`
	Autoplay bool           `json:"autoplay"`
	Replayq  bool           `json:"replayq"`
	New      newCardConfig  `json:"new"`
	Rev      reviewConfig   `json:"rev"`
	Lapse    lapseConfig    `json:"lapse"`
}

type newCardConfig struct {
	Delays        []float64 `json:"delays"`
	Ints          []int     `json:"ints"`
	InitialFactor int       `json:"initialFactor"`
	Separate      bool      `json:"separate"`
	Order         int       `json:"order"`
	PerDay        int       `json:"perDay"`
	Bury          bool      `json:"bury"`
}

type reviewConfig struct {
	PerDay   int     `json:"perDay"`
	Ease4    float64 `json:"ease4"`
	Fuzz     float64 `json:"fuzz"`
	IvlFct   float64 `json:"ivlFct"`
	MaxIvl   int     `json:"maxIvl"`
	Bury     bool    `json:"bury"`
	MinSpace int     `json:"minSpace"`
}

type lapseConfig struct {
	Delays      []float64 `json:"delays"`
	Mult        float64   `json:"mult"`
	MinInt      int       `json:"minInt"`
	LeechFails  int       `json:"leechFails"`
	LeechAction int       `json:"leechAction"`
}

// collectionConfig is the global conf blob: scheduler version, active deck
// list, and current deck/model pointers.
type collectionConfig struct {
	NextPos       int    `json:"nextPos"`
	EstTimes      bool   `json:"estTimes"`
	ActiveDecks   []int64 `json:"activeDecks"`
	SortType      string `json:"sortType"`
	TimeLim       int    `json:"timeLim"`
	SortBackwards bool   `json:"sortBackwards"`
	AddToCur      bool   `json:"addToCur"`
	CurDeck       int64  `json:"curDeck"`
	NewBury       bool   `json:"newBury"`
	NewSpread     int    `json:"newSpread"`
	DueCounts     bool   `json:"dueCounts"`
	CurModel      string `json:"curModel"`
	CollapseTime  int    `json:"collapseTime"`
	SchedVer      int    `json:"schedVer"`
}

// modelCSS keeps media inside Anki's fixed-size review window.
const modelCSS = `.card {
 font-family: arial;
 font-size: 20px;
 text-align: center;
 color: black;
 background-color: white;
}
img { max-width: 100%; }
video { max-width: 100%; }
`

const (
	latexPre = "\\documentclass[12pt]{article}\n\\special{papersize=3in,5in}\n" +
		"\\usepackage[utf8]{inputenc}\n\\usepackage{amssymb,amsmath}\n" +
		"\\pagestyle{empty}\n\\setlength{\\parindent}{0in}\n\\begin{document}\n"
	latexPost = "\\end{document}"
)

// newModel builds the single note type shared by all notes in an export.
func newModel(id, deckID, mod int64, name string) model {
	return model{
		ID:        id,
		Name:      name,
		Type:      0,
		Mod:       mod,
		Usn:       -1,
		SortField: 0,
		DeckID:    deckID,
		Templates: []template{{
			Name: "Card 1",
			Ord:  0,
			Qfmt: "{{Front}}",
			Afmt: "{{FrontSide}}<hr id=answer>{{Back}}",
		}},
		Fields: []noteField{
			{Name: "Front", Ord: 0, Font: "Arial", Size: 20, Media: []string{}},
			{Name: "Back", Ord: 1, Font: "Arial", Size: 20, Media: []string{}},
		},
		CSS:       modelCSS,
		LatexPre:  latexPre,
		LatexPost: latexPost,
		Req:       [][3]any{{0, "all", []int{0}}},
		Tags:      []string{},
		Vers:      []string{},
	}
}

// newDeckRecord builds one entry of the decks blob.
func newDeckRecord(id int64, name string, mod int64, collapsed bool) deckRecord {
	return deckRecord{
		ID:        id,
		Name:      name,
		Mod:       mod,
		Usn:       -1,
		Collapsed: collapsed,
		Conf:      1,
	}
}

// defaultDeckConfig returns the single default deck-options group.
func defaultDeckConfig() deckConfig {
	return deckConfig{
		ID:       1,
		Name:     "Default",
		MaxTaken: 60,
		Autoplay: true,
		Replayq:  true,
		New: newCardConfig{
			Delays:        []float64{1, 10},
			Ints:          []int{1, 4, 7},
			InitialFactor: 2500,
			Separate:      true,
			Order:         1,
			PerDay:        20,
			Bury:          true,
		},
		Rev: reviewConfig{
			PerDay:   100,
			Ease4:    1.3,
			Fuzz:     0.05,
			IvlFct:   1,
			MaxIvl:   36500,
			Bury:     true,
			MinSpace: 1,
		},
		Lapse: lapseConfig{
			Delays:     []float64{10},
			Mult:       0,
			MinInt:     1,
			LeechFails: 8,
		},
	}
}

// newCollectionConfig returns the global conf blob for an export.
func newCollectionConfig(modelID int64, deckIDs []int64) collectionConfig {
	active := append([]int64{1}, deckIDs...)
	return collectionConfig{
		NextPos:      1,
		EstTimes:     true,
		ActiveDecks:  active,
		SortType:     "noteFld",
		AddToCur:     true,
		CurDeck:      1,
		NewBury:      true,
		DueCounts:    true,
		CurModel:     itoa(modelID),
		CollapseTime: 1200,
		SchedVer:     2,
	}
}
