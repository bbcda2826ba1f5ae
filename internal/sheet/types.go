package sheet

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fortuna/almanac/internal/league"
)

// Kind tells the extractor what a sheet holds.
type Kind string

const (
	KindDraft     Kind = "draft"
	KindPeriod    Kind = "period"
	KindStandings Kind = "standings"
)

// Layout is the table shape the extractor detected.
type Layout string

const (
	LayoutWide     Layout = "wide"
	LayoutVertical Layout = "vertical"
	LayoutOpaque   Layout = "opaque"
)

// Grid is one sheet as rows of cell text. Blank cells are "".
type Grid [][]string

// Cell returns the trimmed cell at (row, col), or "" outside the grid.
func (g Grid) Cell(row, col int) string {
	if row < 0 || row >= len(g) || col < 0 || col >= len(g[row]) {
		return ""
	}
	return strings.TrimSpace(g[row][col])
}

// GridFromValues converts decoded JSON cells (strings, numbers, bools, nulls)
// into a Grid.
func GridFromValues(values [][]interface{}) Grid {
	grid := make(Grid, len(values))
	for i, row := range values {
		out := make([]string, len(row))
		for j, v := range row {
			out[j] = cellText(v)
		}
		grid[i] = out
	}
	return grid
}

func cellText(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(val)
	}
}

// RawPlayerRow is one roster entry as printed on a sheet.
type RawPlayerRow struct {
	PlayerNameRaw  string `json:"player_name_raw"`
	TeamCode       string `json:"team_code"`
	Position       string `json:"position,omitempty"`
	IsPitcherGuess bool   `json:"is_pitcher_guess"`
	DraftDollars   *int   `json:"draft_dollars,omitempty"`
	SourceRow      int    `json:"source_row"`
	SourceCol      int    `json:"source_col"`
}

// Record is one block of one physical row of a vertical-block sheet, keyed by
// the first block's header labels.
type Record struct {
	Row    int               `json:"row"`
	Block  int               `json:"block"`
	Team   string            `json:"team,omitempty"`
	Fields map[string]string `json:"fields"`
}

// Result is the extractor output. Rows is empty for opaque sheets; Opaque
// holds the untouched grid in that case.
type Result struct {
	Layout    Layout         `json:"layout"`
	HeaderRow int            `json:"header_row"`
	Teams     map[int]string `json:"teams,omitempty"`
	Rows      []RawPlayerRow `json:"rows"`
	Records   []Record       `json:"records,omitempty"`
	Opaque    [][]string     `json:"opaque,omitempty"`
}

// Options configures one extraction.
type Options struct {
	Vocabulary *league.Vocabulary
	Season     int
}

func (o Options) vocabulary() *league.Vocabulary {
	if o.Vocabulary != nil {
		return o.Vocabulary
	}
	return league.DefaultVocabulary()
}
