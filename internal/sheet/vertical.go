package sheet

import (
	"fmt"
	"strings"

	"github.com/fortuna/almanac/internal/league"
)

var (
	teamLabels    = []string{"team", "owner", "tm"}
	positionLabel = []string{"pos", "position"}
	dollarLabels  = []string{"$", "salary", "cost", "price"}
)

// extractVertical handles sheets made of repeated player-list blocks laid
// side by side, each block starting at a "player" column.
func extractVertical(grid Grid, kind Kind, vocab *league.Vocabulary) (Result, bool) {
	header, starts := findBlockHeader(grid, vocab.HeaderScanRows)
	if header < 0 {
		return Result{}, false
	}

	width := blockWidth(grid[header], starts)
	labels := make([]string, width)
	for i := 0; i < width; i++ {
		label := strings.ToLower(grid.Cell(header, starts[0]+i))
		if label == "" {
			label = fmt.Sprintf("col%d", i+1)
		}
		labels[i] = label
	}

	blockTeams := make([]string, len(starts))
	for b, start := range starts {
		blockTeams[b] = blockTitle(grid, header, start, width, vocab)
	}

	res := Result{Layout: LayoutVertical, HeaderRow: header}
	for r := header + 1; r < len(grid); r++ {
		for b, start := range starts {
			if grid.Cell(r, start) == "" {
				continue
			}

			fields := make(map[string]string, width)
			for i, label := range labels {
				fields[label] = grid.Cell(r, start+i)
			}
			rec := Record{Row: r, Block: b, Team: blockTeams[b], Fields: fields}
			res.Records = append(res.Records, rec)

			if row, ok := recordToRow(rec, labels[0], kind, vocab); ok {
				row.SourceRow = r
				row.SourceCol = start
				res.Rows = append(res.Rows, row)
			}
		}
	}
	return res, true
}

// findBlockHeader looks for a row holding "player" columns (or "name" columns
// when no "player" label exists) and returns the block start offsets.
func findBlockHeader(grid Grid, scan int) (int, []int) {
	if scan > len(grid) {
		scan = len(grid)
	}

	for r := 0; r < scan; r++ {
		var players, names []int
		for c := range grid[r] {
			label := strings.ToLower(grid.Cell(r, c))
			switch {
			case strings.Contains(label, "player"):
				players = append(players, c)
			case strings.Contains(label, "name"):
				names = append(names, c)
			}
		}
		if len(players) > 0 {
			return r, players
		}
		if len(names) > 0 {
			return r, names
		}
	}
	return -1, nil
}

// blockWidth is the distance between the first two block starts, or the rest
// of the header row when there is a single block.
func blockWidth(header []string, starts []int) int {
	if len(starts) > 1 {
		return starts[1] - starts[0]
	}
	end := len(header)
	for end > starts[0]+1 && strings.TrimSpace(header[end-1]) == "" {
		end--
	}
	return end - starts[0]
}

// blockTitle finds a team alias printed in the rows above a block header.
func blockTitle(grid Grid, header, start, width int, vocab *league.Vocabulary) string {
	for r := header - 1; r >= 0 && r >= header-3; r-- {
		for c := start; c < start+width; c++ {
			if code, ok := vocab.MatchTeam(grid.Cell(r, c)); ok {
				return code
			}
		}
	}
	return ""
}

func recordToRow(rec Record, nameLabel string, kind Kind, vocab *league.Vocabulary) (RawPlayerRow, bool) {
	name := rec.Fields[nameLabel]
	team := rec.Team
	if team == "" {
		if raw := lookup(rec.Fields, teamLabels); raw != "" {
			if code, ok := vocab.MatchTeam(raw); ok {
				team = code
			} else {
				team = strings.ToUpper(raw)
			}
		}
	}
	if name == "" || team == "" {
		return RawPlayerRow{}, false
	}

	pos := strings.ToUpper(lookup(rec.Fields, positionLabel))
	row := RawPlayerRow{
		PlayerNameRaw:  name,
		TeamCode:       team,
		Position:       pos,
		IsPitcherGuess: pos != "" && vocab.IsPitcherPosition(pos),
	}
	if kind == KindDraft {
		dollars := parseDollars(lookup(rec.Fields, dollarLabels))
		row.DraftDollars = &dollars
	}
	return row, true
}

func lookup(fields map[string]string, labels []string) string {
	for _, l := range labels {
		if v, ok := fields[l]; ok && v != "" {
			return v
		}
	}
	return ""
}
