package sheet

import (
	"sort"
	"strconv"
	"strings"

	"github.com/fortuna/almanac/internal/league"
)

// Extract detects the shape of grid and returns its roster rows. It never
// fails: a sheet matching no known layout comes back as LayoutOpaque with the
// grid copied verbatim.
func Extract(grid Grid, kind Kind, opts Options) Result {
	vocab := opts.vocabulary()

	if header, teams := findTeamHeader(grid, vocab); header >= 0 {
		// Team titles printed over labelled blocks are a vertical sheet.
		if !isBlockLabelRow(grid, header+1) {
			return extractWide(grid, kind, header, teams, vocab, opts.Season)
		}
		if res, ok := extractVertical(grid, kind, vocab); ok {
			return res
		}
		return extractWide(grid, kind, header, teams, vocab, opts.Season)
	}

	if res, ok := extractVertical(grid, kind, vocab); ok {
		return res
	}

	opaque := make([][]string, len(grid))
	for i, row := range grid {
		opaque[i] = append([]string(nil), row...)
	}
	return Result{Layout: LayoutOpaque, HeaderRow: -1, Opaque: opaque}
}

// findTeamHeader returns the first row within the scan window with team
// aliases in at least two distinct columns.
func findTeamHeader(grid Grid, vocab *league.Vocabulary) (int, map[int]string) {
	limit := vocab.HeaderScanRows
	if limit > len(grid) {
		limit = len(grid)
	}

	for r := 0; r < limit; r++ {
		teams := make(map[int]string)
		for c := range grid[r] {
			if code, ok := vocab.MatchTeam(grid[r][c]); ok {
				teams[c] = code
			}
		}
		if len(teams) >= 2 {
			return r, teams
		}
	}
	return -1, nil
}

// isBlockLabelRow reports whether row r carries "player" or "name" column
// labels.
func isBlockLabelRow(grid Grid, r int) bool {
	if r >= len(grid) {
		return false
	}
	found, _ := findBlockHeader(grid[r:r+1], 1)
	return found == 0
}

func extractWide(grid Grid, kind Kind, header int, teams map[int]string, vocab *league.Vocabulary, season int) Result {
	cols := make([]int, 0, len(teams))
	for c := range teams {
		cols = append(cols, c)
	}
	sort.Ints(cols)

	rowCap := vocab.RowCapFor(season)
	perTeam := make(map[string]int)
	position := ""

	var rows []RawPlayerRow
	for r := header + 1; r < len(grid); r++ {
		row := grid[r]
		// Row-wide on purpose: a totals label in any column ends every team.
		if vocab.IsSentinel(row) {
			break
		}

		for _, cell := range row {
			if vocab.IsPositionToken(cell) {
				position = strings.ToUpper(strings.TrimSpace(cell))
				break
			}
		}

		for _, c := range cols {
			name := grid.Cell(r, c)
			if isNoise(name, vocab) {
				continue
			}

			code := teams[c]
			if perTeam[code] >= rowCap {
				continue
			}
			perTeam[code]++

			out := RawPlayerRow{
				PlayerNameRaw:  name,
				TeamCode:       code,
				Position:       position,
				IsPitcherGuess: position != "" && vocab.IsPitcherPosition(position),
				SourceRow:      r,
				SourceCol:      c,
			}
			if kind == KindDraft {
				dollars := parseDollars(grid.Cell(r, c+1))
				out.DraftDollars = &dollars
			}
			rows = append(rows, out)
		}
	}

	return Result{Layout: LayoutWide, HeaderRow: header, Teams: teams, Rows: rows}
}

// isNoise filters cells that sit in a team column but are not player names:
// position bands, repeated team names, stat fragments and numbers.
func isNoise(cell string, vocab *league.Vocabulary) bool {
	if len([]rune(cell)) <= 2 {
		return true
	}
	if strings.Contains(cell, "/") {
		return true
	}
	if vocab.IsPositionToken(cell) {
		return true
	}
	if _, ok := vocab.MatchTeam(cell); ok {
		return true
	}
	if _, err := strconv.ParseFloat(cell, 64); err == nil {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(cell)) {
	case "player", "players", "name", "pos", "position", "salary", "cost", "price":
		return true
	}
	return false
}

// parseDollars reads an auction price like "$12" or " 7 ". Anything else is 0.
func parseDollars(cell string) int {
	cell = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(cell), "$"))
	n, err := strconv.Atoi(cell)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
