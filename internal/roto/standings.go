package roto

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/fortuna/almanac/internal/store"
)

// Category is one scoring column. LowerIsBetter ranks ascending.
type Category struct {
	Name          string `json:"name"`
	LowerIsBetter bool   `json:"lower_is_better"`
}

// DefaultCategories returns the league's 5x5 categories.
func DefaultCategories() []Category {
	return []Category{
		{Name: "R"}, {Name: "HR"}, {Name: "RBI"}, {Name: "SB"}, {Name: "AVG"},
		{Name: "W"}, {Name: "SV"}, {Name: "K"},
		{Name: "ERA", LowerIsBetter: true}, {Name: "WHIP", LowerIsBetter: true},
	}
}

// ParseCategories reads a comma-separated list like "R,HR,ERA". ERA and WHIP
// rank ascending; a "-" prefix forces ascending for any other name.
func ParseCategories(list string) ([]Category, error) {
	var cats []Category
	for _, raw := range strings.Split(list, ",") {
		name := strings.ToUpper(strings.TrimSpace(raw))
		if name == "" {
			continue
		}
		cat := Category{Name: strings.TrimPrefix(name, "-")}
		cat.LowerIsBetter = strings.HasPrefix(name, "-") || cat.Name == "ERA" || cat.Name == "WHIP"
		cats = append(cats, cat)
	}
	if len(cats) == 0 {
		return nil, fmt.Errorf("no categories in %q", list)
	}
	return cats, nil
}

// TieMode decides how equal category values share points.
type TieMode string

const (
	// TieKeepOrder gives tied teams distinct points in aggregate order.
	TieKeepOrder TieMode = "keep-order"
	// TieSplit gives tied teams the mean of the points for the places they occupy.
	TieSplit TieMode = "split"
)

// ParseTieMode accepts "keep-order", "split" or "" (keep-order).
func ParseTieMode(s string) (TieMode, error) {
	switch TieMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", TieKeepOrder:
		return TieKeepOrder, nil
	case TieSplit:
		return TieSplit, nil
	}
	return "", fmt.Errorf("unknown tie mode %q", s)
}

// StandingsRow is one team's line of a leaderboard.
type StandingsRow struct {
	TeamCode   string             `json:"team_code"`
	Values     map[string]float64 `json:"values"`
	Points     map[string]float64 `json:"points"`
	TotalScore float64            `json:"total_score"`
	Rank       int                `json:"rank"`
}

// Config configures a Calculator.
type Config struct {
	Categories []Category
	TieMode    TieMode
}

// Calculator turns a period's player stats into a leaderboard. It holds no
// mutable state and is safe for concurrent use.
type Calculator struct {
	categories []Category
	ties       TieMode
}

// NewCalculator validates cfg. Empty fields take the defaults.
func NewCalculator(cfg Config) (*Calculator, error) {
	cats := cfg.Categories
	if len(cats) == 0 {
		cats = DefaultCategories()
	}
	var probe TeamAggregate
	for _, c := range cats {
		if _, ok := probe.Value(c.Name); !ok {
			return nil, fmt.Errorf("unknown category %q", c.Name)
		}
	}

	ties, err := ParseTieMode(string(cfg.TieMode))
	if err != nil {
		return nil, err
	}
	return &Calculator{categories: append([]Category(nil), cats...), ties: ties}, nil
}

// Categories returns the scoring categories in order.
func (c *Calculator) Categories() []Category {
	return append([]Category(nil), c.categories...)
}

// TieMode returns the calculator's tie policy.
func (c *Calculator) TieMode() TieMode {
	return c.ties
}

// WithTieMode returns a calculator with the same categories and a different
// tie policy.
func (c *Calculator) WithTieMode(mode TieMode) *Calculator {
	return &Calculator{categories: c.categories, ties: mode}
}

// Calculate aggregates stats and ranks the teams. Rows are sorted by total
// score, highest first.
func (c *Calculator) Calculate(stats []store.PlayerPeriodStat) []StandingsRow {
	return c.Rank(Aggregate(stats))
}

// Rank scores pre-computed aggregates. With N teams, first place in a
// category earns N points and last place 1.
func (c *Calculator) Rank(aggs []TeamAggregate) []StandingsRow {
	rows := make([]StandingsRow, len(aggs))
	for i := range aggs {
		rows[i] = StandingsRow{
			TeamCode: aggs[i].TeamCode,
			Values:   make(map[string]float64, len(c.categories)),
			Points:   make(map[string]float64, len(c.categories)),
		}
		for _, cat := range c.categories {
			v, _ := aggs[i].Value(cat.Name)
			rows[i].Values[cat.Name] = v
		}
	}

	for _, cat := range c.categories {
		c.scoreCategory(rows, cat)
	}

	for i := range rows {
		for _, p := range rows[i].Points {
			rows[i].TotalScore += p
		}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].TotalScore > rows[j].TotalScore })
	for i := range rows {
		rows[i].Rank = i + 1
	}
	return rows
}

func (c *Calculator) scoreCategory(rows []StandingsRow, cat Category) {
	n := len(rows)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	value := func(i int) float64 { return rows[order[i]].Values[cat.Name] }

	sort.SliceStable(order, func(i, j int) bool {
		a, b := rows[order[i]].Values[cat.Name], rows[order[j]].Values[cat.Name]
		if cat.LowerIsBetter {
			return a < b
		}
		return a > b
	})

	if c.ties != TieSplit {
		for place, idx := range order {
			rows[idx].Points[cat.Name] = float64(n - place)
		}
		return
	}

	for start := 0; start < n; {
		end := start + 1
		for end < n && sameValue(value(start), value(end)) {
			end++
		}
		// Places start..end-1 earn n-start down to n-end+1; share their mean.
		share := float64((n-start)+(n-end+1)) / 2
		for place := start; place < end; place++ {
			rows[order[place]].Points[cat.Name] = share
		}
		start = end
	}
}

func sameValue(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

// SeasonRow is one team's sum of period totals.
type SeasonRow struct {
	TeamCode   string  `json:"team_code"`
	Periods    int     `json:"periods"`
	TotalScore float64 `json:"total_score"`
	Rank       int     `json:"rank"`
}

// SeasonTotals sums each team's per-period total score. Equal totals are
// ordered by team code.
func SeasonTotals(periods [][]StandingsRow) []SeasonRow {
	byTeam := make(map[string]*SeasonRow)
	for _, period := range periods {
		for _, row := range period {
			sr, ok := byTeam[row.TeamCode]
			if !ok {
				sr = &SeasonRow{TeamCode: row.TeamCode}
				byTeam[row.TeamCode] = sr
			}
			sr.Periods++
			sr.TotalScore += row.TotalScore
		}
	}

	out := make([]SeasonRow, 0, len(byTeam))
	for _, sr := range byTeam {
		out = append(out, *sr)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalScore != out[j].TotalScore {
			return out[i].TotalScore > out[j].TotalScore
		}
		return out[i].TeamCode < out[j].TeamCode
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}
