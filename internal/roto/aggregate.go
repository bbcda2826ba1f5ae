package roto

import (
	"sort"

	"github.com/fortuna/almanac/internal/store"
)

// TeamAggregate holds one team's period totals. Hitters feed only the
// hitting sums and pitchers only the pitching sums.
type TeamAggregate struct {
	TeamCode string `json:"team_code"`
	Players  int    `json:"players"`

	AtBats      int     `json:"ab"`
	Hits        int     `json:"h"`
	Runs        int     `json:"r"`
	HomeRuns    int     `json:"hr"`
	RBI         int     `json:"rbi"`
	StolenBases int     `json:"sb"`
	AVG         float64 `json:"avg"`

	Wins           int     `json:"w"`
	Saves          int     `json:"sv"`
	Strikeouts     int     `json:"k"`
	InningsPitched float64 `json:"ip"`
	EarnedRuns     int     `json:"er"`
	ERA            float64 `json:"era"`
	WHIP           float64 `json:"whip"`

	weightedWHIP float64
}

// Aggregate sums stats per team. The result is ordered by team code.
func Aggregate(stats []store.PlayerPeriodStat) []TeamAggregate {
	byTeam := make(map[string]*TeamAggregate)
	for i := range stats {
		s := &stats[i]
		agg, ok := byTeam[s.TeamCode]
		if !ok {
			agg = &TeamAggregate{TeamCode: s.TeamCode}
			byTeam[s.TeamCode] = agg
		}
		agg.Players++

		if s.IsPitcher {
			agg.Wins += s.Wins
			agg.Saves += s.Saves
			agg.Strikeouts += s.Strikeouts
			agg.InningsPitched += s.InningsPitched
			agg.EarnedRuns += s.EarnedRuns
			agg.weightedWHIP += s.WHIP * s.InningsPitched
			continue
		}
		agg.AtBats += s.AtBats
		agg.Hits += s.Hits
		agg.Runs += s.Runs
		agg.HomeRuns += s.HomeRuns
		agg.RBI += s.RBI
		agg.StolenBases += s.StolenBases
	}

	out := make([]TeamAggregate, 0, len(byTeam))
	for _, agg := range byTeam {
		if agg.AtBats > 0 {
			agg.AVG = float64(agg.Hits) / float64(agg.AtBats)
		}
		// WHIP is rebuilt from per-player WHIP weighted by innings, not from walks and hits.
		if agg.InningsPitched > 0 {
			agg.ERA = 9 * float64(agg.EarnedRuns) / agg.InningsPitched
			agg.WHIP = agg.weightedWHIP / agg.InningsPitched
		}
		out = append(out, *agg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TeamCode < out[j].TeamCode })
	return out
}

// Value returns the aggregate's value for a category name. The second result
// is false for names the aggregate does not carry.
func (a *TeamAggregate) Value(category string) (float64, bool) {
	switch category {
	case "AB":
		return float64(a.AtBats), true
	case "H":
		return float64(a.Hits), true
	case "R":
		return float64(a.Runs), true
	case "HR":
		return float64(a.HomeRuns), true
	case "RBI":
		return float64(a.RBI), true
	case "SB":
		return float64(a.StolenBases), true
	case "AVG":
		return a.AVG, true
	case "W":
		return float64(a.Wins), true
	case "SV":
		return float64(a.Saves), true
	case "K":
		return float64(a.Strikeouts), true
	case "IP":
		return a.InningsPitched, true
	case "ER":
		return float64(a.EarnedRuns), true
	case "ERA":
		return a.ERA, true
	case "WHIP":
		return a.WHIP, true
	}
	return 0, false
}
