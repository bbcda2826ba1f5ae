package mlb

import (
	"strconv"
	"strings"

	"github.com/fortuna/almanac/internal/store"
)

// Group selects the provider's stat family.
type Group string

const (
	GroupHitting  Group = "hitting"
	GroupPitching Group = "pitching"
)

// GroupFor returns the stat group matching a pitcher flag.
func GroupFor(isPitcher bool) Group {
	if isPitcher {
		return GroupPitching
	}
	return GroupHitting
}

// StatLine is a player's totals for a date range. Only the fields of its
// Group are populated.
type StatLine struct {
	Group       Group `json:"group"`
	GamesPlayed int   `json:"games_played"`

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
}

// Counters converts the line into the stored stat block. Fields outside the
// line's group are zero.
func (s *StatLine) Counters() store.Counters {
	if s.Group == GroupPitching {
		return store.Counters{
			Wins:           s.Wins,
			Saves:          s.Saves,
			Strikeouts:     s.Strikeouts,
			InningsPitched: s.InningsPitched,
			EarnedRuns:     s.EarnedRuns,
			ERA:            s.ERA,
			WHIP:           s.WHIP,
		}
	}
	return store.Counters{
		AtBats:      s.AtBats,
		Hits:        s.Hits,
		Runs:        s.Runs,
		HomeRuns:    s.HomeRuns,
		RBI:         s.RBI,
		StolenBases: s.StolenBases,
		AVG:         s.AVG,
	}
}

// Person is the provider's canonical player record.
type Person struct {
	ID        string `json:"id"`
	FullName  string `json:"full_name"`
	Position  string `json:"position"`
	IsPitcher bool   `json:"is_pitcher"`
	MLBTeam   string `json:"mlb_team,omitempty"`
}

// ParseStatLine reads a byDateRange stats response. It returns false when
// the response holds no splits for group. Several splits (a player traded
// mid-period) are summed and their rates recomputed.
func ParseStatLine(data map[string]interface{}, group Group) (*StatLine, bool) {
	var splits []map[string]interface{}
	for _, s := range extractArray(data, "stats") {
		block, ok := s.(map[string]interface{})
		if !ok {
			continue
		}
		if g := extractString(extractMap(block, "group"), "displayName"); g != "" && !strings.EqualFold(g, string(group)) {
			continue
		}
		for _, sp := range extractArray(block, "splits") {
			if split, ok := sp.(map[string]interface{}); ok {
				splits = append(splits, extractMap(split, "stat"))
			}
		}
	}
	if len(splits) == 0 {
		return nil, false
	}

	line := &StatLine{Group: group}
	if len(splits) == 1 {
		fillLine(line, splits[0], group)
		return line, true
	}

	weightedWHIP := 0.0
	for _, stat := range splits {
		var part StatLine
		fillLine(&part, stat, group)
		line.GamesPlayed += part.GamesPlayed
		line.AtBats += part.AtBats
		line.Hits += part.Hits
		line.Runs += part.Runs
		line.HomeRuns += part.HomeRuns
		line.RBI += part.RBI
		line.StolenBases += part.StolenBases
		line.Wins += part.Wins
		line.Saves += part.Saves
		line.Strikeouts += part.Strikeouts
		line.InningsPitched += part.InningsPitched
		line.EarnedRuns += part.EarnedRuns
		weightedWHIP += part.WHIP * part.InningsPitched
	}
	if line.AtBats > 0 {
		line.AVG = float64(line.Hits) / float64(line.AtBats)
	}
	if line.InningsPitched > 0 {
		line.ERA = 9 * float64(line.EarnedRuns) / line.InningsPitched
		line.WHIP = weightedWHIP / line.InningsPitched
	}
	return line, true
}

func fillLine(line *StatLine, stat map[string]interface{}, group Group) {
	line.GamesPlayed = extractInt(stat, "gamesPlayed")
	if group == GroupPitching {
		line.Wins = extractInt(stat, "wins")
		line.Saves = extractInt(stat, "saves")
		line.Strikeouts = extractInt(stat, "strikeOuts")
		line.InningsPitched = parseInnings(extractString(stat, "inningsPitched"))
		line.EarnedRuns = extractInt(stat, "earnedRuns")
		line.ERA = parseRate(stat["era"])
		line.WHIP = parseRate(stat["whip"])
		return
	}
	line.AtBats = extractInt(stat, "atBats")
	line.Hits = extractInt(stat, "hits")
	line.Runs = extractInt(stat, "runs")
	line.HomeRuns = extractInt(stat, "homeRuns")
	line.RBI = extractInt(stat, "rbi")
	line.StolenBases = extractInt(stat, "stolenBases")
	line.AVG = parseRate(stat["avg"])
}

// ParseCurrentTeam reads the hydrated currentTeam of a people response.
func ParseCurrentTeam(data map[string]interface{}) string {
	person := firstPerson(data)
	if person == nil {
		return ""
	}
	team := extractMap(person, "currentTeam")
	return fallbackString(extractString(team, "abbreviation"), extractString(team, "name"))
}

// ParsePerson reads the first entry of a people response.
func ParsePerson(data map[string]interface{}) (*Person, bool) {
	person := firstPerson(data)
	if person == nil {
		return nil, false
	}
	pos := extractString(extractMap(person, "primaryPosition"), "abbreviation")
	team := extractMap(person, "currentTeam")
	return &Person{
		ID:        strconv.Itoa(extractInt(person, "id")),
		FullName:  extractString(person, "fullName"),
		Position:  pos,
		IsPitcher: pos == "P",
		MLBTeam:   fallbackString(extractString(team, "abbreviation"), extractString(team, "name")),
	}, true
}

func firstPerson(data map[string]interface{}) map[string]interface{} {
	people := extractArray(data, "people")
	if len(people) == 0 {
		return nil
	}
	person, _ := people[0].(map[string]interface{})
	return person
}

// parseInnings converts the provider's "45.1" notation (45 and one third)
// into true innings.
func parseInnings(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	whole, frac, _ := strings.Cut(s, ".")
	w, err := strconv.Atoi(whole)
	if err != nil {
		return 0
	}
	outs := 0
	if frac != "" {
		outs, _ = strconv.Atoi(frac[:1])
	}
	return float64(w) + float64(outs)/3
}

// parseRate reads rate stats, which the provider sends as strings like
// ".287" or "-.--" and occasionally as numbers.
func parseRate(v interface{}) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0
		}
		return f
	}
	return 0
}

// Helper functions

func extractString(m map[string]interface{}, key string) string {
	if v, ok := m[key]; ok {
		if str, ok := v.(string); ok {
			return str
		}
	}
	return ""
}

func fallbackString(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func extractInt(m map[string]interface{}, key string) int {
	if v, ok := m[key]; ok {
		return parseInt(v)
	}
	return 0
}

func extractMap(m map[string]interface{}, key string) map[string]interface{} {
	if v, ok := m[key]; ok {
		if mapVal, ok := v.(map[string]interface{}); ok {
			return mapVal
		}
	}
	return map[string]interface{}{}
}

func extractArray(m map[string]interface{}, key string) []interface{} {
	if v, ok := m[key]; ok {
		if arrVal, ok := v.([]interface{}); ok {
			return arrVal
		}
	}
	return []interface{}{}
}

func parseInt(v interface{}) int {
	switch val := v.(type) {
	case float64:
		return int(val)
	case string:
		i, _ := strconv.Atoi(val)
		return i
	case int:
		return val
	default:
		return 0
	}
}
