package league

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

// TeamAlias maps a printed team name (or fragment of one) to a league team code.
type TeamAlias struct {
	Alias string `json:"alias"`
	Code  string `json:"code"`
}

// Vocabulary is the static configuration the extractor and importer read.
// It is built once and never mutated afterwards, so one value can be shared
// by concurrent imports of different leagues.
type Vocabulary struct {
	TeamAliases      []TeamAlias `json:"team_aliases"`
	PositionTokens   []string    `json:"position_tokens"`
	PitcherPositions []string    `json:"pitcher_positions"`
	Sentinels        []string    `json:"sentinels"`
	HeaderScanRows   int         `json:"header_scan_rows"`

	// LegacyRowCap applies to seasons up to and including LegacyCapSeason.
	LegacyRowCap    int `json:"legacy_row_cap"`
	LegacyCapSeason int `json:"legacy_cap_season"`
	RowCap          int `json:"row_cap"`

	aliases   []TeamAlias // lowercased, longest first
	positions map[string]bool
	pitchers  map[string]bool
}

// DefaultVocabulary returns the league's built-in aliases and roster tokens.
func DefaultVocabulary() *Vocabulary {
	v := &Vocabulary{
		TeamAliases: []TeamAlias{
			{Alias: "Demolition Lumber Co", Code: "DLC"},
			{Alias: "Demolition", Code: "DLC"},
			{Alias: "Lumber Co", Code: "DLC"},
			{Alias: "Los Doyers", Code: "LDY"},
			{Alias: "Doyers", Code: "LDY"},
			{Alias: "Skunk in the Outfield", Code: "SKO"},
			{Alias: "Skunks", Code: "SKO"},
			{Alias: "Diamond Kings", Code: "DKG"},
			{Alias: "Bronx Bombers", Code: "BXB"},
			{Alias: "Bombers", Code: "BXB"},
			{Alias: "Moose Tracks", Code: "MTK"},
			{Alias: "Moose", Code: "MTK"},
			{Alias: "Rally Caps", Code: "RLC"},
			{Alias: "Bad News Bears", Code: "BNB"},
			{Alias: "Bears", Code: "BNB"},
			{Alias: "Sandlot Legends", Code: "SDL"},
			{Alias: "Sandlot", Code: "SDL"},
		},
		PositionTokens:   []string{"1B", "2B", "3B", "SS", "OF", "C", "CM", "MI", "DH", "P", "IL1", "IL2", "DL", "R"},
		PitcherPositions: []string{"P", "SP", "RP"},
		Sentinels:        []string{"total", "standings", "salary cap"},
		HeaderScanRows:   10,
		LegacyRowCap:     23,
		LegacyCapSeason:  2022,
		RowCap:           30,
	}
	v.index()
	return v
}

// LoadVocabulary reads a JSON vocabulary file. Fields left empty fall back to
// the defaults.
func LoadVocabulary(path string) (*Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vocabulary: %w", err)
	}

	var v Vocabulary
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode vocabulary %s: %w", path, err)
	}

	def := DefaultVocabulary()
	if len(v.TeamAliases) == 0 {
		v.TeamAliases = def.TeamAliases
	}
	if len(v.PositionTokens) == 0 {
		v.PositionTokens = def.PositionTokens
	}
	if len(v.PitcherPositions) == 0 {
		v.PitcherPositions = def.PitcherPositions
	}
	if len(v.Sentinels) == 0 {
		v.Sentinels = def.Sentinels
	}
	if v.HeaderScanRows <= 0 {
		v.HeaderScanRows = def.HeaderScanRows
	}
	if v.LegacyRowCap <= 0 {
		v.LegacyRowCap = def.LegacyRowCap
	}
	if v.LegacyCapSeason <= 0 {
		v.LegacyCapSeason = def.LegacyCapSeason
	}
	if v.RowCap <= 0 {
		v.RowCap = def.RowCap
	}

	v.index()
	return &v, nil
}

func (v *Vocabulary) index() {
	v.aliases = make([]TeamAlias, 0, len(v.TeamAliases))
	for _, a := range v.TeamAliases {
		alias := strings.ToLower(strings.TrimSpace(a.Alias))
		if alias == "" || a.Code == "" {
			continue
		}
		v.aliases = append(v.aliases, TeamAlias{Alias: alias, Code: strings.ToUpper(a.Code)})
	}
	sort.SliceStable(v.aliases, func(i, j int) bool {
		return len(v.aliases[i].Alias) > len(v.aliases[j].Alias)
	})

	v.positions = make(map[string]bool, len(v.PositionTokens))
	for _, p := range v.PositionTokens {
		v.positions[strings.ToUpper(strings.TrimSpace(p))] = true
	}

	v.pitchers = make(map[string]bool, len(v.PitcherPositions))
	for _, p := range v.PitcherPositions {
		v.pitchers[strings.ToUpper(strings.TrimSpace(p))] = true
	}
}

// MatchTeam returns the team code whose alias appears in cell. Longer aliases
// are tried first so "Demolition Lumber Co" wins over "Lumber Co".
func (v *Vocabulary) MatchTeam(cell string) (string, bool) {
	text := strings.ToLower(strings.TrimSpace(cell))
	if text == "" {
		return "", false
	}
	for _, a := range v.aliases {
		if strings.Contains(text, a.Alias) {
			return a.Code, true
		}
	}
	return "", false
}

// IsPositionToken reports whether cell is exactly one of the roster position tokens.
func (v *Vocabulary) IsPositionToken(cell string) bool {
	return v.positions[strings.ToUpper(strings.TrimSpace(cell))]
}

// IsPitcherPosition reports whether pos denotes a pitching slot.
func (v *Vocabulary) IsPitcherPosition(pos string) bool {
	return v.pitchers[strings.ToUpper(strings.TrimSpace(pos))]
}

// IsSentinel reports whether any cell of row marks the end of the roster area.
func (v *Vocabulary) IsSentinel(row []string) bool {
	for _, cell := range row {
		text := strings.ToLower(cell)
		for _, s := range v.Sentinels {
			if strings.Contains(text, s) {
				return true
			}
		}
	}
	return false
}

// RowCapFor returns the per-team roster cap for a season. A zero season uses
// the modern cap.
func (v *Vocabulary) RowCapFor(season int) int {
	if season > 0 && season <= v.LegacyCapSeason {
		return v.LegacyRowCap
	}
	return v.RowCap
}
