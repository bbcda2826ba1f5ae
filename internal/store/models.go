package store

import (
	"database/sql"
	"encoding/json"
	"time"
)

// Resolution records how a row's identity was obtained.
type Resolution string

const (
	ResolutionExact      Resolution = "exact"
	ResolutionFuzzy      Resolution = "fuzzy"
	ResolutionUnresolved Resolution = "unresolved"
	ResolutionAmbiguous  Resolution = "ambiguous"
)

// Season is one archived league year
type Season struct {
	SeasonID  int       `json:"season_id" db:"season_id"`
	Year      int       `json:"year" db:"year"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Period is a scoring window within a season. The draft is period 0.
type Period struct {
	PeriodID  int          `json:"period_id" db:"period_id"`
	SeasonID  int          `json:"season_id" db:"season_id"`
	Number    int          `json:"number" db:"number"`
	Label     string       `json:"label" db:"label"`
	IsDraft   bool         `json:"is_draft" db:"is_draft"`
	StartDate sql.NullTime `json:"start_date,omitempty" db:"start_date"`
	EndDate   sql.NullTime `json:"end_date,omitempty" db:"end_date"`
	CreatedAt time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt time.Time    `json:"updated_at" db:"updated_at"`

	// Not in database - joined from seasons for API responses
	SeasonYear int `json:"season_year,omitempty" db:"-"`
}

// HasDates reports whether the period has a full date range.
func (p *Period) HasDates() bool {
	return p.StartDate.Valid && p.EndDate.Valid
}

// PlayerPeriodStat is one roster line for one period. Exactly one of the
// hitting or pitching groups is meaningful, selected by IsPitcher.
type PlayerPeriodStat struct {
	StatID        int64          `json:"stat_id" db:"stat_id"`
	PeriodID      int            `json:"period_id" db:"period_id"`
	PlayerNameRaw string         `json:"player_name_raw" db:"player_name_raw"`
	TeamCode      string         `json:"team_code" db:"team_code"`
	FullName      string         `json:"full_name" db:"full_name"`
	ExternalID    sql.NullString `json:"external_id,omitempty" db:"external_id"`
	Position      sql.NullString `json:"position,omitempty" db:"position"`
	MLBTeam       sql.NullString `json:"mlb_team,omitempty" db:"mlb_team"`
	IsPitcher     bool           `json:"is_pitcher" db:"is_pitcher"`
	Resolution    Resolution     `json:"resolution" db:"resolution"`

	// Hitting
	AtBats      int     `json:"ab" db:"at_bats"`
	Hits        int     `json:"h" db:"hits"`
	Runs        int     `json:"r" db:"runs"`
	HomeRuns    int     `json:"hr" db:"home_runs"`
	RBI         int     `json:"rbi" db:"rbi"`
	StolenBases int     `json:"sb" db:"stolen_bases"`
	AVG         float64 `json:"avg" db:"avg"`

	// Pitching. InningsPitched is true innings: 45.1 from the provider is 45 1/3.
	Wins           int     `json:"w" db:"wins"`
	Saves          int     `json:"sv" db:"saves"`
	Strikeouts     int     `json:"k" db:"strikeouts"`
	InningsPitched float64 `json:"ip" db:"innings_pitched"`
	EarnedRuns     int     `json:"er" db:"earned_runs"`
	ERA            float64 `json:"era" db:"era"`
	WHIP           float64 `json:"whip" db:"whip"`

	DraftDollars sql.NullInt32 `json:"draft_dollars,omitempty" db:"draft_dollars"`
	IsKeeper     bool          `json:"is_keeper" db:"is_keeper"`

	StatsRefreshedAt sql.NullTime `json:"stats_refreshed_at,omitempty" db:"stats_refreshed_at"`
	CreatedAt        time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at" db:"updated_at"`
}

// Resolved reports whether the row carries an external identity.
func (s *PlayerPeriodStat) Resolved() bool {
	return s.ExternalID.Valid && s.ExternalID.String != ""
}

// Counters is the replaceable stat block written by a refresh.
type Counters struct {
	AtBats      int
	Hits        int
	Runs        int
	HomeRuns    int
	RBI         int
	StolenBases int
	AVG         float64

	Wins           int
	Saves          int
	Strikeouts     int
	InningsPitched float64
	EarnedRuns     int
	ERA            float64
	WHIP           float64
}

// IdentityReport is an unresolved or ambiguous name awaiting review.
type IdentityReport struct {
	ReportID      int64           `json:"report_id" db:"report_id"`
	PeriodID      int             `json:"period_id" db:"period_id"`
	PlayerNameRaw string          `json:"player_name_raw" db:"player_name_raw"`
	TeamCode      string          `json:"team_code" db:"team_code"`
	Status        Resolution      `json:"status" db:"status"`
	Candidates    json.RawMessage `json:"candidates" db:"candidates"`
	Note          sql.NullString  `json:"note,omitempty" db:"note"`
	Resolved      bool            `json:"resolved" db:"resolved"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
}
