package sheet

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/fortuna/almanac/internal/league"
)

func wideFixture() Grid {
	return Grid{
		{"2023 Keeper League", "", "", "", ""},
		{"", "Demolition Lumber Co", "$", "Los Doyers", "$"},
		{"C", "J. Smith", "5", "Rodriguez A", "12"},
		{"1B", "B. Jones", "3", "ML/AAA", ""},
		{"", "OF", "", "22", ""},
		{"P", "K. Walker", "7", "T. Green", "9"},
		{"Salary Cap Total", "260", "", "255", ""},
		{"P", "Z. After", "1", "Y. Below", "1"},
	}
}

func TestExtractWideGrid(t *testing.T) {
	res := Extract(wideFixture(), KindPeriod, Options{Season: 2023})

	if res.Layout != LayoutWide {
		t.Fatalf("layout = %s, want wide", res.Layout)
	}
	if res.HeaderRow != 1 {
		t.Fatalf("header row = %d, want 1", res.HeaderRow)
	}

	type row struct {
		name, team, pos string
		pitcher         bool
	}
	want := []row{
		{"J. Smith", "DLC", "C", false},
		{"Rodriguez A", "LDY", "C", false},
		{"B. Jones", "DLC", "1B", false},
		{"K. Walker", "DLC", "P", true},
		{"T. Green", "LDY", "P", true},
	}
	if len(res.Rows) != len(want) {
		t.Fatalf("got %d rows, want %d: %+v", len(res.Rows), len(want), res.Rows)
	}
	for i, w := range want {
		got := res.Rows[i]
		if got.PlayerNameRaw != w.name || got.TeamCode != w.team || got.Position != w.pos || got.IsPitcherGuess != w.pitcher {
			t.Errorf("row %d = %+v, want %+v", i, got, w)
		}
		if got.DraftDollars != nil {
			t.Errorf("row %d: period sheets carry no draft dollars", i)
		}
	}
}

func TestExtractWideGridOnlyEmitsHeaderTeams(t *testing.T) {
	vocab := league.DefaultVocabulary()
	res := Extract(wideFixture(), KindPeriod, Options{Vocabulary: vocab})

	codes := make(map[string]bool)
	for _, code := range res.Teams {
		codes[code] = true
	}
	for _, r := range res.Rows {
		if !codes[r.TeamCode] {
			t.Errorf("team %q was not detected in the header", r.TeamCode)
		}
		if vocab.IsPositionToken(r.PlayerNameRaw) {
			t.Errorf("position token %q emitted as a player", r.PlayerNameRaw)
		}
		if _, ok := vocab.MatchTeam(r.PlayerNameRaw); ok {
			t.Errorf("team alias %q emitted as a player", r.PlayerNameRaw)
		}
		if r.PlayerNameRaw == "" || r.TeamCode == "" {
			t.Errorf("empty name or team: %+v", r)
		}
	}
}

func TestExtractStopsAtSentinel(t *testing.T) {
	res := Extract(wideFixture(), KindPeriod, Options{})
	for _, r := range res.Rows {
		if r.SourceRow >= 6 {
			t.Fatalf("row %+v was read past the Salary Cap Total row", r)
		}
		if r.PlayerNameRaw == "Z. After" || r.PlayerNameRaw == "Y. Below" {
			t.Fatalf("player %q below the sentinel was emitted", r.PlayerNameRaw)
		}
	}
}

func TestExtractDraftDollars(t *testing.T) {
	res := Extract(wideFixture(), KindDraft, Options{})

	want := map[string]int{"J. Smith": 5, "Rodriguez A": 12, "B. Jones": 3, "K. Walker": 7, "T. Green": 9}
	for _, r := range res.Rows {
		if r.DraftDollars == nil {
			t.Fatalf("%s has no draft dollars", r.PlayerNameRaw)
		}
		if *r.DraftDollars != want[r.PlayerNameRaw] {
			t.Errorf("%s dollars = %d, want %d", r.PlayerNameRaw, *r.DraftDollars, want[r.PlayerNameRaw])
		}
	}
}

func TestParseDollars(t *testing.T) {
	cases := map[string]int{"$12": 12, " 7 ": 7, "": 0, "abc": 0, "-4": 0, "$ 3": 3}
	for in, want := range cases {
		if got := parseDollars(in); got != want {
			t.Errorf("parseDollars(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestExtractRowCap(t *testing.T) {
	grid := Grid{{"Moose Tracks", "Rally Caps"}}
	for i := 0; i < 30; i++ {
		grid = append(grid, []string{fmt.Sprintf("Player %02d", i), fmt.Sprintf("Other %02d", i)})
	}

	legacy := Extract(grid, KindPeriod, Options{Season: 2021})
	modern := Extract(grid, KindPeriod, Options{Season: 2024})

	count := func(res Result) map[string]int {
		m := make(map[string]int)
		for _, r := range res.Rows {
			m[r.TeamCode]++
		}
		return m
	}
	if got := count(legacy); got["MTK"] != 23 || got["RLC"] != 23 {
		t.Fatalf("legacy counts = %v, want 23 each", got)
	}
	if got := count(modern); got["MTK"] != 30 || got["RLC"] != 30 {
		t.Fatalf("modern counts = %v, want 30 each", got)
	}
}

func TestExtractVerticalBlocks(t *testing.T) {
	grid := Grid{
		{"Player", "Team", "Pos", "Player", "Team", "Pos"},
		{"A. Adams", "ldy", "OF", "C. Clark", "SKO", "P"},
		{"", "", "", "D. Davis", "SKO", "SS"},
		{"B. Baker", "LDY", "SP", "", "", ""},
	}

	res := Extract(grid, KindPeriod, Options{})
	if res.Layout != LayoutVertical {
		t.Fatalf("layout = %s, want vertical", res.Layout)
	}
	if len(res.Records) != 4 {
		t.Fatalf("got %d records, want 4", len(res.Records))
	}
	if res.Records[1].Fields["player"] != "C. Clark" || res.Records[1].Block != 1 {
		t.Fatalf("second record = %+v", res.Records[1])
	}

	want := []RawPlayerRow{
		{PlayerNameRaw: "A. Adams", TeamCode: "LDY", Position: "OF", SourceRow: 1, SourceCol: 0},
		{PlayerNameRaw: "C. Clark", TeamCode: "SKO", Position: "P", IsPitcherGuess: true, SourceRow: 1, SourceCol: 3},
		{PlayerNameRaw: "D. Davis", TeamCode: "SKO", Position: "SS", SourceRow: 2, SourceCol: 3},
		{PlayerNameRaw: "B. Baker", TeamCode: "LDY", Position: "SP", IsPitcherGuess: true, SourceRow: 3, SourceCol: 0},
	}
	if !reflect.DeepEqual(res.Rows, want) {
		t.Fatalf("rows =\n%+v\nwant\n%+v", res.Rows, want)
	}
}

func TestExtractTitledVerticalBlocks(t *testing.T) {
	grid := Grid{
		{"Los Doyers", "", "", "Skunks", "", ""},
		{"Player", "Pos", "$", "Player", "Pos", "$"},
		{"A. Adams", "OF", "4", "C. Clark", "P", "8"},
	}

	res := Extract(grid, KindDraft, Options{})
	if res.Layout != LayoutVertical {
		t.Fatalf("layout = %s, want vertical", res.Layout)
	}
	if res.HeaderRow != 1 || len(res.Rows) != 2 {
		t.Fatalf("result = %+v", res)
	}

	type row struct {
		name, team, pos string
		dollars         int
	}
	want := []row{
		{"A. Adams", "LDY", "OF", 4},
		{"C. Clark", "SKO", "P", 8},
	}
	for i, w := range want {
		r := res.Rows[i]
		if r.DraftDollars == nil {
			t.Fatalf("row %d has no dollars: %+v", i, r)
		}
		got := row{r.PlayerNameRaw, r.TeamCode, r.Position, *r.DraftDollars}
		if got != w {
			t.Errorf("row %d = %+v, want %+v", i, got, w)
		}
	}
}

func TestIsNoiseSkipsColumnLabels(t *testing.T) {
	vocab := league.DefaultVocabulary()
	for _, cell := range []string{"Player", "NAME", "Pos", "Salary"} {
		if !isNoise(cell, vocab) {
			t.Errorf("isNoise(%q) = false, want true", cell)
		}
	}
	if isNoise("A. Adams", vocab) {
		t.Error("isNoise(\"A. Adams\") = true, want false")
	}
}

func TestExtractVerticalBlockTitle(t *testing.T) {
	grid := Grid{
		{"Sandlot Legends"},
		{"Name", "Position", "Salary"},
		{"E. Evans", "C", "$15"},
	}

	res := Extract(grid, KindDraft, Options{})
	if res.Layout != LayoutVertical || len(res.Rows) != 1 {
		t.Fatalf("result = %+v", res)
	}
	r := res.Rows[0]
	if r.TeamCode != "SDL" || r.Position != "C" || r.DraftDollars == nil || *r.DraftDollars != 15 {
		t.Fatalf("row = %+v", r)
	}
}

func TestExtractOpaqueFallback(t *testing.T) {
	grid := Grid{{"foo", "bar"}, {"1", "2"}}

	res := Extract(grid, KindStandings, Options{})
	if res.Layout != LayoutOpaque {
		t.Fatalf("layout = %s, want opaque", res.Layout)
	}
	if len(res.Rows) != 0 {
		t.Fatalf("opaque sheets have no rows, got %d", len(res.Rows))
	}
	if !reflect.DeepEqual(res.Opaque, [][]string{{"foo", "bar"}, {"1", "2"}}) {
		t.Fatalf("opaque = %v", res.Opaque)
	}

	grid[0][0] = "changed"
	if res.Opaque[0][0] != "foo" {
		t.Fatal("opaque output must not alias the input grid")
	}
}

func TestGridFromValues(t *testing.T) {
	grid := GridFromValues([][]interface{}{{"J. Smith", 12.0, nil, true}, {3.5}})
	want := Grid{{"J. Smith", "12", "", "true"}, {"3.5"}}
	if !reflect.DeepEqual(grid, want) {
		t.Fatalf("grid = %v, want %v", grid, want)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name   string
		kind   Kind
		number int
	}{
		{"Draft 2023", KindDraft, 0},
		{"Auction", KindDraft, 0},
		{"Final Standings", KindStandings, 0},
		{"P3", KindPeriod, 3},
		{"Period 12", KindPeriod, 12},
		{"per. 4", KindPeriod, 4},
		{"7", KindPeriod, 7},
		{"Notes", KindPeriod, 0},
	}
	for _, tc := range cases {
		kind, num := Classify(tc.name)
		if kind != tc.kind || num != tc.number {
			t.Errorf("Classify(%q) = %s, %d; want %s, %d", tc.name, kind, num, tc.kind, tc.number)
		}
	}
}
