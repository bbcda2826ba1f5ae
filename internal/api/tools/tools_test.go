package tools

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/fortuna/almanac/internal/identity"
	"github.com/fortuna/almanac/internal/ingest/mlb"
	"github.com/fortuna/almanac/internal/roto"
	"github.com/fortuna/almanac/internal/service"
	"github.com/fortuna/almanac/internal/store"
)

type fakeStandings struct{ tie roto.TieMode }

func (f *fakeStandings) PeriodStandings(_ context.Context, periodID int, tie roto.TieMode) (*service.PeriodStandings, error) {
	f.tie = tie
	if periodID != 3 {
		return nil, store.ErrNotFound
	}
	return &service.PeriodStandings{TieMode: tie, Rows: []roto.StandingsRow{{TeamCode: "MTK", TotalScore: 18, Rank: 1}}}, nil
}

func (f *fakeStandings) SeasonStandings(_ context.Context, year int, tie roto.TieMode) (*service.SeasonStandings, error) {
	f.tie = tie
	return &service.SeasonStandings{Season: year, TieMode: tie, Rows: []roto.SeasonRow{{TeamCode: "RLC", TotalScore: 120, Rank: 1}}}, nil
}

type fakeReports struct{ limit int }

func (f *fakeReports) ListOpen(_ context.Context, limit int) ([]*store.IdentityReport, error) {
	f.limit = limit
	return []*store.IdentityReport{{PlayerNameRaw: "W. Smith", Status: store.ResolutionAmbiguous}}, nil
}

type fakeKnowledge struct{}

func (fakeKnowledge) KnowledgeBase(context.Context) (*identity.KnowledgeBase, error) {
	return identity.NewKnowledgeBase([]identity.Entry{
		{NameRaw: "J. Soto", Identity: identity.Identity{FullName: "Juan Soto", ExternalID: "665742"}},
	}), nil
}

type fakeProfiles struct{ asked []string }

func (f *fakeProfiles) FetchPerson(_ context.Context, id string) (*mlb.Person, error) {
	f.asked = append(f.asked, id)
	return &mlb.Person{ID: id, FullName: "Juan Soto", Position: "RF", MLBTeam: "NYM"}, nil
}

func newToolset() (*Toolset, *fakeStandings, *fakeReports) {
	st, rp := &fakeStandings{}, &fakeReports{}
	return New(st, rp, fakeKnowledge{}), st, rp
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) != 1 {
		t.Fatalf("content = %+v", res.Content)
	}
	tc, ok := res.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("content type %T", res.Content[0])
	}
	return tc.Text
}

func TestPeriodStandingsTool(t *testing.T) {
	ts, st, _ := newToolset()
	ctx := context.Background()

	res, _, err := ts.periodStandings(ctx, nil, PeriodStandingsArgs{PeriodID: 3, Ties: "split"})
	if err != nil || res.IsError {
		t.Fatalf("result = %+v, %v", res, err)
	}
	var out service.PeriodStandings
	if err := json.Unmarshal([]byte(text(t, res)), &out); err != nil {
		t.Fatal(err)
	}
	if st.tie != roto.TieSplit || len(out.Rows) != 1 || out.Rows[0].TeamCode != "MTK" {
		t.Fatalf("standings = %+v", out)
	}

	for _, args := range []PeriodStandingsArgs{{PeriodID: 9}, {PeriodID: 0}, {PeriodID: 3, Ties: "coin"}} {
		res, _, err := ts.periodStandings(ctx, nil, args)
		if err != nil || !res.IsError || !strings.HasPrefix(text(t, res), "error:") {
			t.Errorf("%+v: result = %+v, %v", args, res, err)
		}
	}
}

func TestSeasonStandingsTool(t *testing.T) {
	ts, st, _ := newToolset()

	res, _, _ := ts.seasonStandings(context.Background(), nil, SeasonStandingsArgs{Season: 2024})
	if res.IsError || st.tie != roto.TieKeepOrder || !strings.Contains(text(t, res), `"RLC"`) {
		t.Fatalf("result = %s", text(t, res))
	}
}

func TestIdentityReportsTool(t *testing.T) {
	ts, _, rp := newToolset()

	res, _, _ := ts.identityReports(context.Background(), nil, IdentityReportsArgs{})
	if res.IsError || rp.limit != 50 || !strings.Contains(text(t, res), `"count": 1`) {
		t.Fatalf("result = %s limit = %d", text(t, res), rp.limit)
	}
}

func TestResolvePlayerTool(t *testing.T) {
	ts, _, _ := newToolset()

	res, _, _ := ts.resolvePlayer(context.Background(), nil, ResolvePlayerArgs{Name: "Soto J"})
	var out struct {
		Resolution identity.Resolution `json:"resolution"`
		Known      int                 `json:"known"`
	}
	if err := json.Unmarshal([]byte(text(t, res)), &out); err != nil {
		t.Fatal(err)
	}
	if out.Resolution.Status != identity.StatusResolved || out.Resolution.Identity.ExternalID != "665742" || out.Known != 1 {
		t.Fatalf("resolution = %+v", out)
	}

	if res, _, _ := ts.resolvePlayer(context.Background(), nil, ResolvePlayerArgs{}); !res.IsError {
		t.Fatal("empty name accepted")
	}
}

func TestResolvePlayerAttachesProfile(t *testing.T) {
	ts, _, _ := newToolset()
	profiles := &fakeProfiles{}
	ts.WithProfiles(profiles)

	res, _, _ := ts.resolvePlayer(context.Background(), nil, ResolvePlayerArgs{Name: "J. Soto"})
	if !strings.Contains(text(t, res), `"mlb_team": "NYM"`) || len(profiles.asked) != 1 || profiles.asked[0] != "665742" {
		t.Fatalf("result = %s asked = %v", text(t, res), profiles.asked)
	}

	ts.resolvePlayer(context.Background(), nil, ResolvePlayerArgs{Name: "Nobody Known"})
	if len(profiles.asked) != 1 {
		t.Fatalf("unresolved name fetched a profile: %v", profiles.asked)
	}
}

func TestServerRegistersTools(t *testing.T) {
	ts, _, _ := newToolset()
	if ts.Server("test") == nil || Handler(ts.Server("test")) == nil {
		t.Fatal("server not built")
	}
}
