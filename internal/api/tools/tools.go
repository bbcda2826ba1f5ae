// Package tools exposes standings and identity lookups as MCP tools.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/fortuna/almanac/internal/identity"
	"github.com/fortuna/almanac/internal/ingest/mlb"
	"github.com/fortuna/almanac/internal/roto"
	"github.com/fortuna/almanac/internal/service"
	"github.com/fortuna/almanac/internal/store"
)

// Standings serves leaderboards. *service.StandingsService implements it.
type Standings interface {
	PeriodStandings(ctx context.Context, periodID int, tie roto.TieMode) (*service.PeriodStandings, error)
	SeasonStandings(ctx context.Context, year int, tie roto.TieMode) (*service.SeasonStandings, error)
}

// Reports lists open identity reports
type Reports interface {
	ListOpen(ctx context.Context, limit int) ([]*store.IdentityReport, error)
}

// Knowledge builds a resolution snapshot. *importer.Importer implements it.
type Knowledge interface {
	KnowledgeBase(ctx context.Context) (*identity.KnowledgeBase, error)
}

// Profiles looks up a player's provider record. *mlb.Client implements it.
type Profiles interface {
	FetchPerson(ctx context.Context, playerID string) (*mlb.Person, error)
}

type PeriodStandingsArgs struct {
	PeriodID int    `json:"period_id" jsonschema:"Scoring period id"`
	Ties     string `json:"ties,omitempty" jsonschema:"Tie policy: keep-order (default) or split"`
}

type SeasonStandingsArgs struct {
	Season int    `json:"season" jsonschema:"Season year (e.g. 2024)"`
	Ties   string `json:"ties,omitempty" jsonschema:"Tie policy: keep-order (default) or split"`
}

type IdentityReportsArgs struct {
	Limit int `json:"limit,omitempty" jsonschema:"Maximum reports to return (default 50)"`
}

type ResolvePlayerArgs struct {
	Name      string `json:"name" jsonschema:"Player name as printed in a roster sheet (e.g. Soto J)"`
	IsPitcher bool   `json:"is_pitcher,omitempty" jsonschema:"True when the name sits in a pitching slot"`
}

// Toolset holds the services the tools read from
type Toolset struct {
	standings Standings
	reports   Reports
	knowledge Knowledge
	profiles  Profiles
}

// New creates a toolset
func New(standings Standings, reports Reports, knowledge Knowledge) *Toolset {
	return &Toolset{standings: standings, reports: reports, knowledge: knowledge}
}

// WithProfiles attaches provider records to resolved players
func (t *Toolset) WithProfiles(p Profiles) *Toolset {
	t.profiles = p
	return t
}

// Server registers every tool on a new MCP server
func (t *Toolset) Server(version string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: "almanac-mcp", Version: version}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "period_standings",
		Description: "Roto standings for one scoring period: category values, points per category, total and rank for every team",
	}, t.periodStandings)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "season_standings",
		Description: "Season standings: each team's period totals summed across every non-draft period",
	}, t.seasonStandings)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "identity_reports",
		Description: "Roster names that could not be matched to a player, or matched more than one, with their candidates",
	}, t.identityReports)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "resolve_player",
		Description: "Resolves a printed roster name against imported history and explains the match",
	}, t.resolvePlayer)

	return server
}

// Handler serves server over streamable HTTP
func Handler(server *mcp.Server) http.Handler {
	return mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		return server
	}, &mcp.StreamableHTTPOptions{JSONResponse: true})
}

func (t *Toolset) periodStandings(ctx context.Context, req *mcp.CallToolRequest, args PeriodStandingsArgs) (*mcp.CallToolResult, any, error) {
	tie, err := roto.ParseTieMode(args.Ties)
	if err != nil {
		return toolError(err), nil, nil
	}
	if args.PeriodID <= 0 {
		return toolError(fmt.Errorf("period_id is required")), nil, nil
	}
	standings, err := t.standings.PeriodStandings(ctx, args.PeriodID, tie)
	if err != nil {
		return toolError(err), nil, nil
	}
	return toolJSON(standings)
}

func (t *Toolset) seasonStandings(ctx context.Context, req *mcp.CallToolRequest, args SeasonStandingsArgs) (*mcp.CallToolResult, any, error) {
	tie, err := roto.ParseTieMode(args.Ties)
	if err != nil {
		return toolError(err), nil, nil
	}
	if args.Season <= 0 {
		return toolError(fmt.Errorf("season is required")), nil, nil
	}
	standings, err := t.standings.SeasonStandings(ctx, args.Season, tie)
	if err != nil {
		return toolError(err), nil, nil
	}
	return toolJSON(standings)
}

func (t *Toolset) identityReports(ctx context.Context, req *mcp.CallToolRequest, args IdentityReportsArgs) (*mcp.CallToolResult, any, error) {
	limit := args.Limit
	if limit <= 0 {
		limit = 50
	}
	reports, err := t.reports.ListOpen(ctx, limit)
	if err != nil {
		return toolError(err), nil, nil
	}
	return toolJSON(map[string]any{
		"count":   len(reports),
		"reports": reports,
	})
}

func (t *Toolset) resolvePlayer(ctx context.Context, req *mcp.CallToolRequest, args ResolvePlayerArgs) (*mcp.CallToolResult, any, error) {
	if args.Name == "" {
		return toolError(fmt.Errorf("name is required")), nil, nil
	}
	kb, err := t.knowledge.KnowledgeBase(ctx)
	if err != nil {
		return toolError(err), nil, nil
	}
	res := identity.Resolve(kb, args.Name, args.IsPitcher)
	out := map[string]any{
		"name":       args.Name,
		"resolution": res,
		"known":      kb.Size(),
	}
	if t.profiles != nil && res.Identity.Resolved() {
		person, err := t.profiles.FetchPerson(ctx, res.Identity.ExternalID)
		if err != nil {
			out["profile_error"] = err.Error()
		} else {
			out["profile"] = person
		}
	}
	return toolJSON(out)
}

func toolJSON(v any) (*mcp.CallToolResult, any, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return toolError(err), nil, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(b)},
		},
	}, nil, nil
}

func toolError(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("error: %v", err)},
		},
	}
}
