package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/fortuna/almanac/internal/importer"
	"github.com/fortuna/almanac/internal/refresh"
	"github.com/fortuna/almanac/internal/roto"
	"github.com/fortuna/almanac/internal/service"
	"github.com/fortuna/almanac/internal/sheet"
	"github.com/fortuna/almanac/internal/store"
	"github.com/fortuna/almanac/internal/workbook"
)

const dateLayout = "2006-01-02"

// Importer ingests workbooks and re-runs identity resolution.
type Importer interface {
	Import(ctx context.Context, season int, wb *workbook.Workbook, opts importer.Options) (*importer.Summary, error)
	Reresolve(ctx context.Context, seasonYear int) (*importer.Summary, error)
}

// Standings serves period and season leaderboards.
type Standings interface {
	PeriodStandings(ctx context.Context, periodID int, tie roto.TieMode) (*service.PeriodStandings, error)
	SeasonStandings(ctx context.Context, year int, tie roto.TieMode) (*service.SeasonStandings, error)
}

// Periods reads and edits scoring periods.
type Periods interface {
	ListPeriods(ctx context.Context, year int) ([]*store.Period, error)
	SetDates(ctx context.Context, periodID int, start, end time.Time) (*store.Period, error)
	GetPeriodStats(ctx context.Context, periodID int) (*service.PeriodStats, error)
}

// Seasons lists imported seasons.
type Seasons interface {
	ListSeasons(ctx context.Context) ([]*store.Season, error)
}

// Reports lists open identity reports.
type Reports interface {
	ListOpen(ctx context.Context, limit int) ([]*store.IdentityReport, error)
}

// RefreshQueue accepts refresh jobs and reports their state.
type RefreshQueue interface {
	Enqueue(ctx context.Context, req refresh.Request) (*refresh.Job, error)
	GetStatus(ctx context.Context) (*refresh.StatusSummary, error)
}

// HealthChecker is anything that can report its own reachability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps are the collaborators the handlers serve from.
type Deps struct {
	Importer  Importer
	Seasons   Seasons
	Standings Standings
	Periods   Periods
	Reports   Reports
	Refresh   RefreshQueue
	// Checks are probed by the health endpoint, keyed by name.
	Checks map[string]HealthChecker
}

// Handler contains dependencies for HTTP handlers
// maxImportBytes caps an import request body.
const maxImportBytes = 32 << 20

type Handler struct {
	deps      Deps
	validator *validator.Validate
	maxBody   int64
}

// NewHandler creates a new handler
func NewHandler(deps Deps) *Handler {
	return &Handler{
		deps:      deps,
		validator: validator.New(),
		maxBody:   maxImportBytes,
	}
}

// HealthCheck handles health check requests
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(h.deps.Checks))
	for name, checker := range h.deps.Checks {
		if err := checker.HealthCheck(ctx); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	overall := "healthy"
	if status != http.StatusOK {
		overall = "degraded"
	}
	respondJSON(w, status, map[string]interface{}{
		"status":  overall,
		"service": "almanac",
		"checks":  checks,
	})
}

type importSheet struct {
	Name string          `json:"name" validate:"required,max=128"`
	Rows [][]interface{} `json:"rows" validate:"required"`
}

type importPeriod struct {
	Number    int    `json:"number" validate:"gte=1"`
	StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date" validate:"required,datetime=2006-01-02"`
}

type importRequest struct {
	Season int    `json:"season" validate:"required,gte=1900,lte=2200"`
	DryRun bool   `json:"dry_run"`
	HTML   string `json:"html"`
	// Sheets carry cell grids as a spreadsheet API would return them.
	Sheets  []importSheet  `json:"sheets" validate:"required_without=HTML,dive"`
	Periods []importPeriod `json:"periods" validate:"omitempty,dive"`
}

// ImportWorkbook handles POST /api/v1/imports
func (h *Handler) ImportWorkbook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)

	var req importRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validateRequest(r.Context(), &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid import request", err)
		return
	}

	wb, err := requestWorkbook(&req)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Unreadable workbook", err)
		return
	}

	opts := importer.Options{DryRun: req.DryRun}
	if len(req.Periods) > 0 {
		opts.Periods = make(map[int]importer.DateRange, len(req.Periods))
		for _, p := range req.Periods {
			start, end, err := parseRange(p.StartDate, p.EndDate)
			if err != nil {
				respondError(w, http.StatusBadRequest, fmt.Sprintf("Invalid dates for period %d", p.Number), err)
				return
			}
			opts.Periods[p.Number] = importer.DateRange{Start: start, End: end}
		}
	}

	summary, err := h.deps.Importer.Import(r.Context(), req.Season, wb, opts)
	if err != nil {
		respondError(w, errorStatus(err), "Import failed", err)
		return
	}

	status := http.StatusOK
	if !req.DryRun {
		status = http.StatusCreated
	}
	respondJSON(w, status, summary)
}

func requestWorkbook(req *importRequest) (*workbook.Workbook, error) {
	if req.HTML != "" {
		return workbook.ParseHTML(strings.NewReader(req.HTML))
	}
	wb := &workbook.Workbook{}
	for _, s := range req.Sheets {
		wb.Add(s.Name, sheet.GridFromValues(s.Rows))
	}
	return wb, nil
}

// ListSeasons handles GET /api/v1/seasons
func (h *Handler) ListSeasons(w http.ResponseWriter, r *http.Request) {
	seasons, err := h.deps.Seasons.ListSeasons(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch seasons", err)
		return
	}
	if seasons == nil {
		seasons = []*store.Season{}
	}

	respondJSON(w, http.StatusOK, seasons)
}

// ListPeriods handles GET /api/v1/seasons/{year}/periods
func (h *Handler) ListPeriods(w http.ResponseWriter, r *http.Request) {
	year, ok := pathInt(w, r, "year")
	if !ok {
		return
	}

	periods, err := h.deps.Periods.ListPeriods(r.Context(), year)
	if err != nil {
		respondError(w, errorStatus(err), fmt.Sprintf("Failed to fetch periods for %d", year), err)
		return
	}

	respondJSON(w, http.StatusOK, periods)
}

type periodDatesRequest struct {
	StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date" validate:"required,datetime=2006-01-02"`
}

// SetPeriodDates handles PUT /api/v1/periods/{periodID}/dates
func (h *Handler) SetPeriodDates(w http.ResponseWriter, r *http.Request) {
	periodID, ok := pathInt(w, r, "periodID")
	if !ok {
		return
	}

	var req periodDatesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validateRequest(r.Context(), &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid period dates", err)
		return
	}
	start, end, err := parseRange(req.StartDate, req.EndDate)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid period dates", err)
		return
	}

	period, err := h.deps.Periods.SetDates(r.Context(), periodID, start, end)
	if err != nil {
		respondError(w, errorStatus(err), "Failed to update period dates", err)
		return
	}

	respondJSON(w, http.StatusOK, period)
}

// GetPeriodStats handles GET /api/v1/periods/{periodID}/stats
func (h *Handler) GetPeriodStats(w http.ResponseWriter, r *http.Request) {
	periodID, ok := pathInt(w, r, "periodID")
	if !ok {
		return
	}

	stats, err := h.deps.Periods.GetPeriodStats(r.Context(), periodID)
	if err != nil {
		respondError(w, errorStatus(err), "Failed to fetch period stats", err)
		return
	}

	respondJSON(w, http.StatusOK, stats)
}

// GetPeriodStandings handles GET /api/v1/periods/{periodID}/standings
func (h *Handler) GetPeriodStandings(w http.ResponseWriter, r *http.Request) {
	periodID, ok := pathInt(w, r, "periodID")
	if !ok {
		return
	}
	tie, err := roto.ParseTieMode(r.URL.Query().Get("ties"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid ties parameter (use keep-order or split)", err)
		return
	}

	standings, err := h.deps.Standings.PeriodStandings(r.Context(), periodID, tie)
	if err != nil {
		respondError(w, errorStatus(err), "Failed to compute standings", err)
		return
	}

	respondJSON(w, http.StatusOK, standings)
}

// GetSeasonStandings handles GET /api/v1/seasons/{year}/standings
func (h *Handler) GetSeasonStandings(w http.ResponseWriter, r *http.Request) {
	year, ok := pathInt(w, r, "year")
	if !ok {
		return
	}
	tie, err := roto.ParseTieMode(r.URL.Query().Get("ties"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid ties parameter (use keep-order or split)", err)
		return
	}

	standings, err := h.deps.Standings.SeasonStandings(r.Context(), year, tie)
	if err != nil {
		respondError(w, errorStatus(err), "Failed to compute season standings", err)
		return
	}

	respondJSON(w, http.StatusOK, standings)
}

// ReresolveSeason handles POST /api/v1/seasons/{year}/resolve
func (h *Handler) ReresolveSeason(w http.ResponseWriter, r *http.Request) {
	year, ok := pathInt(w, r, "year")
	if !ok {
		return
	}

	summary, err := h.deps.Importer.Reresolve(r.Context(), year)
	if err != nil {
		respondError(w, errorStatus(err), "Re-resolution failed", err)
		return
	}

	respondJSON(w, http.StatusOK, summary)
}

// ListIdentityReports handles GET /api/v1/identity/reports
func (h *Handler) ListIdentityReports(w http.ResponseWriter, r *http.Request) {
	limit := 100 // default
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 500 {
			limit = l
		}
	}

	reports, err := h.deps.Reports.ListOpen(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch identity reports", err)
		return
	}

	respondJSON(w, http.StatusOK, reports)
}

func (h *Handler) validateRequest(ctx context.Context, payload interface{}) error {
	return h.validator.StructCtx(ctx, payload)
}

func pathInt(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := mux.Vars(r)[name]
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("Invalid %s", name), err)
		return 0, false
	}
	return v, true
}

func parseRange(startStr, endStr string) (time.Time, time.Time, error) {
	start, err := time.Parse(dateLayout, startStr)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := time.Parse(dateLayout, endStr)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("end_date %s is before start_date %s", endStr, startStr)
	}
	return start, end, nil
}

func errorStatus(err error) int {
	var verrs validator.ValidationErrors
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &verrs):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError writes an error response
func respondError(w http.ResponseWriter, status int, message string, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]interface{}{
		"error":  message,
		"status": status,
	}

	if err != nil {
		response["details"] = err.Error()
	}

	json.NewEncoder(w).Encode(response)
}
