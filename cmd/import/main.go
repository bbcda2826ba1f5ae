package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fortuna/almanac/internal/config"
	"github.com/fortuna/almanac/internal/importer"
	"github.com/fortuna/almanac/internal/ingest/mlb"
	"github.com/fortuna/almanac/internal/refresh"
	"github.com/fortuna/almanac/internal/store"
	"github.com/fortuna/almanac/internal/store/repository"
	"github.com/fortuna/almanac/internal/workbook"
)

const (
	appName    = "almanac-import"
	appVersion = "1.0.0"
)

var log = logrus.WithField("component", "import-cli")

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	var (
		atlasDSN = flag.String("dsn", cfg.AtlasDSN, "Atlas DSN")
		mlbBase  = flag.String("mlb-url", cfg.MLBAPIBase, "MLB Stats API base URL")
		csvDir   = flag.String("csv", "", "Directory of per-sheet CSV exports")
		htmlFile = flag.String("html", "", "Saved HTML export of a published workbook")
		pubURL   = flag.String("url", "", "Published workbook URL (rendered with headless Chrome)")
		season   = flag.Int("season", 0, "Season year the workbook belongs to")
		dates    = flag.String("dates", "", "Period dates, e.g. 1=2024-04-01:2024-04-14,2=2024-04-15:2024-04-28")
		dryRun   = flag.Bool("dry-run", false, "Extract and resolve without writing to the DB")
		resolve  = flag.Bool("resolve", false, "Re-resolve the season's unresolved rows instead of importing")
		doFetch  = flag.Bool("refresh", false, "Refresh imported periods from the stats provider after importing")
		logLevel = flag.String("log-level", cfg.LogLevel, "Log level")
	)
	flag.Parse()

	if err := config.ConfigureLogging(*logLevel, cfg.LogFormat); err != nil {
		log.Fatal(err)
	}
	log.Infof("=== %s v%s ===", appName, appVersion)

	if *season <= 0 {
		log.Fatal("Specify --season")
	}
	if !*resolve && *csvDir == "" && *htmlFile == "" && *pubURL == "" {
		log.Fatal("Specify --csv, --html, --url, or --resolve")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	db, err := store.NewDatabase(*atlasDSN)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer db.Close()

	if err := db.RunMigrations(ctx); err != nil {
		log.Fatalf("run migrations: %v", err)
	}

	vocab, err := cfg.Vocabulary()
	if err != nil {
		log.Fatalf("load vocabulary: %v", err)
	}

	seasons := repository.NewSeasonRepository(db)
	stats := repository.NewStatsRepository(db)
	imp := importer.New(seasons, stats, repository.NewReportRepository(db), vocab)

	var summary *importer.Summary
	if *resolve {
		summary, err = imp.Reresolve(ctx, *season)
		if err != nil {
			log.Fatalf("re-resolve failed: %v", err)
		}
	} else {
		opts := importer.Options{DryRun: *dryRun}
		if opts.Periods, err = parseDates(*dates); err != nil {
			log.Fatalf("parse --dates: %v", err)
		}

		wb, err := loadWorkbook(ctx, *csvDir, *htmlFile, *pubURL)
		if err != nil {
			log.Fatalf("load workbook: %v", err)
		}
		summary, err = imp.Import(ctx, *season, wb, opts)
		if err != nil {
			log.Fatalf("import failed: %v", err)
		}
	}

	printSummary(summary)

	if *doFetch && !*dryRun && len(summary.PeriodIDs) > 0 {
		client := mlb.New(*mlbBase)
		runner := refresh.NewRunner(seasons, stats, refresh.NewRefresher(client, cfg.Refresh))
		spec := refresh.JobSpec{Type: refresh.JobTypePeriod, SeasonYear: *season, PeriodIDs: summary.PeriodIDs}
		if err := runner.Run(ctx, spec, &consoleReporter{}); err != nil {
			log.Fatalf("refresh failed: %v", err)
		}
	}

	log.Info("✓ Import completed successfully")
}

func loadWorkbook(ctx context.Context, csvDir, htmlFile, pubURL string) (*workbook.Workbook, error) {
	switch {
	case csvDir != "":
		return workbook.LoadCSVDir(csvDir)
	case htmlFile != "":
		f, err := os.Open(htmlFile)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return workbook.ParseHTML(f)
	default:
		fetcher := workbook.NewFetcher()
		defer fetcher.Close()
		return fetcher.FetchPublished(ctx, pubURL)
	}
}

// parseDates reads "N=start:end" pairs separated by commas.
func parseDates(s string) (map[int]importer.DateRange, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}

	out := make(map[int]importer.DateRange)
	for _, part := range strings.Split(s, ",") {
		numStr, rangeStr, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			return nil, fmt.Errorf("%q: want N=start:end", part)
		}
		num, err := strconv.Atoi(numStr)
		if err != nil || num < 1 {
			return nil, fmt.Errorf("%q: invalid period number", part)
		}
		startStr, endStr, ok := strings.Cut(rangeStr, ":")
		if !ok {
			return nil, fmt.Errorf("%q: want N=start:end", part)
		}
		start, err := time.Parse("2006-01-02", startStr)
		if err != nil {
			return nil, fmt.Errorf("invalid start date: %w", err)
		}
		end, err := time.Parse("2006-01-02", endStr)
		if err != nil {
			return nil, fmt.Errorf("invalid end date: %w", err)
		}
		if end.Before(start) {
			return nil, fmt.Errorf("%q: end before start", part)
		}
		out[num] = importer.DateRange{Start: start, End: end}
	}
	return out, nil
}

func printSummary(summary *importer.Summary) {
	for _, sh := range summary.Sheets {
		entry := log.WithFields(logrus.Fields{
			"sheet":      sh.Name,
			"kind":       sh.Kind,
			"rows":       sh.Rows,
			"exact":      sh.Exact,
			"fuzzy":      sh.Fuzzy,
			"unresolved": sh.Unresolved,
			"ambiguous":  sh.Ambiguous,
		})
		switch {
		case sh.Error != "":
			entry.Warnf("⚠️  %s", sh.Error)
		case sh.Skipped != "":
			entry.Infof("skipped: %s", sh.Skipped)
		default:
			entry.Info("✓ sheet imported")
		}
	}

	if summary.DryRun {
		out, _ := json.MarshalIndent(summary, "", "  ")
		fmt.Println(string(out))
	}
	log.Infof("%s run %s: %d rows, %d exact, %d fuzzy, %d unresolved, %d ambiguous, %d failed",
		summary.Operation, summary.RunID, summary.Rows, summary.Exact, summary.Fuzzy,
		summary.Unresolved, summary.Ambiguous, summary.Failed)
}

type consoleReporter struct{}

func (c *consoleReporter) OnJobStart(spec refresh.JobSpec) {
	log.Infof("Starting %s refresh of %d period(s)", spec.Type, len(spec.PeriodIDs))
}

func (c *consoleReporter) OnPeriodStart(period *store.Period, index int, total int) {
	log.Infof("[%d/%d] %s", index+1, total, period.Label)
}

func (c *consoleReporter) OnPeriodComplete(result *refresh.PeriodResult) {
	log.Infof("Period %d: %d refreshed, %d skipped, %d unresolved", result.PeriodID, result.Refreshed, result.Skipped, result.Unresolved)
}

func (c *consoleReporter) OnProgress(message string, current int, total int) {
	log.Debugf("Progress: %s (%d/%d)", message, current, total)
}

func (c *consoleReporter) OnJobComplete() {
	log.Info("Refresh complete")
}

func (c *consoleReporter) OnJobError(err error) {
	log.Warnf("Refresh error: %v", err)
}
