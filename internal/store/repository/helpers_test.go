package repository

import (
	"strings"
	"testing"
)

func TestPrefixed(t *testing.T) {
	got := prefixed("pps", "\n\tstat_id, period_id,\n\tteam_code\n")
	want := "pps.stat_id, pps.period_id, pps.team_code"
	if got != want {
		t.Fatalf("prefixed = %q, want %q", got, want)
	}
}

func TestColumnListsMatchScanners(t *testing.T) {
	count := func(cols string) int {
		n := 0
		for _, c := range strings.Split(cols, ",") {
			if strings.TrimSpace(c) != "" {
				n++
			}
		}
		return n
	}
	// scanStat and scanPeriod read 29 and 10 destinations.
	if n := count(statColumns); n != 29 {
		t.Fatalf("statColumns has %d columns, want 29", n)
	}
	if n := count(periodColumns); n != 10 {
		t.Fatalf("periodColumns has %d columns, want 10", n)
	}
}
