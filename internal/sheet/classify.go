package sheet

import (
	"regexp"
	"strconv"
	"strings"
)

var periodNameRe = regexp.MustCompile(`^(?:p|per|period|pd)?\s*\.?\s*(\d{1,2})$`)

// Classify maps a workbook tab name to a sheet kind and period number.
// Draft sheets are period 0. An unrecognised name returns KindPeriod with
// number 0; callers treat that as unclassified.
func Classify(name string) (Kind, int) {
	n := strings.ToLower(strings.TrimSpace(name))

	switch {
	case strings.Contains(n, "draft"), strings.Contains(n, "auction"):
		return KindDraft, 0
	case strings.Contains(n, "standing"):
		return KindStandings, 0
	}

	if m := periodNameRe.FindStringSubmatch(n); m != nil {
		num, _ := strconv.Atoi(m[1])
		return KindPeriod, num
	}
	return KindPeriod, 0
}
