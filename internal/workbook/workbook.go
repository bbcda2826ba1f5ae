// Package workbook loads raw league workbooks into named grids. It knows
// nothing about rosters; interpretation is left to the sheet package.
package workbook

import (
	"fmt"
	"strings"

	"github.com/fortuna/almanac/internal/sheet"
)

// Sheet is one named tab of a workbook.
type Sheet struct {
	Name string     `json:"name"`
	Grid sheet.Grid `json:"grid"`
}

// Workbook is an ordered set of sheets.
type Workbook struct {
	Sheets []Sheet `json:"sheets"`
}

// Sheet returns the tab with the given name, ignoring case.
func (w *Workbook) Sheet(name string) (Sheet, bool) {
	for _, s := range w.Sheets {
		if strings.EqualFold(s.Name, name) {
			return s, true
		}
	}
	return Sheet{}, false
}

// Add appends a sheet. Blank names become "Sheet N".
func (w *Workbook) Add(name string, grid sheet.Grid) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = fmt.Sprintf("Sheet %d", len(w.Sheets)+1)
	}
	w.Sheets = append(w.Sheets, Sheet{Name: name, Grid: grid})
}
