package workbook

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/fortuna/almanac/internal/sheet"
)

// ParseHTML reads an HTML workbook export: one sheet per <table>. Tab names
// come from a published spreadsheet's sheet menu when present (menu buttons
// "sheet-button-<id>" name the container with id <id>), otherwise from the
// table caption. Header cells (<th>) are row and column rulers and are
// skipped; colspans are expanded with blank cells.
func ParseHTML(r io.Reader) (*Workbook, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	tabNames := make(map[string]string)
	doc.Find("#sheet-menu li").Each(func(_ int, li *goquery.Selection) {
		id, ok := li.Attr("id")
		if !ok {
			return
		}
		tabNames[strings.TrimPrefix(id, "sheet-button-")] = strings.TrimSpace(li.Text())
	})

	wb := &Workbook{}
	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		grid := tableGrid(table)
		if len(grid) == 0 {
			return
		}
		wb.Add(tableName(table, tabNames), grid)
	})

	if len(wb.Sheets) == 0 {
		return nil, fmt.Errorf("no tables found")
	}
	return wb, nil
}

func tableName(table *goquery.Selection, tabNames map[string]string) string {
	var name string
	table.Parents().EachWithBreak(func(_ int, p *goquery.Selection) bool {
		if id, ok := p.Attr("id"); ok {
			if n, found := tabNames[id]; found {
				name = n
				return false
			}
		}
		return true
	})
	if name != "" {
		return name
	}
	return strings.TrimSpace(table.ChildrenFiltered("caption").Text())
}

func tableGrid(table *goquery.Selection) sheet.Grid {
	var grid sheet.Grid
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.ChildrenFiltered("td")
		if cells.Length() == 0 {
			return
		}
		var row []string
		cells.Each(func(_ int, td *goquery.Selection) {
			row = append(row, strings.TrimSpace(td.Text()))
			if span, err := strconv.Atoi(td.AttrOr("colspan", "1")); err == nil {
				for i := 1; i < span; i++ {
					row = append(row, "")
				}
			}
		})
		grid = append(grid, row)
	})
	return grid
}
