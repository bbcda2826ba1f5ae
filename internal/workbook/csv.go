package workbook

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/fortuna/almanac/internal/sheet"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// LoadCSVDir reads every .csv file in dir as one sheet, in file name order.
// The sheet name is the file name without extension; spreadsheet exports
// named "Workbook - P3.csv" yield "P3".
func LoadCSVDir(dir string) (*Workbook, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading workbook dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	wb := &Workbook{}
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
		grid, err := ParseCSV(data)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", name, err)
		}
		wb.Add(sheetNameFromFile(name), grid)
	}
	return wb, nil
}

func sheetNameFromFile(file string) string {
	name := strings.TrimSuffix(file, filepath.Ext(file))
	if i := strings.LastIndex(name, " - "); i >= 0 {
		name = name[i+3:]
	}
	return strings.TrimSpace(name)
}

// ParseCSV decodes one CSV sheet. UTF-8 and UTF-16 byte order marks are
// honoured; bytes that are not valid UTF-8 are read as Windows-1252, which is
// what older desktop spreadsheet exports produce. Ragged rows are allowed.
func ParseCSV(data []byte) (sheet.Grid, error) {
	text, err := decodeText(data)
	if err != nil {
		return nil, err
	}

	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading csv: %w", err)
	}
	return sheet.Grid(records), nil
}

func decodeText(data []byte) (string, error) {
	switch {
	case bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}):
		return string(data[3:]), nil
	case bytes.HasPrefix(data, []byte{0xFF, 0xFE}), bytes.HasPrefix(data, []byte{0xFE, 0xFF}):
		dec := unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder()
		out, _, err := transform.Bytes(dec, data)
		if err != nil {
			return "", fmt.Errorf("decoding utf-16: %w", err)
		}
		return string(out), nil
	case utf8.Valid(data):
		return string(data), nil
	}

	out, _, err := transform.Bytes(charmap.Windows1252.NewDecoder(), data)
	if err != nil {
		return "", fmt.Errorf("decoding windows-1252: %w", err)
	}
	return string(out), nil
}
