// Package roster parses entity roster spreadsheets for bulk record seeding.
package roster

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/crm-enrich/internal/model"
)

// Entry is one seed entity from a roster sheet.
type Entry struct {
	TenantID string
	EntityID string
	Kind     model.EntityKind
	Name     string
	Domain   string
}

// Recognized header names, lowercased.
var headerAliases = map[string]string{
	"tenant":    "tenant_id",
	"tenant_id": "tenant_id",
	"entity":    "entity_id",
	"entity_id": "entity_id",
	"id":        "entity_id",
	"kind":      "kind",
	"type":      "kind",
	"name":      "name",
	"company":   "name",
	"domain":    "domain",
	"website":   "domain",
	"url":       "domain",
}

// ReadXLSX parses the first sheet of an entity roster. The first row must be
// a header naming at least tenant and entity columns; unrecognized columns
// are ignored. Rows missing a tenant or entity ID are skipped.
func ReadXLSX(path string) ([]Entry, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "roster: open file")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("roster: workbook has no sheets")
	}

	sheet := f.Sheets[0]
	if len(sheet.Rows) == 0 {
		return nil, eris.New("roster: sheet is empty")
	}

	cols := mapHeader(rowToStrings(sheet.Rows[0]))
	if _, ok := cols["tenant_id"]; !ok {
		return nil, eris.New("roster: header missing tenant column")
	}
	if _, ok := cols["entity_id"]; !ok {
		return nil, eris.New("roster: header missing entity column")
	}

	var entries []Entry
	for _, row := range sheet.Rows[1:] {
		cells := rowToStrings(row)
		entry := Entry{
			TenantID: cellAt(cells, cols, "tenant_id"),
			EntityID: cellAt(cells, cols, "entity_id"),
			Name:     cellAt(cells, cols, "name"),
			Domain:   cellAt(cells, cols, "domain"),
			Kind:     model.KindCompany,
		}
		if entry.TenantID == "" || entry.EntityID == "" {
			continue
		}
		if kind := strings.ToLower(cellAt(cells, cols, "kind")); kind == string(model.KindContact) {
			entry.Kind = model.KindContact
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func mapHeader(cells []string) map[string]int {
	cols := make(map[string]int, len(cells))
	for i, cell := range cells {
		if canonical, ok := headerAliases[strings.ToLower(strings.TrimSpace(cell))]; ok {
			if _, dup := cols[canonical]; !dup {
				cols[canonical] = i
			}
		}
	}
	return cols
}

func cellAt(cells []string, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(cells) {
		return ""
	}
	return strings.TrimSpace(cells[i])
}

func rowToStrings(row *xlsx.Row) []string {
	out := make([]string, len(row.Cells))
	for i, cell := range row.Cells {
		out[i] = cell.String()
	}
	return out
}
