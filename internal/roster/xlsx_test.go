package roster

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/crm-enrich/internal/model"
)

func writeRoster(t *testing.T, header []string, rows [][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Entities")
	require.NoError(t, err)

	addRow := func(cells []string) {
		row := sheet.AddRow()
		for _, c := range cells {
			row.AddCell().SetString(c)
		}
	}
	addRow(header)
	for _, r := range rows {
		addRow(r)
	}

	path := filepath.Join(t.TempDir(), "roster.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestReadXLSX(t *testing.T) {
	path := writeRoster(t,
		[]string{"Tenant", "Entity", "Company", "Website", "Kind"},
		[][]string{
			{"t1", "e1", "Acme Staffing", "acme.com", "company"},
			{"t1", "e2", "Jane Doe", "", "contact"},
			{"", "e3", "Missing Tenant", "", ""}, // skipped
		},
	)

	entries, err := ReadXLSX(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, Entry{
		TenantID: "t1", EntityID: "e1", Kind: model.KindCompany,
		Name: "Acme Staffing", Domain: "acme.com",
	}, entries[0])
	assert.Equal(t, model.KindContact, entries[1].Kind)
}

func TestReadXLSXHeaderAliases(t *testing.T) {
	path := writeRoster(t,
		[]string{"tenant_id", "id", "name", "url"},
		[][]string{{"t9", "e9", "Beta", "beta.io"}},
	)

	entries, err := ReadXLSX(path)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "beta.io", entries[0].Domain)
}

func TestReadXLSXMissingRequiredColumns(t *testing.T) {
	path := writeRoster(t, []string{"name", "url"}, nil)
	_, err := ReadXLSX(path)
	assert.Error(t, err)
}

func TestReadXLSXMissingFile(t *testing.T) {
	_, err := ReadXLSX(filepath.Join(t.TempDir(), "nope.xlsx"))
	assert.Error(t, err)
}
