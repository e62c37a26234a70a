package report

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/speaker-outreach/internal/types"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

func row(name, company string) types.ReportRow {
	return types.ReportRow{
		SpeakerName:     name,
		SpeakerTitle:    "Director",
		SpeakerCompany:  company,
		CompanyCategory: types.CategoryBuilder,
		EmailSubject:    "Subject for " + name,
		EmailBody:       "Body, with a comma\nand a newline",
	}
}

func TestWrite_NewFileGetsHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "email_list.csv")

	n, err := Write(path, []types.ReportRow{row("Alice", "Skanska"), row("Bob", "Network Rail")})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	records := readCSV(t, path)
	require.Len(t, records, 3)
	assert.Equal(t, types.ReportHeader, records[0])
	assert.Equal(t, "Alice", records[1][0])
	assert.Equal(t, "Body, with a comma\nand a newline", records[1][5])
}

func TestWrite_AppendsAndDedupes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "email_list.csv")

	_, err := Write(path, []types.ReportRow{row("Alice", "Skanska")})
	require.NoError(t, err)

	n, err := Write(path, []types.ReportRow{
		row("Alice", "Skanska"),
		row("Alice", "Other Co"),
		row("Carol", "Arup"),
		row("Carol", "Arup"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	records := readCSV(t, path)
	require.Len(t, records, 4)
	assert.Equal(t, types.ReportHeader, records[0])
	assert.Equal(t, []string{"Alice", "Alice", "Carol"}, []string{records[1][0], records[2][0], records[3][0]})
}

func TestWrite_EmptyFileGetsHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "email_list.csv")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	_, err := Write(path, []types.ReportRow{row("Alice", "Skanska")})
	require.NoError(t, err)

	records := readCSV(t, path)
	require.Len(t, records, 2)
	assert.Equal(t, types.ReportHeader, records[0])
}

func TestWrite_RerunIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "email_list.csv")
	rows := []types.ReportRow{row("Alice", "Skanska"), row("Bob", "Network Rail")}

	_, err := Write(path, rows)
	require.NoError(t, err)
	n, err := Write(path, rows)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, readCSV(t, path), 3)
}

func TestMaterialize_FirstPerURL(t *testing.T) {
	records := []types.EmailRecord{
		{URL: "https://example.com/a", SpeakerName: "Alice", EmailSubject: "first"},
		{URL: "https://example.com/b", SpeakerName: "Bob"},
		{URL: "https://example.com/a", SpeakerName: "Alice", EmailSubject: "second"},
		{SpeakerName: "No URL"},
	}

	rows := Materialize(records)
	require.Len(t, rows, 2)
	assert.Equal(t, "first", rows[0].EmailSubject)
	assert.Equal(t, "Bob", rows[1].SpeakerName)
}
