package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleTable() Table {
	return Table{
		Sheet:   "Resources",
		Headers: []string{"ID", "Name", "Published"},
		Rows: [][]interface{}{
			{1, "Astropy", true},
			{2, "Sun, Moon", false},
		},
	}
}

func TestWriteCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, WriteCSV(path, sampleTable()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "ID,Name,Published", lines[0])
	assert.Equal(t, "1,Astropy,true", lines[1])
	assert.Equal(t, `2,"Sun, Moon",false`, lines[2])
}

func TestCreateReportWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xlsx")
	summary := []SummaryItem{{Label: "Resources", Value: 2}}
	chart := &ChartSeries{Title: "Submissions", Labels: []string{"2026-01", "2026-02"}, Values: []int64{3, 5}}

	require.NoError(t, CreateReportWorkbook(path, sampleTable(), summary, chart))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Summary", "Resources"}, f.GetSheetList())

	name, err := f.GetCellValue("Resources", "B2")
	require.NoError(t, err)
	assert.Equal(t, "Astropy", name)

	label, err := f.GetCellValue("Summary", "A1")
	require.NoError(t, err)
	assert.Equal(t, "Resources", label)
}

func TestCellString(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var nilTime *time.Time

	assert.Equal(t, "", CellString(nil))
	assert.Equal(t, "2026-03-01T12:00:00Z", CellString(ts))
	assert.Equal(t, "2026-03-01T12:00:00Z", CellString(&ts))
	assert.Equal(t, "", CellString(nilTime))
	assert.Equal(t, "42", CellString(42))
}

func TestRenderMarkdown(t *testing.T) {
	out, err := RenderMarkdown("# Title\n\nSome *emphasis* and <script>alert(1)</script>")
	require.NoError(t, err)
	assert.Contains(t, out, "<h1>Title</h1>")
	assert.Contains(t, out, "<em>emphasis</em>")
	assert.NotContains(t, out, "<script>")
}
