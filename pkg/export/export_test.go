package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func timetable() Table {
	return Table{
		Title:   "Timetable",
		Headers: []string{"date", "start", "end"},
		Rows:    [][]string{{"2024-01-01", "09:00", "10:00"}},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(timetable())
	require.NoError(t, err)
	assert.Equal(t, "date,start,end\n2024-01-01,09:00,10:00\n", string(out))
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter().Render(timetable())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestExportersRejectRaggedRows(t *testing.T) {
	table := Table{Headers: []string{"a", "b"}, Rows: [][]string{{"only-one"}}}
	for _, r := range []Renderer{NewCSVExporter(), NewPDFExporter()} {
		_, err := r.Render(table)
		assert.Error(t, err)
	}
	_, err := NewCSVExporter().Render(Table{})
	assert.Error(t, err)
}
