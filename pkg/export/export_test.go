package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTable() Table {
	ids := []string{"i1", "i2"}
	notes := []string{"crater, deep", "bin overflowing"}
	return Table{
		Title:       "Issues",
		GeneratedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		Rows:        len(ids),
		Columns: []Column{
			{Key: "id", Title: "ID", Width: 1, Values: func(i int) string { return ids[i] }},
			{Key: "description", Title: "Description", Width: 3, Values: func(i int) string { return notes[i] }},
		},
	}
}

func TestRenderCSV(t *testing.T) {
	out, err := Render(FormatCSV, sampleTable())
	require.NoError(t, err)
	assert.Equal(t, "id,description\ni1,\"crater, deep\"\ni2,bin overflowing\n", string(out))
}

func TestRenderPDF(t *testing.T) {
	out, err := Render(FormatPDF, sampleTable())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestRenderRequiresColumns(t *testing.T) {
	_, err := Render(FormatCSV, Table{})
	assert.Error(t, err)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("PDF")
	require.NoError(t, err)
	assert.Equal(t, FormatPDF, f)

	f, err = ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	_, err = ParseFormat("xlsx")
	assert.Error(t, err)
}
