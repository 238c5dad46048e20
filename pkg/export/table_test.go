package export

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderCSV(t *testing.T) {
	table := Table{
		Columns: []string{"student", "attendance", "absence"},
		Rows: [][]string{
			{"Ana Torres", "100.00", "0.00"},
			{"Luis Vega", "50.00", "50.00"},
		},
	}
	data, err := RenderCSV(table)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "student,attendance,absence", lines[0])
	assert.Equal(t, "Ana Torres,100.00,0.00", lines[1])
}

func TestRenderCSVRejectsRaggedRows(t *testing.T) {
	_, err := RenderCSV(Table{Columns: []string{"a", "b"}, Rows: [][]string{{"only"}}})
	assert.Error(t, err)

	_, err = RenderCSV(Table{})
	assert.Error(t, err)
}

func TestRenderPDF(t *testing.T) {
	table := Table{
		Title:   "Attendance Report",
		Columns: []string{"student", "attendance"},
		Rows:    [][]string{{"Ana Torres", "100.00"}},
	}
	data, err := RenderPDF(table)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "%PDF"))
}
