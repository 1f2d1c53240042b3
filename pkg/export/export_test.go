package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVExporterRender(t *testing.T) {
	data := Dataset{
		Headers: []string{"name", "progress"},
		Rows: []map[string]string{
			{"name": "Ada", "progress": "80"},
			{"name": "Grace, H", "progress": "45"},
		},
	}

	out, err := NewCSVExporter().Render(data)
	require.NoError(t, err)
	assert.Equal(t, "name,progress\nAda,80\n\"Grace, H\",45\n", string(out))

	_, err = NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter().Render(Dataset{
		Headers: []string{"name"},
		Rows:    []map[string]string{{"name": "Ada"}},
	}, "Roster")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestPDFExporterRenderLetter(t *testing.T) {
	out, err := NewPDFExporter().RenderLetter(Letter{StudentName: "Ada", TeamName: "Alpha", Progress: 90})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))

	_, err = NewPDFExporter().RenderLetter(Letter{StudentName: "Ada"})
	assert.Error(t, err)
}

func TestFormat(t *testing.T) {
	assert.True(t, FormatCSV.Valid())
	assert.False(t, Format("xlsx").Valid())
	assert.Equal(t, "application/pdf", FormatPDF.ContentType())
	assert.Equal(t, "text/csv; charset=utf-8", FormatCSV.ContentType())
	assert.Equal(t, "x", truncate("x", 4))
	assert.Equal(t, "abcd...", truncate("abcdefghij", 7))
}
