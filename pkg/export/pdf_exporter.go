package export

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// PDFExporter renders roster tables and recommendation letters.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render creates a landscape PDF document with an optional title and table body.
func (e *PDFExporter) Render(data Dataset, title string) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("pdf requires at least one header")
	}
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.AddPage()

	if title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, strings.ToUpper(title), "", 1, "C", false, 0, "")
		pdf.Ln(5)
	}

	pdf.SetFont("Arial", "B", 10)
	colWidth := 277.0 / float64(len(data.Headers))
	for _, header := range data.Headers {
		pdf.CellFormat(colWidth, 8, header, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	for _, row := range data.Rows {
		for _, header := range data.Headers {
			pdf.CellFormat(colWidth, 7, truncate(row[header], 48), "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}

	return output(pdf)
}

// Letter holds the content of a letter of recommendation.
type Letter struct {
	StudentName string
	TeamName    string
	ProjectName string
	Progress    int
	LeaderName  string
	IssuedAt    time.Time
}

// RenderLetter produces a single page recommendation letter.
func (e *PDFExporter) RenderLetter(l Letter) ([]byte, error) {
	if l.StudentName == "" || l.TeamName == "" {
		return nil, fmt.Errorf("letter requires student and team name")
	}
	if l.IssuedAt.IsZero() {
		l.IssuedAt = time.Now().UTC()
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(25, 25, 25)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 12, "LETTER OF RECOMMENDATION", "", 1, "C", false, 0, "")
	pdf.Ln(6)

	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(0, 7, l.IssuedAt.Format("2 January 2006"), "", 1, "R", false, 0, "")
	pdf.Ln(4)
	pdf.MultiCell(0, 7, "To whom it may concern,", "", "L", false)
	pdf.Ln(2)

	project := l.ProjectName
	if project == "" {
		project = "the team project"
	}
	body := fmt.Sprintf(
		"It is my pleasure to recommend %s, who worked as a member of the team \"%s\" on %s. "+
			"Over the course of the program %s reached %d%% completion of the assigned work and "+
			"consistently contributed to the team's deliverables.",
		l.StudentName, l.TeamName, project, l.StudentName, l.Progress,
	)
	pdf.MultiCell(0, 7, body, "", "J", false)
	pdf.Ln(4)
	pdf.MultiCell(0, 7, "I am confident they will be an asset to any organisation they join.", "", "L", false)
	pdf.Ln(14)

	leader := l.LeaderName
	if leader == "" {
		leader = "Team Leader"
	}
	pdf.CellFormat(0, 7, "Sincerely,", "", 1, "L", false, 0, "")
	pdf.Ln(10)
	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(0, 7, leader, "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 6, "Team Leader, "+l.TeamName, "", 1, "L", false, 0, "")

	return output(pdf)
}

func output(pdf *gofpdf.Fpdf) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func truncate(value string, max int) string {
	if len(value) <= max {
		return value
	}
	return value[:max-3] + "..."
}
