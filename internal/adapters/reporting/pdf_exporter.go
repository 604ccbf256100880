// Package reporting adapts the teacher's executive vulnerability-report
// PDF exporter (gofpdf) to component L: a periodic violation-summary
// report instead of a vulnerability summary. The layout — header, stat
// grid, ranked table, recommendations, footer — is unchanged; only the
// data it renders differs.
package reporting

import (
	"bytes"
	"fmt"

	"github.com/beaconsentry/engine/internal/domain"
	"github.com/jung-kurt/gofpdf"
)

// PDFExporter renders a domain.ViolationReport to PDF.
type PDFExporter struct{}

// NewPDFExporter creates a new PDF exporter instance.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// ExportViolationReport generates a PDF from a violation summary report.
func (e *PDFExporter) ExportViolationReport(report *domain.ViolationReport) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	e.addHeader(pdf, report)
	e.addStatistics(pdf, report)
	e.addTopAreas(pdf, report)
	e.addRecommendations(pdf, report)
	e.addFooter(pdf, report)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}
	return buf.Bytes(), nil
}

func (e *PDFExporter) addHeader(pdf *gofpdf.Fpdf, report *domain.ViolationReport) {
	pdf.SetFont("Arial", "B", 24)
	pdf.SetTextColor(0, 51, 102)
	pdf.CellFormat(0, 15, report.Metadata.Title, "", 1, "L", false, 0, "")
	pdf.Ln(2)

	if report.Metadata.OrganizationName != "" {
		pdf.SetFont("Arial", "", 14)
		pdf.SetTextColor(100, 100, 100)
		pdf.CellFormat(0, 8, report.Metadata.OrganizationName, "", 1, "L", false, 0, "")
		pdf.Ln(2)
	}

	pdf.SetFont("Arial", "", 10)
	pdf.SetTextColor(120, 120, 120)
	dateStr := fmt.Sprintf("Generated: %s", report.Metadata.GeneratedAt.Format("2006-01-02 15:04"))
	pdf.CellFormat(0, 6, dateStr, "", 1, "L", false, 0, "")

	if !report.Metadata.Period.Start.IsZero() {
		periodStr := fmt.Sprintf("Report Period: %s to %s",
			report.Metadata.Period.Start.Format("2006-01-02"),
			report.Metadata.Period.End.Format("2006-01-02"))
		pdf.CellFormat(0, 6, periodStr, "", 1, "L", false, 0, "")
	}

	pdf.Ln(8)
}

// addStatistics adds the violation-count stat grid.
func (e *PDFExporter) addStatistics(pdf *gofpdf.Fpdf, report *domain.ViolationReport) {
	pdf.SetFont("Arial", "B", 14)
	pdf.SetTextColor(0, 51, 102)
	pdf.CellFormat(0, 10, "Monitoring Overview", "", 1, "L", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Arial", "", 11)
	pdf.SetTextColor(60, 60, 60)

	stats := []struct {
		label string
		value string
		color []int
	}{
		{"Objects Monitored", fmt.Sprintf("%d", report.TotalObjectsMonitored), []int{0, 102, 204}},
		{"Total Violations", fmt.Sprintf("%d", report.Stats.Total), []int{0, 102, 204}},
		{"Geo-Fence", fmt.Sprintf("%d", report.Stats.GeoFence), []int{220, 53, 69}},
		{"Panic", fmt.Sprintf("%d", report.Stats.Panic), []int{255, 149, 0}},
		{"Movement", fmt.Sprintf("%d", report.Stats.Movement), []int{255, 204, 0}},
		{"Location", fmt.Sprintf("%d", report.Stats.Location), []int{52, 199, 89}},
	}

	colWidth := 85.0
	for i, stat := range stats {
		x := 20.0
		if i%2 == 1 {
			x = 105.0
		}
		pdf.SetXY(x, pdf.GetY())

		pdf.SetFont("Arial", "", 10)
		pdf.SetTextColor(100, 100, 100)
		pdf.CellFormat(50, 7, stat.label+":", "", 0, "L", false, 0, "")

		pdf.SetFont("Arial", "B", 11)
		pdf.SetTextColor(stat.color[0], stat.color[1], stat.color[2])
		pdf.CellFormat(colWidth-50, 7, stat.value, "", 0, "R", false, 0, "")

		if i%2 == 1 {
			pdf.Ln(7)
		}
	}

	pdf.Ln(10)
}

// addTopAreas adds the ranked table of objects with the most violations.
func (e *PDFExporter) addTopAreas(pdf *gofpdf.Fpdf, report *domain.ViolationReport) {
	pdf.SetFont("Arial", "B", 14)
	pdf.SetTextColor(0, 51, 102)
	pdf.CellFormat(0, 10, "Top Violating Objects", "", 1, "L", false, 0, "")
	pdf.Ln(2)

	if len(report.TopAreas) == 0 {
		pdf.SetFont("Arial", "I", 10)
		pdf.SetTextColor(100, 100, 100)
		pdf.CellFormat(0, 7, "No violations recorded in this period", "", 1, "L", false, 0, "")
		pdf.Ln(5)
		return
	}

	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Arial", "B", 10)
	pdf.SetTextColor(60, 60, 60)

	pdf.CellFormat(15, 8, "Rank", "1", 0, "C", true, 0, "")
	pdf.CellFormat(35, 8, "Object MAC", "1", 0, "L", true, 0, "")
	pdf.CellFormat(35, 8, "Monitor Type", "1", 0, "C", true, 0, "")
	pdf.CellFormat(25, 8, "Count", "1", 0, "C", true, 0, "")
	pdf.CellFormat(60, 8, "Impact", "1", 1, "L", true, 0, "")

	pdf.SetFont("Arial", "", 9)
	for _, area := range report.TopAreas {
		pdf.SetTextColor(60, 60, 60)
		pdf.CellFormat(15, 7, fmt.Sprintf("%d", area.Rank), "1", 0, "C", false, 0, "")
		pdf.CellFormat(35, 7, area.AreaID, "1", 0, "L", false, 0, "")
		pdf.CellFormat(35, 7, area.MonitorType, "1", 0, "C", false, 0, "")
		pdf.CellFormat(25, 7, fmt.Sprintf("%d", area.Count), "1", 0, "C", false, 0, "")

		impact := area.Impact
		if len(impact) > 40 {
			impact = impact[:37] + "..."
		}
		pdf.CellFormat(60, 7, impact, "1", 1, "L", false, 0, "")
	}

	pdf.Ln(8)
}

func (e *PDFExporter) addRecommendations(pdf *gofpdf.Fpdf, report *domain.ViolationReport) {
	pdf.SetFont("Arial", "B", 14)
	pdf.SetTextColor(0, 51, 102)
	pdf.CellFormat(0, 10, "Priority Recommendations", "", 1, "L", false, 0, "")
	pdf.Ln(2)

	for i, rec := range report.Recommendations {
		if i >= 5 {
			break
		}
		if pdf.GetY() > 250 {
			pdf.AddPage()
		}

		r, g, b := e.getPriorityColor(rec.Priority)
		pdf.SetFillColor(r, g, b)
		pdf.SetTextColor(255, 255, 255)
		pdf.SetFont("Arial", "B", 9)
		pdf.CellFormat(25, 6, rec.Priority, "", 0, "C", true, 0, "")

		pdf.SetFont("Arial", "B", 11)
		pdf.SetTextColor(0, 51, 102)
		pdf.CellFormat(0, 6, "  "+rec.Title, "", 1, "L", false, 0, "")
		pdf.Ln(1)

		pdf.SetFont("Arial", "", 9)
		pdf.SetTextColor(60, 60, 60)
		pdf.MultiCell(0, 5, rec.Description, "", "L", false)
		pdf.Ln(1)

		pdf.SetFont("Arial", "B", 9)
		pdf.SetTextColor(80, 80, 80)
		pdf.CellFormat(0, 5, "Actions:", "", 1, "L", false, 0, "")

		pdf.SetFont("Arial", "", 9)
		for _, action := range rec.Actions {
			if len(action) > 100 {
				action = action[:97] + "..."
			}
			pdf.CellFormat(5, 5, "", "", 0, "L", false, 0, "")
			pdf.CellFormat(0, 5, "• "+action, "", 1, "L", false, 0, "")
		}

		pdf.SetFont("Arial", "I", 8)
		pdf.SetTextColor(100, 100, 100)
		pdf.CellFormat(0, 5, fmt.Sprintf("Estimated Effort: %s", rec.EstimatedEffort), "", 1, "L", false, 0, "")

		pdf.Ln(5)
	}
}

func (e *PDFExporter) getPriorityColor(priority string) (r, g, b int) {
	switch priority {
	case "critical":
		return 220, 53, 69
	case "high":
		return 255, 149, 0
	case "medium":
		return 255, 204, 0
	default:
		return 52, 199, 89
	}
}

func (e *PDFExporter) addFooter(pdf *gofpdf.Fpdf, report *domain.ViolationReport) {
	pdf.SetY(-20)

	pdf.SetDrawColor(200, 200, 200)
	pdf.Line(20, pdf.GetY(), 190, pdf.GetY())
	pdf.Ln(3)

	pdf.SetFont("Arial", "I", 8)
	pdf.SetTextColor(120, 120, 120)
	id := report.Metadata.ID
	if len(id) > 8 {
		id = id[:8]
	}
	footerText := fmt.Sprintf("Generated by %s | Report ID: %s", report.Metadata.GeneratedBy, id)
	pdf.CellFormat(0, 5, footerText, "", 1, "C", false, 0, "")
}
