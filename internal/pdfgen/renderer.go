package pdfgen

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg" // JPEG decoder registration
	"image/png"
	"io"
	"log"
	"os"

	"github.com/go-pdf/fpdf"
	"golang.org/x/image/draw"

	"github.com/tomasvold/Drum-Cheat-Sheet/internal/model"
)

// Page layout in points. Letter portrait with half inch margins leaves a
// 540pt wide content area, which the chart columns fill exactly.
const (
	pageMargin = 36

	titleFontSize   = 24
	titleLineHeight = 28

	subtitleFontSize   = 12
	subtitleLineHeight = 16
	subtitleText       = "Drum Chart / Road Map"

	headerTextWidth = 360 // title block column
	headerGap       = 30  // space between header and chart

	logoBoxWidth  = 144 // 2 inches
	logoBoxHeight = 47.5
	logoImageName = "chart-logo"

	columnFontSize  = 11
	columnRowHeight = 30

	bodyFontSize   = 10
	bodyLineHeight = 12

	cellPadX = 5
	cellPadY = 8

	gridLineWidth = 0.5

	fontFamily = "Helvetica"
)

// Table colors.
const (
	headerFillR, headerFillG, headerFillB = 211, 211, 211
	gridR, gridG, gridB                   = 128, 128, 128
	notesR, notesG, notesB                = 139, 0, 0 // dark red performance cues
)

const notesColumn = 3

// Column widths in points: 1.3in, 0.7in, 2.2in, 3.3in.
var columnWidths = [4]float64{93.6, 50.4, 158.4, 237.6}

var columnTitles = [4]string{"SECTION", "BARS", "FEEL / GROOVE", "NOTES"}

// Renderer exports road maps as printable PDF charts. A renderer is safe
// for concurrent use; each render builds its own document.
type Renderer struct {
	logo []byte // pre-scaled PNG, nil when no logo is configured
}

// NewRenderer creates a renderer. The logo is optional: a missing file just
// means charts render without one.
func NewRenderer(logoPath string) *Renderer {
	r := &Renderer{}
	if logoPath == "" {
		return r
	}

	logo, err := prepareLogo(logoPath)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("Failed to load logo %s: %v", logoPath, err)
		}
		return r
	}
	r.logo = logo
	return r
}

// HasLogo reports whether a usable logo was loaded.
func (r *Renderer) HasLogo() bool {
	return len(r.logo) > 0
}

// Render produces the chart PDF as bytes.
func (r *Renderer) Render(chart *model.RoadMap) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.RenderTo(&buf, chart); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RenderTo writes the chart PDF to w.
func (r *Renderer) RenderTo(w io.Writer, chart *model.RoadMap) error {
	if chart == nil {
		return fmt.Errorf("no chart to render")
	}

	pdf := fpdf.New("P", "pt", "Letter", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	// Rows are broken manually so the grid stays intact across pages.
	pdf.SetAutoPageBreak(false, pageMargin)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	r.drawHeader(pdf, tr, chart.Title)
	r.drawTable(pdf, tr, chart.Sections)

	return pdf.Output(w)
}

// drawHeader paints the song title block on the left and the logo on the
// right, then leaves a gap before the chart.
func (r *Renderer) drawHeader(pdf *fpdf.Fpdf, tr func(string) string, title string) {
	title = model.CleanSongTitle(title)
	if title == "" {
		title = "Untitled Song"
	}

	top := pdf.GetY()

	pdf.SetFont(fontFamily, "B", titleFontSize)
	pdf.SetTextColor(0, 0, 0)
	for _, line := range pdf.SplitLines([]byte(tr(title)), headerTextWidth) {
		pdf.SetX(pageMargin)
		pdf.CellFormat(headerTextWidth, titleLineHeight, string(line), "", 1, "L", false, 0, "")
	}

	pdf.SetFont(fontFamily, "", subtitleFontSize)
	pdf.SetTextColor(gridR, gridG, gridB)
	pdf.SetX(pageMargin)
	pdf.CellFormat(headerTextWidth, subtitleLineHeight, subtitleText, "", 1, "L", false, 0, "")

	bottom := pdf.GetY()

	if len(r.logo) > 0 {
		opts := fpdf.ImageOptions{ImageType: "PNG"}
		pdf.RegisterImageOptionsReader(logoImageName, opts, bytes.NewReader(r.logo))

		pageWidth, _ := pdf.GetPageSize()
		x := pageWidth - pageMargin - logoBoxWidth
		pdf.ImageOptions(logoImageName, x, top, logoBoxWidth, logoBoxHeight, false, opts, 0, "")

		if logoBottom := top + logoBoxHeight; logoBottom > bottom {
			bottom = logoBottom
		}
	}

	pdf.SetY(bottom + headerGap)
}

// drawTable paints the chart grid: a repeating column title row and one row
// per section, sized to the tallest wrapped cell.
func (r *Renderer) drawTable(pdf *fpdf.Fpdf, tr func(string) string, sections []model.Section) {
	_, pageHeight := pdf.GetPageSize()
	bottom := pageHeight - pageMargin

	pdf.SetDrawColor(gridR, gridG, gridB)
	pdf.SetLineWidth(gridLineWidth)

	y := drawColumnTitles(pdf, pdf.GetY())

	if len(sections) == 0 {
		pdf.SetFont(fontFamily, "I", bodyFontSize)
		pdf.SetTextColor(gridR, gridG, gridB)
		pdf.SetXY(pageMargin, y+cellPadY)
		pdf.CellFormat(0, bodyLineHeight, "No sections", "", 1, "L", false, 0, "")
		return
	}

	for _, sec := range sections {
		pdf.SetFont(fontFamily, "", bodyFontSize)

		cells := [4][][]byte{
			pdf.SplitLines([]byte(tr(sec.Label)), columnWidths[0]-2*cellPadX),
			{[]byte(tr(sec.BarsLabel()))},
			pdf.SplitLines([]byte(tr(sec.Feel)), columnWidths[2]-2*cellPadX),
			pdf.SplitLines([]byte(tr(sec.Notes)), columnWidths[3]-2*cellPadX),
		}

		lineCount := 1
		for _, lines := range cells {
			if len(lines) > lineCount {
				lineCount = len(lines)
			}
		}
		rowHeight := float64(lineCount)*bodyLineHeight + 2*cellPadY

		if y+rowHeight > bottom {
			pdf.AddPage()
			y = drawColumnTitles(pdf, pageMargin)
			pdf.SetFont(fontFamily, "", bodyFontSize)
		}

		x := float64(pageMargin)
		for col, lines := range cells {
			pdf.Rect(x, y, columnWidths[col], rowHeight, "D")

			if col == notesColumn {
				pdf.SetTextColor(notesR, notesG, notesB)
			} else {
				pdf.SetTextColor(0, 0, 0)
			}

			textY := y + cellPadY
			for _, line := range lines {
				pdf.SetXY(x+cellPadX, textY)
				pdf.CellFormat(columnWidths[col]-2*cellPadX, bodyLineHeight, string(line), "", 0, "L", false, 0, "")
				textY += bodyLineHeight
			}
			x += columnWidths[col]
		}

		y += rowHeight
	}

	pdf.SetY(y)
}

// drawColumnTitles paints the filled header row at y and returns the y
// below it.
func drawColumnTitles(pdf *fpdf.Fpdf, y float64) float64 {
	pdf.SetFont(fontFamily, "B", columnFontSize)
	pdf.SetTextColor(0, 0, 0)
	pdf.SetFillColor(headerFillR, headerFillG, headerFillB)

	x := float64(pageMargin)
	for col, title := range columnTitles {
		pdf.Rect(x, y, columnWidths[col], columnRowHeight, "FD")
		pdf.SetXY(x+cellPadX, y+cellPadY)
		pdf.CellFormat(columnWidths[col]-2*cellPadX, columnFontSize+2, title, "", 0, "L", false, 0, "")
		x += columnWidths[col]
	}

	return y + columnRowHeight
}

// prepareLogo loads the logo and downscales it to twice the printed box so
// oversized source images don't bloat every exported chart.
func prepareLogo(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode logo: %w", err)
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	maxWidth := logoBoxWidth * 2
	maxHeight := int(logoBoxHeight * 2)

	// Scale down preserving aspect ratio; small logos pass through as-is.
	if width > maxWidth || height > maxHeight {
		ratio := float64(width) / float64(height)
		if float64(maxWidth)/float64(maxHeight) > ratio {
			width = int(float64(maxHeight) * ratio)
			height = maxHeight
		} else {
			height = int(float64(maxWidth) / ratio)
			width = maxWidth
		}

		dst := image.NewRGBA(image.Rect(0, 0, width, height))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
		img = dst
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode logo: %w", err)
	}
	return buf.Bytes(), nil
}
