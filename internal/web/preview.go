package web

import (
	"bytes"
	"html/template"
	"strings"

	"github.com/yuin/goldmark"

	"github.com/tomasvold/Drum-Cheat-Sheet/internal/model"
)

// previewMD renders the markdown drummers put in feel and notes cells. The
// default goldmark setup never passes raw HTML through, so model output and
// edits cannot inject markup into the page.
var previewMD = goldmark.New()

// renderPreview builds the HTML fragment the editor shows next to the chart:
// the same table the PDF prints, with feel and notes cells rendered as inline
// markdown and everything else escaped.
func renderPreview(chart *model.RoadMap) string {
	var b strings.Builder

	b.WriteString(`<div class="chart-preview">`)
	b.WriteString("<h2>" + template.HTMLEscapeString(chart.Title) + "</h2>")
	b.WriteString("<table><thead><tr><th>SECTION</th><th>BARS</th><th>FEEL / GROOVE</th><th>NOTES</th></tr></thead><tbody>")

	for i := range chart.Sections {
		section := &chart.Sections[i]
		b.WriteString("<tr>")
		b.WriteString("<td>" + template.HTMLEscapeString(section.Label) + "</td>")
		b.WriteString("<td>" + template.HTMLEscapeString(section.BarsLabel()) + "</td>")
		b.WriteString("<td>" + markdownCell(section.Feel) + "</td>")
		b.WriteString(`<td class="notes">` + markdownCell(section.Notes) + "</td>")
		b.WriteString("</tr>")
	}

	if len(chart.Sections) == 0 {
		b.WriteString(`<tr><td colspan="4"><em>No sections</em></td></tr>`)
	}

	b.WriteString("</tbody></table></div>")
	return b.String()
}

// markdownCell converts one cell of markdown to HTML. Conversion failures
// fall back to the escaped original text rather than dropping the cell.
func markdownCell(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}

	var buf bytes.Buffer
	if err := previewMD.Convert([]byte(text), &buf); err != nil {
		return template.HTMLEscapeString(text)
	}
	return strings.TrimSpace(buf.String())
}
