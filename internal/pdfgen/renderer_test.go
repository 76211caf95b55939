package pdfgen

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tomasvold/Drum-Cheat-Sheet/internal/model"
)

func testChart() *model.RoadMap {
	return &model.RoadMap{
		Title: "Test Song",
		Sections: []model.Section{
			{Label: "Intro", Bars: 4, Feel: "Snare March (Rolls)", Notes: "Crescendo last bar"},
			{Label: "Verse 1", Bars: 8, Feel: "Tight Hi-Hat Groove", Notes: "Rimshot on 2 & 4"},
			{Label: "Interlude", Bars: 0, Feel: "Stop / Break", Notes: "Tacet (Silence)"},
		},
	}
}

// writeLogoPNG writes a solid-color PNG of the given size and returns its path.
func writeLogoPNG(t *testing.T, width, height int) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 30, B: 30, A: 255})
		}
	}

	path := filepath.Join(t.TempDir(), "logo.png")
	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create logo file: %v", err)
	}
	defer file.Close()
	if err := png.Encode(file, img); err != nil {
		t.Fatalf("Failed to encode logo: %v", err)
	}
	return path
}

// pageCount counts page objects in the output. The page tree node matches
// the same prefix, hence the minus one.
func pageCount(out []byte) int {
	return bytes.Count(out, []byte("/Type /Page")) - 1
}

func TestRender(t *testing.T) {
	renderer := NewRenderer("")

	out, err := renderer.Render(testChart())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if !bytes.HasPrefix(out, []byte("%PDF-")) {
		t.Errorf("Expected output to start with %%PDF-, got %q", out[:8])
	}
	if !bytes.Contains(out, []byte("%%EOF")) {
		t.Errorf("Expected output to contain %s", "%%EOF")
	}
	if got := pageCount(out); got != 1 {
		t.Errorf("Expected a single page, got %d", got)
	}
}

func TestRenderNilChart(t *testing.T) {
	renderer := NewRenderer("")

	if _, err := renderer.Render(nil); err == nil {
		t.Error("Expected error for nil chart, got nil")
	}
}

func TestRenderEmptySections(t *testing.T) {
	renderer := NewRenderer("")

	out, err := renderer.Render(&model.RoadMap{Title: "Empty Song"})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF-")) {
		t.Error("Expected a valid PDF even with no sections")
	}
}

func TestRenderLongChartSpansPages(t *testing.T) {
	chart := &model.RoadMap{Title: "The Never Ending Medley"}
	for i := 0; i < 60; i++ {
		chart.Sections = append(chart.Sections, model.Section{
			Label: fmt.Sprintf("Part %d", i+1),
			Bars:  8,
			Feel:  "Driving eighth note groove with pushes into every fourth bar",
			Notes: "Watch the guitar player for the turnaround; accents land with the horn stabs on 2-and and 4",
		})
	}

	out, err := NewRenderer("").Render(chart)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if got := pageCount(out); got < 2 {
		t.Errorf("Expected chart to span multiple pages, got %d", got)
	}
}

func TestRenderUnicodeText(t *testing.T) {
	chart := &model.RoadMap{
		Title: "Café Groove — Live",
		Sections: []model.Section{
			{Label: "Thème", Bars: 16, Feel: "Bossa légère", Notes: "Señor's cue: crescendo"},
		},
	}

	out, err := NewRenderer("").Render(chart)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(out) == 0 {
		t.Error("Expected non-empty output")
	}
}

func TestRenderWithLogo(t *testing.T) {
	logoPath := writeLogoPNG(t, 400, 130)

	renderer := NewRenderer(logoPath)
	if !renderer.HasLogo() {
		t.Fatal("Expected logo to be loaded")
	}

	withLogo, err := renderer.Render(testChart())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	withoutLogo, err := NewRenderer("").Render(testChart())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if len(withLogo) <= len(withoutLogo) {
		t.Errorf("Expected logo to grow the document: %d vs %d bytes", len(withLogo), len(withoutLogo))
	}
}

func TestNewRendererMissingLogo(t *testing.T) {
	renderer := NewRenderer(filepath.Join(t.TempDir(), "absent.png"))

	if renderer.HasLogo() {
		t.Error("Expected no logo for a missing file")
	}
	if _, err := renderer.Render(testChart()); err != nil {
		t.Errorf("Expected render to work without a logo, got %v", err)
	}
}

func TestNewRendererBadLogo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.png")
	if err := os.WriteFile(path, []byte("not an image"), 0o644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	renderer := NewRenderer(path)
	if renderer.HasLogo() {
		t.Error("Expected undecodable logo to be skipped")
	}
}

func TestPrepareLogoDownscales(t *testing.T) {
	path := writeLogoPNG(t, 600, 200)

	data, err := prepareLogo(path)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Expected PNG output, got %v", err)
	}

	bounds := img.Bounds()
	if bounds.Dx() > logoBoxWidth*2 || bounds.Dy() > int(logoBoxHeight*2) {
		t.Errorf("Expected logo scaled into %dx%d, got %dx%d",
			logoBoxWidth*2, int(logoBoxHeight*2), bounds.Dx(), bounds.Dy())
	}
}

func TestPrepareLogoKeepsSmallImages(t *testing.T) {
	path := writeLogoPNG(t, 100, 30)

	data, err := prepareLogo(path)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Expected PNG output, got %v", err)
	}
	if img.Bounds().Dx() != 100 || img.Bounds().Dy() != 30 {
		t.Errorf("Expected small logo untouched, got %dx%d", img.Bounds().Dx(), img.Bounds().Dy())
	}
}

func TestColumnWidthsFillContentArea(t *testing.T) {
	total := 0.0
	for _, w := range columnWidths {
		total += w
	}

	// Letter is 612pt wide; two 36pt margins leave 540pt.
	if total < 539.99 || total > 540.01 {
		t.Errorf("Expected columns to total 540pt, got %.1f", total)
	}

	if !strings.HasPrefix(columnTitles[0], "SECTION") {
		t.Errorf("Expected first column to be SECTION, got %s", columnTitles[0])
	}
}
