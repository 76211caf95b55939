package model

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Validation limits for road maps. Charts beyond these bounds are almost
// certainly malformed model output or a hostile edit, not a real song.
const (
	// MaxTitleLen is the maximum length of a chart title
	MaxTitleLen = 200

	// MaxSections is the maximum number of sections in a single chart
	MaxSections = 64

	// MaxLabelLen is the maximum length of a section label
	MaxLabelLen = 80

	// MaxBars is the maximum bar count for a single section
	MaxBars = 999

	// MaxFeelLen is the maximum length of a section feel/groove description
	MaxFeelLen = 120

	// MaxNotesLen is the maximum length of section performance notes
	MaxNotesLen = 500
)

// Section is a single row of the road map: one contiguous part of the song
// played with one groove.
type Section struct {
	Label string `json:"section"`         // e.g. "Intro", "Verse 1", "Chorus 2"
	Bars  int    `json:"bars"`            // bar count, 0 if unknown
	Feel  string `json:"feel"`            // groove description, e.g. "Half-time shuffle"
	Notes string `json:"notes,omitempty"` // performance cues, e.g. "Stops on beat 4"
}

// BarsLabel returns the bar count formatted for display ("8x"), or "—" when
// the count is unknown.
func (s *Section) BarsLabel() string {
	if s.Bars <= 0 {
		return "—"
	}
	return fmt.Sprintf("%dx", s.Bars)
}

// RoadMap is an ordered drum chart for one song: the sections in playing
// order plus the title shown on the exported PDF.
type RoadMap struct {
	Title    string    `json:"title"`
	Sections []Section `json:"sections"`
	EditedAt time.Time `json:"edited_at"`
}

// Validate checks the road map against the documented limits. It returns the
// first violation found so the caller can surface a single clear message.
func (rm *RoadMap) Validate() error {
	if rm.Title == "" {
		return fmt.Errorf("chart title is empty")
	}
	if len(rm.Title) > MaxTitleLen {
		return fmt.Errorf("chart title exceeds %d characters", MaxTitleLen)
	}
	if len(rm.Sections) == 0 {
		return fmt.Errorf("chart has no sections")
	}
	if len(rm.Sections) > MaxSections {
		return fmt.Errorf("chart has %d sections, maximum is %d", len(rm.Sections), MaxSections)
	}

	for i, s := range rm.Sections {
		if s.Label == "" {
			return fmt.Errorf("section %d has an empty label", i+1)
		}
		if len(s.Label) > MaxLabelLen {
			return fmt.Errorf("section %d label exceeds %d characters", i+1, MaxLabelLen)
		}
		if s.Bars < 0 || s.Bars > MaxBars {
			return fmt.Errorf("section %d bar count %d is out of range 0..%d", i+1, s.Bars, MaxBars)
		}
		if len(s.Feel) > MaxFeelLen {
			return fmt.Errorf("section %d feel exceeds %d characters", i+1, MaxFeelLen)
		}
		if len(s.Notes) > MaxNotesLen {
			return fmt.Errorf("section %d notes exceed %d characters", i+1, MaxNotesLen)
		}
	}

	return nil
}

// Normalize trims whitespace in every text field, clamps negative bar counts
// to zero, and drops sections that are entirely empty. Call before Validate
// on anything that arrived over the wire.
func (rm *RoadMap) Normalize() {
	rm.Title = strings.TrimSpace(rm.Title)

	kept := rm.Sections[:0]
	for _, s := range rm.Sections {
		s.Label = strings.TrimSpace(s.Label)
		s.Feel = strings.TrimSpace(s.Feel)
		s.Notes = strings.TrimSpace(s.Notes)
		if s.Bars < 0 {
			s.Bars = 0
		}
		if s.Label == "" && s.Feel == "" && s.Notes == "" && s.Bars == 0 {
			continue
		}
		kept = append(kept, s)
	}
	rm.Sections = kept
}

// InsertSection inserts a section at index i, shifting later sections down.
// An index past the end appends.
func (rm *RoadMap) InsertSection(i int, s Section) {
	if i < 0 {
		i = 0
	}
	if i >= len(rm.Sections) {
		rm.Sections = append(rm.Sections, s)
		rm.EditedAt = time.Now()
		return
	}
	rm.Sections = append(rm.Sections, Section{})
	copy(rm.Sections[i+1:], rm.Sections[i:])
	rm.Sections[i] = s
	rm.EditedAt = time.Now()
}

// RemoveSection removes the section at index i.
func (rm *RoadMap) RemoveSection(i int) error {
	if i < 0 || i >= len(rm.Sections) {
		return fmt.Errorf("section index %d out of range", i)
	}
	rm.Sections = append(rm.Sections[:i], rm.Sections[i+1:]...)
	rm.EditedAt = time.Now()
	return nil
}

// MoveSection moves the section at index from to index to, preserving the
// order of everything else.
func (rm *RoadMap) MoveSection(from, to int) error {
	if from < 0 || from >= len(rm.Sections) {
		return fmt.Errorf("section index %d out of range", from)
	}
	if to < 0 || to >= len(rm.Sections) {
		return fmt.Errorf("section index %d out of range", to)
	}
	if from == to {
		return nil
	}
	s := rm.Sections[from]
	rest := append(rm.Sections[:from], rm.Sections[from+1:]...)
	rest = append(rest, Section{})
	copy(rest[to+1:], rest[to:])
	rest[to] = s
	rm.Sections = rest
	rm.EditedAt = time.Now()
	return nil
}

// TotalBars returns the sum of all known bar counts.
func (rm *RoadMap) TotalBars() int {
	total := 0
	for _, s := range rm.Sections {
		if s.Bars > 0 {
			total += s.Bars
		}
	}
	return total
}

var (
	audioExtRe = regexp.MustCompile(`(?i)\.(mp3|wav|m4a|flac|ogg|aac|opus|webm)$`)
	unsafeRe   = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	spacesRe   = regexp.MustCompile(`\s+`)
)

// CleanSongTitle turns a raw file name or model-provided title into a
// human-friendly chart title: strips a trailing audio extension, converts
// underscores to spaces, and collapses runs of whitespace.
func CleanSongTitle(raw string) string {
	title := strings.TrimSpace(raw)
	title = audioExtRe.ReplaceAllString(title, "")
	title = strings.ReplaceAll(title, "_", " ")
	title = spacesRe.ReplaceAllString(title, " ")
	return strings.TrimSpace(title)
}

// PDFFileName builds the suggested download name for a chart PDF from its
// title, with characters illegal in common filesystems removed.
func PDFFileName(title string) string {
	base := unsafeRe.ReplaceAllString(title, "")
	base = spacesRe.ReplaceAllString(base, " ")
	base = strings.TrimSpace(base)
	if base == "" {
		base = "Drum Chart"
	}
	return base + "_chart.pdf"
}
