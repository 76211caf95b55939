package transcribe

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/tomasvold/Drum-Cheat-Sheet/internal/model"
)

// rawSection tolerates the field spellings models actually produce. Every
// value is kept raw so strings and numbers both decode.
type rawSection struct {
	Section json.RawMessage `json:"section"`
	Name    json.RawMessage `json:"name"`
	Label   json.RawMessage `json:"label"`
	Bars    json.RawMessage `json:"bars"`
	Feel    json.RawMessage `json:"feel"`
	Groove  json.RawMessage `json:"groove"`
	Notes   json.RawMessage `json:"notes"`
	Cues    json.RawMessage `json:"cues"`
}

type sectionsEnvelope struct {
	Sections []rawSection `json:"sections"`
}

// DecodeSections parses model output into chart sections. Models asked for
// "ONLY valid JSON" still wrap replies in markdown fences, prose, or a
// {"sections": [...]} object often enough that all of those are accepted.
func DecodeSections(raw string) ([]model.Section, error) {
	text := stripFences(raw)

	rows, err := decodeRows(text)
	if err != nil {
		// Second chance: slice out the outermost JSON array and retry. This
		// recovers replies with prose before or after the JSON.
		start := strings.Index(text, "[")
		end := strings.LastIndex(text, "]")
		if start >= 0 && end > start {
			rows, err = decodeRows(text[start : end+1])
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoSections, err)
		}
	}

	sections := make([]model.Section, 0, len(rows))
	for _, row := range rows {
		s := model.Section{
			Label: firstString(row.Section, row.Name, row.Label),
			Bars:  ParseBars(firstString(row.Bars)),
			Feel:  firstString(row.Feel, row.Groove),
			Notes: firstString(row.Notes, row.Cues),
		}
		if s.Label == "" && s.Bars == 0 && s.Feel == "" && s.Notes == "" {
			continue
		}
		sections = append(sections, s)
	}

	if len(sections) == 0 {
		return nil, ErrNoSections
	}
	return sections, nil
}

// decodeRows accepts either a bare array of sections or an object wrapping
// one under a "sections" key.
func decodeRows(text string) ([]rawSection, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("empty output")
	}

	var rows []rawSection
	if err := json.Unmarshal([]byte(text), &rows); err == nil {
		return rows, nil
	}

	var env sectionsEnvelope
	if err := json.Unmarshal([]byte(text), &env); err != nil {
		return nil, err
	}
	if env.Sections == nil {
		return nil, fmt.Errorf("no sections array")
	}
	return env.Sections, nil
}

var fenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// stripFences removes a markdown code fence around the payload if present.
func stripFences(raw string) string {
	text := strings.TrimSpace(raw)
	if m := fenceRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return text
}

// firstString returns the first raw value that holds a non-empty string or
// number, rendered as a trimmed string.
func firstString(values ...json.RawMessage) string {
	for _, v := range values {
		if len(v) == 0 {
			continue
		}

		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
			continue
		}

		var n json.Number
		if err := json.Unmarshal(v, &n); err == nil {
			return n.String()
		}
	}
	return ""
}

var leadingIntRe = regexp.MustCompile(`^\d+`)

// ParseBars reads a bar count the way models write them: "8x", "8", "8
// bars", or a bare number. Anything unparseable means unknown and comes back
// as 0.
func ParseBars(raw string) int {
	text := strings.TrimSpace(strings.ToLower(raw))
	if text == "" {
		return 0
	}

	m := leadingIntRe.FindString(text)
	if m == "" {
		return 0
	}

	// strconv would overflow on absurd digit runs; the chart validator caps
	// bar counts anyway, so saturate instead of failing.
	n := 0
	for _, r := range m {
		n = n*10 + int(r-'0')
		if n > model.MaxBars {
			return model.MaxBars
		}
	}
	return n
}
