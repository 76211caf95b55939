package ingest

import (
	"strings"

	"github.com/bogem/id3v2"
)

// ReadTags returns the ID3 title and artist of an MP3 file so the chart
// header can be prefilled. Missing or unreadable tags are not an error;
// both values come back empty.
func ReadTags(path string) (title, artist string) {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return "", ""
	}
	defer tag.Close()

	return strings.TrimSpace(tag.Title()), strings.TrimSpace(tag.Artist())
}
