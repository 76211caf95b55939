package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// Upload errors surfaced to the web layer
var (
	// ErrUploadTooLarge means the upload exceeded the configured size cap
	ErrUploadTooLarge = errors.New("uploaded file is too large")

	// ErrUnsupportedType means the file is not a recognized audio format
	ErrUnsupportedType = errors.New("unsupported audio type")
)

// Temp file naming
const uploadPattern = "upload-*"

// allowedExtensions maps accepted upload extensions to their MIME types.
var allowedExtensions = map[string]string{
	".mp3":  "audio/mp3",
	".wav":  "audio/wav",
	".m4a":  "audio/mp4",
	".flac": "audio/flac",
	".ogg":  "audio/ogg",
}

// sniffedAudioTypes are content types http.DetectContentType may report for
// audio we can still prepare, used when the extension alone is not enough.
var sniffedAudioTypes = map[string]bool{
	"audio/mpeg":      true,
	"audio/wave":      true,
	"audio/aiff":      true,
	"audio/basic":     true,
	"application/ogg": true,
	"video/mp4":       true, // m4a shares the mp4 container
}

// IsAllowedExtension reports whether the filename carries a supported audio
// extension.
func IsAllowedExtension(filename string) bool {
	_, ok := allowedExtensions[strings.ToLower(filepath.Ext(filename))]
	return ok
}

// MIMEForExt returns the MIME type for a supported extension, or empty.
func MIMEForExt(filename string) string {
	return allowedExtensions[strings.ToLower(filepath.Ext(filename))]
}

// SaveUpload streams an uploaded file into workDir, enforcing the size cap
// while copying. Files without a recognized extension are accepted only when
// their leading bytes sniff as audio. Returns the stored path.
func SaveUpload(workDir, filename string, src io.Reader, maxBytes int64) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))

	head := make([]byte, 512)
	n, err := io.ReadFull(src, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]

	if _, ok := allowedExtensions[ext]; !ok {
		contentType := http.DetectContentType(head)
		if !sniffedAudioTypes[strings.ToLower(contentType)] {
			return "", fmt.Errorf("%w: %s (%s)", ErrUnsupportedType, filename, contentType)
		}
		// Sniffed audio with a strange name still needs an extension so the
		// preparer knows to transcode it.
		ext = ".bin"
	}

	dst, err := os.CreateTemp(workDir, uploadPattern+ext)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}

	written, err := io.Copy(dst, io.MultiReader(bytes.NewReader(head), io.LimitReader(src, maxBytes+1)))
	closeErr := dst.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(dst.Name())
		return "", fmt.Errorf("store upload: %w", err)
	}
	if written > maxBytes {
		os.Remove(dst.Name())
		return "", fmt.Errorf("%w: cap is %d bytes", ErrUploadTooLarge, maxBytes)
	}

	return dst.Name(), nil
}
