package transcribe

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/tomasvold/Drum-Cheat-Sheet/internal/model"
)

// ErrNoSections is returned when the model replied but its output contained
// no usable chart sections.
var ErrNoSections = errors.New("no sections in model output")

// Stage identifies a phase of a transcription for progress reporting
type Stage string

const (
	// StageUploading means audio bytes are being sent to the provider
	StageUploading Stage = "uploading"

	// StageProcessing means the provider is ingesting the uploaded file
	StageProcessing Stage = "processing"

	// StageGenerating means the model is listening and writing the chart
	StageGenerating Stage = "generating"
)

// StageFunc receives progress updates during a transcription. fraction is
// 0.0 to 1.0 within the given stage; stages with no measurable progress
// report 0.
type StageFunc func(stage Stage, fraction float64)

// Input describes one prepared audio file ready for transcription.
type Input struct {
	AudioPath string // audio file on local disk
	MIMEType  string // e.g. "audio/mp3"
	TitleHint string // display name for the upload, may be empty
}

// Result is a finished transcription.
type Result struct {
	Sections  []model.Section
	ModelUsed string
	RawText   string // verbatim model output, kept for debugging
}

// ModelInfo describes one model a provider can transcribe with.
type ModelInfo struct {
	Name        string `json:"name"` // usable model ID, e.g. "gemini-2.5-pro"
	DisplayName string `json:"display_name,omitempty"`
	Description string `json:"description,omitempty"`
}

// Provider turns an audio file into drum chart sections.
type Provider interface {
	// Name identifies the provider, e.g. "gemini".
	Name() string

	// ModelID returns the model this provider transcribes with.
	ModelID() string

	// Transcribe uploads the audio, waits for the provider to ingest it, and
	// asks the model for a road map. onStage may be nil.
	Transcribe(ctx context.Context, in Input, onStage StageFunc) (*Result, error)

	// ListModels returns the models the provider can generate charts with.
	ListModels(ctx context.Context) ([]ModelInfo, error)
}

// APIError is a non-2xx answer from the provider's HTTP API.
type APIError struct {
	StatusCode int    // HTTP status code
	Status     string // API status string, e.g. "RESOURCE_EXHAUSTED"
	Message    string
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("api error %d (%s): %s", e.StatusCode, e.Status, e.Message)
	}
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// Temporary reports whether retrying the same call may succeed: rate limits
// and server-side failures are temporary, everything else is not.
func (e *APIError) Temporary() bool {
	switch e.StatusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}
