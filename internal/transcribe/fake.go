package transcribe

import (
	"context"
	"sync"
	"time"

	"github.com/tomasvold/Drum-Cheat-Sheet/internal/model"
)

// Fake is a Provider that returns canned sections without any network. Used
// in tests and for demoing the UI without an API key.
type Fake struct {
	Sections []model.Section
	Models   []ModelInfo
	Err      error         // returned by Transcribe when set
	Delay    time.Duration // simulated work per call

	mu    sync.Mutex
	calls int
}

// NewFake returns a fake provider with a small plausible chart.
func NewFake() *Fake {
	return &Fake{
		Sections: []model.Section{
			{Label: "Intro", Bars: 4, Feel: "Snare March (Rolls)", Notes: "Crescendo last bar"},
			{Label: "Verse 1", Bars: 8, Feel: "Tight Hi-Hat Groove", Notes: "Rimshot on 2 & 4"},
			{Label: "Chorus 1", Bars: 8, Feel: "Open Washy Ride", Notes: "Driving, crash on 1"},
			{Label: "Outro", Bars: 4, Feel: "Half-time", Notes: "Big stop on the last 1"},
		},
		Models: []ModelInfo{
			{Name: "fake-drummer", DisplayName: "Fake Drummer"},
		},
	}
}

// Name identifies the provider
func (f *Fake) Name() string {
	return "fake"
}

// ModelID returns the canned model name
func (f *Fake) ModelID() string {
	return "fake-drummer"
}

// Calls returns how many transcriptions were requested
func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// Transcribe walks through all stages and returns the canned sections.
func (f *Fake) Transcribe(ctx context.Context, in Input, onStage StageFunc) (*Result, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	for _, stage := range []Stage{StageUploading, StageProcessing, StageGenerating} {
		if onStage != nil {
			onStage(stage, 0)
		}
		if f.Delay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(f.Delay):
			}
		}
		if onStage != nil {
			onStage(stage, 1)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.Err != nil {
		return nil, f.Err
	}

	sections := make([]model.Section, len(f.Sections))
	copy(sections, f.Sections)
	return &Result{
		Sections:  sections,
		ModelUsed: f.ModelID(),
		RawText:   "(canned)",
	}, nil
}

// ListModels returns the canned model list.
func (f *Fake) ListModels(ctx context.Context) ([]ModelInfo, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Models, nil
}
