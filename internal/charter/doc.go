package charter

// Package charter implements the chart job pipeline: fetching audio for
// YouTube jobs, preparing uploads for the model, driving the transcription
// provider, and settling results into editable road maps. It manages job
// lifecycle, concurrency limits, progress propagation to the UI, and song
// set fan-out.
