package ingest

// Package ingest gets audio into the pipeline: browser uploads with size and
// type enforcement, single-video audio extraction from YouTube, playlist
// expansion into song sets, and ID3 tag reading for chart header prefill.
