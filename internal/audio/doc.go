package audio

// Package audio prepares source audio for the model provider: ffprobe for
// durations and ffmpeg for transcoding non-MP3 uploads to 128k MP3. MP3
// input passes through untouched.
