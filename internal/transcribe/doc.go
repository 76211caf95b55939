package transcribe

// Package transcribe sends audio to a hosted multimodal model and turns the
// reply into drum chart sections. The Gemini provider speaks the REST API
// directly: resumable file upload, state polling while the model listens,
// then a generateContent call with a drummer's system prompt and a golden
// example chart. Decoding tolerates the JSON dialects models actually emit.
