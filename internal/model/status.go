package model

// JobStatus represents the status of a chart job as it moves through the
// transcription pipeline
type JobStatus string

const (
	// StatusPending means the job is queued but not started
	StatusPending JobStatus = "Pending"

	// StatusFetching means audio is being downloaded from a remote source
	StatusFetching JobStatus = "Fetching"

	// StatusPreparing means audio is being probed and converted for upload
	StatusPreparing JobStatus = "Preparing"

	// StatusUploading means audio is being uploaded to the model provider
	StatusUploading JobStatus = "Uploading"

	// StatusProcessing means the provider is ingesting the uploaded audio
	StatusProcessing JobStatus = "Processing"

	// StatusTranscribing means the model is generating the road map
	StatusTranscribing JobStatus = "Transcribing"

	// StatusReady means a chart was produced and can be edited and exported
	StatusReady JobStatus = "Ready"

	// StatusCanceling means a cancel was requested and is being honored
	StatusCanceling JobStatus = "Canceling"

	// StatusCanceled means the job was canceled by the user
	StatusCanceled JobStatus = "Canceled"

	// StatusError means the job failed with an error
	StatusError JobStatus = "Error"
)

// String returns the string representation of JobStatus
func (js JobStatus) String() string {
	return string(js)
}

// IsActive returns true if the job is in an active state
func (js JobStatus) IsActive() bool {
	switch js {
	case StatusFetching, StatusPreparing, StatusUploading, StatusProcessing, StatusTranscribing, StatusCanceling:
		return true
	}
	return false
}

// IsFinished returns true if the job is in a finished state (ready, canceled,
// or error)
func (js JobStatus) IsFinished() bool {
	return js == StatusReady || js == StatusCanceled || js == StatusError
}
