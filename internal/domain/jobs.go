package domain

// JobStatus tracks the lifecycle of a single transcription job.
type JobStatus string

const (
	JobStatusIdle         JobStatus = "idle"
	JobStatusTranscribing JobStatus = "transcribing"
	JobStatusAligning     JobStatus = "aligning"
	JobStatusDone         JobStatus = "done"
	JobStatusFailed       JobStatus = "failed"
)

// Job stores the current job identity and lifecycle status.
type Job struct {
	ID     string    `json:"id"`
	Status JobStatus `json:"status"`
}
