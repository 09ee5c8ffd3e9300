package models

// ProgressFailed is the sentinel progress value for a failed job. It is the
// only value allowed to follow a higher one, and it is final.
const ProgressFailed = -1

// Progress is the latest progress record for a job. Records are overwritten
// in place (last write wins) and expire independently of job completion.
// Progress is in [-1, 100]; Timestamp is seconds since the Unix epoch.
type Progress struct {
	JobID     string  `json:"job_id"`
	Progress  int     `json:"progress"`
	Message   string  `json:"message"`
	Timestamp float64 `json:"timestamp"`
}
