package domain

import (
	"strings"
	"time"
)

// JobState enumerates the canonical batch job lifecycle states. Provider
// specific vocabularies (the JOB_STATE_* family and friends) are normalized
// into this set by ParseJobState.
type JobState string

const (
	JobStateUnspecified JobState = "UNSPECIFIED"
	JobStatePending     JobState = "PENDING"
	JobStateRunning     JobState = "RUNNING"
	JobStateSucceeded   JobState = "SUCCEEDED"
	JobStateFailed      JobState = "FAILED"
	JobStateCancelled   JobState = "CANCELLED"
)

// statePrefixes covers the resource-qualified spellings providers use for the
// same lifecycle vocabulary.
var statePrefixes = []string{"JOB_STATE_", "BATCH_STATE_", "STATE_"}

// ParseJobState normalizes a raw provider status string. Unknown values map
// to JobStateUnspecified rather than failing, since an unexpected state must
// never break a poll cycle.
func ParseJobState(raw string) JobState {
	s := strings.ToUpper(strings.TrimSpace(raw))
	for _, prefix := range statePrefixes {
		if strings.HasPrefix(s, prefix) {
			s = strings.TrimPrefix(s, prefix)
			break
		}
	}
	switch s {
	case "PENDING", "QUEUED":
		return JobStatePending
	case "RUNNING":
		return JobStateRunning
	case "SUCCEEDED":
		return JobStateSucceeded
	case "FAILED", "EXPIRED":
		return JobStateFailed
	case "CANCELLED", "CANCELLING":
		return JobStateCancelled
	default:
		return JobStateUnspecified
	}
}

// Rank orders states by lifecycle progress. All terminal states share the top
// rank so a terminal record is never demoted by a late non-terminal one; the
// rank is only used as a merge tie-break, never for display.
func (s JobState) Rank() int {
	switch s {
	case JobStatePending:
		return 1
	case JobStateRunning:
		return 2
	case JobStateSucceeded, JobStateFailed, JobStateCancelled:
		return 4
	default:
		return 0
	}
}

// Terminal reports whether no further transition can occur from s.
func (s JobState) Terminal() bool {
	switch s {
	case JobStateSucceeded, JobStateFailed, JobStateCancelled:
		return true
	default:
		return false
	}
}

// BatchJob is the registry's view of one remote batch generation job. The
// server-side per-user job file and the in-memory client registry hold the
// same shape; both reconcile concurrent writers through jobs.Merge.
type BatchJob struct {
	ID            string   `json:"id"`
	DisplayID     string   `json:"displayId,omitempty"`
	Status        JobState `json:"status"`
	CreatedAt     string   `json:"createdAt,omitempty"`
	Timestamp     int64    `json:"timestamp"`
	UpdatedAt     int64    `json:"updatedAt,omitempty"`
	Model         string   `json:"model,omitempty"`
	OutputFileURI string   `json:"outputFileUri,omitempty"`
	Error         string   `json:"error,omitempty"`
}

// Version derives the merge version: last-merge time when known, creation
// time otherwise. Records carrying neither compare as version zero and lose
// against anything with a timestamp.
func (j BatchJob) Version() int64 {
	if j.UpdatedAt != 0 {
		return j.UpdatedAt
	}
	return j.Timestamp
}

// Age returns how long ago the job was created relative to now.
func (j BatchJob) Age(now time.Time) time.Duration {
	if j.Timestamp == 0 {
		return 0
	}
	return now.Sub(time.UnixMilli(j.Timestamp))
}
