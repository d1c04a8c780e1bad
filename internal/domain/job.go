package domain

import "strings"

// Job is one outstanding unit of work at a provider. It is immutable once
// submitted; each status check yields a fresh JobStatus.
type Job struct {
	ID              string
	PollingEndpoint string
	Kind            OperationKind
	// ArtifactURL is set when the provider answered synchronously. Status
	// checks for such jobs report Ready without a network call.
	ArtifactURL string
}

// JobState enumerates the states a status check can report.
type JobState string

const (
	JobStatePending          JobState = "pending"
	JobStateReady            JobState = "ready"
	JobStateFailed           JobState = "failed"
	JobStateModeratedRequest JobState = "moderated_request"
	JobStateModeratedContent JobState = "moderated_content"
	JobStateUnknown          JobState = "unknown"
)

// Terminal reports whether no further polling should occur.
func (s JobState) Terminal() bool {
	switch s {
	case JobStateReady, JobStateFailed, JobStateModeratedRequest, JobStateModeratedContent:
		return true
	default:
		return false
	}
}

// Moderated reports whether the provider rejected the job on policy grounds.
func (s JobState) Moderated() bool {
	return s == JobStateModeratedRequest || s == JobStateModeratedContent
}

// JobStatus is the result of one status query. ArtifactURL is non-empty if
// and only if State is JobStateReady; use the constructors to keep it so.
type JobStatus struct {
	State       JobState
	ArtifactURL string
	Raw         map[string]any
}

// ReadyStatus builds a Ready status. An empty URL cannot be Ready and is
// reported as Failed instead.
func ReadyStatus(artifactURL string, raw map[string]any) JobStatus {
	artifactURL = strings.TrimSpace(artifactURL)
	if artifactURL == "" {
		return JobStatus{State: JobStateFailed, Raw: withReason(raw, "ready status without artifact")}
	}
	return JobStatus{State: JobStateReady, ArtifactURL: artifactURL, Raw: raw}
}

// NewStatus builds a non-Ready status. Ready must go through ReadyStatus.
func NewStatus(state JobState, raw map[string]any) JobStatus {
	if state == JobStateReady {
		return JobStatus{State: JobStateFailed, Raw: withReason(raw, "ready status without artifact")}
	}
	return JobStatus{State: state, Raw: raw}
}

// Valid reports whether the Ready/artifact invariant holds.
func (s JobStatus) Valid() bool {
	return (s.State == JobStateReady) == (s.ArtifactURL != "")
}

// MapProviderStatus maps the provider status vocabulary onto JobState.
// Unrecognized strings are treated as still pending so that new transient
// state names do not break polling.
func MapProviderStatus(status string) JobState {
	switch strings.TrimSpace(status) {
	case "Ready":
		return JobStateReady
	case "Failed", "Error":
		return JobStateFailed
	case "Request Moderated":
		return JobStateModeratedRequest
	case "Content Moderated":
		return JobStateModeratedContent
	default:
		return JobStatePending
	}
}

func withReason(raw map[string]any, reason string) map[string]any {
	out := make(map[string]any, len(raw)+1)
	for k, v := range raw {
		out[k] = v
	}
	out["reason"] = reason
	return out
}
