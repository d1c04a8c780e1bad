package domain

import "testing"

func TestMapProviderStatus(t *testing.T) {
	tests := []struct {
		status string
		want   JobState
	}{
		{status: "Ready", want: JobStateReady},
		{status: "Failed", want: JobStateFailed},
		{status: "Error", want: JobStateFailed},
		{status: "Request Moderated", want: JobStateModeratedRequest},
		{status: "Content Moderated", want: JobStateModeratedContent},
		{status: "Pending", want: JobStatePending},
		{status: "Task not found", want: JobStatePending},
		{status: "Queued", want: JobStatePending},
		{status: "", want: JobStatePending},
		{status: "ready", want: JobStatePending},
		{status: " Ready ", want: JobStateReady},
	}
	for _, tc := range tests {
		t.Run(tc.status, func(t *testing.T) {
			if got := MapProviderStatus(tc.status); got != tc.want {
				t.Fatalf("MapProviderStatus(%q) = %q, want %q", tc.status, got, tc.want)
			}
		})
	}
}

func TestJobStatusReadyInvariant(t *testing.T) {
	statuses := []JobStatus{
		ReadyStatus("https://x/a.jpg", nil),
		ReadyStatus("   ", nil),
		NewStatus(JobStateReady, nil),
		NewStatus(JobStatePending, nil),
		NewStatus(JobStateFailed, map[string]any{"status": "Error"}),
		NewStatus(JobStateModeratedRequest, nil),
		NewStatus(JobStateModeratedContent, nil),
		NewStatus(JobStateUnknown, nil),
	}
	for i, s := range statuses {
		if !s.Valid() {
			t.Fatalf("status %d violates ready invariant: %+v", i, s)
		}
	}
	if got := ReadyStatus("", nil); got.State != JobStateFailed {
		t.Fatalf("empty artifact url state = %q, want failed", got.State)
	}
}

func TestJobStateTerminal(t *testing.T) {
	terminal := map[JobState]bool{
		JobStateReady:            true,
		JobStateFailed:           true,
		JobStateModeratedRequest: true,
		JobStateModeratedContent: true,
		JobStatePending:          false,
		JobStateUnknown:          false,
	}
	for state, want := range terminal {
		if got := state.Terminal(); got != want {
			t.Fatalf("%q.Terminal() = %v, want %v", state, got, want)
		}
	}
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		raw  string
		want OperationKind
		ok   bool
	}{
		{raw: "generate", want: KindGenerate, ok: true},
		{raw: " Upscale ", want: KindUpscale, ok: true},
		{raw: "style_transfer", want: KindStyleTransfer, ok: true},
		{raw: "styletransfer", want: KindStyleTransfer, ok: true},
		{raw: "inpaint", ok: false},
	}
	for _, tc := range tests {
		got, ok := ParseKind(tc.raw)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("ParseKind(%q) = %q,%v want %q,%v", tc.raw, got, ok, tc.want, tc.ok)
		}
	}
	if label := KindStyleTransfer.Label(); label != "Style Transfer" {
		t.Fatalf("label = %q, want Style Transfer", label)
	}
}
