// Package jobs holds the provider job protocol: the ProviderClient contract
// and the Poller that drives a submitted job to a terminal status.
package jobs

import (
	"context"

	"imagestudio/internal/domain"
)

// ProviderClient is the stateless adapter to a remote image provider. None of
// its methods retry; retry policy belongs to the Poller.
type ProviderClient interface {
	// Submit sends the operation and returns the provider's job handle.
	// AuthError without credentials, ProviderRejected on non-2xx,
	// TransportError on network failure.
	Submit(ctx context.Context, kind domain.OperationKind, payload domain.Payload) (domain.Job, error)
	// GetStatus reads the job state once. TransportError on network failure.
	GetStatus(ctx context.Context, job domain.Job) (domain.JobStatus, error)
	// Download fetches an artifact. DownloadError on any failure.
	Download(ctx context.Context, artifactURL string) ([]byte, error)
}
