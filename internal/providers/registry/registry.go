// Package registry exposes one ProviderClient that routes each call to the
// backend serving the operation kind.
package registry

import (
	"context"

	"imagestudio/internal/domain"
	"imagestudio/internal/jobs"
)

// Registry sends Upscale to the upscale backend and every other kind to the
// image backend.
type Registry struct {
	image   jobs.ProviderClient
	upscale jobs.ProviderClient
}

var _ jobs.ProviderClient = (*Registry)(nil)

// New builds a registry. Either backend may be nil, in which case calls for
// its kinds fail with AuthError.
func New(image, upscale jobs.ProviderClient) *Registry {
	return &Registry{image: image, upscale: upscale}
}

// For returns the backend serving kind.
func (r *Registry) For(kind domain.OperationKind) (jobs.ProviderClient, error) {
	client := r.image
	if kind == domain.KindUpscale {
		client = r.upscale
	}
	if client == nil {
		return nil, domain.Errorf(domain.CodeAuth, "no provider configured for %s", kind.Label())
	}
	return client, nil
}

func (r *Registry) Submit(ctx context.Context, kind domain.OperationKind, payload domain.Payload) (domain.Job, error) {
	client, err := r.For(kind)
	if err != nil {
		return domain.Job{}, err
	}
	return client.Submit(ctx, kind, payload)
}

// GetStatus routes by job.Kind; jobs without a kind go to the image backend.
func (r *Registry) GetStatus(ctx context.Context, job domain.Job) (domain.JobStatus, error) {
	client, err := r.For(job.Kind)
	if err != nil {
		return domain.JobStatus{}, err
	}
	return client.GetStatus(ctx, job)
}

// Download uses whichever backend is configured; both fetch plain and inline
// URLs the same way.
func (r *Registry) Download(ctx context.Context, artifactURL string) ([]byte, error) {
	client := r.image
	if client == nil {
		client = r.upscale
	}
	if client == nil {
		return nil, domain.Errorf(domain.CodeDownload, "no provider configured")
	}
	return client.Download(ctx, artifactURL)
}
