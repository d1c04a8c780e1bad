package registry

import (
	"context"
	"errors"
	"testing"

	"imagestudio/internal/domain"
)

type countingClient struct {
	name     string
	submits  int
	statuses int
}

func (c *countingClient) Submit(ctx context.Context, kind domain.OperationKind, payload domain.Payload) (domain.Job, error) {
	c.submits++
	return domain.Job{ID: c.name, Kind: kind}, nil
}

func (c *countingClient) GetStatus(ctx context.Context, job domain.Job) (domain.JobStatus, error) {
	c.statuses++
	return domain.NewStatus(domain.JobStatePending, nil), nil
}

func (c *countingClient) Download(ctx context.Context, artifactURL string) ([]byte, error) {
	return []byte(c.name), nil
}

func TestRegistryRoutesByKind(t *testing.T) {
	image := &countingClient{name: "image"}
	upscale := &countingClient{name: "upscale"}
	reg := New(image, upscale)

	for _, kind := range domain.Kinds {
		job, err := reg.Submit(context.Background(), kind, domain.Payload{})
		if err != nil {
			t.Fatalf("submit %s: %v", kind, err)
		}
		want := "image"
		if kind == domain.KindUpscale {
			want = "upscale"
		}
		if job.ID != want {
			t.Fatalf("kind %s routed to %s, want %s", kind, job.ID, want)
		}
		if _, err := reg.GetStatus(context.Background(), job); err != nil {
			t.Fatalf("status %s: %v", kind, err)
		}
	}
	if image.submits != 5 || upscale.submits != 1 || image.statuses != 5 || upscale.statuses != 1 {
		t.Fatalf("unexpected routing counts image=%+v upscale=%+v", image, upscale)
	}
	if data, _ := reg.Download(context.Background(), "https://x/a.jpg"); string(data) != "image" {
		t.Fatalf("download routed to %q", data)
	}
}

func TestRegistryMissingBackendIsAuthError(t *testing.T) {
	reg := New(&countingClient{name: "image"}, nil)
	if _, err := reg.Submit(context.Background(), domain.KindUpscale, domain.Payload{}); !errors.Is(err, domain.ErrAuth) {
		t.Fatalf("expected AuthError, got %v", err)
	}
}
