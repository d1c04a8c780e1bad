// Package artifacts downloads finished job outputs and persists them to the
// content store.
package artifacts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"imagestudio/internal/domain"
	"imagestudio/internal/imaging"
	"imagestudio/internal/infra"
	"imagestudio/internal/jobs"
)

// Store is the content store the retriever writes into.
type Store interface {
	Write(ctx context.Context, key string, data []byte) (string, error)
	Path(key string) (string, error)
	URL(key string) string
}

// Retriever fetches the artifact of a Ready job and stores it under a unique
// name. Either the full artifact is stored or nothing is.
type Retriever struct {
	client jobs.ProviderClient
	store  Store
	logger *infra.Logger
	now    func() time.Time
}

// NewRetriever wires a retriever to a provider client and a store.
func NewRetriever(client jobs.ProviderClient, store Store, logger *infra.Logger) *Retriever {
	return &Retriever{
		client: client,
		store:  store,
		logger: infra.LoggerOrDiscard(logger),
		now:    time.Now,
	}
}

// Retrieve downloads status.ArtifactURL, checks it decodes as an image and
// writes it. Calling it twice for the same status yields two files.
func (r *Retriever) Retrieve(ctx context.Context, kind domain.OperationKind, status domain.JobStatus) (domain.StoredArtifact, error) {
	if status.State != domain.JobStateReady || status.ArtifactURL == "" {
		return domain.StoredArtifact{}, domain.Errorf(domain.CodeInternal, "artifact requested for job in state %q", status.State)
	}

	data, err := r.client.Download(ctx, status.ArtifactURL)
	if err != nil {
		if errors.Is(err, domain.ErrDownload) {
			return domain.StoredArtifact{}, err
		}
		return domain.StoredArtifact{}, domain.NewError(domain.CodeDownload, "download artifact", err)
	}

	info, err := imaging.Inspect(data)
	if err != nil {
		return domain.StoredArtifact{}, domain.NewError(domain.CodeDecode, "artifact is not a decodable image", err)
	}

	createdAt := r.now()
	key := fmt.Sprintf("%s-%d-%s%s", kind, createdAt.UnixMilli(), uuid.NewString()[:8], imaging.Extension(info.Format))
	key, err = r.store.Write(ctx, key, data)
	if err != nil {
		return domain.StoredArtifact{}, domain.NewError(domain.CodePersist, "store artifact", err)
	}
	path, err := r.store.Path(key)
	if err != nil {
		return domain.StoredArtifact{}, domain.NewError(domain.CodePersist, "resolve artifact path", err)
	}

	artifact := domain.StoredArtifact{
		Kind:      kind,
		Key:       key,
		Path:      path,
		URL:       r.store.URL(key),
		Format:    info.Format,
		SizeBytes: int64(len(data)),
		Width:     info.Width,
		Height:    info.Height,
		CreatedAt: createdAt,
	}
	r.logger.Info().
		Str("kind", string(kind)).
		Str("key", key).
		Int("width", info.Width).
		Int("height", info.Height).
		Int64("size_bytes", artifact.SizeBytes).
		Msg("artifacts: stored")
	return artifact, nil
}
