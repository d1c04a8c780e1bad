package artifacts

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"strings"
	"testing"

	"imagestudio/internal/domain"
	"imagestudio/internal/storage"
)

type downloadStub struct {
	data  []byte
	err   error
	calls []string
}

func (d *downloadStub) Submit(ctx context.Context, kind domain.OperationKind, payload domain.Payload) (domain.Job, error) {
	return domain.Job{}, errors.New("not used")
}

func (d *downloadStub) GetStatus(ctx context.Context, job domain.Job) (domain.JobStatus, error) {
	return domain.JobStatus{}, errors.New("not used")
}

func (d *downloadStub) Download(ctx context.Context, artifactURL string) ([]byte, error) {
	d.calls = append(d.calls, artifactURL)
	return d.data, d.err
}

func samplePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 6))
	img.Set(1, 1, color.RGBA{G: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func newStore(t *testing.T) *storage.FileStore {
	t.Helper()
	store, err := storage.NewFileStore(t.TempDir(), "/uploads")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store
}

func TestRetrieveTwiceYieldsDistinctFiles(t *testing.T) {
	payload := samplePNG(t)
	client := &downloadStub{data: payload}
	store := newStore(t)
	r := NewRetriever(client, store, nil)
	status := domain.ReadyStatus("https://x/a.png", nil)

	first, err := r.Retrieve(context.Background(), domain.KindGenerate, status)
	if err != nil {
		t.Fatalf("first retrieve: %v", err)
	}
	second, err := r.Retrieve(context.Background(), domain.KindGenerate, status)
	if err != nil {
		t.Fatalf("second retrieve: %v", err)
	}
	if first.Path == second.Path {
		t.Fatalf("expected distinct paths, both %s", first.Path)
	}
	for _, a := range []domain.StoredArtifact{first, second} {
		data, err := os.ReadFile(a.Path)
		if err != nil {
			t.Fatalf("read %s: %v", a.Path, err)
		}
		if !bytes.Equal(data, payload) {
			t.Fatalf("stored bytes differ from download")
		}
		if a.Width != 8 || a.Height != 6 || a.Format != "png" || a.SizeBytes != int64(len(payload)) {
			t.Fatalf("unexpected metadata %+v", a)
		}
		if !strings.HasPrefix(a.Key, "generate-") || !strings.HasSuffix(a.Key, ".png") {
			t.Fatalf("unexpected key %q", a.Key)
		}
		if a.URL != "/uploads/"+a.Key {
			t.Fatalf("unexpected url %q", a.URL)
		}
	}
	if len(client.calls) != 2 || client.calls[0] != "https://x/a.png" {
		t.Fatalf("unexpected download calls %v", client.calls)
	}
}

func TestRetrieveRequiresReady(t *testing.T) {
	client := &downloadStub{data: samplePNG(t)}
	r := NewRetriever(client, newStore(t), nil)
	_, err := r.Retrieve(context.Background(), domain.KindEdit, domain.NewStatus(domain.JobStatePending, nil))
	if err == nil {
		t.Fatalf("expected error for pending status")
	}
	if len(client.calls) != 0 {
		t.Fatalf("download should not be attempted")
	}
}

func TestRetrieveDecodeErrorWritesNothing(t *testing.T) {
	client := &downloadStub{data: []byte("<html>expired</html>")}
	store := newStore(t)
	r := NewRetriever(client, store, nil)
	_, err := r.Retrieve(context.Background(), domain.KindEdit, domain.ReadyStatus("https://x/a.png", nil))
	if !errors.Is(err, domain.ErrDecode) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
	entries, _ := os.ReadDir(store.BasePath())
	if len(entries) != 0 {
		t.Fatalf("expected empty store, found %d entries", len(entries))
	}
}

func TestRetrieveDownloadError(t *testing.T) {
	client := &downloadStub{err: errors.New("connection refused")}
	r := NewRetriever(client, newStore(t), nil)
	_, err := r.Retrieve(context.Background(), domain.KindUpscale, domain.ReadyStatus("https://x/a.png", nil))
	if !errors.Is(err, domain.ErrDownload) {
		t.Fatalf("expected DownloadError, got %v", err)
	}
}

func TestRetrievePersistError(t *testing.T) {
	client := &downloadStub{data: samplePNG(t)}
	r := NewRetriever(client, failingStore{}, nil)
	_, err := r.Retrieve(context.Background(), domain.KindFuse, domain.ReadyStatus("https://x/a.png", nil))
	if !errors.Is(err, domain.ErrPersist) {
		t.Fatalf("expected PersistError, got %v", err)
	}
}

type failingStore struct{}

func (failingStore) Write(ctx context.Context, key string, data []byte) (string, error) {
	return "", errors.New("disk full")
}

func (failingStore) Path(key string) (string, error) { return "", errors.New("unused") }

func (failingStore) URL(key string) string { return "" }
