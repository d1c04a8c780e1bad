package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"imagestudio/internal/domain"
	"imagestudio/internal/http/handlers"
)

type okExecutor struct{ calls int }

func (e *okExecutor) Execute(ctx context.Context, req domain.OperationRequest) domain.Result {
	e.calls++
	return domain.Result{Success: true, Kind: req.Kind}
}

type noStatus struct{}

func (noStatus) GetStatus(ctx context.Context, job domain.Job) (domain.JobStatus, error) {
	return domain.NewStatus(domain.JobStatePending, nil), nil
}

func newTestRouter(t *testing.T, rateLimit int) (http.Handler, string, *okExecutor) {
	t.Helper()
	root := t.TempDir()
	ingest, err := handlers.NewUploadIngest(filepath.Join(root, IncomingDir), 0)
	if err != nil {
		t.Fatalf("NewUploadIngest: %v", err)
	}
	exec := &okExecutor{}
	app := handlers.NewApp(exec, noStatus{}, nil, ingest, nil)
	router := NewRouter(app, Options{
		AllowedOrigins:  []string{"http://localhost:5173"},
		RateLimitPerMin: rateLimit,
		StoragePath:     root,
		PublicBasePath:  "/uploads",
	})
	return router, root, exec
}

func TestRoutes(t *testing.T) {
	router, root, exec := newTestRouter(t, 0)
	if err := os.WriteFile(filepath.Join(root, "generate-1-abc.jpg"), []byte("jpegbytes"), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, IncomingDir, "image-1-abc.png"), []byte("staged"), 0o644); err != nil {
		t.Fatalf("write staged: %v", err)
	}

	cases := []struct {
		method, path, body string
		want               int
	}{
		{http.MethodGet, "/api/health", "", http.StatusOK},
		{http.MethodPost, "/api/images/generate", `{"prompt":"x"}`, http.StatusOK},
		{http.MethodGet, "/api/images/status/job-9", "", http.StatusOK},
		{http.MethodGet, "/api/images/upscale/account", "", http.StatusServiceUnavailable},
		{http.MethodGet, "/uploads/generate-1-abc.jpg", "", http.StatusOK},
		{http.MethodGet, "/uploads/incoming/image-1-abc.png", "", http.StatusNotFound},
		{http.MethodGet, "/uploads/", "", http.StatusNotFound},
		{http.MethodGet, "/api/images/generate", "", http.StatusMethodNotAllowed},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, tc.path, strings.NewReader(tc.body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != tc.want {
			t.Fatalf("%s %s: expected %d, got %d (%s)", tc.method, tc.path, tc.want, rec.Code, rec.Body.String())
		}
		if rec.Header().Get("X-Request-ID") == "" {
			t.Fatalf("%s %s: missing request id header", tc.method, tc.path)
		}
	}
	if exec.calls != 1 {
		t.Fatalf("expected one execution, got %d", exec.calls)
	}
}

func TestOperationRoutesAreRateLimited(t *testing.T) {
	router, _, exec := newTestRouter(t, 2)
	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/images/generate", strings.NewReader(`{"prompt":"x"}`))
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("unexpected codes %v", codes)
	}
	if exec.calls != 2 {
		t.Fatalf("expected two executions, got %d", exec.calls)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("health must not be rate limited, got %d", rec.Code)
	}
}
