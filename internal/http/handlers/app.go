// Package handlers exposes the image operations over HTTP. Each handler turns
// a request into a domain.OperationRequest, runs it and writes the uniform
// domain.Result back.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"imagestudio/internal/domain"
	"imagestudio/internal/infra"
)

// Executor runs one operation end to end.
type Executor interface {
	Execute(ctx context.Context, req domain.OperationRequest) domain.Result
}

// StatusChecker answers a single provider status query.
type StatusChecker interface {
	GetStatus(ctx context.Context, job domain.Job) (domain.JobStatus, error)
}

// AccountFetcher reports the upscale provider's account details.
type AccountFetcher interface {
	Account(ctx context.Context) (map[string]any, error)
}

type App struct {
	Executor Executor
	Status   StatusChecker
	Account  AccountFetcher
	Ingest   *UploadIngest
	Logger   *infra.Logger
}

func NewApp(executor Executor, status StatusChecker, account AccountFetcher, ingest *UploadIngest, logger *infra.Logger) *App {
	return &App{
		Executor: executor,
		Status:   status,
		Account:  account,
		Ingest:   ingest,
		Logger:   infra.LoggerOrDiscard(logger),
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// result writes r with the status its error code maps to.
func (a *App) result(w http.ResponseWriter, r domain.Result) {
	code := http.StatusOK
	if !r.Success {
		code = r.ErrorCode.HTTPStatus()
	}
	a.json(w, code, r)
}

// fail reports err as a failure Result for kind without running anything.
func (a *App) fail(w http.ResponseWriter, kind domain.OperationKind, err error) {
	a.result(w, domain.FailureResult(kind, err))
}
