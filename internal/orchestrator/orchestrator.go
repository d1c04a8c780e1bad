// Package orchestrator runs one user operation end to end: validate, build
// the provider payload, submit, poll, and store the artifact.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"imagestudio/internal/domain"
	"imagestudio/internal/imaging"
	"imagestudio/internal/infra"
	"imagestudio/internal/jobs"
	"imagestudio/internal/providers/fetch"
)

// Poller drives a submitted job to a terminal status.
type Poller interface {
	Poll(ctx context.Context, job domain.Job) (domain.JobStatus, error)
}

// Retriever persists the artifact of a Ready job.
type Retriever interface {
	Retrieve(ctx context.Context, kind domain.OperationKind, status domain.JobStatus) (domain.StoredArtifact, error)
}

// Orchestrator is safe for concurrent use; each Execute call is an
// independent pipeline.
type Orchestrator struct {
	client    jobs.ProviderClient
	poller    Poller
	retriever Retriever
	defaults  infra.Defaults
	validate  *validator.Validate
	logger    *infra.Logger
	remove    func(path string) error
}

// New wires an orchestrator. defaults fill options a request leaves unset.
func New(client jobs.ProviderClient, poller Poller, retriever Retriever, defaults infra.Defaults, logger *infra.Logger) *Orchestrator {
	return &Orchestrator{
		client:    client,
		poller:    poller,
		retriever: retriever,
		defaults:  defaults,
		validate:  newValidator(),
		logger:    infra.LoggerOrDiscard(logger),
		remove:    os.Remove,
	}
}

// Execute runs req and reports the outcome. It never returns a raw error:
// every failure becomes a Result with Success false. Staged input files are
// removed before it returns, whatever the outcome.
func (o *Orchestrator) Execute(ctx context.Context, req domain.OperationRequest) (result domain.Result) {
	started := time.Now()
	base := infra.FromContext(ctx, o.logger)
	defer o.cleanupInputs(req)
	defer func() {
		if rec := recover(); rec != nil {
			base.Error().Interface("panic", rec).Str("kind", string(req.Kind)).Msg("orchestrator: recovered panic")
			result = domain.FailureResult(req.Kind, domain.Errorf(domain.CodeInternal, "unexpected failure while running %s", req.Kind.Label()))
		}
	}()

	result, err := o.run(ctx, req)
	logger := base.With().
		Str("kind", string(req.Kind)).
		Dur("elapsed", time.Since(started)).
		Logger()
	if err != nil {
		jobID := result.JobID
		result = domain.FailureResult(req.Kind, err)
		result.JobID = jobID
		event := logger.Warn()
		if result.Category == domain.CategoryServerProblem {
			event = logger.Error()
		}
		event.Err(err).Str("error_code", string(result.ErrorCode)).Msg("orchestrator: operation failed")
		return result
	}
	logger.Info().
		Str("job_id", result.JobID).
		Str("artifact", result.ArtifactPath).
		Msg("orchestrator: operation succeeded")
	return result
}

func (o *Orchestrator) run(ctx context.Context, req domain.OperationRequest) (domain.Result, error) {
	spec, ok := kindTable[req.Kind]
	if !ok {
		return domain.Result{}, domain.ValidationErrorf("unsupported operation kind %q", req.Kind)
	}
	prepared, err := o.prepare(req, spec)
	if err != nil {
		return domain.Result{}, err
	}
	payload, err := spec.build(o, prepared)
	if err != nil {
		return domain.Result{}, err
	}

	job, err := o.client.Submit(ctx, req.Kind, payload)
	if err != nil {
		return domain.Result{}, err
	}
	if job.Kind == "" {
		job.Kind = req.Kind
	}
	status, err := o.poller.Poll(ctx, job)
	if err != nil {
		return domain.Result{JobID: job.ID}, err
	}
	artifact, err := o.retriever.Retrieve(ctx, req.Kind, status)
	if err != nil {
		return domain.Result{JobID: job.ID}, err
	}

	result := domain.Result{
		Success:      true,
		Kind:         req.Kind,
		JobID:        job.ID,
		ArtifactPath: artifact.Path,
		ArtifactURL:  artifact.URL,
		Width:        artifact.Width,
		Height:       artifact.Height,
		SizeBytes:    artifact.SizeBytes,
		Message:      fmt.Sprintf("%s finished", req.Kind.Label()),
	}
	if !fetch.IsDataURL(status.ArtifactURL) {
		result.ArtifactSourceURL = status.ArtifactURL
	}
	if req.Kind == domain.KindUpscale && len(prepared.infos) > 0 && prepared.infos[0].Width > 0 {
		result.Scale = float64(artifact.Width) / float64(prepared.infos[0].Width)
	}
	return result, nil
}

// prepare enforces the kind's input contract and decodes image headers. Any
// error here is returned before the provider is contacted.
func (o *Orchestrator) prepare(req domain.OperationRequest, spec kindSpec) (*preparedRequest, error) {
	label := req.Kind.Label()
	n := len(req.InputImages)
	switch {
	case spec.minImages == spec.maxImages && n != spec.minImages:
		if spec.minImages == 0 {
			return nil, domain.ValidationErrorf("%s takes no input images, got %d", label, n)
		}
		return nil, domain.ValidationErrorf("%s needs exactly %d image(s), got %d", label, spec.minImages, n)
	case n < spec.minImages || n > spec.maxImages:
		return nil, domain.ValidationErrorf("%s needs %d to %d images, got %d", label, spec.minImages, spec.maxImages, n)
	}
	if req.Mask != nil && !spec.allowMask {
		return nil, domain.ValidationErrorf("%s does not accept a mask", label)
	}
	if req.StyleReference != nil && !spec.allowRef {
		return nil, domain.ValidationErrorf("%s does not accept a style reference", label)
	}

	prompt := strings.TrimSpace(req.Prompt)
	switch spec.prompt {
	case promptRequired:
		if prompt == "" {
			return nil, domain.ValidationErrorf("%s needs a prompt", label)
		}
	case promptUnlessStyle:
		if prompt == "" && req.StyleReference == nil && strings.TrimSpace(req.Options.StylePreset) == "" {
			return nil, domain.ValidationErrorf("%s needs a prompt, a style image or a style preset", label)
		}
	}
	req.Prompt = prompt

	if err := o.validateOptions(req.Options); err != nil {
		return nil, err
	}
	if err := checkAspectRatio(req, spec); err != nil {
		return nil, err
	}
	if spec.check != nil {
		if err := spec.check(req); err != nil {
			return nil, err
		}
	}

	prepared := &preparedRequest{OperationRequest: req, infos: make([]imaging.Info, n)}
	for i, img := range req.InputImages {
		info, err := inspectInput(img, fmt.Sprintf("image %d", i+1))
		if err != nil {
			return nil, err
		}
		prepared.infos[i] = info
	}
	if req.Mask != nil {
		info, err := inspectInput(*req.Mask, "mask")
		if err != nil {
			return nil, err
		}
		prepared.maskInf = &info
	}
	if req.StyleReference != nil {
		if _, err := inspectInput(*req.StyleReference, "style image"); err != nil {
			return nil, err
		}
	}
	return prepared, nil
}

func inspectInput(img domain.InputImage, name string) (imaging.Info, error) {
	if len(img.Data) == 0 {
		return imaging.Info{}, domain.ValidationErrorf("%s is empty", name)
	}
	info, err := imaging.Inspect(img.Data)
	if err != nil {
		return imaging.Info{}, domain.NewError(domain.CodeValidation, name+" is not a supported image", err)
	}
	if err := info.CheckPixels(); err != nil {
		return imaging.Info{}, domain.NewError(domain.CodeValidation,
			fmt.Sprintf("%s is %dx%d; images may have at most %d megapixels", name, info.Width, info.Height, imaging.MaxPixels/1_000_000), err)
	}
	return info, nil
}

func (o *Orchestrator) cleanupInputs(req domain.OperationRequest) {
	for _, path := range req.StagedPaths() {
		if err := o.remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			o.logger.Warn().Err(err).Str("path", path).Msg("orchestrator: failed to remove staged input")
		}
	}
}
