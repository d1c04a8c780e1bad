package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"imagestudio/internal/domain"
	"imagestudio/internal/providers/fetch"
)

const maxJSONBody = 1 << 20

type generateRequest struct {
	Prompt  string         `json:"prompt"`
	Options domain.Options `json:"options"`
}

// Generate runs a text-to-image operation from a JSON body.
func (a *App) Generate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	var req generateRequest
	if err := dec.Decode(&req); err != nil {
		a.fail(w, domain.KindGenerate, domain.NewError(domain.CodeValidation, "invalid JSON payload: "+err.Error(), err))
		return
	}
	a.result(w, a.Executor.Execute(r.Context(), domain.OperationRequest{
		Kind:    domain.KindGenerate,
		Prompt:  req.Prompt,
		Options: req.Options,
	}))
}

type maskRule int

const (
	maskNone maskRule = iota
	maskOptional
	maskRequired
)

// multipartOp describes which upload fields an image operation reads.
type multipartOp struct {
	kind   domain.OperationKind
	images FileField
	mask   maskRule
	style  bool
}

var (
	editOp          = multipartOp{kind: domain.KindEdit, images: FileField{Name: "image", Max: 1}, mask: maskOptional}
	inpaintOp       = multipartOp{kind: domain.KindEdit, images: FileField{Name: "image", Max: 1}, mask: maskRequired}
	expandOp        = multipartOp{kind: domain.KindExpand, images: FileField{Name: "image", Max: 1}}
	fuseOp          = multipartOp{kind: domain.KindFuse, images: FileField{Name: "images", Max: 4}}
	styleTransferOp = multipartOp{kind: domain.KindStyleTransfer, images: FileField{Name: "image", Max: 1}, style: true}
	upscaleOp       = multipartOp{kind: domain.KindUpscale, images: FileField{Name: "image", Max: 1}}
)

func (a *App) Edit(w http.ResponseWriter, r *http.Request)          { a.runMultipart(w, r, editOp) }
func (a *App) Inpaint(w http.ResponseWriter, r *http.Request)       { a.runMultipart(w, r, inpaintOp) }
func (a *App) Expand(w http.ResponseWriter, r *http.Request)        { a.runMultipart(w, r, expandOp) }
func (a *App) Fuse(w http.ResponseWriter, r *http.Request)          { a.runMultipart(w, r, fuseOp) }
func (a *App) StyleTransfer(w http.ResponseWriter, r *http.Request) { a.runMultipart(w, r, styleTransferOp) }
func (a *App) Upscale(w http.ResponseWriter, r *http.Request)       { a.runMultipart(w, r, upscaleOp) }

func (a *App) runMultipart(w http.ResponseWriter, r *http.Request, op multipartOp) {
	fields := []FileField{op.images}
	if op.mask != maskNone {
		fields = append(fields, FileField{Name: "mask", Max: 1})
	}
	if op.style {
		fields = append(fields, FileField{Name: "style", Max: 1})
	}
	form, err := a.Ingest.Parse(w, r, fields...)
	if err != nil {
		a.fail(w, op.kind, err)
		return
	}

	req := domain.OperationRequest{
		Kind:        op.kind,
		Prompt:      form.Prompt,
		InputImages: form.Files[op.images.Name],
		Options:     form.Options,
	}
	if masks := form.Files["mask"]; len(masks) > 0 {
		req.Mask = &masks[0]
	}
	if styles := form.Files["style"]; len(styles) > 0 {
		req.StyleReference = &styles[0]
	}
	if op.kind == domain.KindUpscale && req.Options.Mode == "" {
		req.Options.Mode = strings.ToLower(strings.TrimSpace(form.Values.Get("mode")))
	}
	if op.mask == maskRequired && req.Mask == nil {
		a.Ingest.Discard(form)
		a.fail(w, op.kind, domain.ValidationErrorf("inpainting needs a mask image"))
		return
	}
	a.result(w, a.Executor.Execute(r.Context(), req))
}

type statusResponse struct {
	ID          string               `json:"id"`
	Kind        domain.OperationKind `json:"kind"`
	State       domain.JobState      `json:"state"`
	ArtifactURL string               `json:"artifactUrl,omitempty"`
	Inline      bool                 `json:"inline,omitempty"`
	Raw         map[string]any       `json:"raw,omitempty"`
}

// JobStatus performs one provider status check for a job id. The kind query
// parameter picks the provider and defaults to generate.
func (a *App) JobStatus(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	kind := domain.KindGenerate
	if raw := r.URL.Query().Get("kind"); raw != "" {
		parsed, ok := domain.ParseKind(raw)
		if !ok {
			a.fail(w, kind, domain.ValidationErrorf("unknown kind %q", raw))
			return
		}
		kind = parsed
	}
	if id == "" {
		a.fail(w, kind, domain.ValidationErrorf("job id is required"))
		return
	}
	status, err := a.Status.GetStatus(r.Context(), domain.Job{ID: id, Kind: kind})
	if err != nil {
		a.fail(w, kind, err)
		return
	}
	resp := statusResponse{ID: id, Kind: kind, State: status.State, Raw: status.Raw}
	if fetch.IsDataURL(status.ArtifactURL) {
		resp.Inline = true
	} else {
		resp.ArtifactURL = status.ArtifactURL
	}
	a.json(w, http.StatusOK, resp)
}

// UpscaleAccount reports the upscale provider's account details.
func (a *App) UpscaleAccount(w http.ResponseWriter, r *http.Request) {
	if a.Account == nil {
		a.fail(w, domain.KindUpscale, domain.Errorf(domain.CodeAuth, "upscale provider is not configured"))
		return
	}
	account, err := a.Account.Account(r.Context())
	if err != nil {
		a.fail(w, domain.KindUpscale, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"success": true, "account": account})
}
