// Package stability calls the Stability AI upscale endpoints. Conservative
// and fast upscales answer synchronously with image bytes, which are carried
// on the Job as a data: URL. Creative upscales are asynchronous and are
// resolved through the results endpoint.
package stability

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"imagestudio/internal/domain"
	"imagestudio/internal/infra"
	"imagestudio/internal/providers/fetch"
)

const providerName = "stability"

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = domain.Errorf(domain.CodeAuth, "stability: api key is required")

// Upscale modes, each a distinct endpoint.
const (
	ModeConservative = "conservative"
	ModeCreative     = "creative"
	ModeFast         = "fast"
)

// Finish reasons reported by the results endpoint.
const (
	finishSuccess         = "SUCCESS"
	finishContentFiltered = "CONTENT_FILTERED"
)

// Options configures the Stability client.
type Options struct {
	APIKey         string
	BaseURL        string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls to the Stability AI API.
type Client struct {
	apiKey  string
	baseURL string
	http    *resty.Client
	fetcher *fetch.Fetcher
	logger  *infra.Logger
}

type resultResponse struct {
	ID           string `json:"id"`
	Image        string `json:"image"`
	FinishReason string `json:"finish_reason"`
	Seed         any    `json:"seed"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.stability.ai"
	}
	if parsed, err := url.Parse(baseURL); err != nil || parsed.Host == "" {
		return nil, fmt.Errorf("stability: invalid base url %q", opts.BaseURL)
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	logger := infra.LoggerOrDiscard(opts.Logger)
	httpClient := fetch.NewRestyClient(opts.HTTPClient, timeout)
	return &Client{
		apiKey:  strings.TrimSpace(opts.APIKey),
		baseURL: baseURL,
		http:    httpClient,
		fetcher: fetch.New(httpClient, logger),
		logger:  logger,
	}, nil
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

// ParseMode normalizes an upscale mode, defaulting to conservative.
func ParseMode(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case ModeCreative:
		return ModeCreative
	case ModeFast:
		return ModeFast
	default:
		return ModeConservative
	}
}

// DefaultPrompt is sent when the user leaves the prompt empty; the provider
// requires one for conservative and creative upscales.
func DefaultPrompt(mode string) string {
	switch ParseMode(mode) {
	case ModeCreative:
		return "enhance image quality, add details, improve sharpness"
	case ModeConservative:
		return "high quality, detailed, sharp"
	default:
		return ""
	}
}

// DefaultCreativity is the creativity used when none is given. Fast mode has
// no creativity parameter.
func DefaultCreativity(mode string) (float64, bool) {
	switch ParseMode(mode) {
	case ModeCreative:
		return 0.3, true
	case ModeConservative:
		return 0.35, true
	default:
		return 0, false
	}
}

// Submit posts a multipart upscale request. payload.Endpoint is the mode and
// payload.Files["image"] the source image.
func (c *Client) Submit(ctx context.Context, kind domain.OperationKind, payload domain.Payload) (domain.Job, error) {
	if !c.HasCredentials() {
		return domain.Job{}, ErrMissingAPIKey
	}
	if kind != domain.KindUpscale {
		return domain.Job{}, domain.Errorf(domain.CodeInternal, "stability: unsupported kind %q", kind)
	}
	image := payload.Files["image"]
	if len(image) == 0 {
		return domain.Job{}, domain.ValidationErrorf("stability: image is required")
	}
	mode := ParseMode(payload.Endpoint)
	accept := "image/*"
	if mode == ModeCreative {
		accept = "application/json"
	}
	resp, err := c.request(ctx).
		SetHeader("Accept", accept).
		SetFileReader("image", "image.png", bytes.NewReader(image)).
		SetMultipartFormData(formValues(mode, payload.Fields)).
		Post(c.baseURL + "/v2beta/stable-image/upscale/" + mode)
	if err != nil {
		return domain.Job{}, fetch.TransportError(providerName, "submit", err)
	}
	if resp.IsError() {
		return domain.Job{}, fetch.SubmitError(providerName, resp.StatusCode(), resp.Body())
	}

	contentType := resp.Header().Get("Content-Type")
	if strings.HasPrefix(contentType, "image/") {
		job := domain.Job{
			ID:          uuid.NewString(),
			Kind:        kind,
			ArtifactURL: fetch.DataURL(contentType, resp.Body()),
		}
		c.logger.Debug().
			Str("mode", mode).
			Str("job_id", job.ID).
			Int("bytes", len(resp.Body())).
			Msg("stability: synchronous upscale finished")
		return job, nil
	}

	var decoded resultResponse
	if err := json.Unmarshal(resp.Body(), &decoded); err != nil {
		return domain.Job{}, domain.NewError(domain.CodeProviderRejected, "stability: decode submit response", err)
	}
	if decoded.Image != "" {
		data, err := base64.StdEncoding.DecodeString(decoded.Image)
		if err != nil {
			return domain.Job{}, domain.NewError(domain.CodeProviderRejected, "stability: decode inline image", err)
		}
		return domain.Job{ID: uuid.NewString(), Kind: kind, ArtifactURL: fetch.DataURL(http.DetectContentType(data), data)}, nil
	}
	if strings.TrimSpace(decoded.ID) == "" {
		return domain.Job{}, domain.Errorf(domain.CodeProviderRejected, "stability: submit response without id")
	}
	c.logger.Debug().Str("mode", mode).Str("job_id", decoded.ID).Msg("stability: upscale job submitted")
	return domain.Job{
		ID:              decoded.ID,
		PollingEndpoint: c.baseURL + "/v2beta/results/" + url.PathEscape(decoded.ID),
		Kind:            kind,
	}, nil
}

// GetStatus reports Ready straight away for synchronous jobs and otherwise
// queries the results endpoint once.
func (c *Client) GetStatus(ctx context.Context, job domain.Job) (domain.JobStatus, error) {
	if job.ArtifactURL != "" {
		return domain.ReadyStatus(job.ArtifactURL, map[string]any{"id": job.ID}), nil
	}
	if !c.HasCredentials() {
		return domain.JobStatus{}, ErrMissingAPIKey
	}
	target := job.PollingEndpoint
	if target == "" {
		target = c.baseURL + "/v2beta/results/" + url.PathEscape(job.ID)
	}
	resp, err := c.request(ctx).SetHeader("Accept", "application/json").Get(target)
	if err != nil {
		return domain.JobStatus{}, fetch.TransportError(providerName, "get status", err)
	}
	raw := map[string]any{"id": job.ID, "http_status": resp.StatusCode()}
	switch {
	case resp.StatusCode() == http.StatusAccepted:
		return domain.NewStatus(domain.JobStatePending, raw), nil
	case resp.StatusCode() == http.StatusNotFound:
		raw["message"] = fetch.ProviderMessage(resp.Body())
		return domain.NewStatus(domain.JobStateFailed, raw), nil
	case resp.IsError():
		return domain.JobStatus{}, fetch.StatusError(providerName, resp.StatusCode(), resp.Body())
	}

	if ct := resp.Header().Get("Content-Type"); strings.HasPrefix(ct, "image/") {
		raw["finish_reason"] = resp.Header().Get("finish-reason")
		if raw["finish_reason"] == finishContentFiltered {
			return domain.NewStatus(domain.JobStateModeratedContent, raw), nil
		}
		return domain.ReadyStatus(fetch.DataURL(ct, resp.Body()), raw), nil
	}

	var decoded resultResponse
	if err := json.Unmarshal(resp.Body(), &decoded); err != nil {
		return domain.JobStatus{}, domain.NewError(domain.CodeProviderRejected, "stability: decode result", err)
	}
	raw["finish_reason"] = decoded.FinishReason
	if decoded.Seed != nil {
		raw["seed"] = decoded.Seed
	}
	switch decoded.FinishReason {
	case finishContentFiltered:
		return domain.NewStatus(domain.JobStateModeratedContent, raw), nil
	case finishSuccess, "":
		if decoded.Image == "" {
			return domain.NewStatus(domain.JobStateFailed, raw), nil
		}
		data, err := base64.StdEncoding.DecodeString(decoded.Image)
		if err != nil {
			raw["reason"] = "invalid base64 image"
			return domain.NewStatus(domain.JobStateFailed, raw), nil
		}
		return domain.ReadyStatus(fetch.DataURL(http.DetectContentType(data), data), raw), nil
	default:
		return domain.NewStatus(domain.JobStateFailed, raw), nil
	}
}

// Download resolves the artifact. Upscale artifacts are normally inline.
func (c *Client) Download(ctx context.Context, artifactURL string) ([]byte, error) {
	return c.fetcher.Download(ctx, artifactURL)
}

// Account returns the account details behind the configured key.
func (c *Client) Account(ctx context.Context) (map[string]any, error) {
	if !c.HasCredentials() {
		return nil, ErrMissingAPIKey
	}
	resp, err := c.request(ctx).SetHeader("Accept", "application/json").Get(c.baseURL + "/v1/user/account")
	if err != nil {
		return nil, fetch.TransportError(providerName, "account", err)
	}
	if resp.IsError() {
		return nil, fetch.SubmitError(providerName, resp.StatusCode(), resp.Body())
	}
	var account map[string]any
	if err := json.Unmarshal(resp.Body(), &account); err != nil {
		return nil, domain.NewError(domain.CodeProviderRejected, "stability: decode account", err)
	}
	return account, nil
}

func (c *Client) request(ctx context.Context) *resty.Request {
	return c.http.R().SetContext(ctx).SetAuthToken(c.apiKey)
}

// formValues renders payload fields as form values and fills mode defaults.
// Fast upscales accept only output_format.
func formValues(mode string, fields map[string]any) map[string]string {
	out := make(map[string]string, len(fields)+2)
	for key, value := range fields {
		if s, ok := formString(value); ok {
			out[key] = s
		}
	}
	if mode == ModeFast {
		fast := make(map[string]string, 1)
		if format, ok := out["output_format"]; ok {
			fast["output_format"] = format
		}
		return fast
	}
	if strings.TrimSpace(out["prompt"]) == "" {
		out["prompt"] = DefaultPrompt(mode)
	}
	if _, ok := out["creativity"]; !ok {
		if creativity, ok := DefaultCreativity(mode); ok {
			out["creativity"] = strconv.FormatFloat(creativity, 'f', -1, 64)
		}
	}
	return out
}

func formString(value any) (string, bool) {
	switch v := value.(type) {
	case nil:
		return "", false
	case string:
		return v, v != ""
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case bool:
		return strconv.FormatBool(v), true
	default:
		return fmt.Sprint(v), true
	}
}
