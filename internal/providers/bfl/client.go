// Package bfl talks to the Black Forest Labs FLUX API. Jobs are submitted as
// JSON and completed asynchronously; status is read from the polling URL the
// API hands back, or from the generic get_result endpoint.
package bfl

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"imagestudio/internal/domain"
	"imagestudio/internal/infra"
	"imagestudio/internal/providers/fetch"
)

const providerName = "bfl"

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = domain.Errorf(domain.CodeAuth, "bfl: api key is required")

// Endpoints used by the orchestrator.
const (
	ModelKontextMax = "flux-kontext-max"
	ModelKontextPro = "flux-kontext-pro"
	EndpointExpand  = "flux-pro-1.0-expand"
)

// Options configures the FLUX client.
type Options struct {
	APIKey         string
	BaseURL        string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls to the FLUX API.
type Client struct {
	apiKey  string
	baseURL string
	http    *resty.Client
	fetcher *fetch.Fetcher
	logger  *infra.Logger
}

type submitResponse struct {
	ID         string `json:"id"`
	PollingURL string `json:"polling_url"`
}

type resultResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Result *struct {
		Sample string `json:"sample"`
	} `json:"result"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.bfl.ai"
	}
	if parsed, err := url.Parse(baseURL); err != nil || parsed.Host == "" {
		return nil, fmt.Errorf("bfl: invalid base url %q", opts.BaseURL)
	}
	logger := infra.LoggerOrDiscard(opts.Logger)
	httpClient := fetch.NewRestyClient(opts.HTTPClient, opts.RequestTimeout)
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

// Submit posts payload.Fields to /v1/{payload.Endpoint}.
func (c *Client) Submit(ctx context.Context, kind domain.OperationKind, payload domain.Payload) (domain.Job, error) {
	if !c.HasCredentials() {
		return domain.Job{}, ErrMissingAPIKey
	}
	endpoint := strings.Trim(payload.Endpoint, "/")
	if endpoint == "" {
		return domain.Job{}, domain.Errorf(domain.CodeInternal, "bfl: payload endpoint is empty")
	}
	resp, err := c.request(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(payload.Fields).
		Post(c.baseURL + "/v1/" + endpoint)
	if err != nil {
		return domain.Job{}, fetch.TransportError(providerName, "submit", err)
	}
	if resp.IsError() {
		return domain.Job{}, fetch.SubmitError(providerName, resp.StatusCode(), resp.Body())
	}
	var decoded submitResponse
	if err := json.Unmarshal(resp.Body(), &decoded); err != nil {
		return domain.Job{}, domain.NewError(domain.CodeProviderRejected, "bfl: decode submit response", err)
	}
	if strings.TrimSpace(decoded.ID) == "" {
		return domain.Job{}, domain.Errorf(domain.CodeProviderRejected, "bfl: submit response without id")
	}
	c.logger.Debug().
		Str("kind", string(kind)).
		Str("endpoint", endpoint).
		Str("job_id", decoded.ID).
		Msg("bfl: job submitted")
	return domain.Job{
		ID:              decoded.ID,
		PollingEndpoint: strings.TrimSpace(decoded.PollingURL),
		Kind:            kind,
	}, nil
}

// GetStatus reads the job state once.
func (c *Client) GetStatus(ctx context.Context, job domain.Job) (domain.JobStatus, error) {
	if job.ArtifactURL != "" {
		return domain.ReadyStatus(job.ArtifactURL, map[string]any{"id": job.ID}), nil
	}
	if !c.HasCredentials() {
		return domain.JobStatus{}, ErrMissingAPIKey
	}
	target := job.PollingEndpoint
	if target == "" {
		target = c.baseURL + "/v1/get_result?id=" + url.QueryEscape(job.ID)
	}
	resp, err := c.request(ctx).Get(target)
	if err != nil {
		return domain.JobStatus{}, fetch.TransportError(providerName, "get status", err)
	}
	if resp.IsError() {
		return domain.JobStatus{}, fetch.StatusError(providerName, resp.StatusCode(), resp.Body())
	}
	var decoded resultResponse
	if err := json.Unmarshal(resp.Body(), &decoded); err != nil {
		return domain.JobStatus{}, domain.NewError(domain.CodeProviderRejected, "bfl: decode status response", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(resp.Body(), &raw); err != nil {
		raw = map[string]any{"status": decoded.Status}
	}
	state := domain.MapProviderStatus(decoded.Status)
	if state == domain.JobStateReady {
		sample := ""
		if decoded.Result != nil {
			sample = decoded.Result.Sample
		}
		return domain.ReadyStatus(sample, raw), nil
	}
	return domain.NewStatus(state, raw), nil
}

// Download fetches a finished sample. Sample URLs are signed and need no key.
func (c *Client) Download(ctx context.Context, artifactURL string) ([]byte, error) {
	return c.fetcher.Download(ctx, artifactURL)
}

func (c *Client) request(ctx context.Context) *resty.Request {
	return c.http.R().
		SetContext(ctx).
		SetHeader("x-key", c.apiKey).
		SetHeader("Accept", "application/json")
}
