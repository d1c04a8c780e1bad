// Package fetch downloads provider artifacts. It understands plain http(s)
// URLs and inline data: URLs, which synchronous providers use to hand back
// bytes through the same job protocol.
package fetch

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"imagestudio/internal/domain"
	"imagestudio/internal/infra"
)

const dataURLPrefix = "data:"

// NewRestyClient wraps httpClient (or a fresh one) in a resty client with the
// given per-call timeout. Retries stay disabled; the poller owns retry policy.
func NewRestyClient(httpClient *http.Client, timeout time.Duration) *resty.Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	var client *resty.Client
	if httpClient != nil {
		client = resty.NewWithClient(httpClient)
	} else {
		client = resty.New()
	}
	return client.SetTimeout(timeout).SetRetryCount(0)
}

// Fetcher performs artifact downloads.
type Fetcher struct {
	http   *resty.Client
	logger *infra.Logger
}

// New constructs a Fetcher. A nil client gets a default resty client.
func New(client *resty.Client, logger *infra.Logger) *Fetcher {
	if client == nil {
		client = NewRestyClient(nil, 0)
	}
	return &Fetcher{http: client, logger: infra.LoggerOrDiscard(logger)}
}

// Download returns the bytes behind rawURL. Every failure is a DownloadError.
func (f *Fetcher) Download(ctx context.Context, rawURL string) ([]byte, error) {
	rawURL = strings.TrimSpace(rawURL)
	if strings.HasPrefix(rawURL, dataURLPrefix) {
		data, _, err := DecodeDataURL(rawURL)
		if err != nil {
			return nil, domain.NewError(domain.CodeDownload, "decode inline artifact", err)
		}
		return data, nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, domain.Errorf(domain.CodeDownload, "invalid artifact url %q", rawURL)
	}
	resp, err := f.http.R().SetContext(ctx).Get(parsed.String())
	if err != nil {
		return nil, domain.NewError(domain.CodeDownload, "download artifact", err)
	}
	if resp.IsError() || resp.StatusCode() >= 300 {
		return nil, domain.Errorf(domain.CodeDownload, "download status %d", resp.StatusCode())
	}
	body := resp.Body()
	if len(body) == 0 {
		return nil, domain.Errorf(domain.CodeDownload, "empty artifact body")
	}
	f.logger.Debug().
		Str("host", parsed.Host).
		Int("bytes", len(body)).
		Msg("fetch: downloaded artifact")
	return body, nil
}

// DataURL encodes data as a base64 data: URL.
func DataURL(mime string, data []byte) string {
	if mime == "" {
		mime = "application/octet-stream"
	}
	return dataURLPrefix + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// IsDataURL reports whether raw is an inline data: URL.
func IsDataURL(raw string) bool {
	return strings.HasPrefix(strings.TrimSpace(raw), dataURLPrefix)
}

// DecodeDataURL parses a base64 data: URL into its bytes and media type.
func DecodeDataURL(raw string) ([]byte, string, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(raw), dataURLPrefix)
	if !ok {
		return nil, "", errors.New("fetch: not a data url")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", errors.New("fetch: malformed data url")
	}
	mime, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return nil, "", errors.New("fetch: only base64 data urls are supported")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("fetch: decode base64: %w", err)
	}
	if len(data) == 0 {
		return nil, "", errors.New("fetch: empty data url")
	}
	return data, mime, nil
}
