package coordinator

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"github.com/vpnda/statement-relay/pkg/bank"
	"github.com/vpnda/statement-relay/pkg/protocol"
)

// maxProxyBody caps how much of a proxied response is read into memory.
const maxProxyBody = 64 << 20

var binaryContentTypes = []string{"application/pdf", "application/octet-stream"}

// FetchProxy performs requests on behalf of adapters that cannot reach an origin
// from their page.
type FetchProxy struct {
	client       *http.Client
	allowedHosts []string
}

// NewFetchProxy returns a proxy. An empty allowlist allows every host.
func NewFetchProxy(client *http.Client, allowedHosts []string) *FetchProxy {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &FetchProxy{
		client:       client,
		allowedHosts: lo.Map(allowedHosts, func(h string, _ int) string { return strings.ToLower(h) }),
	}
}

func (p *FetchProxy) allowed(host string) bool {
	if len(p.allowedHosts) == 0 {
		return true
	}
	host = strings.ToLower(host)
	return lo.ContainsBy(p.allowedHosts, func(h string) bool {
		return host == h || strings.HasSuffix(host, "."+h)
	})
}

// RequestFetch implements bank.Fetcher.
func (p *FetchProxy) RequestFetch(ctx context.Context, rawURL string, options *bank.FetchOptions) (*bank.FetchResult, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid fetch url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("fetch url scheme %q is not allowed", u.Scheme)
	}
	if !p.allowed(u.Hostname()) {
		return nil, fmt.Errorf("fetch host %s is not allowed", u.Hostname())
	}

	if options == nil {
		options = &bank.FetchOptions{}
	}
	method := strings.ToUpper(lo.CoalesceOrEmpty(options.Method, http.MethodGet))

	var body io.Reader
	if options.Body != "" {
		body = strings.NewReader(options.Body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for key, value := range options.Headers {
		req.Header.Set(key, value)
	}
	if options.Credentials == "omit" {
		req.Header.Del("Cookie")
		req.Header.Del("Authorization")
	}

	log.Debug().Str("method", method).Str("host", u.Host).Str("path", u.Path).Msg("proxying fetch")
	res, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", bank.ErrUpstream, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxProxyBody))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response body: %s", bank.ErrUpstream, err)
	}

	result := &bank.FetchResult{
		OK:         res.StatusCode >= 200 && res.StatusCode < 300,
		Status:     res.StatusCode,
		StatusText: http.StatusText(res.StatusCode),
		Headers:    make(map[string]string, len(res.Header)),
		Encoding:   bank.EncodingText,
	}
	for key, values := range res.Header {
		result.Headers[strings.ToLower(key)] = strings.Join(values, ", ")
	}

	if isBinary(res.Header.Get("Content-Type")) {
		result.Body = protocol.EncodeBinary(raw)
		result.Encoding = bank.EncodingBase64
	} else {
		result.Body = string(raw)
	}
	return result, nil
}

func isBinary(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return lo.Contains(binaryContentTypes, mediaType)
}

var _ bank.Fetcher = (*FetchProxy)(nil)
