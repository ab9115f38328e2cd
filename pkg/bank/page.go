package bank

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/cookiejar"
	"net/url"
)

// Page is the ambient context of a tab that hosts a bank website.
type Page interface {
	URL() *url.URL
	Cookie(name string) (string, bool)
	LocalStorage(key string) (string, bool)
	SessionStorage(key string) (string, bool)
	// HTTPClient sends requests the way the page's own scripts would, with the
	// page cookies attached.
	HTTPClient() *http.Client
	// Proxy reaches origins the page cannot call directly. Nil when no
	// coordinator is available.
	Proxy() Fetcher
}

// FetchOptions mirrors the subset of fetch() options the proxy understands.
type FetchOptions struct {
	Method      string            `json:"method,omitempty" yaml:"method"`
	Headers     map[string]string `json:"headers,omitempty" yaml:"headers"`
	Credentials string            `json:"credentials,omitempty" yaml:"credentials"`
	Body        string            `json:"body,omitempty" yaml:"body"`
}

// FetchResult is what the proxy returns. Body is base64 when Encoding is
// EncodingBase64.
type FetchResult struct {
	OK         bool              `json:"ok"`
	Status     int               `json:"status"`
	StatusText string            `json:"statusText"`
	Headers    map[string]string `json:"headers"`
	Body       string            `json:"body"`
	Encoding   string            `json:"encoding"`
}

// Bytes returns the raw response body.
func (r *FetchResult) Bytes() ([]byte, error) {
	if r.Encoding == EncodingBase64 {
		return base64.StdEncoding.DecodeString(r.Body)
	}
	return []byte(r.Body), nil
}

const (
	EncodingText   = "text"
	EncodingBase64 = "base64"
)

// Fetcher performs a request from a context that is not bound by the page origin.
type Fetcher interface {
	RequestFetch(ctx context.Context, url string, options *FetchOptions) (*FetchResult, error)
}

// StaticPage is a Page built from explicit values.
type StaticPage struct {
	PageURL      *url.URL
	Cookies      map[string]string
	Local        map[string]string
	Session      map[string]string
	Client       *http.Client
	ProxyFetcher Fetcher
}

// NewStaticPage builds a page for rawURL whose HTTP client carries cookies.
func NewStaticPage(rawURL string, cookies map[string]string) (*StaticPage, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	jar, _ := cookiejar.New(nil)
	for name, value := range cookies {
		jar.SetCookies(u, []*http.Cookie{{Name: name, Value: value, Path: "/"}})
	}
	if cookies == nil {
		cookies = map[string]string{}
	}
	return &StaticPage{
		PageURL: u,
		Cookies: cookies,
		Local:   map[string]string{},
		Session: map[string]string{},
		Client:  &http.Client{Jar: jar},
	}, nil
}

func (p *StaticPage) URL() *url.URL {
	return p.PageURL
}

func (p *StaticPage) Cookie(name string) (string, bool) {
	v, ok := p.Cookies[name]
	return v, ok && v != ""
}

func (p *StaticPage) LocalStorage(key string) (string, bool) {
	v, ok := p.Local[key]
	return v, ok && v != ""
}

func (p *StaticPage) SessionStorage(key string) (string, bool) {
	v, ok := p.Session[key]
	return v, ok && v != ""
}

func (p *StaticPage) HTTPClient() *http.Client {
	if p.Client == nil {
		return http.DefaultClient
	}
	return p.Client
}

func (p *StaticPage) Proxy() Fetcher {
	return p.ProxyFetcher
}

var _ Page = (*StaticPage)(nil)
