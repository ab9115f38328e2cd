package utils

import (
	"net/http"
	"net/http/httputil"

	"github.com/rs/zerolog/log"
)

// redactedHeaders never reach the log
var redactedHeaders = []string{"Cookie", "Set-Cookie", "Authorization"}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (fn roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return fn(r)
}

func DebugRoundTripper() http.RoundTripper {
	return DebugRoundTripperWithUnderlying(http.DefaultTransport)
}

// DebugRoundTripperWithUnderlying logs every request and response at debug
// level with credentials removed.
func DebugRoundTripperWithUnderlying(u http.RoundTripper) http.RoundTripper {
	if u == nil {
		u = http.DefaultTransport
	}
	return roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		logged := r.Clone(r.Context())
		redact(logged.Header)
		d, _ := httputil.DumpRequestOut(logged, false)
		log.Debug().Str("dump", string(d)).Msg("http request")

		res, err := u.RoundTrip(r)
		if err != nil {
			log.Debug().Err(err).Str("url", r.URL.Redacted()).Msg("http request failed")
			return res, err
		}

		saved := res.Header
		res.Header = saved.Clone()
		redact(res.Header)
		d, _ = httputil.DumpResponse(res, false)
		res.Header = saved
		log.Debug().Str("dump", string(d)).Msg("http response")
		return res, nil
	})
}

func redact(h http.Header) {
	for _, name := range redactedHeaders {
		if h.Get(name) != "" {
			h.Set(name, "REDACTED")
		}
	}
}
