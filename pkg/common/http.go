package common

import (
	_ "embed"
	"net/http"
	"strings"
	"time"
)

//go:embed VERSION
var version string

// Version is the release version embedded at build time.
func Version() string {
	return strings.TrimSpace(version)
}

// UserAgent is sent by every outbound request made with HTTPClient.
func UserAgent() string {
	return "Gridcast/" + Version()
}

type userAgentTransport struct {
	transport http.RoundTripper
	userAgent string
}

// RoundTrip sets the User-Agent header on a clone of the request.
func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// RoundTrippers must not modify the caller's request
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.userAgent)
	return t.transport.RoundTrip(req)
}

// HTTPClient returns an http client with the Gridcast user-agent set.
func HTTPClient(timeout time.Duration) *http.Client {
	return WrapTransport(http.DefaultTransport, timeout)
}

// WrapTransport is HTTPClient over a custom transport, e.g. an httptest
// server's.
func WrapTransport(transport http.RoundTripper, timeout time.Duration) *http.Client {
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &http.Client{
		Transport: &userAgentTransport{
			transport: transport,
			userAgent: UserAgent(),
		},
		Timeout: timeout,
	}
}
