package oauthutil

import (
	"net/http"
	"strconv"
	"time"

	"github.com/rkhwaja/fs.onedrivefs/fs"
)

// defaultRetryAfter is used when a 429 arrives without a Retry-After
// header.
const defaultRetryAfter = 5 * time.Second

// ThrottlingTransport is an http.RoundTripper which re-sends requests
// rejected with 429 Too Many Requests after the delay the server asks
// for in the Retry-After header.
//
// Only requests whose body can be rewound (no body, or GetBody set)
// are retried; anything else is returned as-is.
type ThrottlingTransport struct {
	base http.RoundTripper
}

// NewThrottlingTransport wraps base with throttling handling.
func NewThrottlingTransport(base http.RoundTripper) *ThrottlingTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &ThrottlingTransport{base: base}
}

// RoundTrip implements http.RoundTripper.
func (t *ThrottlingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	for {
		resp, err := t.base.RoundTrip(req)
		if err != nil {
			return resp, err
		}
		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}
		if req.Body != nil && req.GetBody == nil {
			return resp, nil
		}
		delay := defaultRetryAfter
		if retryAfter, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
			delay = time.Duration(retryAfter) * time.Second
		}
		fs.Infof(nil, "sleeping for %v after throttling response", delay)
		resp.Body.Close()
		select {
		case <-time.After(delay):
		case <-req.Context().Done():
			return nil, req.Context().Err()
		}
		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, err
			}
			req.Body = body
		}
	}
}
