package types

import (
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Request represents a product page to be fetched.
type Request struct {
	// URL is the target URL to fetch.
	URL *url.URL

	// Headers are per-request headers layered over the fetcher's header set.
	Headers http.Header

	// Index is the position of this URL in the caller's input list.
	Index int

	// Timeout overrides the global request timeout for this request.
	Timeout time.Duration
}

// NewRequest creates a GET request for an absolute http(s) URL.
func NewRequest(rawURL string) (*Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidURL, rawURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w %q: scheme must be http or https", ErrInvalidURL, rawURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w %q: missing host", ErrInvalidURL, rawURL)
	}

	return &Request{
		URL:     u,
		Headers: make(http.Header),
	}, nil
}

// URLString returns the string representation of the request URL.
func (r *Request) URLString() string {
	if r.URL == nil {
		return ""
	}
	return r.URL.String()
}
