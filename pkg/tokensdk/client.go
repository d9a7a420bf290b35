package tokensdk

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrNoEndpoint is returned by resolvers that currently know no token
// service instance.
var ErrNoEndpoint = errors.New("tokensdk: no token service endpoint")

// Resolver picks the base URL of a token service instance for one call.
// pkg/balancer implements it on top of registry discovery.
type Resolver interface {
	Resolve() (*url.URL, error)
}

// StaticResolver always resolves to the same base URL.
type StaticResolver struct {
	URL *url.URL
}

func (s StaticResolver) Resolve() (*url.URL, error) {
	if s.URL == nil {
		return nil, ErrNoEndpoint
	}
	return s.URL, nil
}

// Client talks to the token service over HTTP+JSON. It is safe for
// concurrent use. Calls carry no retry logic; put a deadline on ctx.
type Client struct {
	Resolver   Resolver
	HTTPClient *http.Client
}

// NewClient creates a client for a fixed base URL such as
// "http://127.0.0.1:3000".
func NewClient(baseURL string) (*Client, error) {
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.New("tokensdk: base url needs a scheme and host")
	}
	return NewClientWithResolver(StaticResolver{URL: u}), nil
}

// NewClientWithResolver creates a client that asks r for an endpoint on
// every call.
func NewClientWithResolver(r Resolver) *Client {
	return &Client{
		Resolver: r,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}
