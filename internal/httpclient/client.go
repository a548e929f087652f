package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/cloudcostguard/estimate-load/internal/config"
)

// AuthProvider supplies authentication tokens and injects them into HTTP requests.
type AuthProvider interface {
	Token(ctx context.Context) (string, error)
	InjectHeader(ctx context.Context, req *http.Request) error
	Close() error
}

// HeaderInjector adds headers derived from the request context, such as
// trace propagation.
type HeaderInjector func(ctx context.Context, header http.Header)

const contentTypeJSON = "application/json"

type RequestBuilder struct {
	method       string
	target       string
	headers      http.Header
	authProvider AuthProvider
	injector     HeaderInjector
}

// NewRequestBuilder prepares POST requests to the configured estimate
// endpoint. Content-Type is always application/json.
func NewRequestBuilder(cfg *config.Config) (*RequestBuilder, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}

	if strings.TrimSpace(cfg.TargetURL) == "" {
		return nil, errors.New("target URL is required")
	}
	target, err := cfg.EndpointURL()
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	for key, value := range cfg.Headers {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" {
			return nil, fmt.Errorf("invalid header key %q", key)
		}
		if strings.ContainsAny(trimmedKey, "\r\n") {
			return nil, fmt.Errorf("invalid header key %q", key)
		}
		canonicalKey := http.CanonicalHeaderKey(trimmedKey)
		if canonicalKey == "" {
			return nil, fmt.Errorf("invalid header key %q", key)
		}

		if strings.ContainsAny(value, "\r\n") {
			return nil, fmt.Errorf("invalid header value for %s", canonicalKey)
		}

		headers.Set(canonicalKey, value)
	}
	headers.Set("Content-Type", contentTypeJSON)

	return &RequestBuilder{
		method:  http.MethodPost,
		target:  target,
		headers: headers,
	}, nil
}

// NewRequestBuilderWithAuth creates a RequestBuilder with an auth provider for automatic token injection.
func NewRequestBuilderWithAuth(cfg *config.Config, provider AuthProvider) (*RequestBuilder, error) {
	builder, err := NewRequestBuilder(cfg)
	if err != nil {
		return nil, err
	}
	builder.authProvider = provider
	return builder, nil
}

// WithHeaderInjector returns the builder with injector applied to every request.
func (b *RequestBuilder) WithHeaderInjector(injector HeaderInjector) *RequestBuilder {
	b.injector = injector
	return b
}

// Target is the fully resolved request URL.
func (b *RequestBuilder) Target() string {
	if b == nil {
		return ""
	}
	return b.target
}

// Build creates a request carrying body. The body is not copied; callers
// must not mutate it until the request completes.
func (b *RequestBuilder) Build(ctx context.Context, body []byte) (*http.Request, error) {
	if b == nil {
		return nil, errors.New("builder cannot be nil")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	source := NewBodySource(body)
	reader, err := source.NewReader()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, b.method, b.target, reader)
	if err != nil {
		_ = reader.Close()
		return nil, err
	}

	req.Header = b.headers.Clone()

	if length, ok := source.ContentLength(); ok {
		req.ContentLength = length
	}
	req.GetBody = source.NewReader

	if b.authProvider != nil {
		if err := b.authProvider.InjectHeader(ctx, req); err != nil {
			return nil, fmt.Errorf("auth provider inject header: %w", err)
		}
	}
	if b.injector != nil {
		b.injector(ctx, req.Header)
	}

	return req, nil
}

func NewClient(timeout time.Duration) *http.Client {
	if timeout < 0 {
		timeout = 0
	}

	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          256,
		MaxIdleConnsPerHost:   128,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
