package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// StaticTokenProvider sends a pre-configured API key as a bearer token.
type StaticTokenProvider struct {
	token string
}

// NewStaticTokenProvider creates a static provider. The token must be
// non-empty and fit on a single header line.
func NewStaticTokenProvider(token string) (*StaticTokenProvider, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.New("auth: token must not be empty")
	}
	if strings.ContainsAny(token, "\r\n") {
		return nil, errors.New("auth: token must not contain line breaks")
	}
	return &StaticTokenProvider{token: token}, nil
}

// Token returns the static token immediately without any network calls.
func (p *StaticTokenProvider) Token(ctx context.Context) (string, error) {
	return p.token, nil
}

// InjectHeader sets "Authorization: Bearer <token>", replacing any value
// already present.
func (p *StaticTokenProvider) InjectHeader(ctx context.Context, req *http.Request) error {
	req.Header.Set("Authorization", "Bearer "+p.token)
	return nil
}

// Close is a no-op for static token providers.
func (p *StaticTokenProvider) Close() error {
	return nil
}
