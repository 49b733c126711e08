// Package oauthutil provides the OAuth2 session plumbing used by
// backends.  Token acquisition is the application's business; this
// package only keeps an already obtained token fresh and hands the
// refreshed token back through a save callback.
package oauthutil

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

// SaveTokenFn is called with the new token whenever the token is
// refreshed.  Applications use it to persist the refresh token.
type SaveTokenFn func(token *oauth2.Token)

// TokenSource stores updated tokens in the config file
type TokenSource struct {
	mu          sync.Mutex
	token       *oauth2.Token
	tokenSource oauth2.TokenSource
	ctx         context.Context
	config      *oauth2.Config
	save        SaveTokenFn
}

// NewTokenSource wraps config and token into an oauth2.TokenSource
// which calls save whenever the underlying source refreshes the
// token.
func NewTokenSource(ctx context.Context, config *oauth2.Config, token *oauth2.Token, save SaveTokenFn) *TokenSource {
	return &TokenSource{
		token:  token,
		ctx:    ctx,
		config: config,
		save:   save,
	}
}

// Token returns a token or an error.  Token must be safe for
// concurrent use by multiple goroutines.  The returned Token must not
// be modified.
func (ts *TokenSource) Token() (*oauth2.Token, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if ts.token == nil {
		return nil, errors.New("no token supplied")
	}
	if ts.tokenSource == nil {
		ts.tokenSource = ts.config.TokenSource(ts.ctx, ts.token)
	}
	token, err := ts.tokenSource.Token()
	if err != nil {
		return nil, errors.Wrap(err, "couldn't fetch token")
	}
	changed := token.AccessToken != ts.token.AccessToken ||
		token.RefreshToken != ts.token.RefreshToken ||
		!token.Expiry.Equal(ts.token.Expiry)
	ts.token = token
	if changed && ts.save != nil {
		ts.save(token)
	}
	return token, nil
}

// Invalidate invalidates the token so that a refresh happens on the
// next use.
func (ts *TokenSource) Invalidate() {
	ts.mu.Lock()
	if ts.token != nil {
		ts.token.Expiry = time.Now().Add(-time.Hour)
	}
	ts.tokenSource = nil
	ts.mu.Unlock()
}

var _ oauth2.TokenSource = (*TokenSource)(nil)

// Context returns a context with our HTTP Client baked in for oauth2
func Context(ctx context.Context, client *http.Client) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, client)
}

// NewClientWithBaseClient makes an authenticated *http.Client from an
// oauth config, an existing token and a save callback, using
// baseClient for the underlying transport.
func NewClientWithBaseClient(ctx context.Context, config *oauth2.Config, token *oauth2.Token, save SaveTokenFn, baseClient *http.Client) (*http.Client, *TokenSource) {
	ts := NewTokenSource(Context(ctx, baseClient), config, token, save)
	return &http.Client{
		Transport: &oauth2.Transport{
			Source: ts,
			Base:   baseClient.Transport,
		},
	}, ts
}

// NewClient makes an authenticated *http.Client from an oauth config,
// an existing token and a save callback.  The base transport retries
// throttled requests after the server advised delay.
func NewClient(ctx context.Context, config *oauth2.Config, token *oauth2.Token, save SaveTokenFn) (*http.Client, *TokenSource) {
	base := &http.Client{
		Transport: NewThrottlingTransport(http.DefaultTransport),
	}
	return NewClientWithBaseClient(ctx, config, token, save, base)
}
