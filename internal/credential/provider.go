package credential

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	gosync "sync"

	"golang.org/x/oauth2"

	"github.com/nhle/mailbox-monitor/internal/model"
	"github.com/nhle/mailbox-monitor/internal/source"
)

// Provider produces bearer tokens for the single configured account. It
// prefers a cached or refreshed token and falls back to the resource-owner
// password grant. Acquisition is serialized so concurrent callers never
// race each other to the identity provider.
type Provider struct {
	oauth      *oauth2.Config
	username   string
	password   string
	cache      TokenCache
	httpClient *http.Client
	logger     *slog.Logger

	mu gosync.Mutex
}

// Option configures a Provider.
type Option func(*Provider)

// WithHTTPClient sets the client used for token requests.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Provider) {
		p.logger = l
	}
}

// NewProvider creates a Provider for cfg. Both grant paths request
// cfg.Scopes.
func NewProvider(cfg *model.Config, cache TokenCache, opts ...Option) *Provider {
	p := &Provider{
		oauth: &oauth2.Config{
			ClientID: cfg.ClientID,
			Endpoint: oauth2.Endpoint{
				TokenURL:  cfg.TokenURL(),
				AuthStyle: oauth2.AuthStyleInParams,
			},
			Scopes: cfg.Scopes,
		},
		username: cfg.Username,
		password: cfg.Password,
		cache:    cache,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Acquire returns an access token for the configured account. Failures
// are returned as *source.AuthError.
func (p *Provider) Acquire(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	}

	tok, err := p.silent(ctx)
	if err != nil {
		p.logger.DebugContext(ctx, "silent token acquisition failed",
			slog.String("username", p.username),
			slog.String("error", err.Error()))
	}

	if tok == nil {
		tok, err = p.oauth.PasswordCredentialsToken(ctx, p.username, p.password)
		if err != nil {
			return "", toAuthError(err)
		}
		p.logger.DebugContext(ctx, "token acquired by password grant",
			slog.String("username", p.username))
	}

	if tok.AccessToken == "" {
		return "", &source.AuthError{
			Code:        "missing_access_token",
			Description: "token response did not contain an access token",
		}
	}

	if err := p.cache.Store(p.username, tok); err != nil {
		p.logger.WarnContext(ctx, "caching token failed",
			slog.String("error", err.Error()))
	}

	return tok.AccessToken, nil
}

// Forget drops the cached token so the next Acquire uses the password grant.
func (p *Provider) Forget() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.cache.Remove(p.username)
}

// silent returns a still-valid cached token, or refreshes an expired one
// that carries a refresh token. It returns nil when no cached account
// exists for the username.
func (p *Provider) silent(ctx context.Context) (*oauth2.Token, error) {
	cached, ok, err := p.cache.Lookup(p.username)
	if err != nil {
		return nil, err
	}
	if !ok || cached == nil {
		return nil, nil
	}
	if cached.Valid() {
		return cached, nil
	}
	if cached.RefreshToken == "" {
		return nil, nil
	}

	refreshed, err := p.oauth.TokenSource(ctx, cached).Token()
	if err != nil {
		return nil, err
	}
	p.logger.DebugContext(ctx, "token refreshed silently",
		slog.String("username", p.username))
	return refreshed, nil
}

// providerError is the error payload of the token endpoint.
type providerError struct {
	Error         string `json:"error"`
	Description   string `json:"error_description"`
	CorrelationID string `json:"correlation_id"`
}

func toAuthError(err error) *source.AuthError {
	var re *oauth2.RetrieveError
	if !errors.As(err, &re) {
		return &source.AuthError{Code: "token_request_failed", Err: err}
	}

	authErr := &source.AuthError{
		Code:        re.ErrorCode,
		Description: re.ErrorDescription,
		Err:         err,
	}

	var payload providerError
	if json.Unmarshal(re.Body, &payload) == nil {
		authErr.CorrelationID = payload.CorrelationID
		if authErr.Code == "" {
			authErr.Code = payload.Error
		}
		if authErr.Description == "" {
			authErr.Description = payload.Description
		}
	}
	if authErr.Code == "" && re.Response != nil {
		authErr.Code = re.Response.Status
	}
	return authErr
}
