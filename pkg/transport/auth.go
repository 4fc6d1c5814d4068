package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// ErrUnknownCredential is returned by RequestWithAuthentication for a
// credential type with no registered Authenticator.
var ErrUnknownCredential = errors.New("unknown credential type")

// Authenticator decorates an outgoing request with credentials.
type Authenticator interface {
	Authenticate(ctx context.Context, req *http.Request) error
}

// AuthenticatorFunc adapts a function to Authenticator.
type AuthenticatorFunc func(ctx context.Context, req *http.Request) error

// Authenticate implements Authenticator.
func (f AuthenticatorFunc) Authenticate(ctx context.Context, req *http.Request) error {
	return f(ctx, req)
}

// BearerToken sets "Authorization: Bearer <token>".
type BearerToken string

// Authenticate implements Authenticator.
func (t BearerToken) Authenticate(_ context.Context, req *http.Request) error {
	if t == "" {
		return errors.New("bearer token is empty")
	}
	req.Header.Set("Authorization", "Bearer "+string(t))
	return nil
}

// APIKeyHeader sends a static key in a named header, e.g. "X-API-Key".
type APIKeyHeader struct {
	Header string
	Key    string
}

// Authenticate implements Authenticator.
func (a APIKeyHeader) Authenticate(_ context.Context, req *http.Request) error {
	if a.Header == "" || a.Key == "" {
		return errors.New("api key header and key are required")
	}
	req.Header.Set(a.Header, a.Key)
	return nil
}

// OAuth2Credentials authorizes requests with tokens from an oauth2.TokenSource.
// Token refresh is left to the source.
type OAuth2Credentials struct {
	Source oauth2.TokenSource
}

// Authenticate implements Authenticator.
func (o OAuth2Credentials) Authenticate(_ context.Context, req *http.Request) error {
	if o.Source == nil {
		return errors.New("oauth2 token source is nil")
	}
	token, err := o.Source.Token()
	if err != nil {
		return fmt.Errorf("acquire oauth2 token: %w", err)
	}
	token.SetAuthHeader(req)
	return nil
}

// ClientCredentials returns OAuth2Credentials for the client credentials flow.
// Tokens are cached and refreshed by the underlying source.
func ClientCredentials(ctx context.Context, clientID, clientSecret, tokenURL string, scopes ...string) OAuth2Credentials {
	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
		Scopes:       scopes,
	}
	return OAuth2Credentials{Source: cfg.TokenSource(ctx)}
}

// StaticToken returns OAuth2Credentials for an already issued access token.
func StaticToken(accessToken string) OAuth2Credentials {
	return OAuth2Credentials{Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})}
}
