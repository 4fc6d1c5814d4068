package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Sternrassler/reqkit/pkg/transport"
	"github.com/spf13/viper"
)

// envKeyReplacer maps "redis.url" to REQKIT_REDIS_URL and "rate-limit" to REQKIT_RATE_LIMIT.
var envKeyReplacer = strings.NewReplacer(".", "_", "-", "_")

// credentialsConfig is the "credentials" section of the config file:
//
//	credentials:
//	  githubApi:
//	    bearer: ghp_xxx
//	  airtable:
//	    header: X-API-Key
//	    key: keyxxx
//	  linear:
//	    clientId: id
//	    clientSecret: secret
//	    tokenUrl: https://api.linear.app/oauth/token
//	    scopes: [read]
type credentialsConfig map[string]credentialConfig

type credentialConfig struct {
	Bearer       string   `mapstructure:"bearer"`
	Header       string   `mapstructure:"header"`
	Key          string   `mapstructure:"key"`
	ClientID     string   `mapstructure:"clientId"`
	ClientSecret string   `mapstructure:"clientSecret"`
	TokenURL     string   `mapstructure:"tokenUrl"`
	Scopes       []string `mapstructure:"scopes"`
}

// authenticator converts one credential entry.
func (c credentialConfig) authenticator(ctx context.Context) (transport.Authenticator, error) {
	switch {
	case c.Bearer != "":
		return transport.BearerToken(c.Bearer), nil
	case c.Header != "" && c.Key != "":
		return transport.APIKeyHeader{Header: c.Header, Key: c.Key}, nil
	case c.ClientID != "" && c.TokenURL != "":
		return transport.ClientCredentials(ctx, c.ClientID, c.ClientSecret, c.TokenURL, c.Scopes...), nil
	default:
		return nil, fmt.Errorf("credential needs bearer, header/key or clientId/tokenUrl")
	}
}

// transportConfig builds the HTTP executor configuration from viper.
func transportConfig(ctx context.Context) (transport.Config, error) {
	cfg := transport.DefaultConfig()
	if timeout := viper.GetDuration("http.timeout"); timeout > 0 {
		cfg.Timeout = timeout
	}
	if ua := viper.GetString("http.user-agent"); ua != "" {
		cfg.UserAgent = ua
	}
	cfg.RequestsPerSecond = viper.GetFloat64("http.requests-per-second")
	cfg.Burst = viper.GetInt("http.burst")

	var creds credentialsConfig
	if err := viper.UnmarshalKey("credentials", &creds); err != nil {
		return cfg, fmt.Errorf("parse credentials: %w", err)
	}
	cfg.Credentials = make(map[string]transport.Authenticator, len(creds)+1)
	for name, c := range creds {
		auth, err := c.authenticator(ctx)
		if err != nil {
			return cfg, fmt.Errorf("credential %q: %w", name, err)
		}
		cfg.Credentials[name] = auth
	}
	if token := viper.GetString("token"); token != "" {
		cfg.Credentials[defaultCredential] = transport.BearerToken(token)
	}

	return cfg, nil
}

// defaultCredential is the credential type registered for --token / REQKIT_TOKEN.
const defaultCredential = "default"

const defaultShutdownTimeout = 10 * time.Second

// maxFetchRequestBytes caps the body of POST /v1/fetch.
const maxFetchRequestBytes = 1 << 20

// rateLimitStaleAfter marks scopes without a recent 429 in /v1/ratelimit.
const rateLimitStaleAfter = 15 * time.Minute
