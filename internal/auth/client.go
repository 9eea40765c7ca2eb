package auth

import (
	"context"
	"fmt"
	"net/http"

	"quickmail/internal/biz"
	"quickmail/internal/conf"
	"quickmail/internal/redirect"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

// Client wraps the OAuth2 configuration and, when an issuer is configured,
// the discovered OIDC provider.
type Client struct {
	provider     *oidc.Provider
	oauth2Config oauth2.Config
	userinfoURL  string
	httpClient   *http.Client
}

// NewClient creates a new OAuth client. With cfg.Issuer set, endpoints are
// discovered from .well-known/openid-configuration; otherwise Google's are used.
func NewClient(ctx context.Context, cfg *conf.Auth, redirectURL string) (*Client, error) {
	if cfg.Issuer == "" {
		return NewClientWithEndpoint(cfg, redirectURL, endpoints.Google), nil
	}

	provider, err := oidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}
	c := NewClientWithEndpoint(cfg, redirectURL, provider.Endpoint())
	c.provider = provider
	return c, nil
}

// NewClientWithEndpoint creates a client against fixed endpoints.
func NewClientWithEndpoint(cfg *conf.Auth, redirectURL string, endpoint oauth2.Endpoint) *Client {
	return &Client{
		oauth2Config: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     endpoint,
			Scopes:       cfg.Scopes,
		},
		userinfoURL: cfg.UserinfoURL,
	}
}

// WithHTTPClient makes token exchange and userinfo calls use hc.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

func (c *Client) context(ctx context.Context) context.Context {
	if c.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

// GetAuthURL returns the authorization URL with state and PKCE challenge.
// Immediate requests ask the provider not to show any UI (prompt=none).
func (c *Client) GetAuthURL(state, verifier string, immediate bool) string {
	opts := []oauth2.AuthCodeOption{
		oauth2.S256ChallengeOption(verifier),
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
	}
	if immediate {
		opts = append(opts, oauth2.SetAuthURLParam("prompt", "none"))
	}
	return c.oauth2Config.AuthCodeURL(state, opts...)
}

// ExchangeCode exchanges an authorization code for tokens using PKCE.
func (c *Client) ExchangeCode(ctx context.Context, code, verifier string) (*oauth2.Token, error) {
	return c.oauth2Config.Exchange(c.context(ctx), code, oauth2.VerifierOption(verifier))
}

// RefreshToken trades a refresh token for a new access token.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (biz.Token, error) {
	tok, err := c.oauth2Config.TokenSource(c.context(ctx), &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return biz.Token{}, fmt.Errorf("failed to refresh token: %w", err)
	}
	return biz.Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	}, nil
}

// EmailFetcher returns the userinfo reader for this client: the OIDC userinfo
// endpoint when discovered, the configured legacy endpoint otherwise.
func (c *Client) EmailFetcher() redirect.EmailFetcher {
	if c.provider != nil {
		return redirect.EmailFunc(c.oidcEmail)
	}
	return redirect.NewUserinfoClient(c.userinfoURL, c.httpClient)
}

func (c *Client) oidcEmail(ctx context.Context, accessToken string) (string, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
	info, err := c.provider.UserInfo(c.context(ctx), ts)
	if err != nil {
		return "", fmt.Errorf("failed to get userinfo: %w", err)
	}
	if info.Email == "" {
		return "", redirect.ErrNoEmail
	}
	return info.Email, nil
}

// GenerateVerifier returns a fresh PKCE code verifier.
func GenerateVerifier() string {
	return oauth2.GenerateVerifier()
}
