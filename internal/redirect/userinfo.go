package redirect

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// ErrNoEmail is returned when the userinfo response carries no email.
var ErrNoEmail = errors.New("userinfo response has no email")

// UserinfoClient reads the email address from Google's legacy userinfo
// endpoint: GET <endpoint>?alt=json&oauth_token=<token> -> {"data":{"email":...}}.
type UserinfoClient struct {
	endpoint   string
	httpClient *http.Client
}

// NewUserinfoClient creates a client for endpoint. A nil httpClient uses one
// with a 10s timeout.
func NewUserinfoClient(endpoint string, httpClient *http.Client) *UserinfoClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &UserinfoClient{endpoint: endpoint, httpClient: httpClient}
}

type userinfoResponse struct {
	Data struct {
		Email string `json:"email"`
	} `json:"data"`
}

// Email implements EmailFetcher.
func (c *UserinfoClient) Email(ctx context.Context, accessToken string) (string, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return "", fmt.Errorf("parse userinfo endpoint: %w", err)
	}
	q := u.Query()
	q.Set("alt", "json")
	q.Set("oauth_token", accessToken)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("userinfo request failed: %s: %s", resp.Status, body)
	}

	var payload userinfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode userinfo: %w", err)
	}
	if payload.Data.Email == "" {
		return "", ErrNoEmail
	}
	return payload.Data.Email, nil
}

// EmailFunc adapts a function to EmailFetcher.
type EmailFunc func(ctx context.Context, accessToken string) (string, error)

// Email implements EmailFetcher.
func (f EmailFunc) Email(ctx context.Context, accessToken string) (string, error) {
	return f(ctx, accessToken)
}
