package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"quickmail/internal/conf"

	"golang.org/x/oauth2"
)

func testAuthConf(userinfoURL string) *conf.Auth {
	return &conf.Auth{
		ClientID:    "client-1",
		Scopes:      []string{conf.ScopeMail, conf.ScopeUserinfoEmail},
		UserinfoURL: userinfoURL,
	}
}

func TestGetAuthURL(t *testing.T) {
	c := NewClientWithEndpoint(testAuthConf(""), "http://localhost/auth/callback", oauth2.Endpoint{
		AuthURL:  "https://idp.example/auth",
		TokenURL: "https://idp.example/token",
	})
	verifier := GenerateVerifier()

	for _, immediate := range []bool{true, false} {
		u, err := url.Parse(c.GetAuthURL("st", verifier, immediate))
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		q := u.Query()
		if q.Get("client_id") != "client-1" {
			t.Errorf("client_id = %q", q.Get("client_id"))
		}
		if q.Get("scope") != conf.ScopeMail+" "+conf.ScopeUserinfoEmail {
			t.Errorf("scope = %q", q.Get("scope"))
		}
		if q.Get("state") != "st" {
			t.Errorf("state = %q", q.Get("state"))
		}
		if q.Get("code_challenge_method") != "S256" || q.Get("code_challenge") != oauth2.S256ChallengeFromVerifier(verifier) {
			t.Errorf("pkce params = %q %q", q.Get("code_challenge_method"), q.Get("code_challenge"))
		}
		if q.Get("access_type") != "offline" {
			t.Errorf("access_type = %q", q.Get("access_type"))
		}
		if got := q.Get("prompt") == "none"; got != immediate {
			t.Errorf("immediate=%v prompt=%q", immediate, q.Get("prompt"))
		}
	}
}

func TestExchangeCodeSendsVerifier(t *testing.T) {
	verifier := GenerateVerifier()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm: %v", err)
		}
		if r.PostForm.Get("code") != "the-code" {
			t.Errorf("code = %q", r.PostForm.Get("code"))
		}
		if r.PostForm.Get("code_verifier") != verifier {
			t.Errorf("code_verifier = %q", r.PostForm.Get("code_verifier"))
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "T",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}))
	defer srv.Close()

	c := NewClientWithEndpoint(testAuthConf(""), "http://localhost/cb", oauth2.Endpoint{
		AuthURL:   srv.URL + "/auth",
		TokenURL:  srv.URL + "/token",
		AuthStyle: oauth2.AuthStyleInParams,
	}).WithHTTPClient(srv.Client())

	tok, err := c.ExchangeCode(context.Background(), "the-code", verifier)
	if err != nil {
		t.Fatalf("ExchangeCode: %v", err)
	}
	if tok.AccessToken != "T" {
		t.Errorf("access token = %q", tok.AccessToken)
	}
}

func TestEmailFetcherUsesLegacyEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"email":"legacy@example.com"}}`))
	}))
	defer srv.Close()

	c := NewClientWithEndpoint(testAuthConf(srv.URL), "", oauth2.Endpoint{}).WithHTTPClient(srv.Client())
	email, err := c.EmailFetcher().Email(context.Background(), "T")
	if err != nil {
		t.Fatalf("Email: %v", err)
	}
	if email != "legacy@example.com" {
		t.Errorf("email = %q", email)
	}
}

func TestRefreshToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm: %v", err)
		}
		if r.PostForm.Get("grant_type") != "refresh_token" || r.PostForm.Get("refresh_token") != "R" {
			t.Errorf("form = %v", r.PostForm)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "T2",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}))
	defer srv.Close()

	c := NewClientWithEndpoint(testAuthConf(""), "http://localhost/cb", oauth2.Endpoint{
		TokenURL:  srv.URL + "/token",
		AuthStyle: oauth2.AuthStyleInParams,
	}).WithHTTPClient(srv.Client())

	tok, err := c.RefreshToken(context.Background(), "R")
	if err != nil {
		t.Fatalf("RefreshToken: %v", err)
	}
	if tok.AccessToken != "T2" {
		t.Errorf("access token = %q", tok.AccessToken)
	}
	if tok.Expiry.Before(time.Now().Add(30 * time.Minute)) {
		t.Errorf("expiry = %v", tok.Expiry)
	}
}
