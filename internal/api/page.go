package api

import (
	"bytes"
	"context"
	"crypto/rand"
	"embed"
	"encoding/base64"
	"html/template"
	"net/http"
	"strings"

	"quickmail/internal/auth"
	"quickmail/internal/redirect"
)

//go:embed templates/*.html
var templatesFS embed.FS

var templates = template.Must(template.ParseFS(templatesFS, "templates/*.html"))

var reasonMessages = map[redirect.Reason]string{
	redirect.ReasonSilentFailed:   "Authorize access to your mail to continue.",
	redirect.ReasonDenied:         "Access was not granted. Authorize to try again.",
	redirect.ReasonUserinfoFailed: "Could not read your account's email address. Authorize to try again.",
}

// pageUI renders a Flow's side effects into one HTTP response.
type pageUI struct {
	h      *AuthHandler
	w      http.ResponseWriter
	r      *http.Request
	flowID string
}

var _ redirect.UI = (*pageUI)(nil)

// Authorize redirects the browser to the provider.
func (u *pageUI) Authorize(_ context.Context, immediate bool) error {
	state, err := generateState()
	if err != nil {
		return err
	}
	verifier := auth.GenerateVerifier()
	u.h.flows.SavePending(state, PendingAuth{
		FlowID:       u.flowID,
		CodeVerifier: verifier,
		Immediate:    immediate,
	})
	http.Redirect(u.w, u.r, u.h.client.GetAuthURL(state, verifier, immediate), http.StatusFound)
	return nil
}

// ShowAuthorize renders the page with the authorize control visible.
func (u *pageUI) ShowAuthorize(_ context.Context, reason redirect.Reason) error {
	return render(u.w, http.StatusOK, "authorize.html", map[string]any{
		"Reason":   reason.String(),
		"Message":  reasonMessages[reason],
		"LoginURL": "/auth/login",
	})
}

// Submit renders a page that posts form as soon as it loads.
func (u *pageUI) Submit(_ context.Context, form *redirect.Form) error {
	var b strings.Builder
	if err := form.Render(&b); err != nil {
		return err
	}
	// the page carries an access token
	u.w.Header().Set("Cache-Control", "no-store")
	return render(u.w, http.StatusOK, "redirect.html", map[string]any{
		// Form.Render escapes every name and value.
		"Form": template.HTML(b.String()),
	})
}

func render(w http.ResponseWriter, status int, name string, data any) error {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}

func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
