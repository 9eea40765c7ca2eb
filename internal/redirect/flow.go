// Package redirect drives the mail authorization redirect.
//
// A Flow starts Unauthorized. Its only transition to Authorized happens when
// the identity provider returns a token and the userinfo endpoint returns the
// account's email: the Flow then hands a POST form carrying user and token to
// the UI exactly once. Any other outcome leaves the Flow Unauthorized with the
// authorize control visible.
package redirect

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// State is the state of a Flow.
type State int

const (
	Unauthorized State = iota
	Authorized
)

func (s State) String() string {
	switch s {
	case Unauthorized:
		return "unauthorized"
	case Authorized:
		return "authorized"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Reason says why the authorize control is shown.
type Reason int

const (
	// ReasonSilentFailed means immediate authorization needed user interaction.
	ReasonSilentFailed Reason = iota + 1
	// ReasonDenied means the user, or the provider, refused consent.
	ReasonDenied
	// ReasonUserinfoFailed means a token was granted but the email lookup failed.
	ReasonUserinfoFailed
)

func (r Reason) String() string {
	switch r {
	case ReasonSilentFailed:
		return "silent_failed"
	case ReasonDenied:
		return "denied"
	case ReasonUserinfoFailed:
		return "userinfo_failed"
	}
	return fmt.Sprintf("Reason(%d)", int(r))
}

// AuthResult is what the identity provider's callback delivers.
type AuthResult struct {
	// Error is the provider's error code, empty on success.
	Error       string
	AccessToken string
	// RefreshToken and Expiry are kept with the session; the page never sees them.
	RefreshToken string
	Expiry       time.Time
	// Immediate records whether the request that produced this result was silent.
	Immediate bool
}

// OK reports whether the result carries a usable token.
func (r AuthResult) OK() bool {
	return r.Error == "" && r.AccessToken != ""
}

// UI receives every side effect of a Flow.
type UI interface {
	// Authorize starts an authorization request with the provider.
	Authorize(ctx context.Context, immediate bool) error
	// ShowAuthorize reveals the authorize control.
	ShowAuthorize(ctx context.Context, reason Reason) error
	// Submit posts form, navigating away from the page.
	Submit(ctx context.Context, form *Form) error
}

// EmailFetcher reads the authorized account's email address.
type EmailFetcher interface {
	Email(ctx context.Context, accessToken string) (string, error)
}

// Field names of the redirect payload.
const (
	FieldUser  = "user"
	FieldToken = "token"
)

var (
	// ErrSubmitted is returned by every call on a Flow that already submitted.
	ErrSubmitted = errors.New("redirect already submitted")
)

// Flow is the per-page authorization controller.
type Flow struct {
	emails EmailFetcher

	mu        sync.Mutex
	state     State
	submitted *Form
	granted   AuthResult
}

// NewFlow creates an Unauthorized flow.
func NewFlow(emails EmailFetcher) *Flow {
	return &Flow{emails: emails}
}

// State returns the current state.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Submitted returns the form handed to the UI, or nil while Unauthorized.
func (f *Flow) Submitted() *Form {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submitted
}

// Granted returns the result that authorized the flow.
func (f *Flow) Granted() (AuthResult, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.granted, f.state == Authorized
}

// Load runs on page load and requests silent authorization.
func (f *Flow) Load(ctx context.Context, ui UI) error {
	return f.authorize(ctx, ui, true)
}

// Click runs when the authorize control is clicked and requests interactive
// authorization.
func (f *Flow) Click(ctx context.Context, ui UI) error {
	return f.authorize(ctx, ui, false)
}

func (f *Flow) authorize(ctx context.Context, ui UI, immediate bool) error {
	f.mu.Lock()
	submitted := f.state == Authorized
	f.mu.Unlock()
	if submitted {
		return ErrSubmitted
	}
	return ui.Authorize(ctx, immediate)
}

// Complete handles the provider's callback. Completions on one Flow are
// serialized, so at most one of them submits.
func (f *Flow) Complete(ctx context.Context, ui UI, res AuthResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state == Authorized {
		return ErrSubmitted
	}

	if !res.OK() {
		reason := ReasonDenied
		if res.Immediate {
			reason = ReasonSilentFailed
		}
		return ui.ShowAuthorize(ctx, reason)
	}

	email, err := f.emails.Email(ctx, res.AccessToken)
	if err != nil {
		if showErr := ui.ShowAuthorize(ctx, ReasonUserinfoFailed); showErr != nil {
			return errors.Join(fmt.Errorf("fetch email: %w", err), showErr)
		}
		return fmt.Errorf("fetch email: %w", err)
	}

	form := NewForm("", Field{Name: FieldUser, Value: email}, Field{Name: FieldToken, Value: res.AccessToken})
	if err := ui.Submit(ctx, form); err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	f.state = Authorized
	f.submitted = form
	f.granted = res
	return nil
}
