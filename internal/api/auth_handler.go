package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"

	"quickmail/internal/auth"
	"quickmail/internal/biz"
	"quickmail/internal/redirect"

	"github.com/gorilla/mux"
	"golang.org/x/oauth2"
)

const (
	// FlowCookieName identifies the browser's current authorization flow
	FlowCookieName = "qm_flow"
)

// OAuthClient builds provider requests and redeems their codes.
type OAuthClient interface {
	GetAuthURL(state, verifier string, immediate bool) string
	ExchangeCode(ctx context.Context, code, verifier string) (*oauth2.Token, error)
}

// AuthHandler handles the page and authentication endpoints
type AuthHandler struct {
	client        OAuthClient
	emails        redirect.EmailFetcher
	flows         *FlowStore
	sessions      *biz.SessionUsecase
	secureCookies bool
	logger        *slog.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(client OAuthClient, emails redirect.EmailFetcher, flows *FlowStore, sessions *biz.SessionUsecase, secureCookies bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		client:        client,
		emails:        emails,
		flows:         flows,
		sessions:      sessions,
		secureCookies: secureCookies,
		logger:        logger,
	}
}

// RegisterRoutes registers the page and auth routes
func (h *AuthHandler) RegisterRoutes(r *mux.Router, mw *auth.SessionMiddleware) {
	r.Handle("/", mw.Optional()(http.HandlerFunc(h.page))).Methods(http.MethodGet)
	r.HandleFunc("/", h.receive).Methods(http.MethodPost)
	r.HandleFunc("/auth/login", h.login).Methods(http.MethodGet)
	r.HandleFunc("/auth/callback", h.callback).Methods(http.MethodGet)
	r.HandleFunc("/auth/logout", h.logout).Methods(http.MethodPost)
	r.Handle("/auth/userinfo", mw.Require()(http.HandlerFunc(h.userinfo))).Methods(http.MethodGet)
}

func (h *AuthHandler) ui(w http.ResponseWriter, r *http.Request, flowID string) *pageUI {
	return &pageUI{h: h, w: w, r: r, flowID: flowID}
}

// page is the page load: signed-in users see the home page, everyone else
// runs silent authorization on the browser's flow, starting one if needed.
// A flow that already submitted is left alone so its POST can still land.
func (h *AuthHandler) page(w http.ResponseWriter, r *http.Request) {
	if user, err := auth.GetUserFromContext(r.Context()); err == nil {
		if err := render(w, http.StatusOK, "home.html", user); err != nil {
			h.logger.Error("failed to render home", "error", err)
		}
		return
	}

	flowID, flow, ok := h.currentFlow(r)
	if !ok {
		flowID, flow = h.startFlow(w)
	}
	err := flow.Load(r.Context(), h.ui(w, r, flowID))
	switch {
	case err == nil:
	case errors.Is(err, redirect.ErrSubmitted):
		if err := render(w, http.StatusOK, "pending.html", nil); err != nil {
			h.logger.Error("failed to render pending page", "error", err)
		}
	default:
		h.logger.Error("failed to start authorization", "error", err, "flow", flowID)
		http.Error(w, "failed to start authorization", http.StatusInternalServerError)
	}
}

// login is the authorize control: interactive authorization for the
// browser's current flow.
func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	flowID, flow, ok := h.currentFlow(r)
	if !ok {
		flowID, flow = h.startFlow(w)
	}

	err := flow.Click(r.Context(), h.ui(w, r, flowID))
	switch {
	case err == nil:
	case errors.Is(err, redirect.ErrSubmitted):
		http.Redirect(w, r, "/", http.StatusSeeOther)
	default:
		h.logger.Error("failed to start authorization", "error", err, "flow", flowID)
		http.Error(w, "failed to start authorization", http.StatusInternalServerError)
	}
}

// callback handles the provider's redirect back with PKCE
func (h *AuthHandler) callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	// Verify state and get code verifier (CSRF protection + PKCE)
	pending, ok := h.flows.TakePending(q.Get("state"))
	if !ok {
		http.Error(w, "invalid state parameter", http.StatusBadRequest)
		return
	}
	if cookieID, ok := h.flowCookie(r); !ok || cookieID != pending.FlowID {
		http.Error(w, "authorization flow mismatch", http.StatusBadRequest)
		return
	}
	flow, ok := h.flows.Flow(pending.FlowID)
	if !ok {
		http.Error(w, "authorization flow expired", http.StatusBadRequest)
		return
	}

	res := redirect.AuthResult{Immediate: pending.Immediate}
	switch {
	case q.Get("error") != "":
		res.Error = q.Get("error")
	case q.Get("code") == "":
		res.Error = "missing_code"
	default:
		token, err := h.client.ExchangeCode(r.Context(), q.Get("code"), pending.CodeVerifier)
		if err != nil {
			h.logger.Warn("failed to exchange code", "error", err, "flow", pending.FlowID)
			res.Error = "token_exchange_failed"
		} else {
			res.AccessToken = token.AccessToken
			res.RefreshToken = token.RefreshToken
			res.Expiry = token.Expiry
		}
	}
	if res.Error != "" {
		h.logger.Info("authorization not granted", "error", res.Error, "immediate", res.Immediate, "flow", pending.FlowID)
	}

	err := flow.Complete(r.Context(), h.ui(w, r, pending.FlowID), res)
	switch {
	case err == nil:
	case errors.Is(err, redirect.ErrSubmitted):
		// a parallel attempt already navigated; the page keeps the flow
		http.Redirect(w, r, "/", http.StatusSeeOther)
	default:
		h.logger.Error("authorization failed", "error", err, "flow", pending.FlowID)
	}
}

// receive accepts the redirect payload posted by the flow's own page.
func (h *AuthHandler) receive(w http.ResponseWriter, r *http.Request) {
	flowID, flow, ok := h.currentFlow(r)
	if !ok {
		http.Error(w, "no authorization in progress", http.StatusBadRequest)
		return
	}
	form := flow.Submitted()
	if form == nil {
		http.Error(w, "authorization not completed", http.StatusBadRequest)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "malformed request", http.StatusBadRequest)
		return
	}
	user := r.PostForm.Get(redirect.FieldUser)
	token := r.PostForm.Get(redirect.FieldToken)
	wantUser, _ := form.Value(redirect.FieldUser)
	wantToken, _ := form.Value(redirect.FieldToken)
	if user == "" || token == "" || !equal(user, wantUser) || !equal(token, wantToken) {
		http.Error(w, "payload does not match authorization", http.StatusBadRequest)
		return
	}

	granted, _ := flow.Granted()
	session, err := h.sessions.CreateSession(r.Context(), user, biz.Token{
		AccessToken:  token,
		RefreshToken: granted.RefreshToken,
		Expiry:       granted.Expiry,
	})
	if err != nil {
		h.logger.Error("failed to create session", "error", err)
		http.Error(w, "failed to create session", http.StatusInternalServerError)
		return
	}
	h.flows.DeleteFlow(flowID)
	h.setCookie(w, FlowCookieName, "", -1)
	h.setCookie(w, auth.SessionCookieName, session.ID, 0)
	h.logger.Info("signed in", "user", user, "session", session.ID)

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// logout clears the session
func (h *AuthHandler) logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(auth.SessionCookieName); err == nil && cookie.Value != "" {
		if err := h.sessions.DeleteSession(r.Context(), cookie.Value); err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
	}
	h.setCookie(w, auth.SessionCookieName, "", -1)

	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// userinfo returns current user information
func (h *AuthHandler) userinfo(w http.ResponseWriter, r *http.Request) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *AuthHandler) startFlow(w http.ResponseWriter) (string, *redirect.Flow) {
	flow := redirect.NewFlow(h.emails)
	id := h.flows.NewFlow(flow)
	h.setCookie(w, FlowCookieName, id, 0)
	return id, flow
}

func (h *AuthHandler) currentFlow(r *http.Request) (string, *redirect.Flow, bool) {
	id, ok := h.flowCookie(r)
	if !ok {
		return "", nil, false
	}
	flow, ok := h.flows.Flow(id)
	return id, flow, ok
}

func (h *AuthHandler) flowCookie(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(FlowCookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

func (h *AuthHandler) setCookie(w http.ResponseWriter, name, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}

func equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
