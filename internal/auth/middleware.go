package auth

import (
	"encoding/json"
	"net/http"

	"quickmail/internal/biz"
)

const (
	// SessionCookieName is the name of the signed-in session cookie
	SessionCookieName = "qm_session"
)

// SessionMiddleware resolves the session cookie for protected routes.
// Expired sessions are refreshed or dropped by the usecase.
type SessionMiddleware struct {
	sessions *biz.SessionUsecase
}

// NewSessionMiddleware creates a middleware backed by sessions.
func NewSessionMiddleware(sessions *biz.SessionUsecase) *SessionMiddleware {
	return &SessionMiddleware{sessions: sessions}
}

// Require rejects requests without a valid session with 401.
func (m *SessionMiddleware) Require() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := m.Lookup(r)
			if user == nil {
				writeUnauthorized(w, "missing or unknown session")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// Optional adds the user to the context if a valid session is present.
func (m *SessionMiddleware) Optional() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if user := m.Lookup(r); user != nil {
				r = r.WithContext(WithUser(r.Context(), user))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Lookup returns the user for the request's session cookie, or nil.
func (m *SessionMiddleware) Lookup(r *http.Request) *UserInfo {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}
	s, err := m.sessions.GetSession(r.Context(), cookie.Value)
	if err != nil {
		return nil
	}
	return &UserInfo{SessionID: s.ID, Email: s.Email, SignedIn: s.CreatedAt}
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{
		"error":   "unauthorized",
		"message": message,
	})
}
