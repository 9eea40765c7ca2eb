package auth

import "time"

// UserInfo is the signed-in user put into request context
type UserInfo struct {
	SessionID string    `json:"-"`
	Email     string    `json:"email"`
	SignedIn  time.Time `json:"signed_in"`
}
