package auth

import "github.com/golang-jwt/jwt/v5"

// Claims is the payload of the session cookie. It carries only the session
// ID; user claims and backend tokens stay server-side in the session record.
type Claims struct {
	jwt.RegisteredClaims
	SessionID string `json:"sid"`
}
