package port

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"

	"github.com/challengehub/web/internal/domain"
)

const (
	sessionCookieName = "challenge_session"
	flashCookieName   = "challenge_flash"
	stateCookieName   = "challenge_oauth_state"
)

// Flash kinds map to notification styles.
const (
	flashSuccess = "success"
	flashError   = "error"
)

type flash struct {
	Kind    string `json:"k"`
	Message string `json:"m"`
}

// oauthState travels in a short-lived cookie between the redirect to the
// provider and its callback.
type oauthState struct {
	State    string `json:"s"`
	Callback string `json:"c,omitempty"`
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, id domain.SessionID) error {
	signed, err := h.cookies.Sign(id)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    signed.Value,
		Path:     "/",
		Expires:  signed.ExpiresAt,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (h *Handler) clearCookie(w http.ResponseWriter, name, path string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     path,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) setJSONCookie(w http.ResponseWriter, name, path string, v any, ttl time.Duration) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    base64.RawURLEncoding.EncodeToString(data),
		Path:     path,
		MaxAge:   int(ttl / time.Second),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func readJSONCookie(r *http.Request, name string, v any) bool {
	c, err := r.Cookie(name)
	if err != nil || c.Value == "" {
		return false
	}
	data, err := base64.RawURLEncoding.DecodeString(c.Value)
	if err != nil {
		return false
	}
	return json.Unmarshal(data, v) == nil
}

// setFlash queues a one-shot notification for the next rendered page.
func (h *Handler) setFlash(w http.ResponseWriter, kind, message string) {
	h.setJSONCookie(w, flashCookieName, "/", flash{Kind: kind, Message: message}, domain.FlashTTL)
}

// popFlash returns the queued notification, if any, and clears it.
func (h *Handler) popFlash(w http.ResponseWriter, r *http.Request) *flash {
	var f flash
	if !readJSONCookie(r, flashCookieName, &f) {
		return nil
	}
	h.clearCookie(w, flashCookieName, "/")
	if f.Message == "" {
		return nil
	}
	return &f
}
