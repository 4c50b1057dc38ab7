package session

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
)

const flashCookieName = "election_flash"

// Flash is a one-shot message shown on the next rendered page.
type Flash struct {
	Kind    string `json:"k"`
	Message string `json:"m"`
}

const (
	FlashError   = "error"
	FlashSuccess = "success"
	FlashInfo    = "info"
)

// SetFlash stores a message for the next page render.
func SetFlash(w http.ResponseWriter, kind, message string) {
	b, err := json.Marshal(Flash{Kind: kind, Message: message})
	if err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    base64.RawURLEncoding.EncodeToString(b),
		Path:     "/",
		MaxAge:   60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// PopFlash reads and clears the pending flash message, if any.
func PopFlash(w http.ResponseWriter, r *http.Request) *Flash {
	c, err := r.Cookie(flashCookieName)
	if err != nil || c.Value == "" {
		return nil
	}
	http.SetCookie(w, &http.Cookie{Name: flashCookieName, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
	raw, err := base64.RawURLEncoding.DecodeString(c.Value)
	if err != nil {
		return nil
	}
	var f Flash
	if err := json.Unmarshal(raw, &f); err != nil || f.Message == "" {
		return nil
	}
	return &f
}

// Redirect sets a flash message and redirects with 303 See Other.
func Redirect(w http.ResponseWriter, r *http.Request, to, kind, message string) {
	if message != "" {
		SetFlash(w, kind, message)
	}
	http.Redirect(w, r, to, http.StatusSeeOther)
}
