package httpapi

import (
	"net/http"
	"strings"
	"time"
)

const sessionCookie = "sid"

// sessionToken reads the login token from the sid cookie, or from an
// Authorization bearer header for clients that do not keep cookies.
func sessionToken(r *http.Request) string {
	if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	if v, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// caller returns the employee id of the request's live session, or "".
func (s *Server) caller(r *http.Request) (string, error) {
	if s.deps.Sessions == nil {
		return "", nil
	}
	id, ok, err := s.deps.Sessions.Lookup(sessionToken(r))
	if err != nil || !ok {
		return "", err
	}
	return id, nil
}

func setSessionCookie(w http.ResponseWriter, token string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
