package auth

import (
	"net/http"
	"time"
)

const (
	AccessCookieName  = "access_token"
	RefreshCookieName = "refresh_token"
)

// CookiePolicy decides how session credentials travel to the client:
// http-only cookies whose Max-Age equals the token TTL.
type CookiePolicy struct {
	Secure   bool
	SameSite http.SameSite
	Domain   string
}

func (p CookiePolicy) SetSession(w http.ResponseWriter, session Session) {
	http.SetCookie(w, p.cookie(AccessCookieName, session.AccessToken, session.AccessTTL))
	http.SetCookie(w, p.cookie(RefreshCookieName, session.RefreshToken, session.RefreshTTL))
}

func (p CookiePolicy) SetAccess(w http.ResponseWriter, grant AccessGrant) {
	http.SetCookie(w, p.cookie(AccessCookieName, grant.AccessToken, grant.AccessTTL))
}

// Clear expires both credential cookies with matching attributes so the
// browser drops them.
func (p CookiePolicy) Clear(w http.ResponseWriter) {
	for _, name := range []string{AccessCookieName, RefreshCookieName} {
		c := p.cookie(name, "", 0)
		c.MaxAge = -1
		c.Expires = time.Unix(0, 0)
		http.SetCookie(w, c)
	}
}

func (p CookiePolicy) cookie(name, value string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   p.Domain,
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   p.Secure,
		SameSite: p.SameSite,
	}
}
