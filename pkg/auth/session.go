package auth

import (
	"crypto/sha256"
	"net/http"
	"net/url"

	"github.com/gorilla/sessions"
)

// SessionName is the name of the checkout session cookie.
const SessionName = "lookout-checkout"

const (
	sessionKeyCheckoutID   = "checkout_session_id"
	sessionKeyCheckoutPlan = "checkout_plan"

	// checkoutSessionMaxAge covers a slow trip through the hosted checkout page.
	checkoutSessionMaxAge = 3600
)

// SessionStore keeps short-lived checkout state in a signed cookie so the
// dashboard can confirm which checkout a success redirect belongs to.
type SessionStore struct {
	store *sessions.CookieStore
}

// NewSessionStore creates a cookie-backed session store for the dashboard at
// baseURL. The signing key is derived from secret, which must be stable
// across restarts and replicas.
func NewSessionStore(secret, baseURL, cookieDomain string) *SessionStore {
	key := sha256.Sum256([]byte(secret))

	store := sessions.NewCookieStore(key[:])
	store.Options = sessionOptions(baseURL, cookieDomain)
	return &SessionStore{store: store}
}

// sessionOptions scopes the cookie to the dashboard. Local development over
// plain http gets a host-only, non-secure cookie; anything unparseable is
// treated as production.
func sessionOptions(baseURL, cookieDomain string) *sessions.Options {
	opts := &sessions.Options{
		Path:     "/",
		Domain:   cookieDomain,
		MaxAge:   checkoutSessionMaxAge,
		HttpOnly: true,
		Secure:   true,
		// Lax lets the cookie ride along on the redirect back from checkout.
		SameSite: http.SameSiteLaxMode,
	}

	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return opts
	}
	opts.Secure = u.Scheme == "https"
	switch u.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		opts.Domain = ""
	}
	return opts
}

// RememberCheckout records the checkout session id and plan on the response.
func (s *SessionStore) RememberCheckout(r *http.Request, w http.ResponseWriter, sessionID, plan string) error {
	session, err := s.store.Get(r, SessionName)
	if err != nil {
		// A cookie signed with an old key yields an error alongside a fresh session.
		session, _ = s.store.New(r, SessionName)
	}
	session.Values[sessionKeyCheckoutID] = sessionID
	session.Values[sessionKeyCheckoutPlan] = plan
	return session.Save(r, w)
}

// PendingCheckout returns the checkout recorded for this browser, if any.
func (s *SessionStore) PendingCheckout(r *http.Request) (sessionID, plan string, ok bool) {
	session, err := s.store.Get(r, SessionName)
	if err != nil {
		return "", "", false
	}
	sessionID, _ = session.Values[sessionKeyCheckoutID].(string)
	plan, _ = session.Values[sessionKeyCheckoutPlan].(string)
	return sessionID, plan, sessionID != ""
}

// ClearCheckout expires the checkout cookie once the dashboard has confirmed it.
func (s *SessionStore) ClearCheckout(r *http.Request, w http.ResponseWriter) error {
	session, err := s.store.Get(r, SessionName)
	if err != nil {
		return nil
	}
	session.Options.MaxAge = -1
	return session.Save(r, w)
}
