// Package session issues and validates the signed access grants handed out
// after a confirmed payment. A session is bound to one resource and one
// payer, lives in a kv.Store with a sliding TTL and travels as a cookie or
// as a "token.signature" bearer value.
package session

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mondb-dev/x402-wp/internal/kv"
)

const (
	DefaultTTL = 1800 * time.Second

	cookiePrefix       = "x402_session_"
	legacyCookiePrefix = "x402_paid_"
)

type Session struct {
	Token     string          `json:"token"`
	Resource  string          `json:"resource"`
	Payer     string          `json:"payer"`
	Signature string          `json:"signature"`
	Proof     json.RawMessage `json:"proof,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Bearer is the combined value clients send back in X-Payment-Session.
func (s *Session) Bearer() string {
	return s.Token + "." + s.Signature
}

type Manager struct {
	store  kv.Store
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func New(store kv.Store, secret string, ttl time.Duration) (*Manager, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &Manager{
		store:  store,
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Issue mints and stores a new session for payer on resource. It must only
// be called after a payment has been confirmed.
func (m *Manager) Issue(ctx context.Context, resource, payer string, proof json.RawMessage) (*Session, error) {
	payer = strings.ToLower(payer)
	token := uuid.NewString()

	sess := &Session{
		Token:     token,
		Resource:  resource,
		Payer:     payer,
		Signature: m.sign(token, resource, payer),
		Proof:     proof,
		CreatedAt: m.now().UTC(),
	}

	if err := m.put(ctx, sess); err != nil {
		return nil, err
	}

	return sess, nil
}

// Validate checks a presented "token.signature" value for resource. The
// stored record is deleted when its signature does not verify.
func (m *Manager) Validate(ctx context.Context, resource, presented string) (*Session, error) {
	token, sig, ok := strings.Cut(strings.TrimSpace(presented), ".")
	if !ok || token == "" || sig == "" {
		return nil, ErrInvalidSession
	}
	if _, err := uuid.Parse(token); err != nil {
		return nil, ErrInvalidSession
	}

	key := storeKey(resource, token)
	b, err := m.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("store.Get: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(b, &sess); err != nil {
		m.store.Delete(ctx, key)
		return nil, ErrInvalidSession
	}

	expected := m.sign(token, resource, sess.Payer)
	storedOK := subtle.ConstantTimeCompare([]byte(expected), []byte(sess.Signature)) == 1
	presentedOK := subtle.ConstantTimeCompare([]byte(expected), []byte(sig)) == 1
	if !storedOK || !presentedOK || sess.Resource != resource || sess.Token != token {
		if err := m.store.Delete(ctx, key); err != nil {
			return nil, fmt.Errorf("store.Delete: %w", err)
		}
		return nil, ErrInvalidSession
	}

	return &sess, nil
}

// Refresh renews the session's TTL.
func (m *Manager) Refresh(ctx context.Context, sess *Session) error {
	return m.put(ctx, sess)
}

// Cookie builds the cookie carrying sess, scoped to path.
func (m *Manager) Cookie(sess *Session, path string, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName(sess.Resource),
		Value:    sess.Bearer(),
		Path:     path,
		MaxAge:   int(m.ttl / time.Second),
		Expires:  m.now().Add(m.ttl),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	}
}

// Presented finds the session value a client sent for resource: the cookie
// first, then the X-Payment-Session header.
func Presented(header http.Header, cookies map[string]string, resource string) string {
	if v := cookies[CookieName(resource)]; v != "" {
		return v
	}

	v := strings.TrimSpace(header.Get("X-Payment-Session"))
	if len(v) > 7 && strings.EqualFold(v[:7], "bearer ") {
		v = strings.TrimSpace(v[7:])
	}
	return v
}

// ClearLegacy returns an expiring cookie for the old boolean "paid" cookie
// when the client still holds one, nil otherwise.
func ClearLegacy(cookies map[string]string, resource, path string) *http.Cookie {
	name := LegacyCookieName(resource)
	if _, ok := cookies[name]; !ok {
		return nil
	}

	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     path,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
	}
}

func CookieName(resource string) string {
	return cookiePrefix + resourceHash(resource)[:16]
}

func LegacyCookieName(resource string) string {
	return legacyCookiePrefix + resource
}

func (m *Manager) put(ctx context.Context, sess *Session) error {
	b, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("json.Marshal: %w", err)
	}

	if err := m.store.Set(ctx, storeKey(sess.Resource, sess.Token), b, m.ttl); err != nil {
		return fmt.Errorf("store.Set: %w", err)
	}
	return nil
}

func (m *Manager) sign(token, resource, payer string) string {
	mac := hmac.New(sha256.New, m.secret)
	mac.Write([]byte(token + "|" + resource + "|" + payer))
	return hex.EncodeToString(mac.Sum(nil))
}

func storeKey(resource, token string) string {
	return "session:" + resourceHash(resource) + ":" + token
}

func resourceHash(resource string) string {
	sum := sha256.Sum256([]byte(resource))
	return hex.EncodeToString(sum[:])
}
