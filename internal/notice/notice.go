// Package notice queues human readable payment failure notices for browser
// clients. A notice is shown once, on the next page view.
package notice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"

	"github.com/mondb-dev/x402-wp/internal/kv"
)

const (
	CookieName = "x402_notice"
	DefaultTTL = 10 * time.Minute

	maxQueued   = 5
	maxUnescape = 8
)

var (
	policy   = bluemonday.StrictPolicy()
	brackets = strings.NewReplacer("<", "", ">", "")
)

type Notice struct {
	Message   string `json:"message"`
	Status    int    `json:"status"`
	Code      string `json:"code,omitempty"`
	Reference string `json:"reference,omitempty"`
}

// Sanitize strips markup from s and returns plain text. Entity encoded
// markup is decoded first so it is stripped too, and no angle brackets
// survive in the result.
func Sanitize(s string) string {
	for i := 0; i < maxUnescape; i++ {
		u := html.UnescapeString(s)
		if u == s {
			break
		}
		s = u
	}
	s = html.UnescapeString(policy.Sanitize(s))
	return strings.TrimSpace(brackets.Replace(s))
}

type Queue struct {
	store kv.Store
	ttl   time.Duration
}

func New(store kv.Store, ttl time.Duration) *Queue {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Queue{
		store: store,
		ttl:   ttl,
	}
}

// Push queues n for the visitor identified by id. An empty id starts a new
// queue. The returned id belongs in the notice cookie.
func (q *Queue) Push(ctx context.Context, id string, n Notice) (string, error) {
	if _, err := uuid.Parse(id); err != nil {
		id = uuid.NewString()
	}

	n.Message = Sanitize(n.Message)
	n.Code = Sanitize(n.Code)
	n.Reference = Sanitize(n.Reference)

	queued, err := q.load(ctx, id)
	if err != nil {
		return "", err
	}
	queued = append(queued, n)
	if len(queued) > maxQueued {
		queued = queued[len(queued)-maxQueued:]
	}

	b, err := json.Marshal(queued)
	if err != nil {
		return "", fmt.Errorf("json.Marshal: %w", err)
	}
	if err := q.store.Set(ctx, key(id), b, q.ttl); err != nil {
		return "", fmt.Errorf("store.Set: %w", err)
	}

	return id, nil
}

// Pop returns and forgets all notices queued for id.
func (q *Queue) Pop(ctx context.Context, id string) ([]Notice, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}

	queued, err := q.load(ctx, id)
	if err != nil || len(queued) == 0 {
		return nil, err
	}

	if err := q.store.Delete(ctx, key(id)); err != nil {
		return nil, fmt.Errorf("store.Delete: %w", err)
	}
	return queued, nil
}

func (q *Queue) Cookie(id string, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(q.ttl / time.Second),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (q *Queue) load(ctx context.Context, id string) ([]Notice, error) {
	b, err := q.store.Get(ctx, key(id))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("store.Get: %w", err)
	}

	var queued []Notice
	if err := json.Unmarshal(b, &queued); err != nil {
		return nil, nil
	}
	return queued, nil
}

func key(id string) string {
	return "notice:" + id
}
