package main

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mondb-dev/x402-wp/internal/amount"
	"github.com/mondb-dev/x402-wp/internal/content"
	"github.com/mondb-dev/x402-wp/internal/notice"
	"github.com/mondb-dev/x402-wp/internal/paymentlog"
	"github.com/mondb-dev/x402-wp/internal/paywall"
	"github.com/mondb-dev/x402-wp/internal/resource"
	"github.com/mondb-dev/x402-wp/internal/tokens"
	"github.com/mondb-dev/x402-wp/internal/x402"
)

type handlers struct {
	config   Config
	logger   *zap.Logger
	paywall  paywallService
	catalog  catalog
	content  contentFetcher
	notices  noticeQueue
	payments paymentLister
	tokens   *tokens.Registry
}

type paywallService interface {
	Handle(ctx context.Context, req paywall.Request) (*paywall.Result, error)
	Requirements(id string) (*resource.PaywallConfig, *x402.PaymentRequiredResponse, error)
}

type catalog interface {
	Get(id string) (resource.Resource, bool)
}

type contentFetcher interface {
	Fetch(ctx context.Context, location string) (*content.Object, error)
}

type noticeQueue interface {
	Push(ctx context.Context, id string, n notice.Notice) (string, error)
	Pop(ctx context.Context, id string) ([]notice.Notice, error)
	Cookie(id string, secure bool) *http.Cookie
}

type paymentLister interface {
	List(ctx context.Context, resourceID string, limit int) ([]paymentlog.Entry, error)
}

// handleResource serves a gated resource or runs the payment flow for it.
func (h *handlers) handleResource(w http.ResponseWriter, r *http.Request) {
	var (
		ctx = r.Context()
		id  = chi.URLParam(r, "id")
		req = paywall.NewRequest(r, id, h.config.CookieSecure)
	)

	res, err := h.paywall.Handle(ctx, req)
	if err != nil {
		h.resourceError(w, id, err)
		return
	}
	recordOutcome(res)

	for _, c := range res.Cookies {
		http.SetCookie(w, c)
	}
	for k, vs := range res.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}

	switch res.Outcome {
	case paywall.OutcomeGranted:
		h.serveContent(w, r, res.Config)
	case paywall.OutcomePaymentRequired:
		writeJSON(w, res.Status, res.Requirements)
	case paywall.OutcomePaywall:
		h.renderPaywall(w, r, res)
	case paywall.OutcomePaid, paywall.OutcomeFailed:
		if req.Machine {
			writeJSON(w, res.Status, res.Body)
			return
		}
		if res.Notice != nil {
			h.queueNotice(w, r, *res.Notice, req.Secure)
		}
		http.Redirect(w, r, res.Redirect, http.StatusSeeOther)
	}
}

// handleRequirements always answers with the payment requirements.
func (h *handlers) handleRequirements(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	_, body, err := h.paywall.Requirements(id)
	if err != nil {
		h.resourceError(w, id, err)
		return
	}

	requirementsServed.Inc()
	writeJSON(w, http.StatusPaymentRequired, body)
}

// handleListPayments lists payment log entries of a resource for operators.
func (h *handlers) handleListPayments(w http.ResponseWriter, r *http.Request) {
	var (
		ctx = r.Context()
		id  = chi.URLParam(r, "id")
	)

	if !h.authorized(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	limit := defaultPaymentsListingLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	entries, err := h.payments.List(ctx, id, limit)
	if err != nil {
		h.logger.Error("listing payments failed", zap.String("resource", id), zap.Error(err))
		http.Error(w, "unable to list payments", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []paymentlog.Entry{}
	}

	writeJSON(w, http.StatusOK, entries)
}

func (h *handlers) handleGetTokens(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.tokens.Networks())
}

func (h *handlers) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte("ok"))
}

func (h *handlers) authorized(r *http.Request) bool {
	if h.config.AdminKey == "" {
		return false
	}
	key := r.Header.Get("X-Admin-Key")
	return subtle.ConstantTimeCompare([]byte(key), []byte(h.config.AdminKey)) == 1
}

func (h *handlers) resourceError(w http.ResponseWriter, id string, err error) {
	switch {
	case errors.Is(err, resource.ErrResourceNotFound):
		http.Error(w, "resource not found", http.StatusNotFound)
	case errors.Is(err, paywall.ErrMisconfigured):
		http.Error(w, "paywall misconfigured", http.StatusInternalServerError)
	default:
		h.logger.Error("handling resource failed", zap.String("resource", id), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func (h *handlers) serveContent(w http.ResponseWriter, r *http.Request, cfg *resource.PaywallConfig) {
	res, ok := h.catalog.Get(cfg.ResourceID)
	if !ok || res.Content == "" {
		writeJSON(w, http.StatusOK, map[string]any{
			"success":  true,
			"resource": cfg.ResourceURL,
		})
		return
	}

	obj, err := h.content.Fetch(r.Context(), res.Content)
	if err != nil {
		if errors.Is(err, content.ErrNotFound) {
			http.Error(w, "content not found", http.StatusNotFound)
			return
		}
		h.logger.Error("fetching content failed",
			zap.String("resource", cfg.ResourceID),
			zap.String("location", res.Content),
			zap.Error(err),
		)
		http.Error(w, "unable to load content", http.StatusInternalServerError)
		return
	}

	contentType := cfg.MimeType
	if contentType == "" {
		contentType = obj.ContentType
	}

	contentServed.Inc()
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(obj.Data)))
	w.Header().Set("Cache-Control", "private, no-store")
	w.Write(obj.Data)
}

func (h *handlers) queueNotice(w http.ResponseWriter, r *http.Request, n notice.Notice, secure bool) {
	var id string
	if c, err := r.Cookie(notice.CookieName); err == nil {
		id = c.Value
	}

	id, err := h.notices.Push(r.Context(), id, n)
	if err != nil {
		h.logger.Warn("queueing notice failed", zap.Error(err))
		return
	}
	http.SetCookie(w, h.notices.Cookie(id, secure))
}

func (h *handlers) popNotices(r *http.Request) []notice.Notice {
	c, err := r.Cookie(notice.CookieName)
	if err != nil {
		return nil
	}

	notices, err := h.notices.Pop(r.Context(), c.Value)
	if err != nil {
		h.logger.Warn("loading notices failed", zap.Error(err))
		return nil
	}
	return notices
}

var paywallPage = template.Must(template.New("paywall").Parse(`<!DOCTYPE html>
<html>
<head>
	<meta charset="utf-8">
	<title>{{.Title}}</title>
</head>
<body>
	<main>
		<h1>{{.Title}}</h1>
		{{range .Notices}}
		<div class="x402-notice" role="alert">
			<p>{{.Message}}</p>
			{{if .Reference}}<p>Reference: <code>{{.Reference}}</code></p>{{end}}
		</div>
		{{end}}
		{{if .Description}}<p>{{.Description}}</p>{{end}}
		<p>Price: {{.Price}} on {{.Network}}</p>
		<p>Pay with an x402 compatible wallet to unlock this resource.</p>
		<script type="application/json" id="x402-requirements">{{.Requirements}}</script>
	</main>
</body>
</html>
`))

type paywallView struct {
	Title        string
	Description  string
	Price        string
	Network      string
	Notices      []notice.Notice
	// Requirements is rendered as JSON by the template's script context.
	Requirements *x402.PaymentRequiredResponse
}

func (h *handlers) renderPaywall(w http.ResponseWriter, r *http.Request, res *paywall.Result) {
	cfg := res.Config

	title := cfg.Title
	if title == "" {
		title = "Payment required"
	}
	price := amount.Display(cfg.Amount, cfg.Decimals, 2)
	if tok, ok := h.tokens.Lookup(cfg.Network, cfg.TokenAddress); ok && tok.Symbol != "" {
		price += " " + tok.Symbol
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(res.Status)
	err := paywallPage.Execute(w, paywallView{
		Title:        title,
		Description:  cfg.Description,
		Price:        price,
		Network:      cfg.Network,
		Notices:      h.popNotices(r),
		Requirements: res.Requirements,
	})
	if err != nil {
		h.logger.Warn("rendering paywall failed", zap.Error(err))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	jsonb, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(jsonb)
}
