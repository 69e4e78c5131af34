package main

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mondb-dev/x402-wp/internal/content"
	"github.com/mondb-dev/x402-wp/internal/facilitator/mock"
	"github.com/mondb-dev/x402-wp/internal/kv"
	"github.com/mondb-dev/x402-wp/internal/notice"
	"github.com/mondb-dev/x402-wp/internal/paymentlog"
	"github.com/mondb-dev/x402-wp/internal/paywall"
	"github.com/mondb-dev/x402-wp/internal/resource"
	"github.com/mondb-dev/x402-wp/internal/session"
	"github.com/mondb-dev/x402-wp/internal/tokens"
	"github.com/mondb-dev/x402-wp/internal/x402"
)

const testAdminKey = "admin-key"

type testServer struct {
	router  http.Handler
	log     *mockPaymentLog
	content *mockContent
}

func newTestServer(t *testing.T, fac verifier) *testServer {
	t.Helper()

	registry := tokens.Default()
	catalog, err := resource.NewCatalog([]resource.Resource{
		{
			ID:           "42",
			Title:        "Premium article",
			Network:      "base-mainnet",
			TokenAddress: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
			Amount:       "2.50",
			RecipientEVM: "0x209693Bc6afc0C5328bA36FaF03C514EF312287C",
			Content:      "posts/42.html",
		},
		{
			ID:           "broken",
			Network:      "base-mainnet",
			TokenAddress: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
			Amount:       "0.0000001",
			RecipientEVM: "0x209693Bc6afc0C5328bA36FaF03C514EF312287C",
		},
	}, registry, "https://example.com")
	require.NoError(t, err)

	store := kv.NewMemory()
	sessions, err := session.New(store, "secret", 0)
	require.NoError(t, err)

	log := &mockPaymentLog{}
	svc, err := paywall.New(paywall.Config{}, catalog, timedFacilitator{next: fac}, log, sessions, zap.NewNop())
	require.NoError(t, err)

	c := &mockContent{FetchObject: &content.Object{Name: "42.html", ContentType: "text/html", Data: []byte("<p>premium</p>")}}

	h := &handlers{
		config:   Config{AdminKey: testAdminKey},
		logger:   zap.NewNop(),
		paywall:  svc,
		catalog:  catalog,
		content:  c,
		notices:  notice.New(store, 0),
		payments: log,
		tokens:   registry,
	}

	return &testServer{router: newRouter(h), log: log, content: c}
}

func (s *testServer) do(r *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, r)
	return w
}

func paymentHeader(t *testing.T) string {
	t.Helper()
	b, err := json.Marshal(map[string]any{
		"x402Version": 1,
		"scheme":      "exact",
		"network":     "base-mainnet",
		"payload": map[string]any{
			"signature": "0xsig",
			"authorization": map[string]any{
				"from":  "0x857b06519E91e3A54538791bDbb0E22373e36b66",
				"to":    "0x209693Bc6afc0C5328bA36FaF03C514EF312287C",
				"value": "2500000",
			},
		},
	})
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(b)
}

func TestMachinePaymentFlow(t *testing.T) {
	s := newTestServer(t, mock.New())

	r := httptest.NewRequest(http.MethodGet, "/r/42", nil)
	r.Header.Set("Accept", "application/json")
	w := s.do(r)

	require.Equal(t, http.StatusPaymentRequired, w.Code)
	var required x402.PaymentRequiredResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &required))
	require.Len(t, required.Accepts, 1)
	assert.Equal(t, "2500000", required.Accepts[0].Amount)

	r = httptest.NewRequest(http.MethodGet, "/r/42", nil)
	r.Header.Set("Accept", "application/json")
	r.Header.Set(x402.HeaderPayment, paymentHeader(t))
	w = s.do(r)

	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(x402.HeaderPaymentResponse))

	var paid paywall.PaidBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &paid))
	assert.True(t, paid.Success)
	assert.Equal(t, paid.Session, w.Header().Get(x402.HeaderPaymentSession))

	require.Len(t, s.log.entries, 1)
	assert.Equal(t, paymentlog.StatusVerified, s.log.entries[0].Status)

	r = httptest.NewRequest(http.MethodGet, "/r/42", nil)
	r.Header.Set("Accept", "application/json")
	r.Header.Set(x402.HeaderPaymentSession, "Bearer "+paid.Session)
	w = s.do(r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "<p>premium</p>", w.Body.String())
	assert.Equal(t, "posts/42.html", s.content.Location)
	assert.Equal(t, "private, no-store", w.Header().Get("Cache-Control"))
}

func TestBrowserPaymentFlow(t *testing.T) {
	s := newTestServer(t, mock.New())

	r := httptest.NewRequest(http.MethodGet, "/r/42", nil)
	r.Header.Set("Accept", "text/html")
	w := s.do(r)

	require.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "Premium article")
	assert.Contains(t, w.Body.String(), "2.50 USDC")
	assert.Contains(t, w.Body.String(), "2500000")

	r = httptest.NewRequest(http.MethodGet, "/r/42", nil)
	r.Header.Set(x402.HeaderPayment, paymentHeader(t))
	w = s.do(r)

	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/r/42", w.Header().Get("Location"))

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, session.CookieName("42"), cookies[0].Name)

	r = httptest.NewRequest(http.MethodGet, "/r/42", nil)
	r.AddCookie(cookies[0])
	w = s.do(r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "<p>premium</p>", w.Body.String())
}

func TestBrowserFailureShowsNoticeOnce(t *testing.T) {
	s := newTestServer(t, &mockVerifier{
		VerifyAndSettleErr: x402.NewPaymentError(x402.KindPaymentRequired, "Insufficient funds.", nil),
	})

	r := httptest.NewRequest(http.MethodGet, "/r/42", nil)
	r.Header.Set(x402.HeaderPayment, paymentHeader(t))
	w := s.do(r)

	require.Equal(t, http.StatusSeeOther, w.Code)
	var noticeCookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == notice.CookieName {
			noticeCookie = c
		}
	}
	require.NotNil(t, noticeCookie)

	r = httptest.NewRequest(http.MethodGet, "/r/42", nil)
	r.AddCookie(noticeCookie)
	w = s.do(r)

	require.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Contains(t, w.Body.String(), "Insufficient funds.")
	assert.Contains(t, w.Body.String(), "X402-000001")

	r = httptest.NewRequest(http.MethodGet, "/r/42", nil)
	r.AddCookie(noticeCookie)
	w = s.do(r)
	assert.NotContains(t, w.Body.String(), "Insufficient funds.")
}

func TestMachineFailureEnvelope(t *testing.T) {
	s := newTestServer(t, &mockVerifier{
		VerifyAndSettleErr: x402.NewPaymentError(x402.KindValidationError, "Bad payload.", nil),
	})

	r := httptest.NewRequest(http.MethodGet, "/api/r/42", nil)
	r.Header.Set(x402.HeaderPayment, paymentHeader(t))
	w := s.do(r)

	require.Equal(t, http.StatusBadRequest, w.Code)
	var body paywall.FailureBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, "validation_error", body.Error.Code)
	assert.Equal(t, "X402-000001", body.Error.Reference)

	require.Len(t, s.log.entries, 1)
	assert.Equal(t, paymentlog.StatusFailed, s.log.entries[0].Status)
}

func TestHandleRequirements(t *testing.T) {
	s := newTestServer(t, mock.New())

	var tests = []struct {
		path     string
		expected int
	}{
		{"/r/42/requirements", http.StatusPaymentRequired},
		{"/r/missing/requirements", http.StatusNotFound},
		{"/r/broken/requirements", http.StatusInternalServerError},
		{"/r/missing", http.StatusNotFound},
		{"/r/broken", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := s.do(httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.expected, w.Code)
		})
	}
}

func TestHandleListPayments(t *testing.T) {
	s := newTestServer(t, mock.New())

	r := httptest.NewRequest(http.MethodGet, "/r/42", nil)
	r.Header.Set("Accept", "application/json")
	r.Header.Set(x402.HeaderPayment, paymentHeader(t))
	require.Equal(t, http.StatusOK, s.do(r).Code)

	var tests = []struct {
		name     string
		key      string
		query    string
		expected int
	}{
		{"no key", "", "", http.StatusUnauthorized},
		{"wrong key", "nope", "", http.StatusUnauthorized},
		{"bad limit", testAdminKey, "?limit=x", http.StatusBadRequest},
		{"ok", testAdminKey, "?limit=10", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/payments/42"+tt.query, nil)
			if tt.key != "" {
				r.Header.Set("X-Admin-Key", tt.key)
			}
			w := s.do(r)
			require.Equal(t, tt.expected, w.Code)

			if tt.expected == http.StatusOK {
				var entries []paymentlog.Entry
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entries))
				require.Len(t, entries, 1)
				assert.Equal(t, "2500000", entries[0].Amount)
			}
		})
	}
}

func TestHandleGetTokens(t *testing.T) {
	s := newTestServer(t, mock.New())

	w := s.do(httptest.NewRequest(http.MethodGet, "/api/tokens", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var networks []tokens.Network
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &networks))
	assert.NotEmpty(t, networks)
}

func TestHandleHealthz(t *testing.T) {
	s := newTestServer(t, mock.New())

	w := s.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}
