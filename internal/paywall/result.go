package paywall

import (
	"net/http"

	"github.com/mondb-dev/x402-wp/internal/notice"
	"github.com/mondb-dev/x402-wp/internal/paymentlog"
	"github.com/mondb-dev/x402-wp/internal/resource"
	"github.com/mondb-dev/x402-wp/internal/session"
	"github.com/mondb-dev/x402-wp/internal/x402"
)

type Outcome int

const (
	// OutcomeGranted means a valid session was presented.
	OutcomeGranted Outcome = iota + 1
	// OutcomePaymentRequired answers a machine client with requirements.
	OutcomePaymentRequired
	// OutcomePaywall answers a browser with the paywall page.
	OutcomePaywall
	// OutcomePaid means a payment was verified and a session issued.
	OutcomePaid
	// OutcomeFailed means a submitted payment was rejected.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeGranted:
		return "granted"
	case OutcomePaymentRequired:
		return "payment_required"
	case OutcomePaywall:
		return "paywall"
	case OutcomePaid:
		return "paid"
	case OutcomeFailed:
		return "failed"
	}
	return "unknown"
}

// Result tells the HTTP layer what to send back.
type Result struct {
	Outcome Outcome
	Status  int
	Config  *resource.PaywallConfig

	// Requirements is set for OutcomePaymentRequired and OutcomePaywall.
	Requirements *x402.PaymentRequiredResponse

	Session *session.Session
	Entry   *paymentlog.Entry

	Cookies []*http.Cookie
	Header  http.Header
	// Redirect is where browsers go next, empty for machine clients.
	Redirect string

	// Body is the JSON body for machine clients.
	Body any

	Error  *x402.PaymentError
	Notice *notice.Notice
}

// FailureBody is the JSON error envelope sent to machine clients.
type FailureBody struct {
	Success bool         `json:"success"`
	Error   FailureError `json:"error"`
}

type FailureError struct {
	Message   string `json:"message"`
	Status    int    `json:"status"`
	Code      string `json:"code,omitempty"`
	Reference string `json:"reference,omitempty"`
	Details   string `json:"details,omitempty"`
}

// PaidBody is sent to machine clients after a verified payment.
type PaidBody struct {
	Success     bool   `json:"success"`
	Resource    string `json:"resource"`
	Session     string `json:"session"`
	ExpiresIn   int    `json:"expires_in"`
	Payer       string `json:"payer"`
	Transaction string `json:"transaction,omitempty"`
	Network     string `json:"network,omitempty"`
}
