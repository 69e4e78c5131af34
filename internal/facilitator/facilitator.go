// Package facilitator talks to the x402 facilitator service that verifies
// and settles payments. All failures are returned as *x402.PaymentError.
package facilitator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/mondb-dev/x402-wp/internal/x402"
)

const (
	DefaultTimeout = 20 * time.Second

	maxBodyBytes = 1 << 20
)

// HTTPError is a non-2xx answer from the facilitator.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("facilitator responded %d: %s", e.StatusCode, e.Body)
}

func New(baseURL, apiKey string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid facilitator url %q", baseURL)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		timeout: timeout,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

type Client struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	http    *http.Client
}

type request struct {
	X402Version         int                      `json:"x402Version"`
	PaymentPayload      *x402.PaymentPayload     `json:"paymentPayload"`
	PaymentRequirements x402.PaymentRequirements `json:"paymentRequirements"`
}

// VerifyAndSettle verifies p against req and settles it. A nil error with
// Verified false means the facilitator declined without giving a reason.
func (c *Client) VerifyAndSettle(ctx context.Context, req x402.PaymentRequirements, p *x402.PaymentPayload) (*x402.SettlementResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body := request{
		X402Version:         x402.Version,
		PaymentPayload:      p,
		PaymentRequirements: req,
	}

	verify, err := c.post(ctx, "/verify", body)
	if err != nil {
		return nil, err
	}

	if !gjson.GetBytes(verify, "isValid").Bool() && !gjson.GetBytes(verify, "verified").Bool() {
		reason := gjson.GetBytes(verify, "invalidReason").String()
		if reason == "" {
			return &x402.SettlementResult{Verified: false}, nil
		}
		pe := x402.NewPaymentError(x402.KindPaymentRequired, "payment was not accepted: "+reason, nil)
		pe.Code = reason
		pe.FacilitatorMessage = reason
		return nil, pe
	}

	settle, err := c.post(ctx, "/settle", body)
	if err != nil {
		return nil, err
	}

	return parseSettlement(settle, gjson.GetBytes(verify, "payer").String())
}

func parseSettlement(body []byte, verifiedPayer string) (*x402.SettlementResult, error) {
	root := gjson.ParseBytes(body)

	success := root.Get("success").Bool() || root.Get("verified").Bool()
	if !success {
		if reason := root.Get("errorReason").String(); reason != "" {
			pe := x402.NewPaymentError(x402.KindPaymentRequired, "settlement failed: "+reason, nil)
			pe.Code = reason
			pe.FacilitatorMessage = reason
			return nil, pe
		}
	}

	settlement := root.Get("settlement")
	raw := []byte(root.Raw)
	if settlement.IsObject() {
		raw = []byte(settlement.Raw)
	}

	res := &x402.SettlementResult{
		Verified:    success,
		Payer:       firstString(root, settlement, "payer"),
		Transaction: firstString(root, settlement, "transaction"),
		Network:     firstString(root, settlement, "network"),
		Settlement:  json.RawMessage(raw),
	}
	if res.Payer == "" {
		res.Payer = verifiedPayer
	}

	return res, nil
}

func firstString(a, b gjson.Result, path string) string {
	if v := a.Get(path).String(); v != "" {
		return v
	}
	return b.Get(path).String()
}

func (c *Client) post(ctx context.Context, path string, body any) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, x402.NewPaymentError(x402.KindUnexpectedError, "could not encode facilitator request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return nil, x402.NewPaymentError(x402.KindUnexpectedError, "could not build facilitator request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, x402.NewPaymentError(x402.KindFacilitatorError, "facilitator unavailable", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, x402.NewPaymentError(x402.KindFacilitatorError, "could not read facilitator response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, classify(&HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))})
	}

	if !gjson.ValidBytes(respBody) {
		return nil, x402.NewPaymentError(x402.KindFacilitatorError, "facilitator returned invalid json", nil)
	}

	return respBody, nil
}

// classify maps a facilitator HTTP error to a payment error kind. The
// upstream status is kept.
func classify(httpErr *HTTPError) *x402.PaymentError {
	msg := facilitatorMessage(httpErr.Body)

	var pe *x402.PaymentError
	switch httpErr.StatusCode {
	case http.StatusPaymentRequired:
		pe = x402.NewPaymentError(x402.KindPaymentRequired, "payment required", httpErr)
		pe.Code = gjson.Get(httpErr.Body, "invalidReason").String()
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		pe = x402.NewPaymentError(x402.KindValidationError, "payment rejected by facilitator", httpErr)
	default:
		pe = x402.NewPaymentError(x402.KindFacilitatorError, "facilitator error", httpErr)
	}

	pe.Status = StatusFrom(httpErr, pe.Status)
	pe.FacilitatorMessage = msg
	return pe
}

// StatusFrom returns the upstream status of the first HTTPError in err's
// chain, or def.
func StatusFrom(err error, def int) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) && httpErr.StatusCode > 0 {
		return httpErr.StatusCode
	}
	return def
}

func facilitatorMessage(body string) string {
	for _, path := range []string{"error.message", "error", "message", "invalidReason", "errorReason"} {
		if v := gjson.Get(body, path); v.Type == gjson.String && v.Str != "" {
			return v.Str
		}
	}
	return body
}
