// Package paywall runs the pay-per-access flow for one request: it checks
// for a session, answers with payment requirements, verifies and settles a
// submitted payment with the facilitator, confirms the settlement proof,
// records the attempt and issues a session.
package paywall

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mondb-dev/x402-wp/internal/address"
	"github.com/mondb-dev/x402-wp/internal/notice"
	"github.com/mondb-dev/x402-wp/internal/paymentlog"
	"github.com/mondb-dev/x402-wp/internal/proof"
	"github.com/mondb-dev/x402-wp/internal/resource"
	"github.com/mondb-dev/x402-wp/internal/session"
	"github.com/mondb-dev/x402-wp/internal/x402"
)

const unexpectedMessage = "An unexpected error occurred while processing your payment."

type catalog interface {
	PaywallConfig(id string) (*resource.PaywallConfig, error)
}

type settler interface {
	VerifyAndSettle(ctx context.Context, req x402.PaymentRequirements, p *x402.PaymentPayload) (*x402.SettlementResult, error)
}

type paymentLog interface {
	Record(ctx context.Context, e paymentlog.Entry) (*paymentlog.Entry, error)
}

type sessionManager interface {
	Issue(ctx context.Context, resource, payer string, proof json.RawMessage) (*session.Session, error)
	Validate(ctx context.Context, resource, presented string) (*session.Session, error)
	Refresh(ctx context.Context, sess *session.Session) error
	Cookie(sess *session.Session, path string, secure bool) *http.Cookie
	TTL() time.Duration
}

type Config struct {
	// TimeoutSeconds is advertised in the requirements. Defaults to 300.
	TimeoutSeconds int
}

type Service struct {
	cfg      Config
	catalog  catalog
	fac      settler
	log      paymentLog
	sessions sessionManager
	logger   *zap.Logger
}

func New(cfg Config, catalog catalog, fac settler, log paymentLog, sessions sessionManager, logger *zap.Logger) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = DefaultTimeoutSeconds
	}

	return &Service{
		cfg:      cfg,
		catalog:  catalog,
		fac:      fac,
		log:      log,
		sessions: sessions,
		logger:   logger,
	}, nil
}

// Requirements returns the 402 body for resource id.
func (s *Service) Requirements(id string) (*resource.PaywallConfig, *x402.PaymentRequiredResponse, error) {
	cfg, err := s.config(id)
	if err != nil {
		return nil, nil, err
	}
	return cfg, PaymentRequired("", BuildRequirements(cfg, s.cfg.TimeoutSeconds)), nil
}

// Handle runs the payment flow for req. The returned error is only set for
// unknown or misconfigured resources; payment failures are reported in the
// Result.
func (s *Service) Handle(ctx context.Context, req Request) (*Result, error) {
	cfg, err := s.config(req.ResourceID)
	if err != nil {
		return nil, err
	}

	var cookies []*http.Cookie
	if c := session.ClearLegacy(req.Cookies, cfg.ResourceID, cfg.Path); c != nil {
		cookies = append(cookies, c)
	}

	if sess := s.currentSession(ctx, cfg, req); sess != nil {
		return &Result{
			Outcome: OutcomeGranted,
			Status:  http.StatusOK,
			Config:  cfg,
			Session: sess,
			Cookies: append(cookies, s.sessions.Cookie(sess, cfg.Path, req.Secure)),
		}, nil
	}

	header := req.Header.Get(x402.HeaderPayment)
	if header == "" {
		return s.requirePayment(cfg, req, cookies, ""), nil
	}

	payload, err := x402.DecodeHeader(header)
	if err != nil {
		s.logger.Info("payment header rejected",
			zap.String("resource", cfg.ResourceID),
			zap.Error(err),
		)
		return s.requirePayment(cfg, req, cookies, headerRejection(err)), nil
	}

	res := s.settle(ctx, cfg, req, payload)
	res.Cookies = append(cookies, res.Cookies...)
	return res, nil
}

func (s *Service) config(id string) (*resource.PaywallConfig, error) {
	cfg, err := s.catalog.PaywallConfig(id)
	if err != nil {
		if errors.Is(err, resource.ErrResourceNotFound) {
			return nil, err
		}
		s.logger.Error("resource payment terms invalid",
			zap.String("resource", id),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %v", ErrMisconfigured, err)
	}
	return cfg, nil
}

// currentSession validates and refreshes the presented session, if any.
func (s *Service) currentSession(ctx context.Context, cfg *resource.PaywallConfig, req Request) *session.Session {
	presented := session.Presented(req.Header, req.Cookies, cfg.ResourceID)
	if presented == "" {
		return nil
	}

	sess, err := s.sessions.Validate(ctx, cfg.ResourceID, presented)
	if err != nil {
		if errors.Is(err, session.ErrInvalidSession) {
			s.logger.Warn("session rejected", zap.String("resource", cfg.ResourceID))
		} else if !errors.Is(err, session.ErrSessionNotFound) {
			s.logger.Error("session lookup failed", zap.String("resource", cfg.ResourceID), zap.Error(err))
		}
		return nil
	}

	if err := s.sessions.Refresh(ctx, sess); err != nil {
		s.logger.Warn("session refresh failed", zap.String("resource", cfg.ResourceID), zap.Error(err))
	}
	return sess
}

func (s *Service) requirePayment(cfg *resource.PaywallConfig, req Request, cookies []*http.Cookie, reason string) *Result {
	outcome := OutcomePaywall
	if req.Machine {
		outcome = OutcomePaymentRequired
	}

	return &Result{
		Outcome:      outcome,
		Status:       http.StatusPaymentRequired,
		Config:       cfg,
		Requirements: PaymentRequired(reason, BuildRequirements(cfg, s.cfg.TimeoutSeconds)),
		Cookies:      cookies,
	}
}

// attempt collects what is known about a submitted payment for the log.
type attempt struct {
	cfg        *resource.PaywallConfig
	req        Request
	payload    *x402.PaymentPayload
	settlement *x402.SettlementResult
	evidence   proof.Evidence
}

func (s *Service) settle(ctx context.Context, cfg *resource.PaywallConfig, req Request, payload *x402.PaymentPayload) *Result {
	a := attempt{cfg: cfg, req: req, payload: payload}

	requirements := BuildRequirements(cfg, s.cfg.TimeoutSeconds)

	res, err := s.fac.VerifyAndSettle(ctx, requirements, payload)
	if err != nil {
		return s.fail(ctx, a, asPaymentError(err))
	}
	if res == nil {
		return s.fail(ctx, a, x402.NewPaymentError(x402.KindUnexpectedError, unexpectedMessage, errors.New("facilitator returned no settlement")))
	}
	a.settlement = res
	a.evidence = proof.Extract(res.Settlement)

	if !res.Verified {
		return s.fail(ctx, a, x402.NewPaymentError(x402.KindPaymentNotVerified, "Payment could not be verified.", nil))
	}

	if !proof.Confirm(res.Settlement) {
		return s.fail(ctx, a, x402.NewPaymentError(x402.KindProofConfirmationFailed, "Payment settlement could not be confirmed.", nil))
	}

	payer, ok := s.resolvePayer(a)
	if !ok {
		return s.fail(ctx, a, x402.NewPaymentError(x402.KindPayerUnresolvable, "Could not determine the paying wallet.", nil))
	}

	entry := s.entry(a, paymentlog.StatusVerified)
	entry.NormalizedAddress = payer
	entry.PayerIdentifier = payer

	recorded, err := s.log.Record(ctx, entry)
	if err != nil {
		// The payment is settled at this point; access is still granted.
		s.logger.Error("recording verified payment failed",
			zap.String("resource", cfg.ResourceID),
			zap.String("payer", payer),
			zap.Error(err),
		)
		recorded = nil
	}

	sess, err := s.sessions.Issue(ctx, cfg.ResourceID, payer, a.evidence.Proof)
	if err != nil {
		s.logger.Error("issuing session failed",
			zap.String("resource", cfg.ResourceID),
			zap.Error(err),
		)
		pe := x402.NewPaymentError(x402.KindUnexpectedError, unexpectedMessage, err)
		return s.failure(a, pe, recorded)
	}

	s.logger.Info("payment verified",
		zap.String("resource", cfg.ResourceID),
		zap.String("payer", payer),
		zap.String("transaction", res.Transaction),
	)

	header := http.Header{}
	header.Set(x402.HeaderPaymentResponse, x402.EncodePaymentResponse(x402.PaymentResponse{
		Success:     true,
		Transaction: res.Transaction,
		Network:     cfg.Network,
		Payer:       payer,
	}))
	header.Set(x402.HeaderPaymentSession, sess.Bearer())

	result := &Result{
		Outcome: OutcomePaid,
		Config:  cfg,
		Session: sess,
		Entry:   recorded,
		Cookies: []*http.Cookie{s.sessions.Cookie(sess, cfg.Path, req.Secure)},
		Header:  header,
	}

	if req.Machine {
		result.Status = http.StatusOK
		result.Body = PaidBody{
			Success:     true,
			Resource:    cfg.ResourceURL,
			Session:     sess.Bearer(),
			ExpiresIn:   int(s.sessions.TTL() / time.Second),
			Payer:       payer,
			Transaction: res.Transaction,
			Network:     cfg.Network,
		}
	} else {
		result.Status = http.StatusSeeOther
		result.Redirect = cfg.Path
	}

	return result
}

// resolvePayer prefers the payer reported in the settlement and falls back
// to the signer of the submitted payload.
func (s *Service) resolvePayer(a attempt) (string, bool) {
	var (
		network = a.cfg.Network
		signer  = a.payload.Signer()
	)

	settled, ok := address.Normalize(a.settlement.Payer, network)
	if !ok {
		return signer, signer != ""
	}

	if signer != "" && signer != settled {
		s.logger.Warn("settlement payer differs from payload signer",
			zap.String("resource", a.cfg.ResourceID),
			zap.String("settlement_payer", settled),
			zap.String("signer", signer),
		)
	}
	return settled, true
}

// fail records a failed attempt and builds the failure result.
func (s *Service) fail(ctx context.Context, a attempt, pe *x402.PaymentError) *Result {
	entry := s.entry(a, paymentlog.StatusFailed)
	entry.ErrorStatus = paymentlog.Int(pe.Status)
	entry.ErrorCode = paymentlog.String(publicCode(pe))
	entry.ErrorMessage = paymentlog.String(errorDetail(pe))
	entry.FacilitatorMessage = paymentlog.String(pe.FacilitatorMessage)

	recorded, err := s.log.Record(ctx, entry)
	if err != nil {
		s.logger.Error("recording failed payment failed",
			zap.String("resource", a.cfg.ResourceID),
			zap.Error(err),
		)
		recorded = nil
	}

	s.logger.Warn("payment failed",
		zap.String("resource", a.cfg.ResourceID),
		zap.String("kind", string(pe.Kind)),
		zap.Int("status", pe.Status),
		zap.Error(pe),
	)

	return s.failure(a, pe, recorded)
}

func (s *Service) failure(a attempt, pe *x402.PaymentError, recorded *paymentlog.Entry) *Result {
	message := notice.Sanitize(pe.Message)
	if pe.Kind == x402.KindUnexpectedError || message == "" {
		message = unexpectedMessage
	}
	code := publicCode(pe)

	var reference string
	if recorded != nil {
		reference = recorded.SupportReference()
	}

	result := &Result{
		Outcome: OutcomeFailed,
		Status:  pe.Status,
		Config:  a.cfg,
		Entry:   recorded,
		Error:   pe,
	}

	if a.req.Machine {
		result.Body = FailureBody{
			Success: false,
			Error: FailureError{
				Message:   message,
				Status:    pe.Status,
				Code:      code,
				Reference: reference,
			},
		}
		return result
	}

	result.Notice = &notice.Notice{
		Message:   message,
		Status:    pe.Status,
		Code:      code,
		Reference: reference,
	}
	result.Redirect = a.cfg.Path
	return result
}

// entry fills the fields shared by verified and failed log entries.
func (s *Service) entry(a attempt, status paymentlog.Status) paymentlog.Entry {
	e := paymentlog.Entry{
		ResourceID:   a.cfg.ResourceID,
		Amount:       a.cfg.Amount,
		TokenAddress: a.cfg.TokenAddress,
		Network:      a.cfg.Network,
		Status:       status,
	}

	if evm := a.payload.EVM(); evm != nil {
		e.UserAddress = evm.Authorization.From
	}
	e.NormalizedAddress = a.payload.Signer()

	if a.settlement != nil {
		if e.UserAddress == "" {
			e.UserAddress = a.settlement.Payer
		}
		if e.NormalizedAddress == "" {
			e.NormalizedAddress, _ = address.Normalize(a.settlement.Payer, a.cfg.Network)
		}

		tx := a.settlement.Transaction
		if tx == "" {
			tx = a.evidence.Transaction
		}
		e.TransactionHash = paymentlog.String(tx)
		e.FacilitatorSignature = paymentlog.String(a.evidence.Signature)
		e.FacilitatorReference = paymentlog.String(a.evidence.Reference)
		if len(a.evidence.Proof) > 0 {
			e.SettlementProof = paymentlog.String(string(a.evidence.Proof))
		}
	}
	e.PayerIdentifier = e.NormalizedAddress

	return e
}

// asPaymentError turns any facilitator error into a PaymentError.
func asPaymentError(err error) *x402.PaymentError {
	if pe, ok := x402.AsPaymentError(err); ok {
		return pe
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return x402.NewPaymentError(x402.KindFacilitatorError, "The payment facilitator did not respond in time.", err)
	}
	return x402.NewPaymentError(x402.KindUnexpectedError, unexpectedMessage, err)
}

// publicCode reduces the error code to a snake_case token safe to show to
// visitors and store. Codes with nothing left fall back to the error kind.
func publicCode(pe *x402.PaymentError) string {
	code := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			return r
		case r == ' ', r == '-', r == '.':
			return '_'
		default:
			return -1
		}
	}, strings.ToLower(notice.Sanitize(pe.ErrorCode())))

	if code == "" {
		return string(pe.Kind)
	}
	return code
}

func errorDetail(pe *x402.PaymentError) string {
	if pe.Cause != nil {
		return pe.Message + ": " + pe.Cause.Error()
	}
	return pe.Message
}

func headerRejection(err error) string {
	switch {
	case errors.Is(err, x402.ErrUnsupportedScheme):
		return "unsupported payment scheme"
	case errors.Is(err, x402.ErrInvalidPayer):
		return "invalid payer address"
	default:
		return "invalid X-PAYMENT header"
	}
}
