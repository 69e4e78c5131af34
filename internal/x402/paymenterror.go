package x402

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies payment failures.
type Kind string

const (
	KindInvalidAmountFormat     Kind = "invalid_amount_format"
	KindPrecisionExceeded       Kind = "precision_exceeded"
	KindAmountNotPositive       Kind = "amount_not_positive"
	KindInvalidPayer            Kind = "invalid_payer"
	KindUnsupportedScheme       Kind = "unsupported_scheme"
	KindInvalidHeader           Kind = "invalid_header"
	KindPaymentRequired         Kind = "payment_required"
	KindValidationError         Kind = "validation_error"
	KindFacilitatorError        Kind = "facilitator_error"
	KindProofConfirmationFailed Kind = "proof_confirmation_failed"
	KindPayerUnresolvable       Kind = "payer_unresolvable"
	KindPaymentNotVerified      Kind = "payment_not_verified"
	KindUnexpectedError         Kind = "unexpected_error"
)

// Status is the HTTP status a failure of this kind maps to by default.
func (k Kind) Status() int {
	switch k {
	case KindPaymentRequired, KindPaymentNotVerified, KindProofConfirmationFailed, KindPayerUnresolvable:
		return http.StatusPaymentRequired
	case KindValidationError, KindInvalidPayer, KindUnsupportedScheme, KindInvalidHeader:
		return http.StatusBadRequest
	case KindFacilitatorError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// PaymentError is the single error shape returned by the facilitator
// adapter and the payment pipeline.
type PaymentError struct {
	Kind   Kind
	Status int
	// Code is the facilitator's reason code when it gave one.
	Code               string
	Message            string
	FacilitatorMessage string
	Cause              error
}

func NewPaymentError(kind Kind, message string, cause error) *PaymentError {
	return &PaymentError{
		Kind:    kind,
		Status:  kind.Status(),
		Message: message,
		Cause:   cause,
	}
}

func (e *PaymentError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *PaymentError) Unwrap() error {
	return e.Cause
}

// ErrorCode is the code shown to clients: the facilitator's code or the kind.
func (e *PaymentError) ErrorCode() string {
	if e.Code != "" {
		return e.Code
	}
	return string(e.Kind)
}

// AsPaymentError finds a PaymentError in err's chain.
func AsPaymentError(err error) (*PaymentError, bool) {
	var pe *PaymentError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// KindOf returns the kind of the first PaymentError in err's chain, or
// KindUnexpectedError when there is none.
func KindOf(err error) Kind {
	if pe, ok := AsPaymentError(err); ok {
		return pe.Kind
	}
	return KindUnexpectedError
}
