package x402

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/mondb-dev/x402-wp/internal/address"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
}

var encodings = []*base64.Encoding{
	base64.StdEncoding,
	base64.URLEncoding,
	base64.RawStdEncoding,
	base64.RawURLEncoding,
}

// DecodeHeader parses an X-Payment header value. The value is normally a
// base64 encoded JSON envelope; plain JSON is accepted as well.
func DecodeHeader(value string) (*PaymentPayload, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidHeader)
	}

	raw := decodeBase64JSON(value)
	if raw == nil {
		if !json.Valid([]byte(value)) {
			return nil, fmt.Errorf("%w: neither base64 nor json", ErrInvalidHeader)
		}
		raw = []byte(value)
	}

	var p PaymentPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHeader, err)
	}
	if err := validate.Struct(&p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHeader, err)
	}

	if p.Scheme != SchemeExact {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, p.Scheme)
	}

	switch address.FamilyOf(p.Network) {
	case address.FamilySVM:
		var svm SVMPayload
		if err := decodeSubPayload(p.Payload, &svm); err != nil {
			return nil, err
		}
		p.svm = &svm
	default:
		var evm EVMPayload
		if err := decodeSubPayload(p.Payload, &evm); err != nil {
			return nil, err
		}

		from, ok := address.Normalize(evm.Authorization.From, p.Network)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPayer, evm.Authorization.From)
		}
		evm.Authorization.from = from
		p.evm = &evm
	}

	return &p, nil
}

// EncodeHeader is the inverse of DecodeHeader. Clients and tests use it to
// build X-Payment values.
func EncodeHeader(p PaymentPayload) (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("json.Marshal: %w", err)
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// EncodePaymentResponse builds the X-Payment-Response header value.
func EncodePaymentResponse(r PaymentResponse) string {
	b, _ := json.Marshal(r)
	return base64.StdEncoding.EncodeToString(b)
}

func decodeBase64JSON(value string) []byte {
	for _, enc := range encodings {
		b, err := enc.DecodeString(value)
		if err == nil && json.Valid(b) {
			return b
		}
	}
	return nil
}

func decodeSubPayload(raw json.RawMessage, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}
