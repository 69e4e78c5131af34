// Package proof checks that a facilitator settlement carries the evidence
// needed before access is granted: a non-empty signature over a non-empty
// payload. Cryptographic verification of that signature belongs to the
// facilitator and is not repeated here.
package proof

import (
	"encoding/json"

	"github.com/tidwall/gjson"
)

var (
	signaturePaths = []string{"signature", "signedMessage.signature"}
	payloadPaths   = []string{"payload", "signedMessage.payload"}
	referencePaths = []string{"reference", "paymentId", "payment_id", "id"}
	txPaths        = []string{"transaction", "transactionHash", "transaction_hash", "txHash"}
)

// Evidence is what gets recorded about a settlement in the payment log.
type Evidence struct {
	Proof       json.RawMessage
	Signature   string
	Reference   string
	Transaction string
}

// Locate returns the proof object inside a settlement. It is the "proof"
// field, else the "settlement_proof" field, else the settlement itself.
// Either field may hold an object or a JSON encoded string.
func Locate(settlement []byte) []byte {
	if !gjson.ValidBytes(settlement) {
		return nil
	}

	root := gjson.ParseBytes(settlement)
	if !root.IsObject() {
		return nil
	}

	for _, field := range []string{"proof", "settlement_proof"} {
		if obj, ok := asObject(root.Get(field)); ok {
			return obj
		}
	}

	return []byte(root.Raw)
}

// Confirm reports whether the settlement's proof has both a signature and a
// payload.
func Confirm(settlement []byte) bool {
	p := Locate(settlement)
	if p == nil {
		return false
	}

	sig := first(p, signaturePaths)
	if sig.Type != gjson.String && sig.Type != gjson.JSON {
		return false
	}
	return nonEmpty(sig) && nonEmpty(first(p, payloadPaths))
}

// Extract collects the proof, signature, reference and transaction hash of a
// settlement for logging. Missing values are left empty.
func Extract(settlement []byte) Evidence {
	var ev Evidence

	p := Locate(settlement)
	if p == nil {
		return ev
	}
	ev.Proof = json.RawMessage(p)

	if sig := first(p, signaturePaths); sig.Type == gjson.String {
		ev.Signature = sig.Str
	}

	for _, src := range [][]byte{p, settlement} {
		if ev.Reference == "" {
			ev.Reference = scalar(first(src, referencePaths))
		}
		if ev.Transaction == "" {
			ev.Transaction = scalar(first(src, txPaths))
		}
	}

	return ev
}

func asObject(r gjson.Result) ([]byte, bool) {
	switch {
	case r.IsObject():
		return []byte(r.Raw), true
	case r.Type == gjson.String && gjson.Valid(r.Str):
		inner := gjson.Parse(r.Str)
		if inner.IsObject() {
			return []byte(inner.Raw), true
		}
	}
	return nil, false
}

func first(doc []byte, paths []string) gjson.Result {
	for _, path := range paths {
		if r := gjson.GetBytes(doc, path); r.Exists() {
			return r
		}
	}
	return gjson.Result{}
}

// nonEmpty treats null, "", {} and [] as missing.
func nonEmpty(r gjson.Result) bool {
	switch r.Type {
	case gjson.Null, gjson.False:
		return false
	case gjson.String:
		return r.Str != ""
	case gjson.JSON:
		if r.IsArray() {
			return len(r.Array()) > 0
		}
		empty := true
		r.ForEach(func(_, _ gjson.Result) bool {
			empty = false
			return false
		})
		return !empty
	default:
		return true
	}
}

func scalar(r gjson.Result) string {
	switch r.Type {
	case gjson.String, gjson.Number:
		return r.String()
	}
	return ""
}
