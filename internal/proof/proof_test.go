package proof

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfirm(t *testing.T) {
	var tests = []struct {
		name       string
		settlement string
		expected   bool
	}{
		{"proof object", `{"proof":{"signature":"0xabc","payload":{"amount":"2500000"}},"transaction":"0xdeadbeef"}`, true},
		{"proof json string", `{"proof":"{\"signature\":\"0xabc\",\"payload\":\"msg\"}"}`, true},
		{"settlement_proof", `{"settlement_proof":{"signature":"0xabc","payload":"msg"}}`, true},
		{"signed message", `{"proof":{"signedMessage":{"signature":"0xabc","payload":{"a":1}}}}`, true},
		{"mixed locations", `{"proof":{"signature":"0xabc","signedMessage":{"payload":[1]}}}`, true},
		{"settlement itself", `{"signature":"0xabc","payload":{"a":1},"verified":true}`, true},
		{"proof wins over settlement_proof", `{"proof":{"payload":"msg"},"settlement_proof":{"signature":"0xabc","payload":"msg"}}`, false},
		{"missing signature", `{"verified":true,"proof":{"payload":{"amount":"2500000"}},"transaction":"0xdeadbeef"}`, false},
		{"empty signature", `{"proof":{"signature":"","payload":"msg"}}`, false},
		{"null signature", `{"proof":{"signature":null,"payload":"msg"}}`, false},
		{"false signature", `{"proof":{"signature":false,"payload":"msg"}}`, false},
		{"true signature", `{"proof":{"signature":true,"payload":"msg"}}`, false},
		{"numeric signature", `{"proof":{"signature":0,"payload":"msg"}}`, false},
		{"missing payload", `{"proof":{"signature":"0xabc"}}`, false},
		{"false payload", `{"proof":{"signature":"0xabc","payload":false}}`, false},
		{"empty object payload", `{"proof":{"signature":"0xabc","payload":{}}}`, false},
		{"empty array payload", `{"proof":{"signature":"0xabc","payload":[]}}`, false},
		{"verified flag only", `{"verified":true}`, false},
		{"not json", `verified`, false},
		{"array", `[{"signature":"0xabc","payload":"msg"}]`, false},
		{"empty", ``, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Confirm([]byte(tt.settlement)))
		})
	}
}

func TestLocate(t *testing.T) {
	assert.JSONEq(t, `{"signature":"s","payload":"p"}`, string(Locate([]byte(`{"proof":"{\"signature\":\"s\",\"payload\":\"p\"}"}`))))
	assert.JSONEq(t, `{"signature":"s"}`, string(Locate([]byte(`{"settlement_proof":{"signature":"s"}}`))))
	assert.JSONEq(t, `{"proof":"not json","x":1}`, string(Locate([]byte(`{"proof":"not json","x":1}`))))
	assert.Nil(t, Locate([]byte(`"string"`)))
}

func TestExtract(t *testing.T) {
	ev := Extract([]byte(`{"proof":{"signature":"0xabc","payload":{"a":1},"paymentId":"pay_123"},"transaction":"0xdeadbeef"}`))

	assert.Equal(t, "0xabc", ev.Signature)
	assert.Equal(t, "pay_123", ev.Reference)
	assert.Equal(t, "0xdeadbeef", ev.Transaction)
	assert.JSONEq(t, `{"signature":"0xabc","payload":{"a":1},"paymentId":"pay_123"}`, string(ev.Proof))

	ev = Extract([]byte(`{"signedMessage":{"signature":"0xdef"},"id":42}`))
	assert.Equal(t, "0xdef", ev.Signature)
	assert.Equal(t, "42", ev.Reference)

	ev = Extract([]byte(`nope`))
	assert.Empty(t, ev.Signature)
	assert.Nil(t, ev.Proof)
}
