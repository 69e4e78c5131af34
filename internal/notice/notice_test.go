package notice

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mondb-dev/x402-wp/internal/kv"
)

func TestSanitize(t *testing.T) {
	var tests = []struct {
		in       string
		expected string
	}{
		{"Payment failed", "Payment failed"},
		{"<script>alert(1)</script>Payment failed", "Payment failed"},
		{"<b>bold</b> & <i>italic</i>", "bold & italic"},
		{"  spaced  ", "spaced"},
		{`<a href="javascript:x()">click</a>`, "click"},
		{"&lt;script&gt;alert(1)&lt;/script&gt;", ""},
		{"payment was not accepted: &lt;img src=x onerror=alert(1)&gt;", "payment was not accepted:"},
		{"&amp;lt;b&amp;gt;bold&amp;lt;/b&amp;gt;", "bold"},
		{"&#60;i&#62;italic&#60;/i&#62;", "italic"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.expected, Sanitize(tt.in))
		})
	}
}

func TestPushPop(t *testing.T) {
	ctx := context.Background()
	q := New(kv.NewMemory(), 0)

	id, err := q.Push(ctx, "", Notice{Message: "<b>Payment</b> failed", Status: 402, Code: "payment_required", Reference: "X402-000001"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	same, err := q.Push(ctx, id, Notice{Message: "again", Status: 500})
	require.NoError(t, err)
	assert.Equal(t, id, same)

	notices, err := q.Pop(ctx, id)
	require.NoError(t, err)
	require.Len(t, notices, 2)
	assert.Equal(t, "Payment failed", notices[0].Message)
	assert.Equal(t, "X402-000001", notices[0].Reference)
	assert.Equal(t, 500, notices[1].Status)

	notices, err = q.Pop(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, notices)
}

func TestPushCapsQueue(t *testing.T) {
	ctx := context.Background()
	q := New(kv.NewMemory(), 0)

	id := ""
	for i := 0; i < maxQueued+3; i++ {
		var err error
		id, err = q.Push(ctx, id, Notice{Message: fmt.Sprintf("n%d", i)})
		require.NoError(t, err)
	}

	notices, err := q.Pop(ctx, id)
	require.NoError(t, err)
	require.Len(t, notices, maxQueued)
	assert.Equal(t, fmt.Sprintf("n%d", maxQueued+2), notices[maxQueued-1].Message)
}

func TestPopUnknownID(t *testing.T) {
	q := New(kv.NewMemory(), 0)

	notices, err := q.Pop(context.Background(), "../../etc")
	assert.NoError(t, err)
	assert.Nil(t, notices)
}

func TestCookie(t *testing.T) {
	c := New(kv.NewMemory(), 0).Cookie("abc", true)
	assert.Equal(t, CookieName, c.Name)
	assert.Equal(t, 600, c.MaxAge)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
}
