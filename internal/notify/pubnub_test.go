package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserChannel(t *testing.T) {
	assert.Equal(t, "user-abc123", UserChannel("abc123"))
}

func TestNop(t *testing.T) {
	assert.NotPanics(t, func() {
		Nop{}.Notify(context.Background(), "u1", TypePaymentPaid, map[string]any{"payment_id": "p1"})
	})
}
