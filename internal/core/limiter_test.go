package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSenderLimiter(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	l := newSenderLimiter(60, 2)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("alice"))
	assert.True(t, l.Allow("ALICE"))
	assert.False(t, l.Allow("alice"))
	assert.True(t, l.Allow("bob"))

	now = now.Add(time.Second)
	assert.True(t, l.Allow("alice"), "one token refills per second at 60/min")

	now = now.Add(time.Hour)
	l.Allow("carol")
	assert.NotContains(t, l.buckets, "bob", "idle senders are forgotten")
}

func TestNilLimiterAllowsAll(t *testing.T) {
	var l *senderLimiter
	assert.True(t, l.Allow("anyone"))
	assert.Nil(t, newSenderLimiter(0, 5))
	assert.Nil(t, newSenderLimiter(-1, 5))
	assert.Nil(t, newSenderLimiter(0, 5))
}
