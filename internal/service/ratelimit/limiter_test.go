package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLimiterBurstThenRefill(t *testing.T) {
	l := New()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.True(t, l.AllowAt("1.2.3.4", 2, 1, now))
	assert.True(t, l.AllowAt("1.2.3.4", 2, 1, now))
	assert.False(t, l.AllowAt("1.2.3.4", 2, 1, now))
	assert.True(t, l.AllowAt("5.6.7.8", 2, 1, now), "keys are isolated")

	assert.True(t, l.AllowAt("1.2.3.4", 2, 1, now.Add(time.Second)))
}

func TestCooldownExpires(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewCooldown(func() time.Time { return now })

	assert.False(t, c.Active("coingecko"))
	c.Trip("coingecko", 15*time.Minute)
	assert.True(t, c.Active("coingecko"))
	assert.Equal(t, 15*time.Minute, c.Remaining("coingecko"))

	now = now.Add(15 * time.Minute)
	assert.False(t, c.Active("coingecko"))

	c.Trip("reddit", 0)
	assert.False(t, c.Active("reddit"))
}
