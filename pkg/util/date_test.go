package util

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeFormats(t *testing.T) {
	ref := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)

	got, ok := ParseTime("2024-10-10T10:10:10Z")
	require.True(t, ok)
	assert.True(t, got.Equal(ref))

	got, ok = ParseTime(strconv.FormatInt(ref.Unix(), 10))
	require.True(t, ok)
	assert.Equal(t, ref.Unix(), got.Unix())

	got, ok = ParseTime(strconv.FormatInt(ref.UnixMilli(), 10))
	require.True(t, ok)
	assert.True(t, got.Equal(ref))

	_, ok = ParseTime("yesterday")
	assert.False(t, ok)
}

func TestParseTimeDefault(t *testing.T) {
	def := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	assert.True(t, ParseTimeDefault("", def).Equal(def))
}

func TestClampRange(t *testing.T) {
	to := time.Date(2024, 10, 10, 0, 0, 0, 0, time.UTC)
	from := to.Add(-48 * time.Hour)

	f, tt := ClampRange(to, from, 24*time.Hour)
	assert.True(t, tt.Equal(to))
	assert.Equal(t, 24*time.Hour, tt.Sub(f))
}

func TestNormalizeTokenKey(t *testing.T) {
	assert.Equal(t, "BTC", NormalizeTokenKey("  btc "))
}
