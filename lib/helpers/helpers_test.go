package helpers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEscapeMarkdownV2(t *testing.T) {
	assert.Equal(t, `price\_usd \= 1\.5 \(approx\)\!`, EscapeMarkdownV2("price_usd = 1.5 (approx)!"))
	assert.Equal(t, `a\\b`, EscapeMarkdownV2(`a\b`))
	assert.Equal(t, "plain text", EscapeMarkdownV2("plain text"))
}

func TestFormatCount(t *testing.T) {
	assert.Equal(t, "1,234,567", FormatCount("en", 1234567))
	assert.Equal(t, "12", FormatCount("en", 12))
	assert.Equal(t, "1,000", FormatCount("not a tag!", 1000))
}

func TestFormatUptime(t *testing.T) {
	assert.Equal(t, "0s", FormatUptime(0))
	assert.Equal(t, "2 hours", FormatUptime(2*time.Hour+10*time.Minute))
	assert.Equal(t, "3 days", FormatUptime(3*24*time.Hour))
}

func TestFormatSince(t *testing.T) {
	assert.Equal(t, "now", FormatSince(time.Now()))
	assert.Equal(t, "1 hour ago", FormatSince(time.Now().Add(-time.Hour-time.Minute)))
}
