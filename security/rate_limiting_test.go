package security

import (
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
)

func TestIsSuspiciousUserAgent(t *testing.T) {
	client, _ := redismock.NewClientMock()
	r := NewRateLimiter(client)

	assert.True(t, r.isSuspiciousUserAgent("Googlebot/2.1"))
	assert.True(t, r.isSuspiciousUserAgent("my-scraper/1.0"))
	assert.True(t, r.isSuspiciousUserAgent("WebCrawler"))
	assert.True(t, r.isSuspiciousUserAgent("SPIDER"))

	assert.False(t, r.isSuspiciousUserAgent("Mozilla/5.0 (X11; Linux x86_64)"))
	assert.False(t, r.isSuspiciousUserAgent(""))
}
