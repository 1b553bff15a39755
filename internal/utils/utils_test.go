package utils

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newContext(headers map[string]string) *gin.Context {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.9:5555"
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	c.Request = req
	return c
}

func TestGetRealIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{"public x-real-ip", map[string]string{"X-Real-IP": "203.0.113.7"}, "203.0.113.7"},
		{"first public forwarded", map[string]string{"X-Forwarded-For": "10.1.1.1, 198.51.100.4, 203.0.113.9"}, "198.51.100.4"},
		{"all private forwarded", map[string]string{"X-Forwarded-For": "192.168.0.3, 10.0.0.1"}, "192.168.0.3"},
		{"private x-real-ip falls through", map[string]string{"X-Real-IP": "10.2.2.2", "X-Forwarded-For": "198.51.100.1"}, "198.51.100.1"},
		{"no headers", nil, "10.0.0.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetRealIP(newContext(tt.headers)))
		})
	}
}

func TestGetUserAgent(t *testing.T) {
	assert.Equal(t, "Unknown", GetUserAgent(newContext(nil)))
	assert.Equal(t, "curl/8.0", GetUserAgent(newContext(map[string]string{"User-Agent": "curl/8.0"})))
}

func TestParseUserAgent(t *testing.T) {
	iphone := "Mozilla/5.0 (iPhone; CPU iPhone OS 16_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.0 Mobile/15E148 Safari/604.1"
	info := ParseUserAgent(iphone)
	assert.Equal(t, "mobile", info.DeviceType)
	assert.Equal(t, "ios", info.Platform)
	assert.False(t, info.IsBot)

	desktop := "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	info = ParseUserAgent(desktop)
	assert.Equal(t, "desktop", info.DeviceType)
	assert.Equal(t, "windows", info.Platform)
	assert.Equal(t, "Chrome", info.Browser)

	bot := ParseUserAgent("Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)")
	assert.True(t, bot.IsBot)

	unknown := ParseUserAgent("")
	assert.Equal(t, "unknown", unknown.DeviceType)
}

func TestGenerateSecret(t *testing.T) {
	first, err := GenerateSecret(32)
	require.NoError(t, err)
	second, err := GenerateSecret(32)
	require.NoError(t, err)
	assert.Len(t, first, 64)
	assert.NotEqual(t, first, second)

	_, err = GenerateSecret(0)
	assert.Error(t, err)
}

func TestSplitRoles(t *testing.T) {
	assert.Equal(t, []string{"guardian", "admin"}, SplitRoles(" Guardian, admin,,guardian "))
	assert.Empty(t, SplitRoles(""))
}
