package metadata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credledger/pkg/requestcontext"
)

// capture runs a verifier-style GET through the middleware and returns the
// context the handler saw.
func capture(t *testing.T, cfg *Config, remoteAddr string, header http.Header) context.Context {
	t.Helper()
	var got context.Context
	h := NewMiddleware(cfg).Handler(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = r.Context()
	}))
	req := httptest.NewRequest(http.MethodGet, "/api/credentials/0x01/verify", nil)
	req.RemoteAddr = remoteAddr
	for k, v := range header {
		req.Header[k] = v
	}
	h.ServeHTTP(httptest.NewRecorder(), req)
	require.NotNil(t, got)
	return got
}

func TestClientIP(t *testing.T) {
	lb := &Config{TrustedProxies: []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")}}
	xff := func(v string) http.Header { return http.Header{"X-Forwarded-For": {v}} }

	cases := map[string]struct {
		cfg    *Config
		remote string
		header http.Header
		want   string
	}{
		"forwarded header ignored without trusted proxies": {nil, "198.51.100.7:443", xff("203.0.113.9"), "198.51.100.7"},
		"first hop taken from trusted load balancer":       {lb, "10.1.2.3:443", xff("203.0.113.9, 10.0.0.2"), "203.0.113.9"},
		"garbage forwarded value falls back to peer":        {lb, "10.1.2.3:443", xff("wallet-app"), "10.1.2.3"},
		"oversized forwarded header falls back to peer":     {lb, "10.1.2.3:443", xff(strings.Repeat("1", MaxXFFHeaderLength+1)), "10.1.2.3"},
		"untrusted peer cannot spoof":                       {lb, "192.0.2.50:443", xff("203.0.113.9"), "192.0.2.50"},
		"ipv6 peer":                                         {nil, "[2001:db8::1]:8080", nil, "2001:db8::1"},
		"missing peer":                                      {nil, "", nil, "unknown"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			ctx := capture(t, tc.cfg, tc.remote, tc.header)
			assert.Equal(t, tc.want, requestcontext.ClientIP(ctx))
		})
	}
}

func TestUserAgentAndDevice(t *testing.T) {
	firefox := "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0"
	ctx := capture(t, nil, "198.51.100.7:443", http.Header{"User-Agent": {firefox}})

	assert.Equal(t, firefox, requestcontext.UserAgent(ctx))
	assert.True(t, strings.HasPrefix(requestcontext.Device(ctx), "Firefox on "), requestcontext.Device(ctx))
}

func TestDeviceName(t *testing.T) {
	assert.Equal(t, "unknown", DeviceName(""))
	assert.Equal(t, "bot", DeviceName("Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)"))
}
