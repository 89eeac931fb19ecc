package http

import (
	"mime"
	"net/http"
	"net/netip"
	"strings"
	"sync/atomic"
)

// securityMetrics tracks security-related events.
type securityMetrics struct {
	rateLimitHits      int64
	suspiciousRequests int64
	malformedAuth      int64
}

// Reasons a request is flagged by screenRequest.
const (
	reasonMalformedAuth   = "malformed_authorization"
	reasonOversizedQuery  = "oversized_query"
	reasonUnknownBodyType = "unsupported_content_type"
	reasonPathScan        = "path_scan"
	reasonScannerAgent    = "scanner_agent"
	reasonForwardedChain  = "long_forwarded_chain"
)

const (
	// maxQueryValue bounds a single query value on /api routes. The longest
	// legitimate value is a YYYY-MM-DD date or a category name.
	maxQueryValue = 64
	// maxForwardedHops is the longest X-Forwarded-For chain accepted silently.
	maxForwardedHops = 6
)

// trustedProxies may set X-Forwarded-For and X-Real-IP.
var trustedProxies = []netip.Prefix{
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("fc00::/7"),
}

func isTrustedProxy(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, p := range trustedProxies {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// extractClientIP returns the address write limits are keyed on. Forwarding
// headers count only when the direct peer is a trusted proxy, and the
// X-Forwarded-For chain is walked from the right so a client cannot pick its
// own address by prepending entries.
func extractClientIP(r *http.Request) string {
	peer, err := netip.ParseAddrPort(r.RemoteAddr)
	var direct netip.Addr
	if err == nil {
		direct = peer.Addr()
	} else if direct, err = netip.ParseAddr(r.RemoteAddr); err != nil {
		return r.RemoteAddr
	}
	direct = direct.Unmap()
	if !isTrustedProxy(direct) {
		return direct.String()
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
			if err != nil {
				break
			}
			hop = hop.Unmap()
			if !isTrustedProxy(hop) || i == 0 {
				return hop.String()
			}
		}
	}
	if xri, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); err == nil {
		return xri.Unmap().String()
	}
	return direct.String()
}

// screenRequest looks for traffic that does not fit the ledger API and
// returns why, or "" for an ordinary request. Flagged requests are still
// served; the result feeds logs and /metrics.
func screenRequest(r *http.Request, metrics *securityMetrics) string {
	reason := classify(r)
	if reason != "" && metrics != nil {
		atomic.AddInt64(&metrics.suspiciousRequests, 1)
		if reason == reasonMalformedAuth {
			atomic.AddInt64(&metrics.malformedAuth, 1)
		}
	}
	return reason
}

func classify(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" && !wellFormedBearer(h) {
		return reasonMalformedAuth
	}

	path := strings.ToLower(r.URL.Path)
	if strings.HasPrefix(path, "/api/") {
		for _, values := range r.URL.Query() {
			for _, v := range values {
				if len(v) > maxQueryValue {
					return reasonOversizedQuery
				}
			}
		}
		if r.Method == http.MethodPost && r.ContentLength != 0 && !acceptedBodyType(r.Header.Get("Content-Type")) {
			return reasonUnknownBodyType
		}
	}

	for _, marker := range []string{"..", ".env", ".git", ".php", "wp-"} {
		if strings.Contains(path, marker) {
			return reasonPathScan
		}
	}

	ua := strings.ToLower(r.Header.Get("User-Agent"))
	for _, agent := range []string{"sqlmap", "nikto", "nmap", "gobuster", "dirbuster"} {
		if strings.Contains(ua, agent) {
			return reasonScannerAgent
		}
	}

	if strings.Count(r.Header.Get("X-Forwarded-For"), ",") >= maxForwardedHops {
		return reasonForwardedChain
	}
	return ""
}

// wellFormedBearer reports whether h is "Bearer <jwt>" with a compact
// three-segment token. Anything else can never authenticate.
func wellFormedBearer(h string) bool {
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return false
	}
	parts := strings.Split(strings.TrimSpace(token), ".")
	if len(parts) != 3 {
		return false
	}
	for _, p := range parts {
		if p == "" || strings.IndexFunc(p, notBase64URL) >= 0 {
			return false
		}
	}
	return true
}

func notBase64URL(c rune) bool {
	switch {
	case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '-', c == '_':
		return false
	}
	return true
}

func acceptedBodyType(contentType string) bool {
	if contentType == "" {
		return true
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == "application/json" || mt == "application/x-www-form-urlencoded"
}
