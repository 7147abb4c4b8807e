package api

import (
	"fmt"
	"math"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"

	"golang.org/x/time/rate"

	"github.com/kilianp07/evreco/core/cache"
)

// RateLimiter holds one token bucket per client in a TTL store, so idle
// clients are forgotten once their entry expires.
type RateLimiter struct {
	store   cache.Store[*rate.Limiter]
	limit   rate.Limit
	burst   int
	trusted []netip.Prefix
}

// NewRateLimiter allows perMinute requests per client with the given burst.
func NewRateLimiter(store cache.Store[*rate.Limiter], perMinute, burst int) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{store: store, limit: rate.Limit(float64(perMinute) / 60), burst: burst}
}

// ParseProxies parses proxy addresses given as CIDR prefixes or bare IPs.
func ParseProxies(specs []string) ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(specs))
	for _, s := range specs {
		s = strings.TrimSpace(s)
		if p, err := netip.ParsePrefix(s); err == nil {
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(s)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy %q", s)
		}
		out = append(out, netip.PrefixFrom(addr.Unmap(), addr.Unmap().BitLen()))
	}
	return out, nil
}

// TrustProxies makes the limiter key requests relayed by one of the given
// proxies on the X-Forwarded-For client instead of the proxy address.
// Without trusted proxies the header is ignored.
func (l *RateLimiter) TrustProxies(specs []string) error {
	prefixes, err := ParseProxies(specs)
	if err != nil {
		return err
	}
	l.trusted = prefixes
	return nil
}

// Allow consumes a token for key.
func (l *RateLimiter) Allow(key string) bool {
	lim, _ := l.store.GetOrSet(key, rate.NewLimiter(l.limit, l.burst))
	return lim.Allow()
}

// Middleware answers 429 once a client exhausts its bucket.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(l.clientKey(r)) {
			retry := int(math.Ceil(1 / float64(l.limit)))
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded", Retryable: true})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (l *RateLimiter) isTrusted(host string) bool {
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range l.trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// clientKey is the peer address, or when the peer is a trusted proxy the
// right-most X-Forwarded-For entry that is not itself a trusted proxy.
func (l *RateLimiter) clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if !l.isTrusted(host) {
		return host
	}
	hops := strings.Split(strings.Join(r.Header.Values("X-Forwarded-For"), ","), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		if !l.isTrusted(hop) {
			return hop
		}
		host = hop
	}
	return host
}
