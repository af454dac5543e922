package ipfilter

import (
	"log/slog"
	"net/http"
	"net/netip"
	"strings"
)

// Proxies resolves the client address of requests relayed by trusted
// reverse proxies. Forwarding headers from any other peer are ignored.
type Proxies struct {
	trusted *Filter
}

// NewProxies creates a resolver trusting the given IPs and CIDRs. An empty
// list trusts nobody.
func NewProxies(trusted []string, logger *slog.Logger) *Proxies {
	return &Proxies{trusted: New(trusted, logger)}
}

// Enabled returns true if any proxy is trusted
func (p *Proxies) Enabled() bool {
	return p.trusted.Enabled()
}

func (p *Proxies) trusts(addr netip.Addr) bool {
	return p.trusted.Enabled() && p.trusted.Allowed(addr)
}

// ClientAddr returns the originating client of r. The socket peer is used
// unless it is a trusted proxy; then X-Forwarded-For is walked right to left
// and the first untrusted hop wins, with X-Real-IP as the fallback.
func (p *Proxies) ClientAddr(r *http.Request) (netip.Addr, bool) {
	peer, ok := ClientAddr(r)
	if !ok || !p.trusts(peer) {
		return peer, ok
	}

	var hops []string
	for _, v := range r.Header.Values("X-Forwarded-For") {
		hops = append(hops, strings.Split(v, ",")...)
	}

	client := peer
	for i := len(hops) - 1; i >= 0; i-- {
		addr, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
		if err != nil {
			break
		}
		client = addr.Unmap()
		if !p.trusts(client) {
			return client, true
		}
	}
	if client != peer {
		return client, true
	}

	if addr, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); err == nil {
		return addr.Unmap(), true
	}
	return peer, true
}

// Middleware rewrites RemoteAddr to the resolved client address so that
// logging, filtering and rate limiting all see the same client
func (p *Proxies) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p.Enabled() {
			if addr, ok := p.ClientAddr(r); ok {
				r.RemoteAddr = addr.String()
			}
		}
		next.ServeHTTP(w, r)
	})
}
