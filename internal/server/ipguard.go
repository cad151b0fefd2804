package server

import (
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/lexigate/lexigate/internal/errcode"
)

// ipGuard restricts admin routes to an allow-list of CIDRs.
type ipGuard struct {
	nets []*net.IPNet
}

// newIPGuard parses the configured CIDRs. Malformed entries are logged and
// skipped; when nothing valid remains every request is denied.
func newIPGuard(cidrs []string) *ipGuard {
	g := &ipGuard{}
	for _, c := range cidrs {
		_, ipnet, err := net.ParseCIDR(strings.TrimSpace(c))
		if err != nil {
			slog.Warn("ignoring malformed admin allow-list entry", "cidr", c, "error", err)
			continue
		}
		g.nets = append(g.nets, ipnet)
	}
	if len(g.nets) == 0 {
		slog.Warn("admin allow-list is empty, all admin requests will be denied")
	}
	return g
}

// allow reports whether ip falls in any allowed network.
func (g *ipGuard) allow(ip net.IP) bool {
	if ip == nil {
		return false
	}
	for _, n := range g.nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// clientIP extracts the caller address: the leftmost X-Forwarded-For entry
// when present, else the connection peer.
func clientIP(r *http.Request) net.IP {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return net.ParseIP(host)
}

// middleware wraps next with the allow-list check.
func (g *ipGuard) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !g.allow(ip) {
			slog.Warn("admin access denied", "ip", ip, "path", r.URL.Path)
			writeError(w, r, errcode.New(errcode.AccessDenied))
			return
		}
		next.ServeHTTP(w, r)
	})
}
