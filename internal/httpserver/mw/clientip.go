package mw

import (
	"net"
	"net/http"
	"net/netip"
	"strings"

	"github.com/MrSnakeDoc/marks/internal/auth"
)

// proxyHeaders are read in order when the proxy is trusted.
var proxyHeaders = []string{"CF-Connecting-IP", "X-Forwarded-For", "X-Real-IP"}

// clientAddr resolves the caller address. Proxy headers are only honoured when
// trustProxy is set; a header that does not parse as an address is skipped.
func clientAddr(r *http.Request, trustProxy bool) (netip.Addr, bool) {
	if trustProxy {
		for _, h := range proxyHeaders {
			v := r.Header.Get(h)
			if h == "X-Forwarded-For" {
				v, _, _ = strings.Cut(v, ",")
			}
			if a, ok := parseAddr(v); ok {
				return a, true
			}
		}
	}
	return parseAddr(r.RemoteAddr)
}

// ClientIP is clientAddr as a string, or the raw RemoteAddr when nothing parses.
func ClientIP(r *http.Request, trustProxy bool) string {
	if a, ok := clientAddr(r, trustProxy); ok {
		return a.String()
	}
	return r.RemoteAddr
}

func parseAddr(s string) (netip.Addr, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return netip.Addr{}, false
	}
	if h, _, err := net.SplitHostPort(s); err == nil {
		s = h
	}
	a, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, false
	}
	return a.Unmap(), true
}

// requestKey identifies who a request counts against: the owner once signed
// in, the client address before that.
func requestKey(r *http.Request, trustProxy bool) string {
	if u, ok := auth.UserFrom(r.Context()); ok {
		return "user:" + u.ID
	}
	return "ip:" + ClientIP(r, trustProxy)
}

// cidrList matches single addresses and prefixes.
type cidrList []netip.Prefix

// parseCIDRs accepts "10.0.0.0/8" and bare addresses. Entries that parse as
// neither are returned as invalid.
func parseCIDRs(list []string) (cidrList, []string) {
	var out cidrList
	var invalid []string
	for _, raw := range list {
		s := strings.TrimSpace(raw)
		if s == "" {
			continue
		}
		if p, err := netip.ParsePrefix(s); err == nil {
			out = append(out, p.Masked())
			continue
		}
		if a, err := netip.ParseAddr(s); err == nil {
			a = a.Unmap()
			out = append(out, netip.PrefixFrom(a, a.BitLen()))
			continue
		}
		invalid = append(invalid, s)
	}
	return out, invalid
}

func (c cidrList) allow(a netip.Addr) bool {
	for _, p := range c {
		if p.Contains(a) {
			return true
		}
	}
	return false
}
