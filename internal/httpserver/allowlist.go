package httpserver

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-ozzo/ozzo-validation/is"
)

// Allowlist admits requests whose remote IP matches one of a fixed set of
// addresses or CIDR ranges.
type Allowlist struct {
	ips    []net.IP
	nets   []*net.IPNet
	logger *slog.Logger
}

// NewAllowlist parses entries, each a single IP or a CIDR. An empty list
// rejects every request.
func NewAllowlist(logger *slog.Logger, entries []string) (*Allowlist, error) {
	a := &Allowlist{logger: logger}

	for _, entry := range entries {
		if entry == "" {
			return nil, fmt.Errorf("allowlist entry must not be empty")
		}

		if err := is.IP.Validate(entry); err == nil {
			a.ips = append(a.ips, net.ParseIP(entry))
			continue
		}

		_, ipNet, err := net.ParseCIDR(entry)
		if err != nil {
			return nil, fmt.Errorf("allowlist entry %q: must be an IP address or CIDR", entry)
		}
		a.nets = append(a.nets, ipNet)
	}

	return a, nil
}

// Allows reports whether ip is covered by the allowlist.
func (a *Allowlist) Allows(ip net.IP) bool {
	if ip == nil {
		return false
	}

	for _, allowed := range a.ips {
		if allowed.Equal(ip) {
			return true
		}
	}

	for _, n := range a.nets {
		if n.Contains(ip) {
			return true
		}
	}

	return false
}

// Middleware wraps next and answers 403 for callers outside the allowlist.
func (a *Allowlist) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}

		if !a.Allows(net.ParseIP(host)) {
			a.logger.Warn("Rejected request from disallowed address",
				slog.String("remote", host),
				slog.String("path", r.URL.Path),
			)
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}
