package middleware

import (
	"net"
	"net/http"
	"strings"

	goGuard "github.com/MrEthical07/goGuard"
)

// ClientInfo extracts the ban log identity of r. The address is the
// connection peer; put a proxy-aware middleware such as chi's RealIP in
// front when the service runs behind a trusted proxy.
func ClientInfo(r *http.Request) goGuard.ClientInfo {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return goGuard.ClientInfo{
		IP:        strings.TrimSpace(ip),
		UserAgent: r.UserAgent(),
		URL:       r.URL.RequestURI(),
	}
}
