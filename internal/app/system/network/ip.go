// Package network provides network-related utilities.
package network

import (
	"net"
	"net/http"
)

// ClientIP returns the caller's address without the port.
//
// The router runs chimw.RealIP first, so RemoteAddr already reflects
// True-Client-IP, X-Real-IP or X-Forwarded-For when a proxy set them.
func ClientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
