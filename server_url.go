package main

import (
	"net"
	"net/url"
	"strings"
)

// hubURL is the WebSocket endpoint a local client dials for a hub bound to address.
func hubURL(address string, tlsEnabled bool) string {
	u := url.URL{Scheme: "ws", Host: advertisedHost(address), Path: "/ws"}
	if tlsEnabled {
		u.Scheme = "wss"
	}
	return u.String()
}

// advertisedHost maps a bound listener address to one a local client can dial.
// Empty and unspecified hosts become localhost; values without a port pass through.
func advertisedHost(address string) string {
	address = strings.TrimSpace(address)
	if address == "" {
		return "localhost"
	}
	host, port, err := net.SplitHostPort(address)
	if err != nil {
		return address
	}
	if ip := net.ParseIP(host); host == "" || (ip != nil && ip.IsUnspecified()) {
		host = "localhost"
	}
	return net.JoinHostPort(host, port)
}
