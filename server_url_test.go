package main

import "testing"

func TestAdvertisedEndpoints(t *testing.T) {
	t.Parallel()

	cases := []struct {
		address string
		host    string
		hub     string
		hubTLS  string
	}{
		{":43127", "localhost:43127", "ws://localhost:43127/ws", "wss://localhost:43127/ws"},
		{"0.0.0.0:9000", "localhost:9000", "ws://localhost:9000/ws", "wss://localhost:9000/ws"},
		{"[::]:43128", "localhost:43128", "ws://localhost:43128/ws", "wss://localhost:43128/ws"},
		{"127.0.0.1:43127", "127.0.0.1:43127", "ws://127.0.0.1:43127/ws", "wss://127.0.0.1:43127/ws"},
		{"[2001:db8::1]:43127", "[2001:db8::1]:43127", "ws://[2001:db8::1]:43127/ws", "wss://[2001:db8::1]:43127/ws"},
		{" replays.internal:80 ", "replays.internal:80", "ws://replays.internal:80/ws", "wss://replays.internal:80/ws"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.address, func(t *testing.T) {
			t.Parallel()
			if got := advertisedHost(tc.address); got != tc.host {
				t.Fatalf("advertisedHost(%q) = %q, want %q", tc.address, got, tc.host)
			}
			if got := hubURL(tc.address, false); got != tc.hub {
				t.Fatalf("hubURL(%q) = %q, want %q", tc.address, got, tc.hub)
			}
			if got := hubURL(tc.address, true); got != tc.hubTLS {
				t.Fatalf("hubURL(%q, tls) = %q, want %q", tc.address, got, tc.hubTLS)
			}
		})
	}
}

func TestAdvertisedHostWithoutPort(t *testing.T) {
	t.Parallel()

	if got := advertisedHost(""); got != "localhost" {
		t.Fatalf("expected localhost for an empty address, got %q", got)
	}
	if got := advertisedHost("replays.internal"); got != "replays.internal" {
		t.Fatalf("expected a bare host to pass through, got %q", got)
	}
}
