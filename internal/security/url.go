package security

import (
	"net"
	"net/url"
	"strings"

	"webresearch/internal/errs"
)

// privateNetworks holds CIDR ranges that a fetched URL must never resolve to.
var privateNetworks = []string{
	"127.0.0.0/8",    // IPv4 loopback
	"10.0.0.0/8",     // RFC1918 private
	"172.16.0.0/12",  // RFC1918 private
	"192.168.0.0/16", // RFC1918 private
	"169.254.0.0/16", // Link-local
	"0.0.0.0/8",      // "This" network
	"::1/128",        // IPv6 loopback
	"fc00::/7",       // IPv6 unique local
	"fe80::/10",      // IPv6 link-local
}

// blockedHosts are hostnames that must never be fetched regardless of DNS.
var blockedHosts = []string{
	"localhost",
	"localhost.localdomain",
	"metadata.google.internal",
	"169.254.169.254", // cloud metadata endpoint
	"kubernetes.default",
	"kubernetes.default.svc",
}

var privateCIDRs []*net.IPNet

func init() {
	for _, cidr := range privateNetworks {
		if _, network, err := net.ParseCIDR(cidr); err == nil {
			privateCIDRs = append(privateCIDRs, network)
		}
	}
}

// ValidateURL checks that raw is an absolute http(s) URL with a hostname.
// It performs no network I/O and returns a validation error on failure.
func ValidateURL(raw string) (*url.URL, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, errs.Validation("invalid URL format: %v", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, errs.Validation("only http and https URLs are allowed")
	}
	if parsed.Hostname() == "" {
		return nil, errs.Validation("URL must have a hostname")
	}
	return parsed, nil
}

// CheckSSRF rejects URLs that point at private or internal resources:
// blocked hostnames, private/link-local IPs, and hostnames resolving to them.
// DNS failures are allowed through; the actual fetch fails on its own.
func CheckSSRF(parsed *url.URL) error {
	hostname := strings.ToLower(strings.TrimSuffix(parsed.Hostname(), "."))

	for _, blocked := range blockedHosts {
		if hostname == blocked || strings.HasSuffix(hostname, "."+blocked) {
			return errs.Validation("access to internal hostname %q is not allowed", hostname)
		}
	}

	if ip := net.ParseIP(hostname); ip != nil {
		if isPrivateIP(ip) {
			return errs.Validation("access to private IP %q is not allowed", hostname)
		}
		return nil
	}

	ips, err := net.LookupIP(hostname)
	if err != nil {
		return nil
	}
	for _, resolved := range ips {
		if isPrivateIP(resolved) {
			return errs.Validation("hostname %q resolves to a private address", hostname)
		}
	}
	return nil
}

func isPrivateIP(ip net.IP) bool {
	if ip == nil {
		return true
	}
	for _, network := range privateCIDRs {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}
