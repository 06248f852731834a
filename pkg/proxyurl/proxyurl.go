// Package proxyurl parses and validates proxy URLs of the form
// scheme://[user:pass@]host:port and builds HTTP clients that dial through them.
package proxyurl

import (
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
)

var proxyURLPattern = regexp.MustCompile(`^(https?|socks5)://(?:([^:]+):([^@]+)@)?([^:]+):(\d+)$`)

// Parsed holds the components of a proxy URL.
type Parsed struct {
	Protocol string
	Username string
	Password string
	Address  string
	Port     int
}

// HostPort renders "address:port".
func (p Parsed) HostPort() string {
	return net.JoinHostPort(p.Address, strconv.Itoa(p.Port))
}

// Parse splits a proxy URL into its components. Credentials are optional but must be
// given together.
func Parse(raw string) (Parsed, error) {
	m := proxyURLPattern.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return Parsed{}, fmt.Errorf("invalid proxy URL format: %s", raw)
	}

	port, err := strconv.Atoi(m[5])
	if err != nil || !ValidatePort(port) {
		return Parsed{}, fmt.Errorf("invalid proxy port in %s", raw)
	}
	if !ValidateAddress(m[4]) {
		return Parsed{}, fmt.Errorf("invalid proxy address in %s", raw)
	}

	return Parsed{
		Protocol: m[1],
		Username: m[2],
		Password: m[3],
		Address:  m[4],
		Port:     port,
	}, nil
}

// ValidateIPv4 reports whether address is a dotted-quad IPv4 address.
func ValidateIPv4(address string) bool {
	parts := strings.Split(address, ".")
	if len(parts) != 4 {
		return false
	}
	for _, part := range parts {
		if part == "" || len(part) > 3 {
			return false
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 || n > 255 || strings.HasPrefix(part, "+") {
			return false
		}
	}
	return true
}

// ValidateAddress accepts IPv4 addresses and hostnames.
func ValidateAddress(address string) bool {
	if address == "" || len(address) > 253 || strings.ContainsAny(address, " /@:") {
		return false
	}
	if ValidateIPv4(address) {
		return true
	}
	// Dotted numerics that failed IPv4 parsing, e.g. 300.1.1.1
	if strings.Trim(address, "0123456789.") == "" {
		return false
	}
	for _, label := range strings.Split(address, ".") {
		if label == "" || len(label) > 63 || strings.HasPrefix(label, "-") || strings.HasSuffix(label, "-") {
			return false
		}
	}
	return true
}

// ValidatePort reports whether port is within 1-65535.
func ValidatePort(port int) bool {
	return port >= 1 && port <= 65535
}
