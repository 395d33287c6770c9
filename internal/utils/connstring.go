package utils

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
)

// ExtractServerNameFromConnectionString extracts the server name from a
// connection string, for namespacing lock names. localhost and IP addresses
// resolve to the machine's hostname so locks stay meaningful across
// loopback-style connection strings.
func ExtractServerNameFromConnectionString(connectionString string) (string, error) {
	u, err := url.Parse(connectionString)
	if err != nil {
		return "", fmt.Errorf("failed to parse connection string: %w", err)
	}

	host := u.Host
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	serverName := strings.Split(host, ".")[0]
	if serverName == "" {
		return "", fmt.Errorf("server name not found in connection string")
	}

	if strings.EqualFold(serverName, "localhost") || net.ParseIP(host) != nil {
		hostname, err := os.Hostname()
		if err != nil {
			return "", fmt.Errorf("failed to get hostname: %w", err)
		}
		serverName = hostname
	}

	return strings.ToLower(serverName), nil
}
