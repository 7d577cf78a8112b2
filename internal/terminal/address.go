package terminal

import (
	"strconv"
	"strings"
)

// DefaultPort is the ZKTeco UDP/TCP service port.
const DefaultPort = 4370

// ParseAddress turns free-text "host[:port]" input into a validated host
// and port. It never fails: anything it cannot make sense of becomes a
// host with the default port. An empty host means "no terminal given".
//
// Accepted shapes: "10.0.0.1", "10.0.0.1:4370", "[::1]:4370" and a bare
// IPv6 literal like "::1" (more than one colon, no brackets).
func ParseAddress(text string) (host string, port int) {
	cleaned := strings.TrimSpace(text)
	if cleaned == "" {
		return "", DefaultPort
	}

	host = cleaned
	port = DefaultPort

	switch {
	case strings.HasPrefix(cleaned, "[") && strings.Contains(cleaned, "]"):
		closing := strings.Index(cleaned, "]")
		host = strings.TrimSpace(cleaned[1:closing])
		remainder := strings.TrimSpace(cleaned[closing+1:])
		if rest, ok := strings.CutPrefix(remainder, ":"); ok {
			port = coercePort(strings.TrimSpace(rest))
		}
	case strings.Count(cleaned, ":") == 1:
		idx := strings.Index(cleaned, ":")
		left, right := cleaned[:idx], cleaned[idx+1:]
		if left != "" && right != "" {
			host = strings.TrimSpace(left)
			if host == "" {
				host = cleaned
			}
			port = coercePort(strings.TrimSpace(right))
		}
	default:
		// Multiple colons without brackets is an IPv6 literal with no
		// port; anything else is a plain host.
	}

	return strings.TrimSpace(host), port
}

// FormatAddress is the inverse of ParseAddress: empty for no host, the bare
// host when the port is the default, "host:port" otherwise.
func FormatAddress(host string, port int) string {
	if host == "" {
		return ""
	}
	if port == DefaultPort {
		return host
	}
	return host + ":" + strconv.Itoa(port)
}

// coercePort parses a port, silently falling back to the default for
// non-numeric or out-of-range values.
func coercePort(value string) int {
	port, err := strconv.Atoi(value)
	if err != nil || port < 1 || port > 65535 {
		return DefaultPort
	}
	return port
}
