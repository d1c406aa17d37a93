package util

import (
	"regexp"
	"strings"
)

var sanitizeRegexp = regexp.MustCompile(`[^a-zA-Z0-9_.-]`)

// SanitizeInterfaceName converts a device-local interface name into a string
// safe to use as a filename segment.
// Eth1/1 -> Eth1_1, Ethernet0.100 -> Ethernet0_100
func SanitizeInterfaceName(name string) string {
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, ".", "_")
	return sanitizeRegexp.ReplaceAllString(name, "")
}

// Truncate shortens s to max characters, appending "..." when truncated.
func Truncate(s string, max int) string {
	if max <= 3 || len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
