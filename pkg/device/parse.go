package device

import (
	"regexp"
	"strings"
)

var macRegexp = regexp.MustCompile(`(?i)\b([0-9a-f]{2}(?::[0-9a-f]{2}){5}|[0-9a-f]{4}(?:\.[0-9a-f]{4}){2})\b`)

// ParseInterfaceOutput builds a PortState from "show interface <x> switchport"
// style output. Unknown or missing fields default to StatusUnknown; an
// explicit "Invalid interface" marker means the port does not exist.
func ParseInterfaceOutput(out string) *PortState {
	state := &PortState{
		Exists:      true,
		AdminStatus: StatusUnknown,
		OperStatus:  StatusUnknown,
		Attributes:  make(map[string]string),
	}

	lower := strings.ToLower(out)
	if strings.Contains(lower, "invalid interface") || strings.Contains(lower, "interface does not exist") {
		state.Exists = false
		return state
	}

	for _, line := range strings.Split(out, "\n") {
		trimmed := strings.TrimSpace(line)
		lowline := strings.ToLower(trimmed)

		switch {
		case strings.Contains(lowline, "admin state is up"):
			state.AdminStatus = StatusUp
		case strings.Contains(lowline, "admin state is down"):
			state.AdminStatus = StatusDown
		case strings.HasSuffix(lowline, " is up") && !strings.Contains(lowline, "admin"):
			state.OperStatus = StatusUp
		case strings.HasSuffix(lowline, " is down") && !strings.Contains(lowline, "admin"):
			state.OperStatus = StatusDown
		case strings.HasPrefix(lowline, "description:"):
			state.Attributes["description"] = strings.TrimSpace(trimmed[len("description:"):])
		case strings.HasPrefix(lowline, "operational mode:"):
			state.Attributes["mode"] = strings.TrimSpace(lowline[len("operational mode:"):])
		case strings.HasPrefix(lowline, "access mode vlan:"):
			if fields := strings.Fields(lowline[len("access mode vlan:"):]); len(fields) > 0 {
				state.Attributes["vlan"] = fields[0]
			}
		}
	}
	return state
}

// ParseMACTable extracts MAC addresses from "show mac address-table" output,
// normalized to colon-separated lowercase.
func ParseMACTable(out string) []string {
	var macs []string
	seen := make(map[string]bool)
	for _, m := range macRegexp.FindAllString(out, -1) {
		mac := normalizeMAC(m)
		if !seen[mac] {
			seen[mac] = true
			macs = append(macs, mac)
		}
	}
	return macs
}

// normalizeMAC converts aabb.ccdd.eeff to aa:bb:cc:dd:ee:ff.
func normalizeMAC(mac string) string {
	mac = strings.ToLower(mac)
	if !strings.Contains(mac, ".") {
		return mac
	}
	hex := strings.ReplaceAll(mac, ".", "")
	parts := make([]string, 0, 6)
	for i := 0; i+2 <= len(hex); i += 2 {
		parts = append(parts, hex[i:i+2])
	}
	return strings.Join(parts, ":")
}
