package device

import (
	"fmt"
	"strconv"
	"strings"
)

// TableWrite is one config_db hash write derived from a command line.
type TableWrite struct {
	Table  string
	Key    string
	Fields map[string]string
}

// RedisKey returns the "TABLE|key" form used by config_db.
func (w TableWrite) RedisKey() string {
	return w.Table + "|" + w.Key
}

// TranslateCommands maps rendered CLI lines onto SONiC config_db table
// writes. The translation mirrors what the CLI lines mean on an NX-OS style
// switch: VLAN membership, VXLAN VNI mapping, VRF binding, admin status.
// Unknown lines fail the whole batch so a partial translation never reaches
// the device.
func TranslateCommands(commands []string) ([]TableWrite, error) {
	var (
		writes []TableWrite
		iface  string
		mode   string
		vlan   int
	)

	for _, raw := range commands {
		line := strings.TrimSpace(raw)
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		switch {
		case fields[0] == "interface" && len(fields) == 2:
			iface = fields[1]

		case iface == "":
			return nil, fmt.Errorf("command %q before interface selector", line)

		case fields[0] == "description":
			writes = append(writes, TableWrite{
				Table:  "PORT",
				Key:    iface,
				Fields: map[string]string{"description": strings.TrimSpace(strings.TrimPrefix(line, "description"))},
			})

		case line == "switchport":
			// enables L2; config_db has no separate toggle

		case line == "switchport mode access" || line == "switchport mode trunk":
			mode = fields[2]

		case strings.HasPrefix(line, "switchport access vlan ") || strings.HasPrefix(line, "switchport trunk allowed vlan "):
			id, err := strconv.Atoi(fields[len(fields)-1])
			if err != nil {
				return nil, fmt.Errorf("bad vlan in %q", line)
			}
			vlan = id
			tagging := "untagged"
			if mode == "trunk" {
				tagging = "tagged"
			}
			vlanName := fmt.Sprintf("Vlan%d", id)
			writes = append(writes,
				TableWrite{Table: "VLAN", Key: vlanName, Fields: map[string]string{"vlanid": strconv.Itoa(id)}},
				TableWrite{Table: "VLAN_MEMBER", Key: vlanName + "|" + iface, Fields: map[string]string{"tagging_mode": tagging}},
			)

		case line == "vxlan":
			// block opener; the vni line carries the mapping

		case fields[0] == "vni" && len(fields) == 2:
			vni, err := strconv.Atoi(fields[1])
			if err != nil {
				return nil, fmt.Errorf("bad vni in %q", line)
			}
			if vlan == 0 {
				return nil, fmt.Errorf("vni %d without a vlan to map", vni)
			}
			writes = append(writes, TableWrite{
				Table: "VXLAN_TUNNEL_MAP",
				Key:   fmt.Sprintf("vtep|map_%d_Vlan%d", vni, vlan),
				Fields: map[string]string{
					"vni":  strconv.Itoa(vni),
					"vlan": fmt.Sprintf("Vlan%d", vlan),
				},
			})

		case fields[0] == "vrf" && len(fields) == 3 && fields[1] == "member":
			writes = append(writes,
				TableWrite{Table: "VRF", Key: fields[2], Fields: map[string]string{}},
				TableWrite{Table: "INTERFACE", Key: iface, Fields: map[string]string{"vrf_name": fields[2]}},
			)

		case line == "no shutdown":
			writes = append(writes, TableWrite{
				Table:  "PORT",
				Key:    iface,
				Fields: map[string]string{"admin_status": "up"},
			})

		case line == "shutdown":
			writes = append(writes, TableWrite{
				Table:  "PORT",
				Key:    iface,
				Fields: map[string]string{"admin_status": "down"},
			})

		default:
			return nil, fmt.Errorf("untranslatable command %q", line)
		}
	}

	if iface == "" {
		return nil, fmt.Errorf("no interface selector in command batch")
	}
	return writes, nil
}
