package portfind

import (
	"fmt"
	"sort"
	"strings"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// SerialLister lists serial ports using the operating system's enumeration.
type SerialLister struct{}

func (SerialLister) Ports() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, err
	}
	return normalizePorts(ports), nil
}

// normalizePorts drops Bluetooth ports and macOS dial-in twins of call-out
// devices, so a single unplugged cable removes a single entry.
func normalizePorts(ports []string) []string {
	callout := make(map[string]bool)
	for _, p := range ports {
		if rest, ok := strings.CutPrefix(p, "/dev/cu."); ok {
			callout[rest] = true
		}
	}

	out := make([]string, 0, len(ports))
	for _, p := range ports {
		if strings.Contains(p, "Bluetooth") {
			continue
		}
		if rest, ok := strings.CutPrefix(p, "/dev/tty."); ok && callout[rest] {
			continue
		}
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Details describes the USB device behind a port, or "" if unknown.
func Details(port string) string {
	list, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return ""
	}
	for _, p := range list {
		if p.Name != port || !p.IsUSB {
			continue
		}
		desc := fmt.Sprintf("USB %s:%s", p.VID, p.PID)
		if p.Product != "" {
			desc = p.Product + " (" + desc + ")"
		}
		if p.SerialNumber != "" {
			desc += " serial " + p.SerialNumber
		}
		return desc
	}
	return ""
}
