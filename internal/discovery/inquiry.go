package discovery

import (
	"regexp"
	"strings"

	"github.com/srg/btctl/internal/device"
)

var (
	addressPattern = regexp.MustCompile(`address: ([\w-]+)`)
	namePattern    = regexp.MustCompile(`name: "([^"]+)"`)
)

// ParseInquiry extracts devices from the control tool's inquiry output.
//
// A line yields a device only when it carries both an `address: <token>` and a
// `name: "<text>"` fragment. Other lines are ignored. A device reported more
// than once is kept at its first position.
func ParseInquiry(output string) []device.DiscoveredBluetoothDevice {
	var found []device.DiscoveredBluetoothDevice
	seen := make(map[string]struct{})

	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		addressMatch := addressPattern.FindStringSubmatch(line)
		nameMatch := namePattern.FindStringSubmatch(line)
		if addressMatch == nil || nameMatch == nil {
			continue
		}

		key := device.NormalizeAddress(addressMatch[1])
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		found = append(found, device.DiscoveredBluetoothDevice{
			Address: addressMatch[1],
			Name:    nameMatch[1],
		})
	}

	return found
}
