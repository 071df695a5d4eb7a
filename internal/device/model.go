package device

import "strings"

// UnknownMinorType is reported when the inventory tool gives no device class.
const UnknownMinorType = "unknown"

// BluetoothDevice is a device known to the host Bluetooth stack.
type BluetoothDevice struct {
	Name      string `json:"name"`
	Address   string `json:"address"`
	Connected bool   `json:"connected"`
	MinorType string `json:"minorType"`
}

// DiscoveredBluetoothDevice is a device seen during an inquiry scan.
// It is not paired yet and carries no connection or class data.
type DiscoveredBluetoothDevice struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// Kind is the presentation category derived from a device minor type.
type Kind string

const (
	KindKeyboard   Kind = "keyboard"
	KindMouse      Kind = "mouse"
	KindHeadphones Kind = "headphones"
	KindGamepad    Kind = "gamepad"
	KindBluetooth  Kind = "bluetooth"
)

// KindOf maps a minor type reported by the inventory tool to a Kind.
func KindOf(minorType string) Kind {
	switch strings.ToLower(strings.TrimSpace(minorType)) {
	case "keyboard":
		return KindKeyboard
	case "mouse":
		return KindMouse
	case "headset", "headphones", "earbuds":
		return KindHeadphones
	case "gamepad":
		return KindGamepad
	default:
		return KindBluetooth
	}
}

// NormalizeAddress returns the comparison key for a hardware address.
// The inventory tool prints "AA:BB:CC" while the inquiry output uses
// "aa-bb-cc"; both normalize to "AA:BB:CC".
func NormalizeAddress(address string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(address), "-", ":"))
}

// SameAddress reports whether two addresses identify the same device.
func SameAddress(a, b string) bool {
	return NormalizeAddress(a) == NormalizeAddress(b)
}
