package device

import (
	"sort"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// DefaultLocale is used for name collation when none is configured.
const DefaultLocale = "en"

// Origin tells which inventory bucket a record came from.
// Lower values take precedence when the same address appears more than once.
type Origin int

const (
	OriginConnected Origin = iota
	OriginAmbiguous
	OriginNotConnected
)

func (o Origin) String() string {
	switch o {
	case OriginConnected:
		return "connected"
	case OriginNotConnected:
		return "not_connected"
	default:
		return "ambiguous"
	}
}

// Record is a single device entry as found in one inventory bucket.
type Record struct {
	Device BluetoothDevice
	Origin Origin
}

// FromDevices wraps an already reconciled list as records of a single bucket.
func FromDevices(devices []BluetoothDevice) []Record {
	records := make([]Record, len(devices))
	for i, d := range devices {
		records[i] = Record{Device: d, Origin: OriginAmbiguous}
	}
	return records
}

// ParseLocale validates a BCP 47 locale tag used for name ordering.
func ParseLocale(locale string) (language.Tag, error) {
	if locale == "" {
		locale = DefaultLocale
	}
	return language.Parse(locale)
}

// NewCollator returns a case-insensitive collator for locale.
// Unparsable locales fall back to DefaultLocale.
func NewCollator(locale string) *collate.Collator {
	tag, err := ParseLocale(locale)
	if err != nil {
		tag = language.English
	}
	return collate.New(tag, collate.IgnoreCase)
}

// Reconcile merges records into one list with a single entry per hardware address.
//
// Records from connected buckets are considered first, then ambiguous ones, then
// not-connected ones. Name and minor type come from the first record seen for an
// address; Connected is true when any record marked it connected. Records without
// an address are dropped. The result is sorted by SortByName, so the output only
// depends on the multiset of input records.
//
// Merging is keyed by normalized address. Precedence comes from the rank sort
// above; the merge map's own insertion order does not reach the output.
//
// c may be nil, in which case the DefaultLocale collator is used.
func Reconcile(records []Record, c *collate.Collator) []BluetoothDevice {
	ordered := make([]Record, len(records))
	copy(ordered, records)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Origin < ordered[j].Origin
	})

	// keyed dedupe only; SortByName replaces this order
	merged := orderedmap.New[string, BluetoothDevice]()
	for _, r := range ordered {
		key := NormalizeAddress(r.Device.Address)
		if key == "" {
			continue
		}

		if existing, ok := merged.Get(key); ok {
			if r.Device.Connected && !existing.Connected {
				existing.Connected = true
				merged.Set(key, existing)
			}
			continue
		}

		dev := r.Device
		dev.Address = strings.TrimSpace(dev.Address)
		if dev.MinorType == "" {
			dev.MinorType = UnknownMinorType
		}
		merged.Set(key, dev)
	}

	devices := make([]BluetoothDevice, 0, merged.Len())
	for pair := merged.Oldest(); pair != nil; pair = pair.Next() {
		devices = append(devices, pair.Value)
	}

	SortByName(devices, c)
	return devices
}

// SortByName orders devices by name using locale-aware comparison.
// Equal names are ordered by normalized address.
func SortByName(devices []BluetoothDevice, c *collate.Collator) {
	if c == nil {
		c = NewCollator(DefaultLocale)
	}
	sort.SliceStable(devices, func(i, j int) bool {
		if r := c.CompareString(devices[i].Name, devices[j].Name); r != 0 {
			return r < 0
		}
		return NormalizeAddress(devices[i].Address) < NormalizeAddress(devices[j].Address)
	})
}

// AddressSet is a set of normalized hardware addresses.
type AddressSet map[string]struct{}

// NewAddressSet collects the addresses of devices.
func NewAddressSet(devices []BluetoothDevice) AddressSet {
	set := make(AddressSet, len(devices))
	for _, d := range devices {
		if key := NormalizeAddress(d.Address); key != "" {
			set[key] = struct{}{}
		}
	}
	return set
}

// Contains reports whether address is in the set.
func (s AddressSet) Contains(address string) bool {
	_, ok := s[NormalizeAddress(address)]
	return ok
}
