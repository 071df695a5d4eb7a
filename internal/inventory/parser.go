// Package inventory reads the host's known Bluetooth devices from the
// system_profiler JSON report.
package inventory

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"

	"github.com/srg/btctl/internal/device"
	"golang.org/x/text/collate"
)

// DataTypeKey is the top-level key of the system_profiler Bluetooth report.
const DataTypeKey = "SPBluetoothDataType"

// SourceName identifies the inventory tool in errors.
const SourceName = "system_profiler"

// Bucket is a named group of device records inside a report entry.
type Bucket struct {
	Key    string
	Origin device.Origin
}

// DefaultBucketKeys lists every bucket key observed across system_profiler versions.
var DefaultBucketKeys = []string{
	"devices_list",
	"device_connected_list",
	"device_connected",
	"device_not_connected_list",
	"device_not_connected",
}

// DefaultBuckets returns the buckets for DefaultBucketKeys.
func DefaultBuckets() []Bucket {
	return BucketsFromKeys(DefaultBucketKeys)
}

// BucketsFromKeys derives each bucket's origin from its key: keys mentioning
// "not_connected" hold disconnected devices, other keys mentioning "connected"
// hold connected devices, anything else is ambiguous.
func BucketsFromKeys(keys []string) []Bucket {
	buckets := make([]Bucket, 0, len(keys))
	for _, key := range keys {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		origin := device.OriginAmbiguous
		switch {
		case strings.Contains(key, "not_connected"):
			origin = device.OriginNotConnected
		case strings.Contains(key, "connected"):
			origin = device.OriginConnected
		}
		buckets = append(buckets, Bucket{Key: key, Origin: origin})
	}
	return buckets
}

// deviceInfo is one device entry. Every field is optional in practice.
type deviceInfo struct {
	Name        string `json:"device_name"`
	Address     string `json:"device_address"`
	MinorType   string `json:"device_minorType"`
	IsConnected string `json:"device_isconnected"`
}

// Parse extracts device records from a system_profiler report.
//
// Every entry of the SPBluetoothDataType array is searched for the given
// buckets. A bucket may hold a list of name→info mappings or a single mapping.
// Records without an address are skipped. A report without the data type key
// yields no records; text that is not JSON, or a data type value that is not an
// array, fails with *device.ParseError.
func Parse(raw []byte, buckets []Bucket) ([]device.Record, error) {
	var report map[string]json.RawMessage
	if err := json.Unmarshal(raw, &report); err != nil {
		return nil, &device.ParseError{Source: SourceName, Err: err}
	}

	section, ok := report[DataTypeKey]
	if !ok || isNull(section) {
		return nil, nil
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(section, &entries); err != nil {
		return nil, &device.ParseError{Source: SourceName, Err: err}
	}

	var records []device.Record
	for _, rawEntry := range entries {
		var entry map[string]json.RawMessage
		if err := json.Unmarshal(rawEntry, &entry); err != nil {
			continue
		}
		for _, bucket := range buckets {
			value, ok := entry[bucket.Key]
			if !ok {
				continue
			}
			for _, mapping := range bucketMappings(value) {
				records = append(records, mappingRecords(mapping, bucket.Origin)...)
			}
		}
	}

	return records, nil
}

// ParseDevices parses a report and reconciles its records into a sorted device list.
func ParseDevices(raw []byte, buckets []Bucket, c *collate.Collator) ([]device.BluetoothDevice, error) {
	records, err := Parse(raw, buckets)
	if err != nil {
		return nil, err
	}
	return device.Reconcile(records, c), nil
}

// bucketMappings normalizes a bucket value to a list of name→info mappings.
func bucketMappings(value json.RawMessage) []map[string]json.RawMessage {
	trimmed := bytes.TrimSpace(value)
	if len(trimmed) == 0 {
		return nil
	}

	switch trimmed[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil
		}
		mappings := make([]map[string]json.RawMessage, 0, len(items))
		for _, item := range items {
			var m map[string]json.RawMessage
			if err := json.Unmarshal(item, &m); err == nil && m != nil {
				mappings = append(mappings, m)
			}
		}
		return mappings
	case '{':
		var m map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &m); err != nil {
			return nil
		}
		return []map[string]json.RawMessage{m}
	default:
		return nil
	}
}

// mappingRecords converts one mapping into records. Keys are visited in sorted
// order so that repeated runs over the same text produce the same records.
func mappingRecords(mapping map[string]json.RawMessage, origin device.Origin) []device.Record {
	keys := make([]string, 0, len(mapping))
	for k := range mapping {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	records := make([]device.Record, 0, len(keys))
	for _, key := range keys {
		var info deviceInfo
		if err := json.Unmarshal(mapping[key], &info); err != nil {
			continue
		}
		address := strings.TrimSpace(info.Address)
		if address == "" {
			continue
		}

		name := info.Name
		if name == "" {
			name = key
		}
		minorType := info.MinorType
		if minorType == "" {
			minorType = device.UnknownMinorType
		}

		connected := origin == device.OriginConnected
		if origin == device.OriginAmbiguous {
			connected = isYes(info.IsConnected)
		}

		records = append(records, device.Record{
			Device: device.BluetoothDevice{
				Name:      name,
				Address:   address,
				Connected: connected,
				MinorType: minorType,
			},
			Origin: origin,
		})
	}
	return records
}

func isYes(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "yes", "attrib_yes", "true":
		return true
	default:
		return false
	}
}

func isNull(value json.RawMessage) bool {
	trimmed := bytes.TrimSpace(value)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
