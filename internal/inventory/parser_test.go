package inventory_test

import (
	"testing"

	"github.com/srg/btctl/internal/device"
	"github.com/srg/btctl/internal/inventory"
	"github.com/srg/btctl/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, raw string) []device.BluetoothDevice {
	t.Helper()
	devices, err := inventory.ParseDevices([]byte(raw), inventory.DefaultBuckets(), nil)
	require.NoError(t, err)
	return devices
}

func TestParseDevices_SchemaVariants(t *testing.T) {
	ja := testutils.NewJSONAsserter(t)

	t.Run("single flat mapping keyed by name", func(t *testing.T) {
		devices := parse(t, testutils.InventoryReport(`{
			"devices_list": {
				"Magic Mouse": {"device_address": "AA:00:00:00:00:02", "device_minorType": "Mouse", "device_isconnected": "attrib_Yes"},
				"Magic Keyboard": {"device_address": "AA:00:00:00:00:01", "device_minorType": "Keyboard", "device_isconnected": "No"}
			}
		}`))

		ja.AssertValue(devices, `[
			{"name": "Magic Keyboard", "address": "AA:00:00:00:00:01", "connected": false, "minorType": "Keyboard"},
			{"name": "Magic Mouse", "address": "AA:00:00:00:00:02", "connected": true, "minorType": "Mouse"}
		]`)
	})

	t.Run("connected and not connected buckets holding lists of mappings", func(t *testing.T) {
		devices := parse(t, testutils.InventoryReport(`{
			"device_connected_list": [
				{"AirPods Pro": {"device_address": "BB:00:00:00:00:01", "device_minorType": "Headphones"}}
			],
			"device_not_connected_list": [
				{"Xbox Controller": {"device_address": "BB:00:00:00:00:02", "device_minorType": "Gamepad"}},
				{"Old Speaker": {"device_address": "BB:00:00:00:00:03"}}
			]
		}`))

		ja.AssertValue(devices, `[
			{"name": "AirPods Pro", "address": "BB:00:00:00:00:01", "connected": true, "minorType": "Headphones"},
			{"name": "Old Speaker", "address": "BB:00:00:00:00:03", "connected": false, "minorType": "unknown"},
			{"name": "Xbox Controller", "address": "BB:00:00:00:00:02", "connected": false, "minorType": "Gamepad"}
		]`)
	})

	t.Run("independent optional bucket keys in one report", func(t *testing.T) {
		devices := parse(t, testutils.InventoryReport(
			`{"controller_properties": {"controller_address": "00:00:00:00:00:00"}}`,
			`{
				"device_connected": [{"Trackpad": {"device_address": "CC:01", "device_minorType": "Trackpad"}}],
				"device_not_connected": [{"Trackpad (old name)": {"device_address": "cc-01"}}],
				"devices_list": [{"Pencil": {"device_address": "CC:02", "device_isconnected": "Yes"}}]
			}`,
		))

		ja.AssertValue(devices, `[
			{"name": "Pencil", "address": "CC:02", "connected": true, "minorType": "unknown"},
			{"name": "Trackpad", "address": "CC:01", "connected": true, "minorType": "Trackpad"}
		]`)
	})
}

func TestParseDevices_Scenarios(t *testing.T) {
	ja := testutils.NewJSONAsserter(t)

	t.Run("connected headphones", func(t *testing.T) {
		devices := parse(t, `{"SPBluetoothDataType":[{"device_connected":[{"AirPods":{"device_address":"AA:BB","device_minorType":"Headphones"}}],"device_not_connected":[]}]}`)

		ja.AssertValue(devices, `[{"name": "AirPods", "address": "AA:BB", "connected": true, "minorType": "Headphones"}]`)
	})

	t.Run("explicit name field wins over mapping key", func(t *testing.T) {
		devices := parse(t, testutils.InventoryReport(`{
			"device_connected": [{"key-1": {"device_name": "Desk Keyboard", "device_address": "AA:01"}}]
		}`))

		require.Len(t, devices, 1)
		assert.Equal(t, "Desk Keyboard", devices[0].Name)
	})

	t.Run("records without address are skipped", func(t *testing.T) {
		devices := parse(t, testutils.InventoryReport(`{
			"device_connected": [
				{"Ghost": {"device_minorType": "Mouse"}},
				{"Blank": {"device_address": ""}},
				{"Real": {"device_address": "AA:01"}}
			]
		}`))

		require.Len(t, devices, 1)
		assert.Equal(t, "Real", devices[0].Name)
	})

	t.Run("ambiguous bucket reads isconnected", func(t *testing.T) {
		devices := parse(t, testutils.InventoryReport(`{
			"devices_list": [
				{"A": {"device_address": "AA:01", "device_isconnected": "Yes"}},
				{"B": {"device_address": "AA:02", "device_isconnected": "No"}},
				{"C": {"device_address": "AA:03"}}
			]
		}`))

		require.Len(t, devices, 3)
		assert.True(t, devices[0].Connected)
		assert.False(t, devices[1].Connected)
		assert.False(t, devices[2].Connected)
	})

	t.Run("missing data type yields empty list", func(t *testing.T) {
		assert.Empty(t, parse(t, `{}`))
		assert.Empty(t, parse(t, `{"SPBluetoothDataType": null}`))
		assert.Empty(t, parse(t, `{"SPBluetoothDataType": []}`))
	})

	t.Run("unknown bucket keys are ignored", func(t *testing.T) {
		assert.Empty(t, parse(t, testutils.InventoryReport(`{"device_paired": [{"X": {"device_address": "AA:01"}}]}`)))
	})
}

func TestParseDevices_Invalid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not JSON", `SPBluetoothDataType: nope`},
		{"truncated", `{"SPBluetoothDataType":[{"device_connected":[`},
		{"empty", ``},
		{"data type is not an array", `{"SPBluetoothDataType": {"device_connected": []}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			devices, err := inventory.ParseDevices([]byte(tt.raw), inventory.DefaultBuckets(), nil)

			var parseErr *device.ParseError
			require.ErrorAs(t, err, &parseErr)
			assert.Equal(t, inventory.SourceName, parseErr.Source)
			assert.Nil(t, devices)
		})
	}
}

func TestParseDevices_Deterministic(t *testing.T) {
	raw := []byte(testutils.InventoryReport(`{
		"devices_list": {
			"Zed": {"device_address": "AA:03"},
			"alpha": {"device_address": "AA:01"},
			"Alpha": {"device_address": "AA:02"},
			"Dup A": {"device_address": "AA:04"},
			"Dup B": {"device_address": "aa-04"}
		}
	}`))

	first, err := inventory.ParseDevices(raw, inventory.DefaultBuckets(), nil)
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		again, err := inventory.ParseDevices(raw, inventory.DefaultBuckets(), nil)
		require.NoError(t, err)
		require.Equal(t, first, again, "run %d MUST match the first run", i)
	}

	seen := make(map[string]bool)
	for _, d := range first {
		key := device.NormalizeAddress(d.Address)
		assert.NotEmpty(t, key)
		assert.False(t, seen[key], "address %s MUST appear once", d.Address)
		seen[key] = true
	}
	names := make([]string, len(first))
	for i, d := range first {
		names[i] = d.Name
	}
	assert.Equal(t, []string{"alpha", "Alpha", "Dup A", "Zed"}, names, "first mapping key in sorted order MUST win")
}

func TestBucketsFromKeys(t *testing.T) {
	buckets := inventory.BucketsFromKeys([]string{"device_connected", " device_not_connected_list ", "", "devices_list"})

	assert.Equal(t, []inventory.Bucket{
		{Key: "device_connected", Origin: device.OriginConnected},
		{Key: "device_not_connected_list", Origin: device.OriginNotConnected},
		{Key: "devices_list", Origin: device.OriginAmbiguous},
	}, buckets)
}
