// Package device holds the Bluetooth device model shared by every btctl
// component and the reconciler that turns raw inventory records into one
// stable, sorted device list.
//
// This package provides:
//   - BluetoothDevice and DiscoveredBluetoothDevice, the two records the CLI renders
//   - Reconcile, which dedupes records by hardware address and merges bucket origins
//   - The error taxonomy surfaced to callers (ParseError, ToolNotFoundError,
//     ExternalCommandError, DiscoveryError) and Describe, which turns any of
//     them into a human-readable ErrorDescriptor
package device
