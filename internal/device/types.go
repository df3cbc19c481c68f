package device

import "fmt"

// Connection is the closed set of bus categories a storage device can be
// attached through. It is produced only by the classifier and never
// re-derived elsewhere.
type Connection int

const (
	ConnectionUnknown Connection = iota
	ConnectionInternal
	ConnectionUSB
	ConnectionUSBHub
)

func (c Connection) String() string {
	switch c {
	case ConnectionInternal:
		return "Internal"
	case ConnectionUSB:
		return "USB"
	case ConnectionUSBHub:
		return "USB Hub"
	default:
		return "Unknown"
	}
}

// StorageTarget describes one attached block device at enumeration time.
// Values are immutable snapshots; re-enumeration produces fresh ones.
type StorageTarget struct {
	Path          string
	Vendor        string
	Model         string
	CapacityBytes uint64
	Removable     bool
	Connection    Connection
}

// CapacityHuman renders the capacity in decimal gigabytes, matching how
// drive vendors label media.
func (t StorageTarget) CapacityHuman() string {
	gb := float64(t.CapacityBytes) / 1_000_000_000.0
	return fmt.Sprintf("%.1f GB", gb)
}

// Label builds the human-facing identity line for pickers and tables.
func (t StorageTarget) Label() string {
	vendor := t.Vendor
	if vendor == "" {
		vendor = "Unknown"
	}
	model := t.Model
	if model == "" {
		model = "Unknown"
	}
	return fmt.Sprintf("%s %s (%s, %s)", vendor, model, t.CapacityHuman(), t.Connection)
}
