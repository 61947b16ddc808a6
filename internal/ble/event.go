package ble

import "time"

// EventKind classifies a scan observation.
type EventKind int

const (
	// KindOther is an advertisement without manufacturer specific data.
	KindOther EventKind = iota
	// KindManufacturerData carries at least one manufacturer data element.
	KindManufacturerData
)

func (k EventKind) String() string {
	switch k {
	case KindManufacturerData:
		return "manufacturer_data"
	default:
		return "other"
	}
}

// Event is a single advertisement observed by the scanner.
type Event struct {
	Kind      EventKind
	Address   string
	RSSI      int16
	LocalName string
	// ManufacturerData maps company ID to payload. Nil for KindOther.
	ManufacturerData map[uint16][]byte
	SeenAt           time.Time
}
