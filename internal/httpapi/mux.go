package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"brood-flow/internal/device"
	"brood-flow/internal/journal"
)

// DeviceLister exposes the registry snapshot.
type DeviceLister interface {
	Snapshot() []device.Record
}

// TransportStatus reports the MQTT link.
type TransportStatus interface {
	Status() string
	Pending() int
}

// HistoryReader serves stored readings.
type HistoryReader interface {
	Recent(ctx context.Context, deviceID string, limit int) ([]journal.Entry, error)
}

// Deps wires the handlers. MQTT and History may be nil when those features are off.
type Deps struct {
	Devices DeviceLister
	MQTT    TransportStatus
	History HistoryReader
	Logger  *slog.Logger
}

func NewMux(deps Deps) *http.ServeMux {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	mux := http.NewServeMux()
	registerHealthcheck(mux, deps)
	registerDevices(mux, deps)
	return mux
}
