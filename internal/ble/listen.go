package ble

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"tinygo.org/x/bluetooth"

	"brood-flow/internal/utils"
)

type Options struct {
	Adapter string // "hci0" by default
	Logger  *slog.Logger
}

// Listener wraps BlueZ scanning with context cancellation and turns every
// scan result into an Event.
type Listener struct {
	adapter *bluetooth.Adapter
	opts    Options
	logger  *slog.Logger

	namesMu sync.RWMutex
	names   map[string]string
}

func NewListener(opts Options) *Listener {
	if opts.Adapter == "" {
		opts.Adapter = "hci0"
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Listener{
		adapter: bluetooth.NewAdapter(opts.Adapter),
		opts:    opts,
		logger:  opts.Logger,
		names:   make(map[string]string),
	}
}

// Run scans until ctx is cancelled or the adapter stops, sending one Event per
// advertisement. events is closed when Run returns.
func (l *Listener) Run(ctx context.Context, events chan<- Event) error {
	defer close(events)

	l.logger.Info("ble: enabling adapter", "adapter", l.opts.Adapter)
	if err := l.adapter.Enable(); err != nil {
		return fmt.Errorf("ble enable (%s): %w", l.opts.Adapter, err)
	}
	l.logger.Info("ble: adapter enabled", "adapter", l.opts.Adapter)

	go func() {
		<-ctx.Done()
		_ = l.adapter.StopScan()
	}()

	l.logger.Info("ble: scanning started")

	// adapter.Scan blocks until StopScan() or error.
	err := l.adapter.Scan(func(a *bluetooth.Adapter, r bluetooth.ScanResult) {
		ev := Event{
			Kind:      KindOther,
			Address:   r.Address.String(),
			RSSI:      r.RSSI,
			LocalName: r.LocalName(),
			SeenAt:    time.Now(),
		}
		l.rememberName(ev.Address, ev.LocalName)

		if mfg := r.ManufacturerData(); len(mfg) > 0 {
			ev.Kind = KindManufacturerData
			ev.ManufacturerData = make(map[uint16][]byte, len(mfg))
			for _, md := range mfg {
				ev.ManufacturerData[md.CompanyID] = append([]byte(nil), md.Data...)
			}
			if l.logger.Enabled(ctx, slog.LevelDebug) {
				l.logger.Debug("ble: advertisement",
					"addr", ev.Address,
					"name", ev.LocalName,
					"rssi", ev.RSSI,
					"company_ids", companyIDs(ev.ManufacturerData),
				)
			}
		}

		select {
		case events <- ev:
		case <-ctx.Done():
		}
	})

	// If ctx canceled, treat as clean shutdown.
	if ctx.Err() != nil {
		l.logger.Info("ble: scanning stopped (context canceled)")
		return nil
	}

	if err != nil {
		return fmt.Errorf("ble scan: %w", err)
	}

	l.logger.Info("ble: scanning stopped")
	return nil
}

// ResolveName returns the last non-empty local name advertised by address.
func (l *Listener) ResolveName(address string) (string, bool) {
	l.namesMu.RLock()
	defer l.namesMu.RUnlock()
	name, ok := l.names[address]
	return name, ok
}

func (l *Listener) rememberName(address, name string) {
	if name == "" {
		return
	}
	l.namesMu.Lock()
	l.names[address] = name
	l.namesMu.Unlock()
}

func companyIDs(mfg map[uint16][]byte) []string {
	out := make([]string, 0, len(mfg))
	for id := range mfg {
		out = append(out, "0x"+utils.Hex4(id))
	}
	sort.Strings(out)
	return out
}
