// Package influx writes decoded readings to InfluxDB v2 as time-series points.
package influx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"brood-flow/internal/broodminder"
	"brood-flow/internal/config"
)

const (
	measurement    = "broodminder"
	connectTimeout = 10 * time.Second
	batchSize      = 50
	flushInterval  = 5000 // milliseconds
)

var (
	ErrDisabled         = errors.New("influx: disabled in configuration")
	ErrConnectionFailed = errors.New("influx: connection failed")
	ErrClosed           = errors.New("influx: sink closed")
)

// Sink batches points through the non-blocking write API. Write errors arrive
// asynchronously and are logged.
type Sink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	logger   *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// Connect pings the server and prepares the write API for cfg.InfluxOrg/cfg.InfluxBucket.
func Connect(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Sink, error) {
	if cfg.InfluxURL == "" {
		return nil, ErrDisabled
	}
	if logger == nil {
		logger = slog.Default()
	}

	client := influxdb2.NewClientWithOptions(
		cfg.InfluxURL,
		cfg.InfluxToken,
		influxdb2.DefaultOptions().
			SetBatchSize(batchSize).
			SetFlushInterval(flushInterval),
	)

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	healthy, err := client.Ping(pingCtx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: ping failed: %w", ErrConnectionFailed, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: server not healthy", ErrConnectionFailed)
	}

	s := &Sink{
		client:   client,
		writeAPI: client.WriteAPI(cfg.InfluxOrg, cfg.InfluxBucket),
		logger:   logger,
	}
	go s.logWriteErrors(s.writeAPI.Errors())

	logger.Info("influx sink connected", "url", cfg.InfluxURL, "org", cfg.InfluxOrg, "bucket", cfg.InfluxBucket)
	return s, nil
}

// Record queues a point for the reading. It never blocks on the network.
func (s *Sink) Record(_ context.Context, deviceID string, r broodminder.Reading, at time.Time) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	s.writeAPI.WritePoint(pointFor(deviceID, r, at))
	return nil
}

// Close flushes pending points and releases the client. Safe to call twice.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.writeAPI.Flush()
	s.client.Close()
	return nil
}

func (s *Sink) logWriteErrors(errs <-chan error) {
	for err := range errs {
		s.logger.Warn("influx write failed", "error", err)
	}
}

func pointFor(deviceID string, r broodminder.Reading, at time.Time) *write.Point {
	fields := map[string]interface{}{
		"temperature_c":          float64(r.TemperatureC),
		"realtime_temperature_c": float64(r.RealtimeTemperatureC),
		"battery_percent":        int64(r.BatteryPercent),
	}
	if r.HasWeight {
		fields["weight_kg"] = float64(r.RealtimeWeightKg)
		fields["weight_lbs"] = float64(r.RealtimeWeightLbs)
	}

	return write.NewPoint(
		measurement,
		map[string]string{
			"device_id": deviceID,
			"model":     strconv.Itoa(int(r.Model)),
			"firmware":  r.Firmware(),
		},
		fields,
		at,
	)
}
