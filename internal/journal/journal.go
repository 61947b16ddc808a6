// Package journal appends decoded readings to a local SQLite history.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"brood-flow/internal/broodminder"
	"brood-flow/internal/migrate"
)

const timeLayout = "2006-01-02T15:04:05.000000Z"

var ErrClosed = errors.New("journal: closed")

// Entry is one stored reading.
type Entry struct {
	DeviceID             string    `json:"device_id"`
	Model                byte      `json:"model"`
	Firmware             string    `json:"firmware"`
	BatteryPercent       int       `json:"battery_percent"`
	TemperatureC         float64   `json:"temperature_c"`
	RealtimeTemperatureC float64   `json:"realtime_temperature_c"`
	WeightKg             *float64  `json:"weight_kg,omitempty"`
	RecordedAt           time.Time `json:"recorded_at"`
}

type Journal struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the journal at path and applies pending migrations.
// SQL statements are logged at debug level through logger.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Journal, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dsn, err := buildDSN(path)
	if err != nil {
		return nil, err
	}

	db := sql.OpenDB(newLoggingConnector(dsn, logger))
	// One writer; also keeps a ":memory:" journal on a single connection.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal ping: %w", err)
	}

	if _, err := migrate.Run(ctx, db, logger); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal migrate: %w", err)
	}

	logger.Info("journal opened", "path", path)
	return &Journal{db: db, logger: logger}, nil
}

// Record appends a reading. It satisfies the dispatcher's recorder interface.
func (j *Journal) Record(ctx context.Context, deviceID string, r broodminder.Reading, at time.Time) error {
	if j == nil || j.db == nil {
		return ErrClosed
	}

	var weight any
	if r.HasWeight {
		weight = float64(r.RealtimeWeightKg)
	}

	_, err := j.db.ExecContext(ctx, `
		INSERT INTO readings
			(device_id, model, firmware, battery_percent, temperature_c, realtime_temperature_c, weight_kg, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		deviceID,
		int(r.Model),
		r.Firmware(),
		int(r.BatteryPercent),
		float64(r.TemperatureC),
		float64(r.RealtimeTemperatureC),
		weight,
		at.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("journal insert %s: %w", deviceID, err)
	}
	return nil
}

// Recent returns up to limit entries for deviceID, newest first.
func (j *Journal) Recent(ctx context.Context, deviceID string, limit int) ([]Entry, error) {
	if j == nil || j.db == nil {
		return nil, ErrClosed
	}
	if limit <= 0 {
		limit = 100
	}

	rows, err := j.db.QueryContext(ctx, `
		SELECT device_id, model, firmware, battery_percent, temperature_c, realtime_temperature_c, weight_kg, recorded_at
		FROM readings
		WHERE device_id = ?
		ORDER BY id DESC
		LIMIT ?`, deviceID, limit)
	if err != nil {
		return nil, fmt.Errorf("journal query %s: %w", deviceID, err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e        Entry
			model    int
			weight   sql.NullFloat64
			recorded string
		)
		if err := rows.Scan(&e.DeviceID, &model, &e.Firmware, &e.BatteryPercent,
			&e.TemperatureC, &e.RealtimeTemperatureC, &weight, &recorded); err != nil {
			return nil, fmt.Errorf("journal scan: %w", err)
		}
		e.Model = byte(model)
		if weight.Valid {
			w := weight.Float64
			e.WeightKg = &w
		}
		if e.RecordedAt, err = time.Parse(timeLayout, recorded); err != nil {
			return nil, fmt.Errorf("journal recorded_at %q: %w", recorded, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

func buildDSN(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", errors.New("journal: empty path")
	}

	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return "", fmt.Errorf("mkdir %s: %w", dir, err)
			}
		}
	}

	params := []string{
		"_busy_timeout=5000",
		"_journal_mode=WAL",
	}

	if strings.HasPrefix(path, "file:") {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		return path + sep + strings.Join(params, "&"), nil
	}
	return fmt.Sprintf("file:%s?%s", path, strings.Join(params, "&")), nil
}
