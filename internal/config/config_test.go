package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var envKeys = []string{
	"CONFIG_FILE", "APP_ENV", "LOG_LEVEL",
	"MQTT_ENABLED", "MQTT_BROKER", "MQTT_PORT", "MQTT_CLIENT_ID", "MQTT_QOS", "MQTT_QUEUE_SIZE",
	"DISCOVERY_PREFIX", "CONFIG_INTERVAL", "STATE_INTERVAL",
	"BLE_ADAPTER", "HTTP_ADDR", "JOURNAL_PATH",
	"INFLUX_URL", "INFLUX_TOKEN", "INFLUX_ORG", "INFLUX_BUCKET",
}

// cleanEnv blanks every variable Load reads and moves into an empty directory
// so no configuration.yml is picked up.
func cleanEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
	t.Chdir(t.TempDir())
}

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "configuration.yml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cleanEnv(t)

	got, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}

	if got.AppEnv != "dev" {
		t.Errorf("AppEnv = %q, want %q", got.AppEnv, "dev")
	}
	if got.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, want %v", got.LogLevel, slog.LevelInfo)
	}
	if !got.MQTTEnabled {
		t.Error("MQTTEnabled = false, want true")
	}
	if got.MQTTBroker != "localhost" || got.MQTTPort != 1883 {
		t.Errorf("broker = %s:%d, want localhost:1883", got.MQTTBroker, got.MQTTPort)
	}
	if !strings.HasPrefix(got.MQTTClientID, "brood-flow-") || len(got.MQTTClientID) != len("brood-flow-")+8 {
		t.Errorf("MQTTClientID = %q, want brood-flow-<8 chars>", got.MQTTClientID)
	}
	if got.MQTTQoS != 1 {
		t.Errorf("MQTTQoS = %d, want 1", got.MQTTQoS)
	}
	if got.DiscoveryPrefix != "homeassistant" {
		t.Errorf("DiscoveryPrefix = %q, want homeassistant", got.DiscoveryPrefix)
	}
	if got.ConfigInterval != time.Hour || got.StateInterval != 30*time.Second {
		t.Errorf("intervals = %v/%v, want 1h/30s", got.ConfigInterval, got.StateInterval)
	}
	if got.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want %q", got.HTTPAddr, ":8080")
	}
	if got.JournalPath != "" || got.InfluxURL != "" {
		t.Errorf("optional sinks enabled by default: journal=%q influx=%q", got.JournalPath, got.InfluxURL)
	}
}

func TestLoad_AppEnv(t *testing.T) {
	tests := []struct {
		name    string
		appEnv  string
		want    string
		wantErr bool
	}{
		{name: "dev", appEnv: "dev", want: "dev"},
		{name: "prod", appEnv: "prod", want: "prod"},
		{name: "prod with whitespace", appEnv: "\nprod\t", want: "prod"},
		{name: "staging", appEnv: "staging", wantErr: true},
		{name: "uppercase invalid", appEnv: "DEV", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cleanEnv(t)
			t.Setenv("APP_ENV", tt.appEnv)

			got, err := Load()
			if tt.wantErr {
				if err == nil {
					t.Fatal("Load() error = nil, want non-nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Load() error = %v, want nil", err)
			}
			if got.AppEnv != tt.want {
				t.Errorf("AppEnv = %q, want %q", got.AppEnv, tt.want)
			}
		})
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"LOG_LEVEL", "loud"},
		{"MQTT_ENABLED", "maybe"},
		{"MQTT_PORT", "abc"},
		{"MQTT_PORT", "70000"},
		{"MQTT_QOS", "3"},
		{"MQTT_QUEUE_SIZE", "0"},
		{"CONFIG_INTERVAL", "soon"},
		{"STATE_INTERVAL", "-5s"},
		{"INFLUX_URL", "http://localhost:8086"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			cleanEnv(t)
			t.Setenv(tt.key, tt.value)

			if _, err := Load(); err == nil {
				t.Fatalf("Load() error = nil, want non-nil")
			}
		})
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	cleanEnv(t)
	t.Setenv("MQTT_ENABLED", "false")
	t.Setenv("MQTT_BROKER", "  broker.lan ")
	t.Setenv("MQTT_PORT", "8883")
	t.Setenv("MQTT_CLIENT_ID", "hive-gw")
	t.Setenv("DISCOVERY_PREFIX", "bees")
	t.Setenv("STATE_INTERVAL", "1m")
	t.Setenv("INFLUX_URL", "http://influx:8086")
	t.Setenv("INFLUX_ORG", "apiary")

	got, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}
	if got.MQTTEnabled {
		t.Error("MQTTEnabled = true, want false")
	}
	if got.MQTTBroker != "broker.lan" || got.MQTTPort != 8883 || got.MQTTClientID != "hive-gw" {
		t.Errorf("mqtt = %s:%d %s", got.MQTTBroker, got.MQTTPort, got.MQTTClientID)
	}
	if got.DiscoveryPrefix != "bees" {
		t.Errorf("DiscoveryPrefix = %q, want bees", got.DiscoveryPrefix)
	}
	if got.StateInterval != time.Minute {
		t.Errorf("StateInterval = %v, want 1m", got.StateInterval)
	}
	if got.InfluxBucket != "broodminder" {
		t.Errorf("InfluxBucket = %q, want default broodminder", got.InfluxBucket)
	}
}

func TestLoad_File(t *testing.T) {
	cleanEnv(t)
	path := writeConfigFile(t, `
broker_host: mosquitto
broker_port: 1884
mqtt_enabled: false
devices:
  - id: "47:01:02"
    name: Hive 1
    topic: hive1
    realtime: false
  - id: "57:00:10"
`)
	t.Setenv("CONFIG_FILE", path)

	got, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}
	if got.MQTTBroker != "mosquitto" || got.MQTTPort != 1884 {
		t.Errorf("broker = %s:%d, want mosquitto:1884", got.MQTTBroker, got.MQTTPort)
	}
	if got.MQTTEnabled {
		t.Error("MQTTEnabled = true, want false from file")
	}
	if len(got.Devices) != 2 {
		t.Fatalf("len(Devices) = %d, want 2", len(got.Devices))
	}
	d := got.Devices[0]
	if d.ID != "47:01:02" || d.Name != "Hive 1" || d.Topic != "hive1" || d.Realtime == nil || *d.Realtime {
		t.Errorf("Devices[0] = %+v", d)
	}
	if got.Devices[1].Realtime != nil {
		t.Errorf("Devices[1].Realtime = %v, want nil", *got.Devices[1].Realtime)
	}
}

func TestLoad_EnvBeatsFile(t *testing.T) {
	cleanEnv(t)
	t.Setenv("CONFIG_FILE", writeConfigFile(t, "broker_host: mosquitto\nmqtt_enabled: false\n"))
	t.Setenv("MQTT_BROKER", "override")
	t.Setenv("MQTT_ENABLED", "true")

	got, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}
	if got.MQTTBroker != "override" || !got.MQTTEnabled {
		t.Errorf("got broker=%q enabled=%v, want override/true", got.MQTTBroker, got.MQTTEnabled)
	}
}

func TestLoad_FileErrors(t *testing.T) {
	t.Run("explicit file missing", func(t *testing.T) {
		cleanEnv(t)
		t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "nope.yml"))
		if _, err := Load(); err == nil {
			t.Fatal("Load() error = nil, want non-nil")
		}
	})

	t.Run("bad yaml", func(t *testing.T) {
		cleanEnv(t)
		t.Setenv("CONFIG_FILE", writeConfigFile(t, "devices: [unterminated\n"))
		if _, err := Load(); err == nil {
			t.Fatal("Load() error = nil, want non-nil")
		}
	})

	t.Run("device without id", func(t *testing.T) {
		cleanEnv(t)
		t.Setenv("CONFIG_FILE", writeConfigFile(t, "devices:\n  - name: orphan\n"))
		if _, err := Load(); err == nil {
			t.Fatal("Load() error = nil, want non-nil")
		}
	})
}

func TestParseLogLevel_Valid(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want slog.Level
	}{
		{name: "debug", in: "debug", want: slog.LevelDebug},
		{name: "info", in: "info", want: slog.LevelInfo},
		{name: "warn", in: "warn", want: slog.LevelWarn},
		{name: "warning", in: "warning", want: slog.LevelWarn},
		{name: "error", in: "error", want: slog.LevelError},
		{name: "case insensitive", in: "DeBuG", want: slog.LevelDebug},
		{name: "trims whitespace", in: "  warn \n", want: slog.LevelWarn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseLogLevel(tt.in)
			if err != nil {
				t.Fatalf("parseLogLevel(%q) error = %v, want nil", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("parseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseLogLevel_Invalid(t *testing.T) {
	for _, in := range []string{"", "nope", "warns", "1"} {
		got, err := parseLogLevel(in)
		if err == nil {
			t.Fatalf("parseLogLevel(%q) error = nil, want non-nil", in)
		}
		if got != slog.LevelInfo {
			t.Errorf("parseLogLevel(%q) = %v, want %v on error", in, got, slog.LevelInfo)
		}
	}
}
