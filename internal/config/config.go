package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

const defaultConfigFile = "configuration.yml"

// Device is a per-device override from the configuration file.
type Device struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Topic    string `yaml:"topic"`
	Realtime *bool  `yaml:"realtime"`
}

type Config struct {
	AppEnv   string
	LogLevel slog.Level

	MQTTEnabled   bool
	MQTTBroker    string
	MQTTPort      int
	MQTTClientID  string
	MQTTQoS       int
	MQTTQueueSize int

	DiscoveryPrefix string
	ConfigInterval  time.Duration
	StateInterval   time.Duration
	Devices         []Device

	BLEAdapter  string
	HTTPAddr    string
	JournalPath string

	InfluxURL    string
	InfluxToken  string
	InfluxOrg    string
	InfluxBucket string
}

// fileConfig mirrors configuration.yml.
type fileConfig struct {
	BrokerHost      string   `yaml:"broker_host"`
	BrokerPort      int      `yaml:"broker_port"`
	MQTTEnabled     *bool    `yaml:"mqtt_enabled"`
	DiscoveryPrefix string   `yaml:"discovery_prefix"`
	Devices         []Device `yaml:"devices"`
}

// Load reads the optional YAML file named by CONFIG_FILE and applies environment overrides on top.
// A missing default file is not an error; a missing file named explicitly is.
func Load() (Config, error) {
	path := strings.TrimSpace(os.Getenv("CONFIG_FILE"))
	explicit := path != ""
	if !explicit {
		path = defaultConfigFile
	}

	var fc fileConfig
	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(raw, &fc); err != nil {
			return Config{}, fmt.Errorf("parse config file %q: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return Config{}, fmt.Errorf("read config file %q: %w", path, err)
	}

	return fromEnv(fc)
}

func fromEnv(fc fileConfig) (Config, error) {
	appEnv := envString("APP_ENV", "dev")
	switch appEnv {
	case "dev", "prod":
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	level, err := parseLogLevel(envString("LOG_LEVEL", "info"))
	if err != nil {
		return Config{}, err
	}

	mqttEnabled := true
	if fc.MQTTEnabled != nil {
		mqttEnabled = *fc.MQTTEnabled
	}
	if mqttEnabled, err = envBool("MQTT_ENABLED", mqttEnabled); err != nil {
		return Config{}, err
	}

	mqttBroker := envString("MQTT_BROKER", orDefault(fc.BrokerHost, "localhost"))

	defaultPort := 1883
	if fc.BrokerPort != 0 {
		defaultPort = fc.BrokerPort
	}
	mqttPort, err := envInt("MQTT_PORT", defaultPort)
	if err != nil {
		return Config{}, err
	}
	if mqttPort < 1 || mqttPort > 65535 {
		return Config{}, fmt.Errorf("MQTT_PORT must be in 1..65535, got %d", mqttPort)
	}

	mqttClientID := envString("MQTT_CLIENT_ID", "")
	if mqttClientID == "" {
		mqttClientID = "brood-flow-" + uuid.NewString()[:8]
	}

	mqttQoS, err := envInt("MQTT_QOS", 1)
	if err != nil {
		return Config{}, err
	}
	if mqttQoS < 0 || mqttQoS > 2 {
		return Config{}, fmt.Errorf("MQTT_QOS must be 0, 1 or 2, got %d", mqttQoS)
	}

	queueSize, err := envInt("MQTT_QUEUE_SIZE", 256)
	if err != nil {
		return Config{}, err
	}
	if queueSize <= 0 {
		return Config{}, fmt.Errorf("MQTT_QUEUE_SIZE must be positive, got %d", queueSize)
	}

	configInterval, err := envDuration("CONFIG_INTERVAL", time.Hour)
	if err != nil {
		return Config{}, err
	}
	stateInterval, err := envDuration("STATE_INTERVAL", 30*time.Second)
	if err != nil {
		return Config{}, err
	}

	for i, d := range fc.Devices {
		if strings.TrimSpace(d.ID) == "" {
			return Config{}, fmt.Errorf("devices[%d]: id is required", i)
		}
	}

	cfg := Config{
		AppEnv:          appEnv,
		LogLevel:        level,
		MQTTEnabled:     mqttEnabled,
		MQTTBroker:      mqttBroker,
		MQTTPort:        mqttPort,
		MQTTClientID:    mqttClientID,
		MQTTQoS:         mqttQoS,
		MQTTQueueSize:   queueSize,
		DiscoveryPrefix: envString("DISCOVERY_PREFIX", orDefault(fc.DiscoveryPrefix, "homeassistant")),
		ConfigInterval:  configInterval,
		StateInterval:   stateInterval,
		Devices:         fc.Devices,
		BLEAdapter:      envString("BLE_ADAPTER", ""),
		HTTPAddr:        envString("HTTP_ADDR", ":8080"),
		JournalPath:     envString("JOURNAL_PATH", ""),
		InfluxURL:       envString("INFLUX_URL", ""),
		InfluxToken:     envString("INFLUX_TOKEN", ""),
		InfluxOrg:       envString("INFLUX_ORG", ""),
		InfluxBucket:    envString("INFLUX_BUCKET", "broodminder"),
	}

	if cfg.InfluxURL != "" && cfg.InfluxOrg == "" {
		return Config{}, errors.New("INFLUX_ORG is required when INFLUX_URL is set")
	}

	return cfg, nil
}

func envString(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envInt(key string, def int) (int, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return v, nil
}

func envBool(key string, def bool) (bool, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return v, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return def, nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %v", key, v)
	}
	return v, nil
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return strings.TrimSpace(v)
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}
