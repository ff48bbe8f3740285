package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"gnss-stamp/internal/stamp"
)

const (
	ModeSingle   = "single"
	ModeRealtime = "realtime"
)

type Config struct {
	Mode      string          `yaml:"mode"`
	Input     InputConfig     `yaml:"input"`
	Session   SessionConfig   `yaml:"session"`
	PPS       PPSConfig       `yaml:"pps"`
	Transport TransportConfig `yaml:"transport"`
	Output    OutputConfig    `yaml:"output"`
	Web       WebConfig       `yaml:"web"`
	Log       LogConfig       `yaml:"log"`
}

type InputConfig struct {
	// File is an NMEA capture; in realtime mode it is tailed as it grows.
	File           string        `yaml:"file"`
	Serial         SerialConfig  `yaml:"serial"`
	TCP            TCPConfig     `yaml:"tcp"`
	VerifyChecksum bool          `yaml:"verify_checksum"`
	Interval       time.Duration `yaml:"interval"`
}

type SerialConfig struct {
	Enable bool   `yaml:"enable"`
	Device string `yaml:"device"`
	Baud   int    `yaml:"baud"`
}

type TCPConfig struct {
	Addr           string        `yaml:"addr"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
}

type SessionConfig struct {
	DeviceID   string `yaml:"device_id"`
	LinkID     *int   `yaml:"link_id"`
	SyncStatus string `yaml:"sync_status"`
	Version    *int   `yaml:"version"`
}

type PPSConfig struct {
	Enable      bool          `yaml:"enable"`
	Chip        string        `yaml:"chip"`
	Line        string        `yaml:"line"`
	Tolerance   time.Duration `yaml:"tolerance"`
	StableCount int           `yaml:"stable_count"`
	Timeout     time.Duration `yaml:"timeout"`
}

type TransportConfig struct {
	QueueSize int        `yaml:"queue_size"`
	IPv6      IPv6Config `yaml:"ipv6"`
	UDP       UDPConfig  `yaml:"udp"`
	MQTT      MQTTConfig `yaml:"mqtt"`
}

type IPv6Config struct {
	Enable bool   `yaml:"enable"`
	Src    string `yaml:"src"`
	Dst    string `yaml:"dst"`
}

type UDPConfig struct {
	Enable bool   `yaml:"enable"`
	Dest   string `yaml:"dest"`
}

type MQTTConfig struct {
	Enable   bool          `yaml:"enable"`
	Broker   string        `yaml:"broker"`
	ClientID string        `yaml:"client_id"`
	Topic    string        `yaml:"topic"`
	QoS      int           `yaml:"qos"`
	Retain   bool          `yaml:"retain"`
	Timeout  time.Duration `yaml:"timeout"`
}

type OutputConfig struct {
	Dir     string `yaml:"dir"`
	HexLog  *bool  `yaml:"hex_log"`
	Summary *bool  `yaml:"summary"`
	Raw     bool   `yaml:"raw"`
	SQLite  string `yaml:"sqlite"`
}

type WebConfig struct {
	Enable bool   `yaml:"enable"`
	Listen string `yaml:"listen"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Load reads a YAML config file and applies defaults and validation.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}
	if err := DefaultAndValidate(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() Config {
	var cfg Config
	// The zero config always validates.
	_ = DefaultAndValidate(&cfg)
	return cfg
}

func DefaultAndValidate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	cfg.Mode = strings.ToLower(strings.TrimSpace(cfg.Mode))
	if cfg.Mode == "" {
		cfg.Mode = ModeSingle
	}
	if cfg.Mode != ModeSingle && cfg.Mode != ModeRealtime {
		return fmt.Errorf("mode must be %q or %q", ModeSingle, ModeRealtime)
	}

	// Input.
	if cfg.Input.Interval <= 0 {
		cfg.Input.Interval = 1 * time.Second
	}
	sources := 0
	for _, set := range []bool{cfg.Input.File != "", cfg.Input.Serial.Enable, cfg.Input.TCP.Addr != ""} {
		if set {
			sources++
		}
	}
	if sources > 1 {
		return fmt.Errorf("only one of input.file, input.serial and input.tcp may be set")
	}
	if cfg.Input.Serial.Enable {
		if cfg.Mode != ModeRealtime {
			return fmt.Errorf("input.serial requires mode %q", ModeRealtime)
		}
		if cfg.Input.Serial.Baud <= 0 {
			cfg.Input.Serial.Baud = 9600
		}
	}
	if cfg.Input.TCP.Addr != "" {
		if cfg.Mode != ModeRealtime {
			return fmt.Errorf("input.tcp requires mode %q", ModeRealtime)
		}
		if cfg.Input.TCP.ReconnectDelay <= 0 {
			cfg.Input.TCP.ReconnectDelay = 1 * time.Second
		}
	}

	// Session.
	if cfg.Session.DeviceID == "" {
		cfg.Session.DeviceID = "DEADBEEFCAFEBABE"
	}
	dev, err := stamp.ParseDeviceID(cfg.Session.DeviceID)
	if err != nil {
		return fmt.Errorf("session.device_id must be 16 hex digits")
	}
	cfg.Session.DeviceID = dev.String()
	if cfg.Session.LinkID == nil {
		v := 1024
		cfg.Session.LinkID = &v
	}
	if *cfg.Session.LinkID < 0 || *cfg.Session.LinkID > 65535 {
		return fmt.Errorf("session.link_id must be in [0, 65535]")
	}
	if cfg.Session.SyncStatus == "" {
		cfg.Session.SyncStatus = stamp.SyncBeidouLocked.String()
	}
	if _, err := stamp.ParseSyncStatus(cfg.Session.SyncStatus); err != nil {
		return fmt.Errorf("session.sync_status: %w", err)
	}
	if cfg.Session.Version == nil {
		v := stamp.DefaultVersion
		cfg.Session.Version = &v
	}
	if *cfg.Session.Version < 0 || *cfg.Session.Version > 255 {
		return fmt.Errorf("session.version must be in [0, 255]")
	}

	// PPS.
	if cfg.PPS.Enable && strings.TrimSpace(cfg.PPS.Line) == "" {
		return fmt.Errorf("pps.line is required when pps.enable is true")
	}
	if cfg.PPS.Tolerance < 0 || cfg.PPS.Timeout < 0 || cfg.PPS.StableCount < 0 {
		return fmt.Errorf("pps.tolerance, pps.timeout and pps.stable_count must be >= 0")
	}

	// Transport.
	if cfg.Transport.QueueSize == 0 {
		cfg.Transport.QueueSize = 1000
	}
	if cfg.Transport.QueueSize < 0 {
		return fmt.Errorf("transport.queue_size must be > 0")
	}
	if cfg.Transport.IPv6.Src == "" {
		cfg.Transport.IPv6.Src = "2001:db8:1::1"
	}
	if cfg.Transport.IPv6.Dst == "" {
		cfg.Transport.IPv6.Dst = "2001:db8:2::2"
	}
	if cfg.Transport.UDP.Enable && strings.TrimSpace(cfg.Transport.UDP.Dest) == "" {
		return fmt.Errorf("transport.udp.dest is required when transport.udp.enable is true")
	}
	if cfg.Transport.MQTT.Enable {
		if strings.TrimSpace(cfg.Transport.MQTT.Broker) == "" {
			return fmt.Errorf("transport.mqtt.broker is required when transport.mqtt.enable is true")
		}
		if cfg.Transport.MQTT.Topic == "" {
			cfg.Transport.MQTT.Topic = "stamp/" + strings.ToLower(cfg.Session.DeviceID)
		}
		if cfg.Transport.MQTT.ClientID == "" {
			cfg.Transport.MQTT.ClientID = "gnss-stamp-" + strings.ToLower(cfg.Session.DeviceID)
		}
	}
	if cfg.Transport.MQTT.QoS < 0 || cfg.Transport.MQTT.QoS > 2 {
		return fmt.Errorf("transport.mqtt.qos must be 0, 1 or 2")
	}
	if cfg.Transport.MQTT.Timeout <= 0 {
		cfg.Transport.MQTT.Timeout = 5 * time.Second
	}

	// Output.
	if cfg.Output.Dir == "" {
		cfg.Output.Dir = "IGS-Data/STAMP-Output"
	}
	if cfg.Output.HexLog == nil {
		v := true
		cfg.Output.HexLog = &v
	}
	if cfg.Output.Summary == nil {
		v := true
		cfg.Output.Summary = &v
	}

	// Web.
	if cfg.Web.Listen == "" {
		cfg.Web.Listen = ":8080"
	}

	// Log.
	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	switch cfg.Log.Level {
	case "":
		cfg.Log.Level = "info"
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error")
	}

	return nil
}

// StampSession converts the validated session block into codec parameters.
func (c Config) StampSession() stamp.Session {
	dev, _ := stamp.ParseDeviceID(c.Session.DeviceID)
	sync, _ := stamp.ParseSyncStatus(c.Session.SyncStatus)
	s := stamp.NewSession(dev[:], *c.Session.LinkID, sync)
	s.Version = uint8(*c.Session.Version)
	return s
}
