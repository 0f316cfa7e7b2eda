package utils

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/espfleet/ota-fleet/pkg/file"
)

// Config represents the structure of the configuration file.
type Config struct {
	MQTT struct {
		Broker         string        `yaml:"broker"`          // Broker URL, e.g. ssl://broker.example.com:8883
		ClientID       string        `yaml:"client_id"`       // Base client ID; a UUID suffix is appended at startup
		Username       string        `yaml:"username"`        // Broker username (optional)
		Password       string        `yaml:"password"`        // Broker password (optional)
		CACertificate  string        `yaml:"ca_certificate"`  // Path to the CA certificate for TLS brokers (optional)
		ConnectTimeout time.Duration `yaml:"connect_timeout"` // Max wait for the broker to accept the connection
	} `yaml:"mqtt"`

	Services struct {
		Notifier struct {
			Repo           string        `yaml:"repo"`            // Default repository identifier (user/repo)
			QOS            int           `yaml:"qos"`             // MQTT QoS level for announcements
			PublishTimeout time.Duration `yaml:"publish_timeout"` // Max wait for broker acknowledgment
			SigningKey     string        `yaml:"signing_key"`     // Shared HMAC key; empty publishes unsigned
			RequireSigning bool          `yaml:"require_signing"` // Refuse to publish unsigned announcements
		} `yaml:"notifier"`

		Monitor struct {
			QOS             int           `yaml:"qos"`              // MQTT QoS level for telemetry subscriptions
			RefreshInterval time.Duration `yaml:"refresh_interval"` // Dashboard redraw interval
			OfflineAfter    time.Duration `yaml:"offline_after"`    // Show a device offline after this much silence
		} `yaml:"monitor"`

		Simulator struct {
			DeviceCount       int           `yaml:"device_count"`       // Number of simulated devices
			DevicePrefix      string        `yaml:"device_prefix"`      // Device ID prefix (prefix-0, prefix-1, ...)
			Group             string        `yaml:"group"`              // Group the simulated devices report
			Version           string        `yaml:"version"`            // Firmware version the devices start on
			HeartbeatInterval time.Duration `yaml:"heartbeat_interval"` // Interval between heartbeats
			QOS               int           `yaml:"qos"`                // MQTT QoS level for simulated telemetry
			SigningKey        string        `yaml:"signing_key"`        // Key the devices verify announcements with
			Workers           int           `yaml:"workers"`            // Publish worker pool size
		} `yaml:"simulator"`
	} `yaml:"services"`
}

// LoadConfig loads the YAML configuration from the specified file, applies
// environment overrides and fills in defaults. The file may be absent when
// everything needed comes from the environment (the CI case).
func LoadConfig(filename string, fileClient file.FileOperations) (*Config, error) {
	var config Config

	exists, err := fileClient.IsFileExists(filename)
	if err != nil {
		return nil, err
	}
	if exists {
		if err := fileClient.ReadYamlFile(filename, &config); err != nil {
			return nil, err
		}
	}

	config.applyEnvOverrides()
	config.applyDefaults()
	return &config, nil
}

// applyEnvOverrides maps the deployment's environment variables (set as CI
// secrets) onto the config. MQTT_BROKER is a bare hostname combined with
// MQTT_PORT and MQTT_USE_TLS into a broker URL.
func (c *Config) applyEnvOverrides() {
	if host := os.Getenv("MQTT_BROKER"); host != "" {
		port := os.Getenv("MQTT_PORT")
		if port == "" {
			port = "8883"
		}
		scheme := "ssl"
		if strings.EqualFold(os.Getenv("MQTT_USE_TLS"), "false") {
			scheme = "tcp"
		}
		c.MQTT.Broker = fmt.Sprintf("%s://%s:%s", scheme, host, port)
	}
	if username := os.Getenv("MQTT_USERNAME"); username != "" {
		c.MQTT.Username = username
	}
	if password := os.Getenv("MQTT_PASSWORD"); password != "" {
		c.MQTT.Password = password
	}
	if key := os.Getenv("OTA_SIGNING_KEY"); key != "" {
		c.Services.Notifier.SigningKey = key
		c.Services.Simulator.SigningKey = key
	}
}

// applyDefaults fills zero values. A plain int cannot distinguish an absent
// qos key from an explicit qos: 0, so 0 is rewritten to 1 for all three
// services; the protocol assumes at-least-once delivery throughout, making
// QoS 0 a misconfiguration rather than a supported mode.
func (c *Config) applyDefaults() {
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "ota-fleet"
	}
	if c.MQTT.ConnectTimeout <= 0 {
		c.MQTT.ConnectTimeout = 15 * time.Second
	}

	notifier := &c.Services.Notifier
	if notifier.QOS == 0 {
		notifier.QOS = 1
	}
	if notifier.PublishTimeout <= 0 {
		notifier.PublishTimeout = 10 * time.Second
	}

	monitor := &c.Services.Monitor
	if monitor.QOS == 0 {
		monitor.QOS = 1
	}
	if monitor.RefreshInterval <= 0 {
		monitor.RefreshInterval = 2 * time.Second
	}
	if monitor.OfflineAfter <= 0 {
		monitor.OfflineAfter = 90 * time.Second
	}

	simulator := &c.Services.Simulator
	if simulator.DeviceCount <= 0 {
		simulator.DeviceCount = 3
	}
	if simulator.DevicePrefix == "" {
		simulator.DevicePrefix = "sim"
	}
	if simulator.Group == "" {
		simulator.Group = "staging"
	}
	if simulator.Version == "" {
		simulator.Version = "1.0.0"
	}
	if simulator.HeartbeatInterval <= 0 {
		simulator.HeartbeatInterval = 30 * time.Second
	}
	if simulator.QOS == 0 {
		simulator.QOS = 1
	}
	if simulator.Workers <= 0 {
		simulator.Workers = 4
	}
}
