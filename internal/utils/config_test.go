package utils_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/espfleet/ota-fleet/internal/utils"
	"github.com/espfleet/ota-fleet/pkg/file"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	assert.NoError(t, os.WriteFile(path, []byte(contents), 0600))
	return path
}

func TestLoadConfig_FileValues(t *testing.T) {
	path := writeConfig(t, `
mqtt:
  broker: "ssl://broker.example.com:8883"
  client_id: "test-fleet"
services:
  notifier:
    repo: "org/fw"
    publish_timeout: 3s
    require_signing: true
`)
	t.Setenv("MQTT_BROKER", "")

	config, err := utils.LoadConfig(path, file.NewFileService())
	assert.NoError(t, err)

	assert.Equal(t, "ssl://broker.example.com:8883", config.MQTT.Broker)
	assert.Equal(t, "test-fleet", config.MQTT.ClientID)
	assert.Equal(t, "org/fw", config.Services.Notifier.Repo)
	assert.Equal(t, 3*time.Second, config.Services.Notifier.PublishTimeout)
	assert.True(t, config.Services.Notifier.RequireSigning)
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("MQTT_BROKER", "")
	config, err := utils.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"), file.NewFileService())
	assert.NoError(t, err)

	assert.Equal(t, 15*time.Second, config.MQTT.ConnectTimeout)
	assert.Equal(t, 1, config.Services.Notifier.QOS)
	assert.Equal(t, 10*time.Second, config.Services.Notifier.PublishTimeout)
	assert.Equal(t, 90*time.Second, config.Services.Monitor.OfflineAfter)
	assert.Equal(t, 30*time.Second, config.Services.Simulator.HeartbeatInterval)
	assert.Equal(t, 3, config.Services.Simulator.DeviceCount)
}

// TestLoadConfig_QoSZeroRewrittenToOne pins the documented behavior: an
// explicit qos: 0 is indistinguishable from an absent key and becomes QoS 1,
// since the protocol assumes at-least-once delivery.
func TestLoadConfig_QoSZeroRewrittenToOne(t *testing.T) {
	path := writeConfig(t, `
services:
  notifier:
    qos: 0
  monitor:
    qos: 0
  simulator:
    qos: 0
`)
	t.Setenv("MQTT_BROKER", "")

	config, err := utils.LoadConfig(path, file.NewFileService())
	assert.NoError(t, err)
	assert.Equal(t, 1, config.Services.Notifier.QOS)
	assert.Equal(t, 1, config.Services.Monitor.QOS)
	assert.Equal(t, 1, config.Services.Simulator.QOS)
}

// TestLoadConfig_EnvOverrides verifies the CI secret environment variables
// take precedence over file values.
func TestLoadConfig_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
mqtt:
  broker: "tcp://file-broker:1883"
  username: "file-user"
`)

	t.Setenv("MQTT_BROKER", "env-broker.example.com")
	t.Setenv("MQTT_PORT", "8883")
	t.Setenv("MQTT_USE_TLS", "true")
	t.Setenv("MQTT_USERNAME", "env-user")
	t.Setenv("MQTT_PASSWORD", "env-pass")
	t.Setenv("OTA_SIGNING_KEY", "env-key")

	config, err := utils.LoadConfig(path, file.NewFileService())
	assert.NoError(t, err)

	assert.Equal(t, "ssl://env-broker.example.com:8883", config.MQTT.Broker)
	assert.Equal(t, "env-user", config.MQTT.Username)
	assert.Equal(t, "env-pass", config.MQTT.Password)
	assert.Equal(t, "env-key", config.Services.Notifier.SigningKey)
	assert.Equal(t, "env-key", config.Services.Simulator.SigningKey)
}

func TestLoadConfig_PlainTCPWhenTLSDisabled(t *testing.T) {
	t.Setenv("MQTT_BROKER", "env-broker.example.com")
	t.Setenv("MQTT_PORT", "1883")
	t.Setenv("MQTT_USE_TLS", "false")

	config, err := utils.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"), file.NewFileService())
	assert.NoError(t, err)
	assert.Equal(t, "tcp://env-broker.example.com:1883", config.MQTT.Broker)
}
