package notification_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/espfleet/ota-fleet/internal/notification"
)

func TestTargetSelector_Topics(t *testing.T) {
	assert.Equal(t, "ota/device/dev-7", notification.Device("dev-7").Topic())
	assert.Equal(t, "ota/group/canary", notification.Group("canary").Topic())
	assert.Equal(t, "ota/fleet/all", notification.Fleet().Topic())
}

// TestResolve_DevicePrecedence verifies a device id always wins over any
// simultaneously supplied group selection.
func TestResolve_DevicePrecedence(t *testing.T) {
	assert.Equal(t, "ota/device/dev-7", notification.Resolve("dev-7", "canary").Topic())
	assert.Equal(t, "ota/device/dev-7", notification.Resolve("dev-7", "fleet").Topic())
	assert.Equal(t, "ota/device/dev-7", notification.Resolve("dev-7", "").Topic())
}

func TestResolve_GroupAndFleet(t *testing.T) {
	assert.Equal(t, "ota/group/canary", notification.Resolve("", "canary").Topic())
	assert.Equal(t, "ota/fleet/all", notification.Resolve("", "fleet").Topic())
	assert.Equal(t, "ota/fleet/all", notification.Resolve("", "").Topic())
}
