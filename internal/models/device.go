package models

import (
	"encoding/json"
	"time"

	"github.com/espfleet/ota-fleet/internal/constants"
)

// DeviceRecord is the last-known view of a single device, owned exclusively
// by the fleet store. Telemetry fields are pointers for the same reason as in
// TelemetryEvent: nil means the fleet has never observed that field for this
// device.
type DeviceRecord struct {
	DeviceID string                     `json:"device_id"`
	Status   constants.DeviceStatus     `json:"status"`
	Version  *string                    `json:"version,omitempty"`
	Group    *string                    `json:"group,omitempty"`
	IP       *string                    `json:"ip,omitempty"`
	RSSI     *int                       `json:"rssi,omitempty"`
	FreeHeap *int64                     `json:"free_heap,omitempty"`
	UptimeMS *int64                     `json:"uptime_ms,omitempty"`
	LastSeen time.Time                  `json:"last_seen"`
	Extra    map[string]json.RawMessage `json:"-"`
}
