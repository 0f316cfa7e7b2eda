package models

// DeviceHeartbeat is the periodic liveness payload a device publishes on
// ota/heartbeat/{id}.
type DeviceHeartbeat struct {
	DeviceID string `json:"device_id"`
	State    string `json:"state"`
	Version  string `json:"version"`
	Group    string `json:"group"`
	IP       string `json:"ip"`
	RSSI     int    `json:"rssi"`
	FreeHeap int64  `json:"free_heap"`
	UptimeMS int64  `json:"uptime_ms"`
}

// DeviceStatusReport is the authoritative state report a device publishes on
// ota/status/{id} while an OTA operation progresses.
type DeviceStatusReport struct {
	DeviceID string `json:"device_id"`
	Status   string `json:"status"`
	Version  string `json:"version,omitempty"`
}
