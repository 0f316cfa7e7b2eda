package models

import "encoding/json"

// EventClass distinguishes the two inbound message kinds. Classification is
// by topic, never by payload shape.
type EventClass int

const (
	// ClassStatus marks an authoritative device-state report.
	ClassStatus EventClass = iota
	// ClassHeartbeat marks a low-priority periodic liveness signal.
	ClassHeartbeat
)

func (c EventClass) String() string {
	if c == ClassHeartbeat {
		return "heartbeat"
	}
	return "status"
}

// TelemetryEvent is a decoded status or heartbeat payload. Telemetry fields
// are pointers so the reconciler can tell "absent" from "zero": absent fields
// must leave the existing device record untouched.
type TelemetryEvent struct {
	DeviceID string  `json:"device_id"`
	Status   *string `json:"status"`
	State    *string `json:"state"`
	Version  *string `json:"version"`
	Group    *string `json:"group"`
	IP       *string `json:"ip"`
	RSSI     *int    `json:"rssi"`
	FreeHeap *int64  `json:"free_heap"`
	UptimeMS *int64  `json:"uptime_ms"`

	// Extra holds payload keys this build does not model, preserved opaquely
	// for forward compatibility with newer firmware.
	Extra map[string]json.RawMessage `json:"-"`
}

var knownEventKeys = map[string]struct{}{
	"device_id": {}, "status": {}, "state": {}, "version": {},
	"group": {}, "ip": {}, "rssi": {}, "free_heap": {}, "uptime_ms": {},
}

// UnmarshalJSON decodes the known fields and diverts everything else into
// Extra.
func (e *TelemetryEvent) UnmarshalJSON(data []byte) error {
	type plain TelemetryEvent
	if err := json.Unmarshal(data, (*plain)(e)); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for key := range raw {
		if _, known := knownEventKeys[key]; known {
			delete(raw, key)
		}
	}
	if len(raw) > 0 {
		e.Extra = raw
	}
	return nil
}
