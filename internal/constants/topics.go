package constants

// MQTT topic namespace. Announce topics are published by the coordinator,
// status and heartbeat topics by the devices. The monitor subscribes to the
// wildcard forms.
const (
	TopicDevicePrefix    = "ota/device/"
	TopicGroupPrefix     = "ota/group/"
	TopicFleetAll        = "ota/fleet/all"
	TopicStatusPrefix    = "ota/status/"
	TopicHeartbeatPrefix = "ota/heartbeat/"

	TopicStatusWildcard    = "ota/status/#"
	TopicHeartbeatWildcard = "ota/heartbeat/#"
)

// UnknownDeviceID is the sentinel record that collects events arriving
// without a device_id, so malformed-but-parseable traffic stays visible.
const UnknownDeviceID = "unknown"
