package constants

// DeviceStatus is the state a device last reported over the bus. The set of
// named values mirrors what the embedded firmware emits, but the type carries
// any raw string a device sends: an unrecognized status is kept verbatim and
// reported as not Known rather than rejected, so newer firmware can introduce
// states without breaking older monitors.
type DeviceStatus string

const (
	StatusIdle            DeviceStatus = "idle"
	StatusStable          DeviceStatus = "stable"
	StatusConfirmed       DeviceStatus = "confirmed"
	StatusDownloading     DeviceStatus = "downloading"
	StatusUpdateAvailable DeviceStatus = "update_available"
	StatusSelfTestRunning DeviceStatus = "self_test_running"
	StatusRebooting       DeviceStatus = "rebooting"
	StatusDownloadFailed  DeviceStatus = "download_failed"
	StatusRolledBack      DeviceStatus = "rolled_back"
	StatusOffline         DeviceStatus = "offline"
)

var knownStatuses = map[DeviceStatus]struct{}{
	StatusIdle:            {},
	StatusStable:          {},
	StatusConfirmed:       {},
	StatusDownloading:     {},
	StatusUpdateAvailable: {},
	StatusSelfTestRunning: {},
	StatusRebooting:       {},
	StatusDownloadFailed:  {},
	StatusRolledBack:      {},
	StatusOffline:         {},
}

// Known reports whether s is one of the named status values.
func (s DeviceStatus) Known() bool {
	_, ok := knownStatuses[s]
	return ok
}

// InProgress reports whether s describes an OTA operation actively running on
// the device. A heartbeat must never overwrite an in-progress status.
func (s DeviceStatus) InProgress() bool {
	switch s {
	case StatusDownloading, StatusSelfTestRunning, StatusRebooting:
		return true
	}
	return false
}
