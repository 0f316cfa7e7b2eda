package notification

import "github.com/espfleet/ota-fleet/internal/constants"

type targetKind int

const (
	kindFleet targetKind = iota
	kindGroup
	kindDevice
)

// TargetSelector addresses an announcement to a single device, a named group,
// or the whole fleet. Each selector resolves to exactly one topic.
type TargetSelector struct {
	kind targetKind
	name string
}

// Device targets a single device by its fleet-unique identifier.
func Device(id string) TargetSelector {
	return TargetSelector{kind: kindDevice, name: id}
}

// Group targets a named subset of the fleet (canary, staging, production...).
func Group(name string) TargetSelector {
	return TargetSelector{kind: kindGroup, name: name}
}

// Fleet targets every device.
func Fleet() TargetSelector {
	return TargetSelector{kind: kindFleet}
}

// Resolve maps operator input to a selector. A device id always wins over a
// group; an empty or literal "fleet" group means the whole fleet.
func Resolve(deviceID, group string) TargetSelector {
	switch {
	case deviceID != "":
		return Device(deviceID)
	case group != "" && group != "fleet":
		return Group(group)
	default:
		return Fleet()
	}
}

// Topic returns the announce topic this selector resolves to.
func (t TargetSelector) Topic() string {
	switch t.kind {
	case kindDevice:
		return constants.TopicDevicePrefix + t.name
	case kindGroup:
		return constants.TopicGroupPrefix + t.name
	default:
		return constants.TopicFleetAll
	}
}

func (t TargetSelector) String() string {
	switch t.kind {
	case kindDevice:
		return "device " + t.name
	case kindGroup:
		return "group " + t.name
	default:
		return "fleet"
	}
}
