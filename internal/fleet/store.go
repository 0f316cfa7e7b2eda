// Package fleet holds the shared device-state store and the reconciler that
// folds raw bus traffic into it.
package fleet

import (
	"encoding/json"
	"sort"
	"time"

	cmap "github.com/orcaman/concurrent-map/v2"

	"github.com/espfleet/ota-fleet/internal/constants"
	"github.com/espfleet/ota-fleet/internal/models"
)

// Store maps device identifiers to their last-known records. It is safe for
// concurrent use: each merge runs atomically within the backing map's shard
// lock, so transports that deliver from multiple callback goroutines need no
// external serialization.
type Store struct {
	records cmap.ConcurrentMap[string, models.DeviceRecord]
}

// NewStore returns an empty fleet store.
func NewStore() *Store {
	return &Store{records: cmap.New[models.DeviceRecord]()}
}

// Apply merges one decoded event into the device's record, creating the
// record on first sight. Merge rules:
//
//   - a status event overwrites the status unconditionally;
//   - a heartbeat applies its state (default "stable") only when the current
//     status is not an in-progress OTA state, so a stale heartbeat can never
//     mask an active download, self-test or reboot;
//   - every telemetry field present in the event overwrites that field,
//     absent fields are left untouched;
//   - lastSeen is stamped with the event arrival time for both classes.
func (s *Store) Apply(class models.EventClass, ev models.TelemetryEvent, at time.Time) models.DeviceRecord {
	id := ev.DeviceID
	if id == "" {
		id = constants.UnknownDeviceID
	}

	return s.records.Upsert(id, models.DeviceRecord{}, func(exists bool, cur, _ models.DeviceRecord) models.DeviceRecord {
		rec := cur
		rec.DeviceID = id

		switch class {
		case models.ClassStatus:
			if ev.Status != nil {
				rec.Status = constants.DeviceStatus(*ev.Status)
			}
		case models.ClassHeartbeat:
			if !rec.Status.InProgress() {
				state := string(constants.StatusStable)
				if ev.State != nil {
					state = *ev.State
				}
				rec.Status = constants.DeviceStatus(state)
			}
		}

		if ev.Version != nil {
			rec.Version = ev.Version
		}
		if ev.Group != nil {
			rec.Group = ev.Group
		}
		if ev.IP != nil {
			rec.IP = ev.IP
		}
		if ev.RSSI != nil {
			rec.RSSI = ev.RSSI
		}
		if ev.FreeHeap != nil {
			rec.FreeHeap = ev.FreeHeap
		}
		if ev.UptimeMS != nil {
			rec.UptimeMS = ev.UptimeMS
		}
		if len(ev.Extra) > 0 {
			// Records escape the store via Get and Snapshot holding this map
			// by reference, so it must never be written in place: merge into
			// a fresh map and swap it.
			merged := make(map[string]json.RawMessage, len(rec.Extra)+len(ev.Extra))
			for key, val := range rec.Extra {
				merged[key] = val
			}
			for key, val := range ev.Extra {
				merged[key] = val
			}
			rec.Extra = merged
		}

		rec.LastSeen = at
		return rec
	})
}

// Get returns the record for a device, if one exists.
func (s *Store) Get(deviceID string) (models.DeviceRecord, bool) {
	return s.records.Get(deviceID)
}

// Len returns the number of devices ever observed.
func (s *Store) Len() int {
	return s.records.Count()
}

// Snapshot returns a point-in-time copy of all records, sorted by device id
// for stable presentation.
func (s *Store) Snapshot() []models.DeviceRecord {
	out := make([]models.DeviceRecord, 0, s.records.Count())
	for _, rec := range s.records.Items() {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeviceID < out[j].DeviceID })
	return out
}
