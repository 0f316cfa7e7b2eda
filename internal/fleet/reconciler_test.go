package fleet_test

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/espfleet/ota-fleet/internal/constants"
	"github.com/espfleet/ota-fleet/internal/fleet"
)

func TestReconciler_ClassifiesByTopic(t *testing.T) {
	store := fleet.NewStore()
	r := fleet.NewReconciler(store, zerolog.Nop())

	r.HandleMessage("ota/status/dev-1", []byte(`{"device_id":"dev-1","status":"downloading"}`))
	rec, ok := store.Get("dev-1")
	assert.True(t, ok)
	assert.Equal(t, constants.StatusDownloading, rec.Status)

	// A heartbeat parked behind an in-progress status must not apply.
	r.HandleMessage("ota/heartbeat/dev-1", []byte(`{"device_id":"dev-1","state":"stable"}`))
	rec, _ = store.Get("dev-1")
	assert.Equal(t, constants.StatusDownloading, rec.Status)
}

// TestReconciler_MalformedPayloadDropped verifies a non-parseable message
// leaves existing records completely unchanged and does not surface an
// error.
func TestReconciler_MalformedPayloadDropped(t *testing.T) {
	store := fleet.NewStore()
	r := fleet.NewReconciler(store, zerolog.Nop())

	r.HandleMessage("ota/status/dev-1", []byte(`{"device_id":"dev-1","status":"stable","ip":"10.0.0.1"}`))
	before, _ := store.Get("dev-1")

	r.HandleMessage("ota/status/dev-1", []byte(`{not json`))

	after, ok := store.Get("dev-1")
	assert.True(t, ok)
	assert.Equal(t, before, after)
	assert.Equal(t, uint64(1), r.Dropped())
}

func TestReconciler_IgnoresForeignTopics(t *testing.T) {
	store := fleet.NewStore()
	r := fleet.NewReconciler(store, zerolog.Nop())

	r.HandleMessage("ota/fleet/all", []byte(`{"version":"2.0.0"}`))
	r.HandleMessage("sensors/temp/dev-1", []byte(`{"device_id":"dev-1"}`))

	assert.Equal(t, 0, store.Len())
	assert.Equal(t, uint64(0), r.Dropped())
}

func TestReconciler_MissingDeviceIDGoesToSentinel(t *testing.T) {
	store := fleet.NewStore()
	r := fleet.NewReconciler(store, zerolog.Nop())

	r.HandleMessage("ota/heartbeat/mystery", []byte(`{"rssi":-55}`))

	rec, ok := store.Get(constants.UnknownDeviceID)
	assert.True(t, ok)
	assert.Equal(t, -55, *rec.RSSI)
}

// TestReconciler_UnrecognizedStatusPassesThrough verifies unknown status
// strings are carried verbatim instead of being rejected.
func TestReconciler_UnrecognizedStatusPassesThrough(t *testing.T) {
	store := fleet.NewStore()
	r := fleet.NewReconciler(store, zerolog.Nop())

	r.HandleMessage("ota/status/dev-1", []byte(`{"device_id":"dev-1","status":"flux_capaciting"}`))

	rec, _ := store.Get("dev-1")
	assert.Equal(t, constants.DeviceStatus("flux_capaciting"), rec.Status)
	assert.False(t, rec.Status.Known())
}

func TestReconciler_ExtraPayloadKeysPreserved(t *testing.T) {
	store := fleet.NewStore()
	r := fleet.NewReconciler(store, zerolog.Nop())

	r.HandleMessage("ota/heartbeat/dev-1", []byte(`{"device_id":"dev-1","chip_rev":"rev2","boot_count":17}`))

	rec, _ := store.Get("dev-1")
	assert.JSONEq(t, `"rev2"`, string(rec.Extra["chip_rev"]))
	assert.JSONEq(t, `17`, string(rec.Extra["boot_count"]))
}
