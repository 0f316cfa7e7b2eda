package fleet

import (
	"encoding/json"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/espfleet/ota-fleet/internal/constants"
	"github.com/espfleet/ota-fleet/internal/models"
)

// Reconciler folds raw inbound messages into the fleet store. Events are
// classified by topic: ota/status/* is authoritative, ota/heartbeat/* is a
// liveness signal subordinate to any in-progress status.
type Reconciler struct {
	store   *Store
	logger  zerolog.Logger
	now     func() time.Time
	dropped atomic.Uint64
}

// NewReconciler wires a reconciler to the given store.
func NewReconciler(store *Store, logger zerolog.Logger) *Reconciler {
	return &Reconciler{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// HandleMessage processes one inbound message. Malformed payloads are dropped
// without touching any record; embedded telemetry is noisy enough that this
// is a counted debug event, not an operator-facing error. Messages outside
// the status/heartbeat namespace are ignored.
func (r *Reconciler) HandleMessage(topic string, payload []byte) {
	var class models.EventClass
	switch {
	case strings.HasPrefix(topic, constants.TopicStatusPrefix):
		class = models.ClassStatus
	case strings.HasPrefix(topic, constants.TopicHeartbeatPrefix):
		class = models.ClassHeartbeat
	default:
		r.logger.Debug().Str("topic", topic).Msg("Ignoring message outside the OTA telemetry namespace")
		return
	}

	var ev models.TelemetryEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		r.dropped.Add(1)
		r.logger.Debug().Err(err).Str("topic", topic).Msg("Dropped malformed telemetry payload")
		return
	}

	rec := r.store.Apply(class, ev, r.now().UTC())
	r.logger.Debug().
		Str("device", rec.DeviceID).
		Str("class", class.String()).
		Str("status", string(rec.Status)).
		Msg("Merged telemetry event")
}

// Dropped returns how many payloads failed to parse and were discarded.
func (r *Reconciler) Dropped() uint64 {
	return r.dropped.Load()
}
