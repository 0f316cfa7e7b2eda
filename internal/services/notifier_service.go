package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/espfleet/ota-fleet/internal/models"
	"github.com/espfleet/ota-fleet/internal/notification"
	"github.com/espfleet/ota-fleet/pkg/mqtt"
	"github.com/espfleet/ota-fleet/pkg/signing"
)

// ErrPublishTimeout is returned when the broker does not acknowledge the
// announcement within the configured window. The publish is reported as a
// terminal failure; retry policy belongs to the caller.
var ErrPublishTimeout = errors.New("broker did not acknowledge publish in time")

// ErrSigningRequired is returned when deployment policy mandates signed
// announcements and no signing key is configured.
var ErrSigningRequired = errors.New("signing is required but no signing key is configured")

// NotifierService builds and publishes update announcements. Announcements go
// out QoS 1 and retained so devices joining later still receive the last one.
type NotifierService struct {
	QOS            int
	PublishTimeout time.Duration
	RequireSigning bool
	MqttClient     mqtt.MQTTClient
	Logger         zerolog.Logger
}

// NewNotifierService initializes a new NotifierService.
func NewNotifierService(qos int, publishTimeout time.Duration, requireSigning bool,
	mqttClient mqtt.MQTTClient, logger zerolog.Logger) *NotifierService {

	return &NotifierService{
		QOS:            qos,
		PublishTimeout: publishTimeout,
		RequireSigning: requireSigning,
		MqttClient:     mqttClient,
		Logger:         logger,
	}
}

// Preview builds the announcement for req without publishing anything. It
// runs the same policy checks and emits the same unsigned warning as a real
// announce, so dry runs rehearse exactly what transmission would do.
func (n *NotifierService) Preview(req notification.BuildRequest) (string, models.UpdateAnnouncement, error) {
	if n.RequireSigning && !signing.Enabled(req.SigningKey) {
		return "", models.UpdateAnnouncement{}, ErrSigningRequired
	}

	topic, ann, err := notification.Build(req)
	if err != nil {
		return "", models.UpdateAnnouncement{}, err
	}

	n.warnIfUnsigned(ann)
	return topic, ann, nil
}

// Announce builds the announcement for req and publishes it. An unsigned
// announcement is published with a prominent warning unless RequireSigning is
// set, in which case the attempt fails before any action is taken.
func (n *NotifierService) Announce(req notification.BuildRequest) (string, models.UpdateAnnouncement, error) {
	topic, ann, err := n.Preview(req)
	if err != nil {
		return "", models.UpdateAnnouncement{}, err
	}

	payload, err := json.Marshal(ann)
	if err != nil {
		return "", models.UpdateAnnouncement{}, fmt.Errorf("failed to serialize announcement: %w", err)
	}

	token := n.MqttClient.Publish(topic, byte(n.QOS), true, payload)
	if !token.WaitTimeout(n.PublishTimeout) {
		return "", models.UpdateAnnouncement{}, ErrPublishTimeout
	}
	if err := token.Error(); err != nil {
		return "", models.UpdateAnnouncement{}, fmt.Errorf("failed to publish announcement: %w", err)
	}

	n.Logger.Info().
		Str("topic", topic).
		Str("version", ann.Version).
		Bool("signed", ann.Signed()).
		Msg("OTA announcement published")
	return topic, ann, nil
}

func (n *NotifierService) warnIfUnsigned(ann models.UpdateAnnouncement) {
	if ann.Signed() {
		return
	}
	n.Logger.Warn().Msg("OTA_SIGNING_KEY not set - announcement will NOT be signed")
	n.Logger.Warn().Msg("Devices with signature enforcement will REJECT this update")
}
