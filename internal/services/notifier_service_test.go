package services_test

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/espfleet/ota-fleet/internal/models"
	"github.com/espfleet/ota-fleet/internal/notification"
	"github.com/espfleet/ota-fleet/internal/services"
	"github.com/espfleet/ota-fleet/pkg/signing"
)

// TestNotifierService_Announce_Success tests a signed fleet-wide announce
// going out QoS 1 retained.
func TestNotifierService_Announce_Success(t *testing.T) {
	// Setup
	mockClient := new(MockMQTTClient)
	mockClient.On("Publish", "ota/fleet/all", byte(1), true, mock.Anything).Return(&fakeToken{})

	n := services.NewNotifierService(1, time.Second, false, mockClient, zerolog.Nop())

	// Execute
	topic, ann, err := n.Announce(notification.BuildRequest{
		Version:    "2.0.0",
		SHA256:     "abc123",
		Repo:       "org/fw",
		Target:     notification.Fleet(),
		SigningKey: "secret",
	})

	// Assert
	assert.NoError(t, err)
	assert.Equal(t, "ota/fleet/all", topic)
	assert.True(t, ann.Signed())
	assert.True(t, signing.Verify(ann.Version, ann.SHA256, ann.URL, "secret", ann.Signature))

	// The published payload must decode back into the same announcement.
	payload := mockClient.Calls[0].Arguments.Get(3).([]byte)
	var sent models.UpdateAnnouncement
	assert.NoError(t, json.Unmarshal(payload, &sent))
	assert.Equal(t, ann.Signature, sent.Signature)
	assert.Equal(t, ann.URL, sent.URL)

	mockClient.AssertExpectations(t)
}

// TestNotifierService_Announce_PublishTimeout tests an unacknowledged publish
// surfacing as a terminal failure.
func TestNotifierService_Announce_PublishTimeout(t *testing.T) {
	// Setup
	mockClient := new(MockMQTTClient)
	mockClient.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&fakeToken{timedOut: true})

	n := services.NewNotifierService(1, 10*time.Millisecond, false, mockClient, zerolog.Nop())

	// Execute
	_, _, err := n.Announce(notification.BuildRequest{
		Version: "2.0.0",
		SHA256:  "abc123",
		Repo:    "org/fw",
		Target:  notification.Fleet(),
	})

	// Assert
	assert.ErrorIs(t, err, services.ErrPublishTimeout)
}

// TestNotifierService_Announce_SigningRequired tests that a mandatory-signing
// deployment refuses to publish unsigned, before any action is taken.
func TestNotifierService_Announce_SigningRequired(t *testing.T) {
	// Setup
	mockClient := new(MockMQTTClient)

	n := services.NewNotifierService(1, time.Second, true, mockClient, zerolog.Nop())

	// Execute
	_, _, err := n.Announce(notification.BuildRequest{
		Version: "2.0.0",
		SHA256:  "abc123",
		Repo:    "org/fw",
		Target:  notification.Device("dev-7"),
	})

	// Assert
	assert.ErrorIs(t, err, services.ErrSigningRequired)
	mockClient.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// TestNotifierService_Preview_WarnsUnsignedWithoutPublishing tests the dry-run
// path: the unsigned warning must reach the operator even though nothing is
// transmitted.
func TestNotifierService_Preview_WarnsUnsignedWithoutPublishing(t *testing.T) {
	// Setup
	mockClient := new(MockMQTTClient)
	var logOut strings.Builder
	logger := zerolog.New(&logOut)

	n := services.NewNotifierService(1, time.Second, false, mockClient, logger)

	// Execute
	topic, ann, err := n.Preview(notification.BuildRequest{
		Version: "2.0.0",
		SHA256:  "abc123",
		Repo:    "org/fw",
		Target:  notification.Fleet(),
	})

	// Assert
	assert.NoError(t, err)
	assert.Equal(t, "ota/fleet/all", topic)
	assert.False(t, ann.Signed())
	assert.Contains(t, logOut.String(), "NOT be signed")
	assert.Contains(t, logOut.String(), "REJECT this update")
	mockClient.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// TestNotifierService_Preview_SignedStaysQuiet tests that a signed preview
// emits no unsigned warning.
func TestNotifierService_Preview_SignedStaysQuiet(t *testing.T) {
	// Setup
	var logOut strings.Builder
	logger := zerolog.New(&logOut)

	n := services.NewNotifierService(1, time.Second, false, new(MockMQTTClient), logger)

	// Execute
	_, ann, err := n.Preview(notification.BuildRequest{
		Version:    "2.0.0",
		SHA256:     "abc123",
		Repo:       "org/fw",
		Target:     notification.Fleet(),
		SigningKey: "secret",
	})

	// Assert
	assert.NoError(t, err)
	assert.True(t, ann.Signed())
	assert.NotContains(t, logOut.String(), "NOT be signed")
}

// TestNotifierService_Announce_UnsignedStillPublishes tests that without the
// mandatory-signing policy an unsigned announcement goes out (with a warning
// on the log, which we cannot assert here).
func TestNotifierService_Announce_UnsignedStillPublishes(t *testing.T) {
	// Setup
	mockClient := new(MockMQTTClient)
	mockClient.On("Publish", "ota/device/dev-7", byte(1), true, mock.Anything).Return(&fakeToken{})

	n := services.NewNotifierService(1, time.Second, false, mockClient, zerolog.Nop())

	// Execute
	_, ann, err := n.Announce(notification.BuildRequest{
		Version: "2.0.0",
		SHA256:  "abc123",
		Repo:    "org/fw",
		Target:  notification.Device("dev-7"),
	})

	// Assert
	assert.NoError(t, err)
	assert.False(t, ann.Signed())
	mockClient.AssertExpectations(t)
}
