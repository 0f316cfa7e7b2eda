package services

import (
	"context"
	"errors"
	"sync"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/espfleet/ota-fleet/internal/constants"
	"github.com/espfleet/ota-fleet/internal/fleet"
	"github.com/espfleet/ota-fleet/internal/models"
	"github.com/espfleet/ota-fleet/pkg/mqtt"
)

// Renderer is the presentation boundary: it receives point-in-time fleet
// snapshots and displays them however it likes. Staleness policy (when a
// silent device counts as offline) lives behind this interface, not in the
// reconciler.
type Renderer interface {
	Render(records []models.DeviceRecord)
}

// MonitorService subscribes to the fleet's status and heartbeat topics,
// feeds every message through the reconciler and renders the store on a
// fixed interval.
type MonitorService struct {
	QOS             int
	RefreshInterval time.Duration
	MqttClient      mqtt.MQTTClient
	Store           *fleet.Store
	Reconciler      *fleet.Reconciler
	Renderer        Renderer
	Logger          zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMonitorService initializes a new MonitorService.
func NewMonitorService(qos int, refreshInterval time.Duration, mqttClient mqtt.MQTTClient,
	store *fleet.Store, reconciler *fleet.Reconciler, renderer Renderer, logger zerolog.Logger) *MonitorService {

	return &MonitorService{
		QOS:             qos,
		RefreshInterval: refreshInterval,
		MqttClient:      mqttClient,
		Store:           store,
		Reconciler:      reconciler,
		Renderer:        renderer,
		Logger:          logger,
	}
}

// Start subscribes to the telemetry wildcards and launches the render loop.
func (m *MonitorService) Start() error {
	if m.ctx != nil {
		m.Logger.Warn().Msg("MonitorService is already running")
		return errors.New("monitor service is already running")
	}

	handler := func(_ MQTT.Client, msg MQTT.Message) {
		m.Reconciler.HandleMessage(msg.Topic(), msg.Payload())
	}

	for _, topic := range []string{constants.TopicStatusWildcard, constants.TopicHeartbeatWildcard} {
		token := m.MqttClient.Subscribe(topic, byte(m.QOS), handler)
		token.Wait()
		if err := token.Error(); err != nil {
			return err
		}
		m.Logger.Info().Str("topic", topic).Msg("Subscribed to telemetry topic")
	}

	m.ctx, m.cancel = context.WithCancel(context.Background())

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.runRenderLoop()
	}()

	m.Logger.Info().Msg("MonitorService started successfully")
	return nil
}

// Stop halts the render loop and drops the subscriptions.
func (m *MonitorService) Stop() error {
	if m.ctx == nil {
		m.Logger.Warn().Msg("MonitorService is not running")
		return errors.New("monitor service is not running")
	}

	m.cancel()
	m.wg.Wait()

	m.ctx = nil
	m.cancel = nil

	token := m.MqttClient.Unsubscribe(constants.TopicStatusWildcard, constants.TopicHeartbeatWildcard)
	token.Wait()

	m.Logger.Info().Msg("MonitorService stopped successfully")
	return token.Error()
}

func (m *MonitorService) runRenderLoop() {
	ticker := time.NewTicker(m.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Renderer.Render(m.Store.Snapshot())
		case <-m.ctx.Done():
			m.Logger.Info().Msg("MonitorService stopping gracefully")
			return
		}
	}
}
