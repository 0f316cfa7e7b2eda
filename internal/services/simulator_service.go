package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/host"
	"github.com/shirou/gopsutil/mem"

	"github.com/espfleet/ota-fleet/internal/constants"
	"github.com/espfleet/ota-fleet/internal/models"
	"github.com/espfleet/ota-fleet/internal/utils"
	"github.com/espfleet/ota-fleet/pkg/mqtt"
	"github.com/espfleet/ota-fleet/pkg/signing"
)

// simulatedDevice is one fake fleet member. Its status and version mutate
// from both the heartbeat loop and announcement handlers, hence the mutex.
type simulatedDevice struct {
	id string
	ip string

	mu      sync.Mutex
	version string
	status  constants.DeviceStatus
}

// SimulatorService stands in for a fleet of devices: it publishes heartbeats,
// listens on the announce topics and walks accepted updates through the
// downloading / self-test / reboot sequence. It exists so the notifier and
// monitor can be exercised end to end without hardware on the bench.
type SimulatorService struct {
	Group             string
	HeartbeatInterval time.Duration
	QOS               int
	SigningKey        string
	StepDelay         time.Duration
	MqttClient        mqtt.MQTTClient
	Logger            zerolog.Logger

	devices []*simulatedDevice
	pool    *utils.WorkerPool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewSimulatorService initializes a simulator with deviceCount devices named
// prefix-0 ... prefix-N, all reporting the given group and starting version.
func NewSimulatorService(deviceCount int, devicePrefix, group, version string,
	heartbeatInterval time.Duration, qos int, signingKey string, workers int,
	mqttClient mqtt.MQTTClient, logger zerolog.Logger) *SimulatorService {

	devices := make([]*simulatedDevice, 0, deviceCount)
	for i := 0; i < deviceCount; i++ {
		devices = append(devices, &simulatedDevice{
			id:      fmt.Sprintf("%s-%d", devicePrefix, i),
			ip:      fmt.Sprintf("192.168.4.%d", i+10),
			version: version,
			status:  constants.StatusStable,
		})
	}

	return &SimulatorService{
		Group:             group,
		HeartbeatInterval: heartbeatInterval,
		QOS:               qos,
		SigningKey:        signingKey,
		StepDelay:         2 * time.Second,
		MqttClient:        mqttClient,
		Logger:            logger,
		devices:           devices,
		pool:              utils.NewWorkerPool(workers),
	}
}

// Start subscribes every device to its announce topics and launches the
// heartbeat loop.
func (s *SimulatorService) Start() error {
	if s.ctx != nil {
		s.Logger.Warn().Msg("SimulatorService is already running")
		return errors.New("simulator service is already running")
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())

	broadcast := func(_ MQTT.Client, msg MQTT.Message) {
		for _, dev := range s.devices {
			s.handleAnnouncement(dev, msg.Payload())
		}
	}
	for _, topic := range []string{constants.TopicFleetAll, constants.TopicGroupPrefix + s.Group} {
		token := s.MqttClient.Subscribe(topic, byte(s.QOS), broadcast)
		token.Wait()
		if err := token.Error(); err != nil {
			return err
		}
	}

	for _, dev := range s.devices {
		dev := dev
		token := s.MqttClient.Subscribe(constants.TopicDevicePrefix+dev.id, byte(s.QOS), func(_ MQTT.Client, msg MQTT.Message) {
			s.handleAnnouncement(dev, msg.Payload())
		})
		token.Wait()
		if err := token.Error(); err != nil {
			return err
		}
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runHeartbeatLoop()
	}()

	s.Logger.Info().Int("devices", len(s.devices)).Str("group", s.Group).Msg("SimulatorService started successfully")
	return nil
}

// Stop halts heartbeats and in-flight update sequences.
func (s *SimulatorService) Stop() error {
	if s.ctx == nil {
		s.Logger.Warn().Msg("SimulatorService is not running")
		return errors.New("simulator service is not running")
	}

	topics := []string{constants.TopicFleetAll, constants.TopicGroupPrefix + s.Group}
	for _, dev := range s.devices {
		topics = append(topics, constants.TopicDevicePrefix+dev.id)
	}
	s.MqttClient.Unsubscribe(topics...).Wait()

	s.cancel()
	s.wg.Wait()
	s.pool.Shutdown()

	s.ctx = nil
	s.cancel = nil

	s.Logger.Info().Msg("SimulatorService stopped successfully")
	return nil
}

func (s *SimulatorService) runHeartbeatLoop() {
	ticker := time.NewTicker(s.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for _, dev := range s.devices {
				dev := dev
				s.pool.Submit(func() { s.publishHeartbeat(dev) })
			}
		case <-s.ctx.Done():
			s.Logger.Info().Msg("SimulatorService stopping gracefully")
			return
		}
	}
}

func (s *SimulatorService) publishHeartbeat(dev *simulatedDevice) {
	dev.mu.Lock()
	version := dev.version
	state := dev.status
	dev.mu.Unlock()

	heartbeat := models.DeviceHeartbeat{
		DeviceID: dev.id,
		State:    string(state),
		Version:  version,
		Group:    s.Group,
		IP:       dev.ip,
		RSSI:     -40 - rand.Intn(50),
		FreeHeap: hostFreeMemory(),
		UptimeMS: hostUptimeMS(),
	}

	payload, err := json.Marshal(heartbeat)
	if err != nil {
		s.Logger.Error().Err(err).Msg("Failed to serialize heartbeat message")
		return
	}

	token := s.MqttClient.Publish(constants.TopicHeartbeatPrefix+dev.id, byte(s.QOS), false, payload)
	token.Wait()
	if err := token.Error(); err != nil {
		s.Logger.Error().Err(err).Str("device", dev.id).Msg("Failed to publish heartbeat message")
	}
}

// handleAnnouncement applies the device-side half of the wire contract:
// verify the signature when a key is configured, skip same-version updates
// unless forced, otherwise walk the update sequence.
func (s *SimulatorService) handleAnnouncement(dev *simulatedDevice, payload []byte) {
	var ann models.UpdateAnnouncement
	if err := json.Unmarshal(payload, &ann); err != nil {
		s.Logger.Debug().Err(err).Str("device", dev.id).Msg("Dropped malformed announcement")
		return
	}

	if signing.Enabled(s.SigningKey) {
		if !ann.Signed() {
			s.Logger.Warn().Str("device", dev.id).Str("version", ann.Version).
				Msg("Rejected unsigned announcement")
			return
		}
		if !signing.Verify(ann.Version, ann.SHA256, ann.URL, s.SigningKey, ann.Signature) {
			s.Logger.Warn().Str("device", dev.id).Str("version", ann.Version).
				Msg("Rejected announcement with invalid signature")
			return
		}
	}

	// Check-and-commit under one lock: the device must be claimed before the
	// lock drops, or two near-simultaneous announcements both observe it idle
	// and start interleaved sequences.
	dev.mu.Lock()
	if dev.status.InProgress() {
		dev.mu.Unlock()
		s.Logger.Debug().Str("device", dev.id).Msg("Ignoring announcement while update is in progress")
		return
	}
	if dev.version == ann.Version && !ann.Force {
		dev.mu.Unlock()
		s.Logger.Debug().Str("device", dev.id).Str("version", ann.Version).
			Msg("Already on announced version, skipping")
		return
	}
	dev.status = constants.StatusDownloading
	dev.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runUpdateSequence(dev, ann.Version)
	}()
}

func (s *SimulatorService) runUpdateSequence(dev *simulatedDevice, version string) {
	steps := []constants.DeviceStatus{
		constants.StatusDownloading,
		constants.StatusSelfTestRunning,
		constants.StatusRebooting,
	}

	for _, status := range steps {
		s.setStatus(dev, status, "")
		select {
		case <-time.After(s.StepDelay):
		case <-s.ctx.Done():
			return
		}
	}

	dev.mu.Lock()
	dev.version = version
	dev.mu.Unlock()
	s.setStatus(dev, constants.StatusStable, version)

	s.Logger.Info().Str("device", dev.id).Str("version", version).Msg("Simulated update completed")
}

func (s *SimulatorService) setStatus(dev *simulatedDevice, status constants.DeviceStatus, version string) {
	dev.mu.Lock()
	dev.status = status
	dev.mu.Unlock()

	report := models.DeviceStatusReport{
		DeviceID: dev.id,
		Status:   string(status),
		Version:  version,
	}
	payload, err := json.Marshal(report)
	if err != nil {
		s.Logger.Error().Err(err).Msg("Failed to serialize status report")
		return
	}

	token := s.MqttClient.Publish(constants.TopicStatusPrefix+dev.id, byte(s.QOS), false, payload)
	token.Wait()
	if err := token.Error(); err != nil {
		s.Logger.Error().Err(err).Str("device", dev.id).Msg("Failed to publish status report")
	}
}

func hostFreeMemory() int64 {
	stats, err := mem.VirtualMemory()
	if err != nil {
		return 0
	}
	return int64(stats.Available)
}

func hostUptimeMS() int64 {
	uptime, err := host.Uptime()
	if err != nil {
		return 0
	}
	return int64(uptime) * 1000
}
