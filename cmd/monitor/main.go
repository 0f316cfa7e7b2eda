// monitor watches OTA status of all fleet devices in real time, rendering a
// live dashboard from the status and heartbeat topics.
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	flag "github.com/spf13/pflag"

	"github.com/espfleet/ota-fleet/internal/display"
	"github.com/espfleet/ota-fleet/internal/fleet"
	"github.com/espfleet/ota-fleet/internal/services"
	"github.com/espfleet/ota-fleet/internal/utils"
	"github.com/espfleet/ota-fleet/pkg/file"
	"github.com/espfleet/ota-fleet/pkg/mqtt"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to the configuration file")
	flag.Parse()

	// The dashboard owns stdout, so logs go to stderr.
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	fileClient := file.NewFileService()
	config, err := utils.LoadConfig(*configPath, fileClient)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	clientID := config.MQTT.ClientID + "-monitor-" + uuid.New().String()
	mqttClient := mqtt.NewMqttService(fileClient)
	err = mqttClient.Initialize(mqtt.Options{
		Broker:         config.MQTT.Broker,
		ClientID:       clientID,
		Username:       config.MQTT.Username,
		Password:       config.MQTT.Password,
		CACertificate:  config.MQTT.CACertificate,
		ConnectTimeout: config.MQTT.ConnectTimeout,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to MQTT broker")
	}
	defer mqttClient.Disconnect(250)

	store := fleet.NewStore()
	reconciler := fleet.NewReconciler(store, log)
	renderer := display.NewConsoleRenderer(os.Stdout, config.Services.Monitor.OfflineAfter)

	monitor := services.NewMonitorService(
		config.Services.Monitor.QOS,
		config.Services.Monitor.RefreshInterval,
		mqttClient,
		store,
		reconciler,
		renderer,
		log,
	)

	if err := monitor.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start fleet monitor")
	}

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)
	<-stopCh

	log.Info().Msg("Shutting down gracefully...")
	if err := monitor.Stop(); err != nil {
		log.Error().Err(err).Msg("Failed to stop fleet monitor cleanly")
	}
}
