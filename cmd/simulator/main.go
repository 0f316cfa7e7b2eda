// simulator stands in for a fleet of devices on the bus: periodic heartbeats,
// announcement verification and simulated update sequences. Useful for
// exercising notify and monitor without hardware.
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	flag "github.com/spf13/pflag"

	"github.com/espfleet/ota-fleet/internal/services"
	"github.com/espfleet/ota-fleet/internal/utils"
	"github.com/espfleet/ota-fleet/pkg/file"
	"github.com/espfleet/ota-fleet/pkg/mqtt"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to the configuration file")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	fileClient := file.NewFileService()
	config, err := utils.LoadConfig(*configPath, fileClient)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	clientID := config.MQTT.ClientID + "-simulator-" + uuid.New().String()
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

	simCfg := config.Services.Simulator
	simulator := services.NewSimulatorService(
		simCfg.DeviceCount,
		simCfg.DevicePrefix,
		simCfg.Group,
		simCfg.Version,
		simCfg.HeartbeatInterval,
		simCfg.QOS,
		simCfg.SigningKey,
		simCfg.Workers,
		mqttClient,
		log,
	)

	if err := simulator.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start device simulator")
	}

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)
	<-stopCh

	log.Info().Msg("Shutting down gracefully...")
	if err := simulator.Stop(); err != nil {
		log.Error().Err(err).Msg("Failed to stop device simulator cleanly")
	}
}
