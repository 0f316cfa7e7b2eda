// notify publishes an OTA update announcement to the fleet. It is meant to
// run from CI after a successful firmware build and release.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	flag "github.com/spf13/pflag"

	"github.com/espfleet/ota-fleet/internal/notification"
	"github.com/espfleet/ota-fleet/internal/services"
	"github.com/espfleet/ota-fleet/internal/utils"
	"github.com/espfleet/ota-fleet/pkg/file"
	"github.com/espfleet/ota-fleet/pkg/mqtt"
)

func main() {
	var (
		configPath = flag.String("config", "configs/config.yaml", "Path to the configuration file")
		version    = flag.String("version", "", "Firmware version (e.g., 1.2.0)")
		sha256sum  = flag.String("sha256", "", "SHA256 hash of firmware.bin")
		artifact   = flag.String("artifact", "", "Path to firmware.bin; used to compute the hash when --sha256 is not given")
		repo       = flag.String("repo", "", "GitHub repo (user/repo)")
		target     = flag.String("target", "fleet", "Deployment target group (fleet, canary, staging, production, ...)")
		device     = flag.String("device", "", "Specific device ID (overrides --target)")
		force      = flag.Bool("force", false, "Force update even if device is on same version")
		dryRun     = flag.Bool("dry-run", false, "Print topic and payload without sending")
	)
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	fileClient := file.NewFileService()
	config, err := utils.LoadConfig(*configPath, fileClient)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if *repo == "" {
		*repo = config.Services.Notifier.Repo
	}

	if *sha256sum == "" && *artifact != "" {
		hash, err := fileClient.GetFileHash(*artifact)
		if err != nil {
			log.Fatal().Err(err).Str("artifact", *artifact).Msg("Failed to hash firmware artifact")
		}
		*sha256sum = hash
		log.Info().Str("sha256", hash).Msg("Computed artifact checksum")
	}

	// The release tag convention is v{version}, so a non-semver version
	// usually means the download URL will 404. The protocol itself only
	// compares versions by string equality, so this is a warning, not an
	// error.
	if _, err := semver.NewVersion(*version); *version != "" && err != nil {
		log.Warn().Str("version", *version).Msg("Version does not parse as semver; check the release tag exists")
	}

	req := notification.BuildRequest{
		Version:    *version,
		SHA256:     *sha256sum,
		Repo:       *repo,
		Target:     notification.Resolve(*device, *target),
		Force:      *force,
		SigningKey: config.Services.Notifier.SigningKey,
	}

	if *dryRun {
		// Preview runs the same policy checks and unsigned warning as a real
		// announce, without touching the broker.
		preview := services.NewNotifierService(
			config.Services.Notifier.QOS,
			config.Services.Notifier.PublishTimeout,
			config.Services.Notifier.RequireSigning,
			nil,
			log,
		)
		topic, ann, err := preview.Preview(req)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to build announcement")
		}
		payload, _ := json.MarshalIndent(ann, "", "  ")
		fmt.Printf("Topic:   %s\n", topic)
		fmt.Printf("Payload: %s\n", payload)
		fmt.Println("[DRY RUN] Not sending - exiting.")
		return
	}

	clientID := config.MQTT.ClientID + "-notify-" + uuid.New().String()
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

	notifier := services.NewNotifierService(
		config.Services.Notifier.QOS,
		config.Services.Notifier.PublishTimeout,
		config.Services.Notifier.RequireSigning,
		mqttClient,
		log,
	)

	topic, ann, err := notifier.Announce(req)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to publish OTA announcement")
	}

	shaPreview := ann.SHA256
	if len(shaPreview) > 16 {
		shaPreview = shaPreview[:16] + "..."
	}
	log.Info().
		Str("topic", topic).
		Str("version", ann.Version).
		Str("sha256", shaPreview).
		Str("target", req.Target.String()).
		Msg("OTA notification published successfully")
}
