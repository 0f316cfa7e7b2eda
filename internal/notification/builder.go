package notification

import (
	"errors"
	"fmt"
	"time"

	"github.com/espfleet/ota-fleet/internal/models"
	"github.com/espfleet/ota-fleet/pkg/signing"
)

var (
	// ErrMissingVersion and friends surface absent required inputs before any
	// partial action is taken.
	ErrMissingVersion  = errors.New("firmware version is required")
	ErrMissingChecksum = errors.New("firmware sha256 checksum is required")
	ErrMissingRepo     = errors.New("repository identifier is required")
)

// ArtifactURL derives the firmware download location from the repository
// identifier and version. It must stay a pure function of its two inputs:
// the URL is part of the signed field set, and devices may re-derive it.
func ArtifactURL(repo, version string) string {
	return fmt.Sprintf("https://github.com/%s/releases/download/v%s/firmware.bin", repo, version)
}

// BuildRequest carries everything needed to assemble one announcement.
type BuildRequest struct {
	Version    string
	SHA256     string
	Repo       string
	Target     TargetSelector
	Force      bool
	SigningKey string
}

// Build assembles the announce topic and payload for a request. The
// announcement is signed iff a signing key is configured; callers are
// responsible for warning prominently before transmitting an unsigned one.
func Build(req BuildRequest) (string, models.UpdateAnnouncement, error) {
	var none models.UpdateAnnouncement
	switch {
	case req.Version == "":
		return "", none, ErrMissingVersion
	case req.SHA256 == "":
		return "", none, ErrMissingChecksum
	case req.Repo == "":
		return "", none, ErrMissingRepo
	}

	url := ArtifactURL(req.Repo, req.Version)
	ann := models.UpdateAnnouncement{
		Version:   req.Version,
		URL:       url,
		SHA256:    req.SHA256,
		Force:     req.Force,
		Timestamp: time.Now().UTC(),
		Repo:      req.Repo,
	}

	if signing.Enabled(req.SigningKey) {
		sig, err := signing.Sign(req.Version, req.SHA256, url, req.SigningKey)
		if err != nil {
			return "", none, fmt.Errorf("failed to sign announcement: %w", err)
		}
		ann.Signature = sig
	}

	return req.Target.Topic(), ann, nil
}
