package models

import "time"

// UpdateAnnouncement is the retained message telling devices a firmware
// version is available. Field order in the JSON encoding is irrelevant; only
// the signature input (version|sha256|url) has a fixed order.
//
// Force, Timestamp and Repo are deliberately outside the signed field set —
// deployed device verifiers recompute the digest over the three signed fields
// only, so widening the set here would strand the fleet.
type UpdateAnnouncement struct {
	Version   string    `json:"version"`
	URL       string    `json:"url"`
	SHA256    string    `json:"sha256"`
	Force     bool      `json:"force"`
	Timestamp time.Time `json:"timestamp"`
	Repo      string    `json:"repo"`
	Signature string    `json:"signature,omitempty"`
}

// Signed reports whether the announcement carries a signature. Devices with
// signature enforcement enabled reject unsigned announcements.
func (a UpdateAnnouncement) Signed() bool {
	return a.Signature != ""
}
