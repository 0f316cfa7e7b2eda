// Package signing implements the HMAC-SHA256 announcement authentication
// shared between the coordinator and the device firmware. Both ends compute
// the digest over the exact ordered concatenation "version|sha256|url"; the
// force flag, timestamp and repo identifier are intentionally outside the
// signed set.
package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// ErrEmptySigningKey is returned when signing is requested without a key. An
// empty-keyed HMAC would produce a valid-looking but meaningless signature,
// so signing fails closed instead.
var ErrEmptySigningKey = errors.New("signing key is empty")

// Enabled reports whether a signing key is configured. Callers must check
// this before invoking Sign rather than passing an empty key through.
func Enabled(key string) bool {
	return key != ""
}

// SignInput returns the exact byte sequence the signature is computed over.
// Devices recompute this independently, so the separator and field order are
// part of the wire contract.
func SignInput(version, sha256sum, url string) string {
	return version + "|" + sha256sum + "|" + url
}

// Sign computes the lowercase hex HMAC-SHA256 signature for an announcement.
// It is deterministic: identical inputs always produce the identical
// 64-character digest.
func Sign(version, sha256sum, url, key string) (string, error) {
	if key == "" {
		return "", ErrEmptySigningKey
	}
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(SignInput(version, sha256sum, url)))
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// Verify recomputes the signature over the received fields and compares in
// constant time. Any mismatch, including an empty key or malformed hex,
// yields false.
func Verify(version, sha256sum, url, key, signature string) bool {
	expected, err := Sign(version, sha256sum, url, key)
	if err != nil {
		return false
	}
	return hmac.Equal([]byte(expected), []byte(signature))
}
