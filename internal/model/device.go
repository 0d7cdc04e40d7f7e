// Package model holds the plain data types shared across the EasyShare core:
// device/peer identity, pairing and connection state, transfer records, and
// the wire message variants.
package model

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

// Platform identifies the kind of host a device is running on. Synonyms seen
// on the wire ("macos", "android", ...) are normalized to one of these by the
// discovery layer before a DiscoveredDevice is ever surfaced.
type Platform string

const (
	PlatformDesktop Platform = "desktop"
	PlatformMobile  Platform = "mobile"
)

// DeviceInfo is the identity a device announces about itself, both over mDNS
// and inside the pair_request, pair_challenge and pair_confirm messages.
type DeviceInfo struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Platform Platform `json:"platform"`
	Version  string   `json:"version"`
}

// DiscoveredDevice is a DeviceInfo plus the network-layer facts needed to
// dial it, as produced by mDNS browsing.
type DiscoveredDevice struct {
	DeviceInfo
	Address  string    `json:"address"`
	Port     int       `json:"port"`
	LastSeen time.Time `json:"lastSeen"`
}

// StaleAfter is the age past which a DiscoveredDevice is considered gone if
// no further advertisement has refreshed it.
const StaleAfter = 30 * time.Second

// Stale reports whether this sighting is older than StaleAfter relative to now.
func (d DiscoveredDevice) Stale(now time.Time) bool {
	return now.Sub(d.LastSeen) > StaleAfter
}

// Secret is a 32-byte shared secret. It marshals as base64 so a PairedDevice
// record can round-trip through JSON storage and still be "sufficient for
// future reconnection without re-pairing" (spec.md's PairedDevice purpose).
type Secret [32]byte

func (s Secret) MarshalJSON() ([]byte, error) {
	return json.Marshal(base64.StdEncoding.EncodeToString(s[:]))
}

func (s *Secret) UnmarshalJSON(data []byte) error {
	var encoded string
	if err := json.Unmarshal(data, &encoded); err != nil {
		return err
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("secret: %w", err)
	}
	if len(raw) != len(s) {
		return fmt.Errorf("secret: expected %d bytes, got %d", len(s), len(raw))
	}
	copy(s[:], raw)
	return nil
}

// PairedDevice is a device that has completed the pairing handshake, with
// the shared secret derived for it. The connection manager does not consult
// stored PairedDevice records: every new connection starts unencrypted and
// runs the passphrase exchange again.
type PairedDevice struct {
	DeviceInfo
	SharedSecret  Secret    `json:"sharedSecret"`
	PairedAt      time.Time `json:"pairedAt"`
	LastConnected time.Time `json:"lastConnectedAt"`
}
