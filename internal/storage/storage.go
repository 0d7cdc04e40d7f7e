// Package storage defines the persistence facade the core depends on
// (settings, paired devices, transfer history) and a JSON-file-backed
// reference implementation for running and testing the engine standalone.
// A host embedding the core may supply its own Store instead.
//
// Grounded on config.go's ConfigManager (home-dir resolution, MkdirAll,
// copy-on-read). FileStore writes the whole document on every change; saves
// are not debounced.
package storage

import "github.com/easyshare-net/go-core/internal/model"

// Settings is the small bag of user-configurable app settings the core
// itself never interprets beyond exposing it through this interface.
type Settings struct {
	DeviceName    string `json:"deviceName"`
	SaveDirectory string `json:"saveDirectory"`
	AutoAccept    bool   `json:"autoAccept"`
}

// Store is the external storage contract. The core consumes it; it never
// assumes a particular backing implementation.
type Store interface {
	GetSettings() (Settings, error)
	UpdateSettings(Settings) error

	GetPairedDevices() ([]model.PairedDevice, error)
	AddPairedDevice(model.PairedDevice) error
	RemovePairedDevice(id string) error
	UpdatePairedDeviceLastConnected(id string) error

	GetTransfers() ([]model.Transfer, error)
	AddTransfer(model.Transfer) error
	ClearTransfers() error
}
