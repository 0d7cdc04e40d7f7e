package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/easyshare-net/go-core/internal/model"
	"github.com/easyshare-net/go-core/pkg/engine"
)

// identityPath returns ~/.easyshare/identity.json, falling back to a temp
// directory the same way internal/storage.FileStore does.
func identityPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	dir := filepath.Join(home, ".easyshare")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create config dir: %w", err)
	}
	return filepath.Join(dir, "identity.json"), nil
}

// loadOrCreateDeviceIdentity persists this device's id/name across runs so
// it keeps the same identity to already-paired peers; name updates are
// applied to the existing id rather than minting a new one.
func loadOrCreateDeviceIdentity(name string) (model.DeviceInfo, error) {
	path, err := identityPath()
	if err != nil {
		return model.DeviceInfo{}, err
	}

	if data, err := os.ReadFile(path); err == nil {
		var dev model.DeviceInfo
		if err := json.Unmarshal(data, &dev); err == nil {
			dev.Name = name
			return dev, nil
		}
	}

	dev, err := engine.NewDeviceIdentity(name, model.PlatformDesktop, "1.0.0")
	if err != nil {
		return model.DeviceInfo{}, err
	}
	data, err := json.MarshalIndent(dev, "", "  ")
	if err != nil {
		return model.DeviceInfo{}, fmt.Errorf("marshal identity: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return model.DeviceInfo{}, fmt.Errorf("write identity: %w", err)
	}
	return dev, nil
}
