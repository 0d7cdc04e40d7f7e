package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/easyshare-net/go-core/internal/model"
)

// fileStoreDoc is the on-disk shape persisted as one JSON document,
// mirroring config.go's single-document-per-node layout.
type fileStoreDoc struct {
	Settings      Settings             `json:"settings"`
	PairedDevices []model.PairedDevice `json:"pairedDevices"`
	Transfers     []model.Transfer     `json:"transfers"`
}

// FileStore is a JSON-file-backed Store, grounded on config.go's
// ConfigManager: same home-dir/temp-dir fallback, same MkdirAll 0755 +
// WriteFile 0644 persistence, same copy-on-read discipline so callers can't
// mutate the in-memory document by reference.
type FileStore struct {
	path string
	mu   sync.Mutex
	doc  fileStoreDoc
}

// NewFileStore loads (or initializes) the store at ~/.easyshare/store_<deviceID>.json.
func NewFileStore(deviceID string) (*FileStore, error) {
	dir, err := configDir()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create config dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("store_%s.json", deviceID))

	fs := &FileStore{path: path}
	if err := fs.load(); err != nil {
		return nil, err
	}
	return fs, nil
}

func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	return filepath.Join(home, ".easyshare"), nil
}

func (fs *FileStore) load() error {
	data, err := os.ReadFile(fs.path)
	if os.IsNotExist(err) {
		fs.doc = fileStoreDoc{}
		return nil
	}
	if err != nil {
		return fmt.Errorf("read store: %w", err)
	}
	if err := json.Unmarshal(data, &fs.doc); err != nil {
		return fmt.Errorf("parse store: %w", err)
	}
	return nil
}

// save persists fs.doc. Callers must hold fs.mu.
func (fs *FileStore) save() error {
	data, err := json.MarshalIndent(fs.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal store: %w", err)
	}
	if err := os.WriteFile(fs.path, data, 0644); err != nil {
		return fmt.Errorf("write store: %w", err)
	}
	return nil
}

func (fs *FileStore) GetSettings() (Settings, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.doc.Settings, nil
}

func (fs *FileStore) UpdateSettings(s Settings) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.doc.Settings = s
	return fs.save()
}

func (fs *FileStore) GetPairedDevices() ([]model.PairedDevice, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	out := make([]model.PairedDevice, len(fs.doc.PairedDevices))
	copy(out, fs.doc.PairedDevices)
	return out, nil
}

func (fs *FileStore) AddPairedDevice(d model.PairedDevice) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	for i, existing := range fs.doc.PairedDevices {
		if existing.ID == d.ID {
			fs.doc.PairedDevices[i] = d
			return fs.save()
		}
	}
	fs.doc.PairedDevices = append(fs.doc.PairedDevices, d)
	return fs.save()
}

func (fs *FileStore) RemovePairedDevice(id string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	filtered := fs.doc.PairedDevices[:0]
	for _, d := range fs.doc.PairedDevices {
		if d.ID != id {
			filtered = append(filtered, d)
		}
	}
	fs.doc.PairedDevices = filtered
	return fs.save()
}

func (fs *FileStore) UpdatePairedDeviceLastConnected(id string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	for i := range fs.doc.PairedDevices {
		if fs.doc.PairedDevices[i].ID == id {
			fs.doc.PairedDevices[i].LastConnected = time.Now()
			return fs.save()
		}
	}
	return fmt.Errorf("paired device %s not found", id)
}

func (fs *FileStore) GetTransfers() ([]model.Transfer, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	out := make([]model.Transfer, len(fs.doc.Transfers))
	copy(out, fs.doc.Transfers)
	return out, nil
}

// AddTransfer inserts t and enforces the MaxHistoryEntries cap, evicting the
// oldest (by EndedAt) entries first, newest-first on read.
func (fs *FileStore) AddTransfer(t model.Transfer) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.doc.Transfers = append(fs.doc.Transfers, t)
	sort.Slice(fs.doc.Transfers, func(i, j int) bool {
		return fs.doc.Transfers[i].EndedAt.After(fs.doc.Transfers[j].EndedAt)
	})
	if len(fs.doc.Transfers) > model.MaxHistoryEntries {
		fs.doc.Transfers = fs.doc.Transfers[:model.MaxHistoryEntries]
	}
	return fs.save()
}

func (fs *FileStore) ClearTransfers() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.doc.Transfers = nil
	return fs.save()
}
