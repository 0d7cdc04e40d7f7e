// Package engine wires discovery, pairing, the connection manager, the
// transfer engine, and the storage facade behind the single callback
// surface a host (CLI, GUI shell) drives the core through.
//
// Grounded on pkg/api/node.go's NodeManager facade-of-interfaces shape.
package engine

import (
	"context"
	"fmt"
	"log"

	"github.com/easyshare-net/go-core/internal/connection"
	"github.com/easyshare-net/go-core/internal/cryptocore"
	"github.com/easyshare-net/go-core/internal/discovery"
	"github.com/easyshare-net/go-core/internal/httpaux"
	"github.com/easyshare-net/go-core/internal/model"
	"github.com/easyshare-net/go-core/internal/storage"
	"github.com/easyshare-net/go-core/internal/transfer"
)

// Callbacks is the host-facing callback surface.
type Callbacks struct {
	OnConnectionStateChange func(model.ConnectionState)
	OnTransferProgress      func(transferID string, sent, total int64)
	OnTransferComplete      func(model.Transfer)
	OnTextReceived          func(from model.DeviceInfo, body string)
	OnPairingRequest        func(remote model.DeviceInfo) (passphrase string, ok bool)
	OnDeviceFound           func(model.DiscoveredDevice)
	OnDeviceLost            func(id string)
}

// Engine is the top-level facade a host embeds.
type Engine struct {
	Self   model.DeviceInfo
	Store  storage.Store
	Logger *log.Logger

	conn      *connection.Manager
	advertise *discovery.Advertiser
	browse    *discovery.Browser
	transfer  *transfer.Engine
	cb        Callbacks

	cancel context.CancelFunc
}

// New constructs an Engine for self, backed by store, with the given
// callback surface. acceptFile decides whether to accept an incoming file
// (manual-accept by default per DESIGN.md's Open Question decision — pass a
// callback that always returns true for auto-accept).
func New(self model.DeviceInfo, store storage.Store, cb Callbacks, acceptFile func(model.FileRequest) bool, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Default()
	}

	conn := connection.New(self, logger)
	conn.OnStateChange = cb.OnConnectionStateChange
	conn.OnPairingRequest = cb.OnPairingRequest
	conn.OnText = cb.OnTextReceived

	xfer := transfer.New(conn, transfer.Callbacks{
		OnProgress: cb.OnTransferProgress,
		OnComplete: func(t model.Transfer) {
			if store != nil {
				store.AddTransfer(t)
			}
			if cb.OnTransferComplete != nil {
				cb.OnTransferComplete(t)
			}
		},
	}, httpaux.NewOffload(), acceptFile, func() string {
		if store == nil {
			return "."
		}
		settings, err := store.GetSettings()
		if err != nil || settings.SaveDirectory == "" {
			return "."
		}
		return settings.SaveDirectory
	})
	conn.TransferHandler = xfer

	return &Engine{
		Self:     self,
		Store:    store,
		Logger:   logger,
		conn:     conn,
		transfer: xfer,
		cb:       cb,
	}
}

// Start binds the listener, begins mDNS advertising, and starts browsing
// for other devices.
func (e *Engine) Start(ctx context.Context, listenAddr string) error {
	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel

	port, err := e.conn.Listen(listenAddr)
	if err != nil {
		return err
	}

	e.advertise = discovery.NewAdvertiser(e.Self, port, e.Logger)
	if err := e.advertise.Start(); err != nil {
		return err
	}

	e.browse = discovery.NewBrowser(e.Self.ID, e.Logger)
	e.browse.OnDeviceFound = e.cb.OnDeviceFound
	e.browse.OnDeviceLost = e.cb.OnDeviceLost
	return e.browse.Start(ctx)
}

// Connect dials a discovered device directly, bypassing discovery.
func (e *Engine) Connect(ctx context.Context, dev model.DeviceInfo, addr string) error {
	return e.conn.Dial(ctx, dev, addr)
}

// Pair begins the pairing handshake on the active connection.
func (e *Engine) Pair(passphrase string) error {
	return e.conn.BeginPairing(passphrase)
}

// SendText sends a text message to the active peer.
func (e *Engine) SendText(body string) error {
	return e.transfer.SendText(body)
}

// SendFile sends a file to the active peer, offloading to HTTP above the
// small-file threshold.
func (e *Engine) SendFile(path string, receiverHostsUpload bool) error {
	return e.transfer.SendFile(path, receiverHostsUpload)
}

// Disconnect tears down the active connection.
func (e *Engine) Disconnect() {
	e.conn.Disconnect(true)
}

// Foreground/Background drive the mobile-backgrounding suppression rule.
func (e *Engine) Foreground() { e.conn.Foreground() }
func (e *Engine) Background() { e.conn.Background() }

// State returns the current connection state snapshot.
func (e *Engine) State() model.ConnectionState { return e.conn.State() }

// Stop shuts everything down: discovery, the active connection, and the
// listener.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
	if e.browse != nil {
		e.browse.Stop()
	}
	if e.advertise != nil {
		e.advertise.Stop()
	}
	e.conn.Stop()
}

// NewDeviceIdentity mints a fresh device id for first-run setup.
func NewDeviceIdentity(name string, platform model.Platform, version string) (model.DeviceInfo, error) {
	id, err := cryptocore.NewDeviceID()
	if err != nil {
		return model.DeviceInfo{}, fmt.Errorf("generate device id: %w", err)
	}
	return model.DeviceInfo{ID: id, Name: name, Platform: platform, Version: version}, nil
}
