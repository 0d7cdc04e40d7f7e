// Package connection owns the single active TCP peer connection: dialing
// and accepting, app-level ping/pong keepalive, frame dispatch to the
// pairing and transfer layers, and the encrypted-transport switch-over once
// pairing completes.
//
// Grounded on network.go's P2PNode/P2PConnection split (one node, one
// connection struct, RWMutex-guarded), collapsed to a single connection slot
// per the one-active-peer invariant, and its acceptConnections/
// measureLatency/pingPeer ticker-driven goroutine shapes.
package connection

import (
	"context"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/easyshare-net/go-core/internal/cryptocore"
	"github.com/easyshare-net/go-core/internal/model"
	"github.com/easyshare-net/go-core/internal/pairing"
	"github.com/easyshare-net/go-core/internal/utils"
	"github.com/easyshare-net/go-core/internal/wire"
)

const (
	dialTimeout      = 5 * time.Second
	dialAttempts     = 3
	staleThreshold   = 30 * time.Second
	pingInterval     = 5 * time.Second
	pongTimeout      = 120 * time.Second
	senderGraceAfter = 120 * time.Second
	keepaliveInitial = 10 * time.Second
)

// Handler lets internal/transfer register itself with the manager without
// the manager importing the transfer package, avoiding a dependency cycle
// (transfer needs to send frames; the manager needs to route frames to it).
type Handler interface {
	HandleMessage(msg model.Message) error
	// HandleDisconnect notifies the handler that the active connection is
	// gone, so any state waiting on a peer response (e.g. a blocked
	// SendFile call) resolves instead of hanging forever.
	HandleDisconnect()
}

// Manager owns at most one active net.Conn, matching the single-active-peer
// invariant: a new inbound or outbound connection may only displace the
// current one if it has gone stale (no inbound frame in staleThreshold) or
// is already dead.
type Manager struct {
	Self   model.DeviceInfo
	Logger *log.Logger

	OnStateChange    func(model.ConnectionState)
	OnPairingRequest func(remote model.DeviceInfo) (passphrase string, ok bool)
	OnText           func(from model.DeviceInfo, body string)
	TransferHandler  Handler

	mu               sync.Mutex
	conn             net.Conn
	peer             *model.DeviceInfo
	pairingMachine   *pairing.Machine
	encKey           *[32]byte
	wireBuf          wire.Buffer
	sealedBuf        sealedBuffer
	lastInboundFrame time.Time
	transferActive   bool
	graceUntil       time.Time
	foregrounded     bool
	pairingDeadline  time.Time

	listener   net.Listener
	listenAddr string
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	closed     bool
}

// New constructs a Manager for the local device identity.
func New(self model.DeviceInfo, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Default()
	}
	return &Manager{
		Self:         self,
		Logger:       logger,
		foregrounded: true,
	}
}

// Listen binds addr (use ":0" for an ephemeral port) and accepts inbound
// connections in the background, returning the bound port.
func (m *Manager) Listen(addr string) (int, error) {
	if addr != "" && addr != ":0" {
		if err := utils.WaitForPort(addr, staleThreshold); err != nil {
			return 0, model.NewError(model.ErrNetwork, fmt.Errorf("port not free: %w", err))
		}
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return 0, model.NewError(model.ErrNetwork, fmt.Errorf("listen %s: %w", addr, err))
	}
	m.mu.Lock()
	m.listener = ln
	m.listenAddr = ln.Addr().String()
	m.mu.Unlock()

	m.wg.Add(1)
	go m.acceptLoop(ln)

	return ln.Addr().(*net.TCPAddr).Port, nil
}

func (m *Manager) acceptLoop(ln net.Listener) {
	defer m.wg.Done()
	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		if !m.tryAdopt(conn) {
			m.Logger.Printf("⚠️ rejecting inbound connection from %s: active peer not stale", conn.RemoteAddr())
			conn.Close()
			continue
		}
	}
}

// Dial connects to dev with a 3-attempt, 5s-timeout, 1s*attempt backoff
// retry loop.
func (m *Manager) Dial(ctx context.Context, dev model.DeviceInfo, addr string) error {
	var lastErr error
	for attempt := 1; attempt <= dialAttempts; attempt++ {
		conn, err := net.DialTimeout("tcp", addr, dialTimeout)
		if err == nil {
			m.mu.Lock()
			if m.conn != nil {
				if time.Since(m.lastInboundFrame) <= staleThreshold {
					m.mu.Unlock()
					conn.Close()
					return model.NewError(model.ErrNetwork, fmt.Errorf("dial %s: active peer not stale", addr))
				}
				m.teardownLocked(false)
			}
			m.peer = &dev
			m.mu.Unlock()
			m.adopt(conn)
			return nil
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * time.Second):
		}
	}
	return model.NewError(model.ErrNetwork, fmt.Errorf("dial %s after %d attempts: %w", addr, dialAttempts, lastErr))
}

// tryAdopt adopts conn as the active connection if there is no current
// connection, or the current one is stale/dead. Returns false if conn was
// refused because a live peer is already active.
func (m *Manager) tryAdopt(conn net.Conn) bool {
	m.mu.Lock()
	if m.conn != nil {
		if time.Since(m.lastInboundFrame) <= staleThreshold {
			m.mu.Unlock()
			return false
		}
		m.teardownLocked(false)
	}
	m.mu.Unlock()
	m.adopt(conn)
	return true
}

func (m *Manager) adopt(conn net.Conn) {
	if tc, ok := conn.(*net.TCPConn); ok {
		tc.SetKeepAlive(true)
		tc.SetKeepAlivePeriod(keepaliveInitial)
	}

	m.mu.Lock()
	m.conn = conn
	m.lastInboundFrame = time.Now()
	m.wireBuf.Reset()
	m.sealedBuf = sealedBuffer{}
	m.encKey = nil
	m.pairingMachine = pairing.New(m.Self, m.OnPairingRequest)
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.mu.Unlock()

	m.notifyState(model.ConnConnected)

	m.wg.Add(2)
	go m.readLoop(conn)
	go m.keepaliveLoop(ctx)
}

func (m *Manager) readLoop(conn net.Conn) {
	defer m.wg.Done()
	readBuf := make([]byte, 64*1024)
	for {
		n, err := conn.Read(readBuf)
		if err != nil {
			m.Disconnect(false)
			return
		}
		m.ingest(readBuf[:n])
	}
}

func (m *Manager) ingest(data []byte) {
	m.mu.Lock()
	encrypted := m.encKey != nil
	m.mu.Unlock()

	if encrypted {
		m.mu.Lock()
		m.sealedBuf.Append(data)
		var plaintexts [][]byte
		for {
			blob, ok := m.sealedBuf.Next()
			if !ok {
				break
			}
			plain, err := cryptocore.Open(*m.encKey, blob)
			if err != nil {
				m.Logger.Printf("⚠️ dropping unreadable encrypted frame: %v", err)
				continue
			}
			plaintexts = append(plaintexts, plain)
		}
		m.mu.Unlock()
		for _, p := range plaintexts {
			m.mu.Lock()
			m.wireBuf.Append(p)
			m.mu.Unlock()
		}
	} else {
		m.mu.Lock()
		m.wireBuf.Append(data)
		m.mu.Unlock()
	}

	for {
		m.mu.Lock()
		msg, ok, err := m.wireBuf.Next()
		m.mu.Unlock()
		if !ok {
			return
		}
		if err != nil {
			m.Logger.Printf("⚠️ discarding malformed frame: %v", err)
			continue
		}
		m.mu.Lock()
		m.lastInboundFrame = time.Now()
		m.mu.Unlock()
		m.dispatch(msg)
	}
}

func (m *Manager) dispatch(msg model.Message) {
	switch v := msg.(type) {
	case *model.Ping:
		m.Send(&model.Pong{})
	case *model.Pong:
		// liveness only; lastInboundFrame was already updated in ingest.
	case *model.Text:
		m.mu.Lock()
		peer := m.peer
		m.mu.Unlock()
		if m.OnText != nil && peer != nil {
			m.OnText(*peer, v.Body)
		}
	default:
		if isPairingMessage(msg) {
			m.dispatchPairing(msg)
			return
		}
		if m.TransferHandler != nil {
			if err := m.TransferHandler.HandleMessage(msg); err != nil {
				m.Logger.Printf("⚠️ transfer handler error: %v", err)
			}
		}
	}
}

func isPairingMessage(msg model.Message) bool {
	switch msg.(type) {
	case *model.PairRequest, *model.PairChallenge, *model.PairResponse, *model.PairConfirm, *model.PairReject:
		return true
	}
	return false
}

func (m *Manager) dispatchPairing(msg model.Message) {
	m.mu.Lock()
	pm := m.pairingMachine
	m.mu.Unlock()
	if pm == nil {
		return
	}
	toSend, outcome := pm.HandleMessage(msg)
	for _, out := range toSend {
		m.Send(out)
	}

	m.mu.Lock()
	m.pairingDeadline = pm.State.Deadline
	m.mu.Unlock()

	if outcome == pairing.OutcomeSucceeded {
		paired := pm.Paired()
		secret := [32]byte(paired.SharedSecret)
		m.mu.Lock()
		m.encKey = &secret
		m.peer = &paired.DeviceInfo
		m.pairingDeadline = time.Time{}
		m.mu.Unlock()
		m.notifyState(model.ConnConnected)
	} else if outcome == pairing.OutcomeFailed {
		m.mu.Lock()
		m.pairingDeadline = time.Time{}
		m.mu.Unlock()
	}
}

// BeginPairing starts the initiator side of pairing on the active connection.
func (m *Manager) BeginPairing(passphrase string) error {
	m.mu.Lock()
	pm := m.pairingMachine
	m.mu.Unlock()
	if pm == nil {
		return model.NewError(model.ErrProtocol, fmt.Errorf("no active connection"))
	}
	toSend := pm.Begin(passphrase)
	m.mu.Lock()
	m.pairingDeadline = pm.State.Deadline
	m.mu.Unlock()
	for _, out := range toSend {
		m.Send(out)
	}
	return nil
}

// Send frames msg and writes it to the active connection, sealing it under
// the pairing-derived key once one exists.
func (m *Manager) Send(msg model.Message) error {
	framed, err := wire.Frame(msg)
	if err != nil {
		return err
	}

	m.mu.Lock()
	conn := m.conn
	key := m.encKey
	m.mu.Unlock()
	if conn == nil {
		return model.NewError(model.ErrNetwork, fmt.Errorf("no active connection"))
	}

	out := framed
	if key != nil {
		sealed, err := cryptocore.Seal(*key, framed)
		if err != nil {
			return model.NewError(model.ErrProtocol, err)
		}
		out = frameSealed(sealed)
	}

	if _, err := conn.Write(out); err != nil {
		// A write to an already-closed socket is treated as a no-op per the
		// dispatch rules: the keepalive/read loop will notice and disconnect.
		m.Logger.Printf("⚠️ write failed: %v", err)
		return nil
	}
	return nil
}

// SetTransferActive marks whether a transfer is in flight on this
// connection, suppressing the keepalive timeout while true. Clearing it
// (active=false) additionally opens a senderGraceAfter grace window before
// timeout enforcement resumes; the window applies after sends and receives
// alike.
func (m *Manager) SetTransferActive(active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transferActive = active
	if !active {
		m.graceUntil = time.Now().Add(senderGraceAfter)
	}
}

// Foreground/Background drive the mobile-backgrounding suppression rule.
func (m *Manager) Foreground() { m.mu.Lock(); m.foregrounded = true; m.mu.Unlock() }
func (m *Manager) Background() { m.mu.Lock(); m.foregrounded = false; m.mu.Unlock() }

func (m *Manager) keepaliveLoop(ctx context.Context) {
	defer m.wg.Done()
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Send(&model.Ping{})

			m.mu.Lock()
			suppressed := m.transferActive || time.Now().Before(m.graceUntil) || !m.foregrounded
			idle := time.Since(m.lastInboundFrame)
			deadline := m.pairingDeadline
			m.mu.Unlock()

			if !deadline.IsZero() && time.Now().After(deadline) {
				m.abortPairing("pairing timed out")
				return
			}

			if !suppressed && idle > pongTimeout {
				m.Logger.Printf("⚠️ peer unresponsive for %s, disconnecting", idle)
				m.Disconnect(false)
				return
			}
		}
	}
}

// abortPairing enforces the pairing state machine's 30s deadline (see
// internal/pairing.Timeout): the keepalive clock is the only goroutine
// watching wall-clock time against it, since the Machine itself only
// advances in response to inbound frames. Timing out tears down the
// connection entirely rather than leaving pairing in limbo.
func (m *Manager) abortPairing(reason string) {
	m.Logger.Printf("⚠️ %s, disconnecting", reason)
	m.Disconnect(false)
}

func (m *Manager) notifyState(status model.ConnectionStatus) {
	if m.OnStateChange == nil {
		return
	}
	m.mu.Lock()
	state := model.ConnectionState{
		Status:           status,
		Peer:             m.peer,
		LastInboundFrame: m.lastInboundFrame,
	}
	if m.pairingMachine != nil {
		state.PairingStep = m.pairingMachine.State.Status
	}
	m.mu.Unlock()
	m.OnStateChange(state)
}

// Disconnect tears down the active connection. userInitiated distinguishes
// a deliberate disconnect (the peer identity is cleared) from any other
// cause (the last-connected device stays recorded in State().Peer). No
// automatic reconnect is attempted in either case.
func (m *Manager) Disconnect(userInitiated bool) {
	m.mu.Lock()
	m.teardownLocked(userInitiated)
	m.mu.Unlock()
	m.notifyState(model.ConnDisconnected)
}

func (m *Manager) teardownLocked(userInitiated bool) {
	if m.conn == nil {
		return
	}
	if m.cancel != nil {
		m.cancel()
	}
	m.conn.Close()
	m.conn = nil
	m.encKey = nil
	m.pairingMachine = nil
	m.pairingDeadline = time.Time{}
	m.transferActive = false
	if userInitiated {
		m.peer = nil
	}
	if m.TransferHandler != nil {
		m.TransferHandler.HandleDisconnect()
	}
}

// Stop shuts the manager down entirely: closes the listener, tears down any
// active connection, and waits (with a bound) for all goroutines to exit.
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	if m.listener != nil {
		m.listener.Close()
	}
	listenAddr := m.listenAddr
	m.teardownLocked(true)
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		m.Logger.Printf("⚠️ timed out waiting for connection goroutines to exit")
	}

	if listenAddr != "" {
		if err := utils.CleanupPort(listenAddr, staleThreshold); err != nil {
			m.Logger.Printf("⚠️ port cleanup for %s: %v", listenAddr, err)
		}
	}
}

// State returns a snapshot of the current connection state.
func (m *Manager) State() model.ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	state := model.ConnectionState{Peer: m.peer, LastInboundFrame: m.lastInboundFrame}
	if m.conn == nil {
		state.Status = model.ConnDisconnected
	} else if m.encKey != nil {
		state.Status = model.ConnConnected
	} else {
		state.Status = model.ConnPairing
	}
	if m.pairingMachine != nil {
		state.PairingStep = m.pairingMachine.State.Status
	}
	return state
}
