// Package pairing implements the passphrase-authenticated pairing handshake:
// a challenge/response proof over a deterministically-derived shared secret,
// never an interactive key exchange.
//
// Grounded on security.go's mutex-guarded session-state shape; the state
// machine steps themselves come straight from the protocol's pairing
// sequence (pair_request -> pair_challenge -> pair_response ->
// pair_confirm|pair_reject).
package pairing

import (
	"time"

	"github.com/easyshare-net/go-core/internal/cryptocore"
	"github.com/easyshare-net/go-core/internal/model"
)

// Timeout bounds how long the waiting/verifying steps may run before the
// connection manager should treat the pairing attempt as dead.
const Timeout = 30 * time.Second

// Outcome reports what a HandleMessage call resolved to, if anything.
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeSucceeded
	OutcomeFailed
)

// Machine drives one connection's pairing state. It is only ever touched
// from the connection's single dispatch goroutine (see internal/connection),
// so unlike most of this codebase it carries no mutex of its own.
type Machine struct {
	Local      model.DeviceInfo
	State      model.PairingState
	onRequest  func(remote model.DeviceInfo) (passphrase string, ok bool)
	pending    string // passphrase queued by Begin, or taken from onRequest on a pair_request
}

// New constructs a Machine for a connection where Local is this device's
// identity. onRequest is invoked when a pair_request arrives and no
// passphrase has been queued locally yet — it is the hook that surfaces
// spec's onPairingRequest callback and returns the passphrase the user
// supplied, or ok=false if they declined.
func New(local model.DeviceInfo, onRequest func(model.DeviceInfo) (string, bool)) *Machine {
	return &Machine{
		Local:     local,
		State:     model.PairingState{Status: model.PairingIdle},
		onRequest: onRequest,
	}
}

// Begin starts the initiator half of pairing: send a pair_request.
func (m *Machine) Begin(passphrase string) []model.Message {
	m.pending = passphrase
	m.State = model.PairingState{
		Status:   model.PairingWaiting,
		Local:    m.Local,
		Deadline: time.Now().Add(Timeout),
	}
	return []model.Message{&model.PairRequest{Device: m.Local}}
}

// HandleMessage advances the state machine by one inbound message. It
// returns any messages to send in response and an Outcome, which is
// OutcomeNone while pairing is still in progress.
func (m *Machine) HandleMessage(msg model.Message) ([]model.Message, Outcome) {
	switch req := msg.(type) {
	case *model.PairRequest:
		return m.handlePairRequest(req)
	case *model.PairChallenge:
		return m.handlePairChallenge(req)
	case *model.PairResponse:
		return m.handlePairResponse(req)
	case *model.PairConfirm:
		m.State.Remote = req.Device
		m.State.Status = model.PairingSuccess
		return nil, OutcomeSucceeded
	case *model.PairReject:
		m.State.Status = model.PairingFailed
		m.State.Err = errReason(req.Reason)
		return nil, OutcomeFailed
	default:
		return nil, OutcomeNone
	}
}

func (m *Machine) handlePairRequest(req *model.PairRequest) ([]model.Message, Outcome) {
	m.State.Remote = req.Device

	passphrase := m.pending
	if passphrase == "" {
		if m.onRequest == nil {
			return []model.Message{&model.PairReject{Reason: "no pairing handler configured"}}, OutcomeFailed
		}
		pass, ok := m.onRequest(req.Device)
		if !ok {
			m.State.Status = model.PairingFailed
			return []model.Message{&model.PairReject{Reason: "declined by user"}}, OutcomeFailed
		}
		passphrase = pass
	}
	m.pending = passphrase
	m.State.Passphrase = passphrase
	m.State.SharedSecret = cryptocore.DeriveSharedSecret(passphrase, m.Local.ID, req.Device.ID)

	challenge, err := cryptocore.GenerateChallenge()
	if err != nil {
		m.State.Status = model.PairingFailed
		return []model.Message{&model.PairReject{Reason: "internal error"}}, OutcomeFailed
	}
	m.State.Challenge = challenge
	m.State.Status = model.PairingVerifying
	m.State.Deadline = time.Now().Add(Timeout)
	return []model.Message{&model.PairChallenge{Device: m.Local, Challenge: challenge[:]}}, OutcomeNone
}

func (m *Machine) handlePairChallenge(ch *model.PairChallenge) ([]model.Message, Outcome) {
	m.State.Remote = ch.Device
	m.State.Passphrase = m.pending
	m.State.SharedSecret = cryptocore.DeriveSharedSecret(m.pending, m.Local.ID, ch.Device.ID)

	var challenge [32]byte
	copy(challenge[:], ch.Challenge)
	resp := cryptocore.ChallengeResponse(challenge, m.State.SharedSecret)
	m.State.Status = model.PairingVerifying
	m.State.Deadline = time.Now().Add(Timeout)
	return []model.Message{&model.PairResponse{Response: resp[:]}}, OutcomeNone
}

func (m *Machine) handlePairResponse(resp *model.PairResponse) ([]model.Message, Outcome) {
	var got [32]byte
	copy(got[:], resp.Response)

	if !cryptocore.VerifyResponse(m.State.Challenge, m.State.SharedSecret, got) {
		m.State.Status = model.PairingFailed
		return []model.Message{&model.PairReject{Reason: "challenge verification failed"}}, OutcomeFailed
	}
	m.State.Status = model.PairingSuccess
	return []model.Message{&model.PairConfirm{Device: m.Local}}, OutcomeSucceeded
}

// Paired materializes a PairedDevice once HandleMessage has reported
// OutcomeSucceeded.
func (m *Machine) Paired() model.PairedDevice {
	now := time.Now()
	return model.PairedDevice{
		DeviceInfo:    m.State.Remote,
		SharedSecret:  model.Secret(m.State.SharedSecret),
		PairedAt:      now,
		LastConnected: now,
	}
}

type errReason string

func (e errReason) Error() string { return string(e) }
