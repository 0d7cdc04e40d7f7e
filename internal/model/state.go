package model

import "time"

// PairingStatus enumerates the steps of the pairing state machine.
type PairingStatus string

const (
	PairingIdle       PairingStatus = "idle"
	PairingWaiting    PairingStatus = "waiting"
	PairingVerifying  PairingStatus = "verifying"
	PairingSuccess    PairingStatus = "success"
	PairingFailed     PairingStatus = "failed"
)

// PairingState is the mutable state a pairing.Machine tracks for one
// connection while a handshake is in flight.
type PairingState struct {
	Status       PairingStatus
	Local        DeviceInfo
	Remote       DeviceInfo
	Passphrase   string
	SharedSecret [32]byte
	Challenge    [32]byte
	Err          error
	Deadline     time.Time
}

// ConnectionStatus enumerates the lifecycle of the single active peer
// connection a Manager owns.
type ConnectionStatus string

const (
	ConnDisconnected ConnectionStatus = "disconnected"
	ConnConnecting   ConnectionStatus = "connecting"
	ConnConnected    ConnectionStatus = "connected"
	ConnPairing      ConnectionStatus = "pairing"
)

// ConnectionState is the snapshot surfaced through onConnectionStateChange.
type ConnectionState struct {
	Status           ConnectionStatus
	Peer             *DeviceInfo
	PairingStep      PairingStatus
	LastInboundFrame time.Time
}
