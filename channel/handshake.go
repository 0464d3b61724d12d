/* SPDX-License-Identifier: MIT
 *
 * Copyright (C) 2017-2025 WireGuard LLC. All Rights Reserved.
 */

package channel

import (
	"crypto/ecdh"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
)

// Params holds the channel parameters populated during the handshake
// and immutable afterwards, per §3.
type Params struct {
	MTU       uint8
	UnitID    uint16
	Flags     uint16
	NonceBase [NonceSize]byte

	TransportKey [16]byte

	OutgoingCounter uint32
	IncomingCounter uint32
}

// StepResult reports the outcome of feeding one inbound handshake
// message to the Handshake state machine. This replaces the Python
// source's exception-based signalling between the notify callback and
// the coroutine awaiting it (§9 REDESIGN): callers poll Step's return
// value instead of catching exceptions raised from another task.
type StepResult int

const (
	// StepPending means more inbound messages are needed before the
	// next state transition completes.
	StepPending StepResult = iota
	// StepAdvanced means the handshake moved to its next state.
	StepAdvanced
	// StepFailed means the handshake cannot continue; State() is now
	// StateError.
	StepFailed
)

// Handshake drives the five-state connection state machine described
// in §4.3. It holds no transport of its own: callers feed it inbound
// bytes and send the bytes it produces over whatever BLE endpoint they
// have.
type Handshake struct {
	state State
	err   error

	keystore *Keystore

	privKey *ecdh.PrivateKey
	params  Params

	encryptor *Encryptor
}

// NewHandshake starts a handshake in StateNone against the given
// keystore. A nil or empty keystore is valid: the channel will move
// straight to StateAuthenticated without a challenge/response step.
func NewHandshake(keystore *Keystore) *Handshake {
	if keystore == nil {
		keystore = NewKeystore()
	}
	return &Handshake{state: StateNone, keystore: keystore}
}

// State returns the current connection state.
func (h *Handshake) State() State { return h.state }

// Err returns the error that put the handshake into StateError, if any.
func (h *Handshake) Err() error { return h.err }

// Params returns the negotiated channel parameters. Only valid once
// State() is at least StateKeyExchanged.
func (h *Handshake) Params() Params { return h.params }

// Encryptor returns the Encryptor bound to the negotiated transport
// key. Only valid once State() is at least StateKeyExchanged.
func (h *Handshake) Encryptor() *Encryptor { return h.encryptor }

func (h *Handshake) fail(err error) StepResult {
	h.state = StateError
	h.err = err
	return StepFailed
}

// ConsumeHello implements the NONE -> CONNECTED transition of §4.3: the
// unencrypted 23-byte hello read from the authentication characteristic
// right after BLE connect.
func (h *Handshake) ConsumeHello(hello []byte) StepResult {
	if err := checkState(h.state, StateNone); err != nil {
		return h.fail(err)
	}
	if len(hello) != 23 {
		return h.fail(fmt.Errorf("%w: hello length %d, want 23", ErrProtocol, len(hello)))
	}
	if hello[0] != 0x01 {
		return h.fail(fmt.Errorf("%w: unexpected hello type byte %#x", ErrProtocol, hello[0]))
	}
	version := hello[1]
	if version < MinProtocolVersion {
		return h.fail(fmt.Errorf("%w: %d", ErrUnsupportedProtocolVersion, version))
	}
	// version > MaxProtocolVersion is accepted; caller may log a warning.

	h.params.MTU = hello[2]
	h.params.UnitID = binary.BigEndian.Uint16(hello[3:5])
	h.params.Flags = binary.BigEndian.Uint16(hello[5:7])
	copy(h.params.NonceBase[:], hello[7:23])

	h.state = StateConnected
	return StepAdvanced
}

// generateEphemeral is broken out for testability: tests can't control
// crypto/rand, but they can substitute this to make key exchange
// deterministic.
var generateEphemeral = func() (*ecdh.PrivateKey, error) {
	return ecdh.P256().GenerateKey(rand.Reader)
}

// ConsumePeerPublicKey implements the ECDH leg of CONNECTED -> (still
// CONNECTED) in §4.3: parses the peer's uncompressed little-endian
// X||Y point, generates a local ephemeral key pair, derives the
// transport key, and returns the cleartext reply to send back.
func (h *Handshake) ConsumePeerPublicKey(msg []byte) (reply []byte, result StepResult) {
	if err := checkState(h.state, StateConnected); err != nil {
		return nil, h.fail(err)
	}
	if len(msg) != 65 || msg[0] != 0x02 {
		return nil, h.fail(fmt.Errorf("%w: malformed key exchange message", ErrProtocol))
	}

	peerKey, err := decodeP256PublicKey(msg[1:33], msg[33:65])
	if err != nil {
		return nil, h.fail(fmt.Errorf("%w: %v", ErrProtocol, err))
	}

	priv, err := generateEphemeral()
	if err != nil {
		return nil, h.fail(fmt.Errorf("channel: ephemeral key generation: %w", err))
	}
	h.privKey = priv

	secret, err := priv.ECDH(peerKey)
	if err != nil {
		return nil, h.fail(fmt.Errorf("%w: ecdh: %v", ErrProtocol, err))
	}
	reverseBytes(secret)

	digest := sha256.Sum256(secret)
	var transportKey [16]byte
	for i := range transportKey {
		transportKey[i] = digest[i] ^ digest[16+i]
	}
	h.params.TransportKey = transportKey

	enc, err := NewEncryptor(transportKey)
	if err != nil {
		return nil, h.fail(err)
	}
	h.encryptor = enc

	localX, localY := encodeP256PublicKey(priv.PublicKey())
	reply = make([]byte, 66)
	reply[0] = 0x02
	copy(reply[1:33], localX)
	copy(reply[33:65], localY)
	reply[65] = 0x01

	return reply, StepPending
}

// ConsumeKeyExchangeAck implements the peer's one-byte 0x03
// acknowledgement that ends the ECDH leg, and then decides whether the
// channel needs a keyed challenge (KEY_EXCHANGED) or is already usable
// (AUTHENTICATED, for keyless networks).
func (h *Handshake) ConsumeKeyExchangeAck(msg []byte) StepResult {
	if err := checkState(h.state, StateConnected); err != nil {
		return h.fail(err)
	}
	if len(msg) != 1 || msg[0] != 0x03 {
		return h.fail(fmt.Errorf("%w: expected key exchange ack", ErrProtocol))
	}

	if _, ok := h.keystore.ActiveKey(); ok {
		h.state = StateKeyExchanged
	} else {
		h.params.OutgoingCounter = 2
		h.params.IncomingCounter = 1
		h.state = StateAuthenticated
	}
	return StepAdvanced
}

// BuildAuthChallenge implements the KEY_EXCHANGED authentication
// request of §4.3: header (counter=1, direction 0x04) || key.id ||
// SHA-256(key || nonce_base || transport_key), encrypted with nonce(1).
func (h *Handshake) BuildAuthChallenge() ([]byte, error) {
	if err := checkState(h.state, StateKeyExchanged); err != nil {
		return nil, err
	}
	key, ok := h.keystore.ActiveKey()
	if !ok {
		return nil, ErrNoActiveKey
	}

	hash := sha256.New()
	hash.Write(key.Key[:])
	hash.Write(h.params.NonceBase[:])
	hash.Write(h.params.TransportKey[:])
	digest := hash.Sum(nil)

	inner := make([]byte, 0, 5+1+32)
	inner = append(inner, 1, 0, 0, 0) // counter=1, little-endian
	inner = append(inner, 0x04)
	inner = append(inner, key.ID)
	inner = append(inner, digest...)

	nonce := Nonce(h.params.NonceBase, 1)
	frame, err := h.encryptor.EncryptThenMAC(inner, nonce, HeaderLen)
	if err != nil {
		return nil, err
	}
	return frame, nil
}

// ConsumeAuthReply implements KEY_EXCHANGED -> AUTHENTICATED: verifies
// the peer's encrypted reply to the auth challenge. Any tag failure is
// fatal (StateError), unlike the silent-drop rule that applies once
// AUTHENTICATED (§7).
func (h *Handshake) ConsumeAuthReply(frame []byte) StepResult {
	if err := checkState(h.state, StateKeyExchanged); err != nil {
		return h.fail(err)
	}

	nonce := Nonce(h.params.NonceBase, 1)
	if _, err := h.encryptor.DecryptAndVerify(frame, nonce, HeaderLen); err != nil {
		return h.fail(fmt.Errorf("%w: authentication failed", ErrProtocol))
	}

	h.params.OutgoingCounter = 2
	h.params.IncomingCounter = 1
	h.state = StateAuthenticated
	return StepAdvanced
}

// Disconnect drops the handshake back to StateNone, as happens on any
// transport drop callback (§4.3).
func (h *Handshake) Disconnect() {
	h.state = StateNone
	h.err = nil
	h.encryptor = nil
	h.privKey = nil
	h.params = Params{}
}

func decodeP256PublicKey(xLE, yLE []byte) (*ecdh.PublicKey, error) {
	x := reversedCopy(xLE)
	y := reversedCopy(yLE)

	uncompressed := make([]byte, 0, 65)
	uncompressed = append(uncompressed, 0x04)
	uncompressed = append(uncompressed, x...)
	uncompressed = append(uncompressed, y...)

	return ecdh.P256().NewPublicKey(uncompressed)
}

func encodeP256PublicKey(pub *ecdh.PublicKey) (xLE, yLE []byte) {
	raw := pub.Bytes() // 0x04 || X(32, BE) || Y(32, BE)
	x := reversedCopy(raw[1:33])
	y := reversedCopy(raw[33:65])
	return x, y
}

func reversedCopy(b []byte) []byte {
	out := make([]byte, len(b))
	for i, v := range b {
		out[len(b)-1-i] = v
	}
	return out
}

func reverseBytes(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}
