/* SPDX-License-Identifier: MIT
 *
 * Copyright (C) 2017-2025 WireGuard LLC. All Rights Reserved.
 */

package channel

import (
	"crypto/ecdh"
	"crypto/rand"
	"crypto/sha256"
	"testing"
)

func helloMessage(t *testing.T, version byte, nonceBase [NonceSize]byte) []byte {
	t.Helper()
	hello := make([]byte, 23)
	hello[0] = 0x01
	hello[1] = version
	hello[2] = 0x17 // mtu
	hello[3], hello[4] = 0x00, 0x2A
	hello[5], hello[6] = 0x00, 0x00
	copy(hello[7:23], nonceBase[:])
	return hello
}

func peerPublicKeyMessage(t *testing.T, pub *ecdh.PublicKey) []byte {
	t.Helper()
	raw := pub.Bytes() // 0x04 || X(BE) || Y(BE)
	msg := make([]byte, 65)
	msg[0] = 0x02
	copy(msg[1:33], reversedCopy(raw[1:33]))
	copy(msg[33:65], reversedCopy(raw[33:65]))
	return msg
}

func TestHandshakeHappyPathKeyless(t *testing.T) {
	peerPriv, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}

	localPriv, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	old := generateEphemeral
	generateEphemeral = func() (*ecdh.PrivateKey, error) { return localPriv, nil }
	defer func() { generateEphemeral = old }()

	var nonceBase [NonceSize]byte
	copy(nonceBase[:], []byte("0123456789abcdef"))

	h := NewHandshake(NewKeystore())

	if res := h.ConsumeHello(helloMessage(t, MinProtocolVersion, nonceBase)); res != StepAdvanced {
		t.Fatalf("ConsumeHello result = %v", res)
	}
	if h.State() != StateConnected {
		t.Fatalf("state = %v, want connected", h.State())
	}

	reply, res := h.ConsumePeerPublicKey(peerPublicKeyMessage(t, peerPriv.PublicKey()))
	if res != StepPending {
		t.Fatalf("ConsumePeerPublicKey result = %v", res)
	}
	if len(reply) != 66 || reply[0] != 0x02 || reply[65] != 0x01 {
		t.Fatalf("malformed reply: %x", reply)
	}

	expectedSecret, err := peerPriv.ECDH(localPriv.PublicKey())
	if err != nil {
		t.Fatal(err)
	}
	reverseBytes(expectedSecret)
	digest := sha256.Sum256(expectedSecret)
	var wantKey [16]byte
	for i := range wantKey {
		wantKey[i] = digest[i] ^ digest[16+i]
	}
	if h.Params().TransportKey != wantKey {
		t.Fatalf("transport key = %x, want %x", h.Params().TransportKey, wantKey)
	}

	if res := h.ConsumeKeyExchangeAck([]byte{0x03}); res != StepAdvanced {
		t.Fatalf("ConsumeKeyExchangeAck result = %v", res)
	}
	if h.State() != StateAuthenticated {
		t.Fatalf("state = %v, want authenticated (keyless network)", h.State())
	}
}

func TestHandshakeKeyedGoesToKeyExchanged(t *testing.T) {
	peerPriv, _ := ecdh.P256().GenerateKey(rand.Reader)
	localPriv, _ := ecdh.P256().GenerateKey(rand.Reader)
	old := generateEphemeral
	generateEphemeral = func() (*ecdh.PrivateKey, error) { return localPriv, nil }
	defer func() { generateEphemeral = old }()

	ks := NewKeystore()
	mustAdd(t, ks, Key{ID: 1, Role: 1, Name: "user"})
	h := NewHandshake(ks)

	var nonceBase [NonceSize]byte
	h.ConsumeHello(helloMessage(t, MinProtocolVersion, nonceBase))
	h.ConsumePeerPublicKey(peerPublicKeyMessage(t, peerPriv.PublicKey()))
	if res := h.ConsumeKeyExchangeAck([]byte{0x03}); res != StepAdvanced {
		t.Fatalf("ConsumeKeyExchangeAck result = %v", res)
	}
	if h.State() != StateKeyExchanged {
		t.Fatalf("state = %v, want key_exchanged", h.State())
	}
}

func TestHandshakeUnsupportedProtocolVersion(t *testing.T) {
	h := NewHandshake(nil)
	var nonceBase [NonceSize]byte
	if res := h.ConsumeHello(helloMessage(t, MinProtocolVersion-1, nonceBase)); res != StepFailed {
		t.Fatalf("expected StepFailed for low protocol version, got %v", res)
	}
	if h.State() != StateError {
		t.Fatalf("state = %v, want error", h.State())
	}
}

func TestHandshakeAuthMACFailureGoesToError(t *testing.T) {
	peerPriv, _ := ecdh.P256().GenerateKey(rand.Reader)
	localPriv, _ := ecdh.P256().GenerateKey(rand.Reader)
	old := generateEphemeral
	generateEphemeral = func() (*ecdh.PrivateKey, error) { return localPriv, nil }
	defer func() { generateEphemeral = old }()

	ks := NewKeystore()
	mustAdd(t, ks, Key{ID: 1, Role: 1, Name: "user"})
	h := NewHandshake(ks)

	var nonceBase [NonceSize]byte
	copy(nonceBase[:], []byte("0123456789abcdef"))
	h.ConsumeHello(helloMessage(t, MinProtocolVersion, nonceBase))
	h.ConsumePeerPublicKey(peerPublicKeyMessage(t, peerPriv.PublicKey()))
	h.ConsumeKeyExchangeAck([]byte{0x03})

	challenge, err := h.BuildAuthChallenge()
	if err != nil {
		t.Fatal(err)
	}
	if len(challenge) < TagSize {
		t.Fatalf("challenge too short: %d", len(challenge))
	}

	// Flip a bit in the peer's reply tag to simulate a corrupted
	// authentication response.
	reply := append([]byte(nil), challenge...)
	reply[len(reply)-1] ^= 0x01

	if res := h.ConsumeAuthReply(reply); res != StepFailed {
		t.Fatalf("expected StepFailed on tampered auth reply, got %v", res)
	}
	if h.State() != StateError {
		t.Fatalf("state = %v, want error", h.State())
	}
}
