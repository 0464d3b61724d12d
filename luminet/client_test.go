/* SPDX-License-Identifier: MIT
 *
 * Copyright (C) 2017-2025 WireGuard LLC. All Rights Reserved.
 */

package luminet

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"testing"
	"time"

	"github.com/luminet/luminet-go/ble"
	"github.com/luminet/luminet-go/channel"
	"github.com/luminet/luminet-go/unit"
)

func reverseLE(b []byte) []byte {
	out := make([]byte, len(b))
	for i, v := range b {
		out[len(b)-1-i] = v
	}
	return out
}

func helloBytes(version byte, nonceBase [16]byte) []byte {
	hello := make([]byte, 23)
	hello[0] = 0x01
	hello[1] = version
	hello[2] = 0x17
	hello[3], hello[4] = 0x00, 0x2A
	hello[5], hello[6] = 0x00, 0x00
	copy(hello[7:23], nonceBase[:])
	return hello
}

func peerPubKeyBytes(t *testing.T, pub *ecdh.PublicKey) []byte {
	t.Helper()
	raw := pub.Bytes() // 0x04 || X(BE) || Y(BE)
	msg := make([]byte, 65)
	msg[0] = 0x02
	copy(msg[1:33], reverseLE(raw[1:33]))
	copy(msg[33:65], reverseLE(raw[33:65]))
	return msg
}

// waitFor polls cond until it's true or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition never became true")
}

// driveKeylessHandshake plays the peer side of §4.3's handshake over ep
// against a Client already mid-Connect, then waits for Connect to return.
func driveKeylessHandshake(t *testing.T, c *Client, ep *ble.Memory, connectDone chan error) {
	t.Helper()
	peerPriv, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool { return ep.Subscribed(ble.CharacteristicUUID) })
	ep.Deliver(ble.CharacteristicUUID, peerPubKeyBytes(t, peerPriv.PublicKey()))

	waitFor(t, func() bool { return len(ep.Written) >= 1 })
	ep.Deliver(ble.CharacteristicUUID, []byte{0x03})

	select {
	case err := <-connectDone:
		if err != nil {
			t.Fatalf("Connect returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Connect never completed")
	}
}

func TestClientConnectKeylessHandshake(t *testing.T) {
	var nonceBase [16]byte
	copy(nonceBase[:], []byte("0123456789abcdef"))

	ep := ble.NewMemory(map[string][]byte{
		ble.CharacteristicUUID: helloBytes(channel.MinProtocolVersion, nonceBase),
	})
	c := New(Config{Endpoint: ep})

	connectDone := make(chan error, 1)
	go func() { connectDone <- c.Connect(context.Background(), "aa:bb:cc:dd:ee:ff") }()

	driveKeylessHandshake(t, c, ep, connectDone)

	if c.handshake.State() != channel.StateAuthenticated {
		t.Fatalf("state = %v, want authenticated", c.handshake.State())
	}
}

func TestClientConnectRejectsLowProtocolVersion(t *testing.T) {
	var nonceBase [16]byte
	ep := ble.NewMemory(map[string][]byte{
		ble.CharacteristicUUID: helloBytes(channel.MinProtocolVersion-1, nonceBase),
	})
	c := New(Config{Endpoint: ep})

	err := c.Connect(context.Background(), "device")
	if err == nil {
		t.Fatal("expected unsupported protocol version error")
	}
	lerr, ok := err.(*Error)
	if !ok || lerr.Kind != KindUnsupportedProtocolVersion {
		t.Fatalf("err = %v, want KindUnsupportedProtocolVersion", err)
	}
}

// authenticatedClient builds a Client whose handshake has already been
// driven to AUTHENTICATED, for command-path tests that don't care about
// the handshake itself.
func authenticatedClient(t *testing.T) (*Client, *ble.Memory) {
	t.Helper()
	var nonceBase [16]byte
	copy(nonceBase[:], []byte("fedcba9876543210"))

	ep := ble.NewMemory(map[string][]byte{
		ble.CharacteristicUUID: helloBytes(channel.MinProtocolVersion, nonceBase),
	})
	c := New(Config{Endpoint: ep})

	connectDone := make(chan error, 1)
	go func() { connectDone <- c.Connect(context.Background(), "device") }()
	driveKeylessHandshake(t, c, ep, connectDone)

	ep.Written = nil
	return c, ep
}

func TestClientSetLevelWritesFrame(t *testing.T) {
	c, ep := authenticatedClient(t)

	if err := c.SetLevel(channel.TargetUnit(7), 128); err != nil {
		t.Fatal(err)
	}

	if len(ep.Written) != 1 {
		t.Fatalf("got %d writes, want 1", len(ep.Written))
	}
	if len(ep.Written[0].Data) == 0 {
		t.Fatal("expected a non-empty encrypted frame")
	}
}

func TestClientSetLevelRejectsOutOfRange(t *testing.T) {
	c, _ := authenticatedClient(t)
	if err := c.SetLevel(channel.TargetUnit(7), 256); err == nil {
		t.Fatal("expected range error for level 256")
	}
	if err := c.SetLevel(channel.TargetUnit(7), -1); err == nil {
		t.Fatal("expected range error for level -1")
	}
}

func TestClientSendBeforeConnectIsConnectionStateError(t *testing.T) {
	ep := ble.NewMemory(nil)
	c := New(Config{Endpoint: ep})

	err := c.SetLevel(channel.TargetUnit(1), 10)
	lerr, ok := err.(*Error)
	if !ok || lerr.Kind != KindConnectionState {
		t.Fatalf("err = %v, want KindConnectionState", err)
	}
}

func TestClientTransportDropMarksUnitsOfflineBeforeDisconnect(t *testing.T) {
	var events []string
	c, ep := authenticatedClientWithCallbacks(t, Callbacks{
		OnUnitChanged: func(u unit.Unit) { events = append(events, "unit_changed") },
		OnDisconnect:  func() { events = append(events, "disconnect") },
	})
	_ = ep

	c.activityMu.Lock()
	c.units[7] = &unit.Unit{DeviceID: 7, Online: true, On: true}
	c.activityMu.Unlock()

	ep.SimulateDrop()
	waitFor(t, func() bool { return len(events) >= 2 })

	if events[len(events)-1] != "disconnect" {
		t.Fatalf("events = %v, want disconnect last", events)
	}
	if !contains(events, "unit_changed") {
		t.Fatalf("events = %v, want a unit_changed before disconnect", events)
	}
	if c.units[7].Online {
		t.Fatal("unit should be marked offline after transport drop")
	}
}

func contains(xs []string, v string) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

func authenticatedClientWithCallbacks(t *testing.T, cb Callbacks) (*Client, *ble.Memory) {
	t.Helper()
	var nonceBase [16]byte
	copy(nonceBase[:], []byte("fedcba9876543210"))

	ep := ble.NewMemory(map[string][]byte{
		ble.CharacteristicUUID: helloBytes(channel.MinProtocolVersion, nonceBase),
	})
	c := New(Config{Endpoint: ep, Callbacks: cb})

	connectDone := make(chan error, 1)
	go func() { connectDone <- c.Connect(context.Background(), "device") }()
	driveKeylessHandshake(t, c, ep, connectDone)

	ep.Written = nil
	return c, ep
}
