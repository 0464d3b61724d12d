/* SPDX-License-Identifier: MIT
 *
 * Copyright (C) 2017-2025 WireGuard LLC. All Rights Reserved.
 */

package ble

import (
	"context"
	"testing"
)

func TestMemoryReadWriteRoundTrip(t *testing.T) {
	ep := NewMemory(map[string][]byte{CharacteristicUUID: {0x01, 0x0a}})
	ctx := context.Background()

	if err := ep.Connect(ctx, "aa:bb:cc:dd:ee:ff"); err != nil {
		t.Fatal(err)
	}

	got, err := ep.ReadCharacteristic(ctx, CharacteristicUUID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] != 0x01 {
		t.Fatalf("read = %x, want seeded hello prefix", got)
	}

	if err := ep.WriteCharacteristic(ctx, CharacteristicUUID, []byte{0xff}); err != nil {
		t.Fatal(err)
	}
	if len(ep.Written) != 1 || ep.Written[0].Data[0] != 0xff {
		t.Fatalf("Written = %+v, want one captured write", ep.Written)
	}
}

func TestMemorySubscribeAndDeliver(t *testing.T) {
	ep := NewMemory(nil)
	ctx := context.Background()
	_ = ep.Connect(ctx, "device")

	var received []byte
	if err := ep.Subscribe(ctx, CharacteristicUUID, func(data []byte) {
		received = data
	}); err != nil {
		t.Fatal(err)
	}

	ep.Deliver(CharacteristicUUID, []byte{1, 2, 3})
	if len(received) != 3 {
		t.Fatalf("received = %v, want delivered notification", received)
	}
}

func TestMemorySimulateDropFiresCallbackOnce(t *testing.T) {
	ep := NewMemory(nil)
	ctx := context.Background()
	_ = ep.Connect(ctx, "device")

	fired := 0
	ep.OnDisconnect(func() { fired++ })
	ep.SimulateDrop()

	if fired != 1 {
		t.Fatalf("disconnect callback fired %d times, want 1", fired)
	}
	if err := ep.WriteCharacteristic(ctx, CharacteristicUUID, nil); err == nil {
		t.Fatal("write after drop should fail, endpoint is closed")
	}
}
