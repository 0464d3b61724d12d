/* SPDX-License-Identifier: MIT
 *
 * Copyright (C) 2017-2025 WireGuard LLC. All Rights Reserved.
 */

// Package ble defines the pluggable Bluetooth Low Energy transport
// collaborator (§6): a single GATT characteristic carrying the entire
// encrypted channel in both directions. luminet depends only on the
// Endpoint interface, the same way the teacher's device package takes
// a conn.Bind/tun.Device pair rather than opening a socket itself — a
// real implementation (BlueZ over D-Bus, CoreBluetooth, a mock for
// tests) is supplied by the caller.
package ble

import "context"

// CharacteristicUUID is the single characteristic, in both directions,
// that all encrypted channel traffic flows over.
const CharacteristicUUID = "c9ffde48-ca5a-0001-ab83-8f519b482f77"

// ServiceUUID is the GATT service the characteristic above is
// advertised under.
const ServiceUUID = "0000fe4d-0000-1000-8000-00805f9b34fb"

// ManufacturerCode identifies the network in BLE advertisement data.
const ManufacturerCode uint16 = 963

// NotifyFunc is invoked once per GATT notification received on a
// subscribed characteristic, in arrival order.
type NotifyFunc func(data []byte)

// DisconnectFunc is invoked once, at most, when the transport drops an
// established connection out from under the caller.
type DisconnectFunc func()

// Endpoint is the minimal BLE GATT surface the channel and client
// layers need. Device identifies the peripheral to connect to; its
// meaning (MAC address, platform-specific handle, …) is owned entirely
// by the implementation.
type Endpoint interface {
	// Connect opens a GATT session with device. The returned error, if
	// any, should be wrapped by the caller as a luminet Bluetooth error.
	Connect(ctx context.Context, device string) error

	// ReadCharacteristic performs a single GATT read.
	ReadCharacteristic(ctx context.Context, uuid string) ([]byte, error)

	// WriteCharacteristic performs a single GATT write (write-with-response
	// semantics are an implementation detail of the Endpoint).
	WriteCharacteristic(ctx context.Context, uuid string, data []byte) error

	// Subscribe registers fn to be called for every notification on
	// uuid until Disconnect is called.
	Subscribe(ctx context.Context, uuid string, fn NotifyFunc) error

	// OnDisconnect registers fn to be called once if the connection is
	// lost without a matching call to Disconnect.
	OnDisconnect(fn DisconnectFunc)

	// Disconnect tears down the GATT session. Idempotent.
	Disconnect() error
}
