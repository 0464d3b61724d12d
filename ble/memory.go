/* SPDX-License-Identifier: MIT
 *
 * Copyright (C) 2017-2025 WireGuard LLC. All Rights Reserved.
 */

package ble

import (
	"context"
	"fmt"
	"sync"
)

// Memory is an in-process Endpoint backed by plain Go channels, for
// tests and local experimentation — no real radio involved. Writes are
// captured so a test can assert on outbound frames; a test drives
// inbound traffic by calling Deliver.
type Memory struct {
	mu   sync.Mutex
	open bool

	characteristics map[string][]byte
	subscribers     map[string]NotifyFunc
	onDisconnect    DisconnectFunc

	Written []WriteRecord
}

// WriteRecord is one captured WriteCharacteristic call.
type WriteRecord struct {
	UUID string
	Data []byte
}

// NewMemory constructs an unconnected Memory endpoint. initial seeds
// the values later ReadCharacteristic calls will return.
func NewMemory(initial map[string][]byte) *Memory {
	chars := make(map[string][]byte, len(initial))
	for k, v := range initial {
		chars[k] = append([]byte(nil), v...)
	}
	return &Memory{
		characteristics: chars,
		subscribers:     make(map[string]NotifyFunc),
	}
}

func (m *Memory) Connect(_ context.Context, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open = true
	return nil
}

func (m *Memory) ReadCharacteristic(_ context.Context, uuid string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.open {
		return nil, fmt.Errorf("ble: read on closed endpoint")
	}
	v, ok := m.characteristics[uuid]
	if !ok {
		return nil, fmt.Errorf("ble: no value seeded for characteristic %s", uuid)
	}
	return append([]byte(nil), v...), nil
}

func (m *Memory) WriteCharacteristic(_ context.Context, uuid string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.open {
		return fmt.Errorf("ble: write on closed endpoint")
	}
	m.Written = append(m.Written, WriteRecord{UUID: uuid, Data: append([]byte(nil), data...)})
	return nil
}

func (m *Memory) Subscribe(_ context.Context, uuid string, fn NotifyFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.open {
		return fmt.Errorf("ble: subscribe on closed endpoint")
	}
	m.subscribers[uuid] = fn
	return nil
}

// Subscribed reports whether a subscriber is currently registered for
// uuid, for tests that need to wait until Subscribe has landed before
// delivering a notification.
func (m *Memory) Subscribed(uuid string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.subscribers[uuid]
	return ok
}

func (m *Memory) OnDisconnect(fn DisconnectFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onDisconnect = fn
}

func (m *Memory) Disconnect() error {
	m.mu.Lock()
	open := m.open
	m.open = false
	m.subscribers = make(map[string]NotifyFunc)
	m.mu.Unlock()
	_ = open
	return nil
}

// Deliver invokes the registered subscriber for uuid, as if a
// notification had just arrived from the peripheral.
func (m *Memory) Deliver(uuid string, data []byte) {
	m.mu.Lock()
	fn := m.subscribers[uuid]
	m.mu.Unlock()
	if fn != nil {
		fn(data)
	}
}

// SimulateDrop invokes the registered disconnect callback without
// going through Disconnect, modelling a transport-initiated drop.
func (m *Memory) SimulateDrop() {
	m.mu.Lock()
	m.open = false
	fn := m.onDisconnect
	m.mu.Unlock()
	if fn != nil {
		fn()
	}
}
