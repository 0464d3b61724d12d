/* SPDX-License-Identifier: MIT
 *
 * Copyright (C) 2017-2025 WireGuard LLC. All Rights Reserved.
 */

package luminet

import (
	"context"
	"fmt"

	"github.com/luminet/luminet-go/ble"
	"github.com/luminet/luminet-go/channel"
	"github.com/luminet/luminet-go/unit"
)

// SetLevel sets target's dimmer level to level (0..255). Boundary
// validation happens before any I/O, per §6's command surface.
func (c *Client) SetLevel(target uint16, level int) error {
	if level < 0 || level > 255 {
		return wrap(KindProtocol, fmt.Errorf("luminet: level %d out of range 0..255", level))
	}
	return c.sendOperation(channel.OpSetLevel, target, channel.SetLevelPayload(uint8(level)))
}

// SetVertical sets target's vertical/tilt control to level (0..255).
func (c *Client) SetVertical(target uint16, level int) error {
	if level < 0 || level > 255 {
		return wrap(KindProtocol, fmt.Errorf("luminet: vertical level %d out of range 0..255", level))
	}
	return c.sendOperation(channel.OpSetVertical, target, channel.SetLevelPayload(uint8(level)))
}

// SetWhite sets target's white channel level to level (0..255).
func (c *Client) SetWhite(target uint16, level int) error {
	if level < 0 || level > 255 {
		return wrap(KindProtocol, fmt.Errorf("luminet: white level %d out of range 0..255", level))
	}
	return c.sendOperation(channel.OpSetWhite, target, channel.SetLevelPayload(uint8(level)))
}

// SetColor sets target's RGB colour; r, g, b are each converted to
// normalised hue/saturation and quantised per §4.4's convention.
func (c *Client) SetColor(target uint16, r, g, b uint8) error {
	hue, sat := unit.RGBToHS(r, g, b)
	return c.sendOperation(channel.OpSetColor, target, channel.HueSatPayload(hue, sat))
}

// SetUnitState pushes an arbitrary unit.State to target, packed against
// typ's control layout.
func (c *Client) SetUnitState(target uint16, st unit.State, typ unit.Type) error {
	payload, err := unit.Pack(st, typ)
	if err != nil {
		return wrap(KindProtocol, err)
	}
	return c.sendOperation(channel.OpSetState, target, payload)
}

// TurnOn turns target on, restoring its last level (§4.4's turnOn
// convention).
func (c *Client) TurnOn(target uint16) error {
	return c.sendOperation(channel.OpSetLevel, target, channel.TurnOnPayload())
}

// SwitchToScene activates scene at level (255 restores the scene's own
// last level, matching turnOn's convention; §9 supplemented feature).
// A level of 0 is sent as 255.
func (c *Client) SwitchToScene(scene uint8, level uint8) error {
	if level == 0 {
		level = 255
	}
	return c.sendOperation(channel.OpSetLevel, channel.TargetScene(scene), channel.SceneLevelPayload(level))
}

// sendOperation implements §4.5's send path: build, frame, write,
// advance counter, all under the single activity lock. A transport
// write failure drops the channel to NONE and the client reconnects
// once before surfacing ConnectionState.
func (c *Client) sendOperation(op channel.OpCode, target uint16, payload []byte) error {
	c.activityMu.Lock()

	if c.handshake.State() != channel.StateAuthenticated {
		state := c.handshake.State()
		c.activityMu.Unlock()
		return wrap(KindConnectionState, fmt.Errorf("luminet: send requires AUTHENTICATED, got %s", state))
	}

	inner, err := c.builder.PrepareOperation(op, target, payload)
	if err != nil {
		c.activityMu.Unlock()
		return wrap(KindProtocol, err)
	}
	frame, err := c.sender.Frame(inner)
	if err != nil {
		c.activityMu.Unlock()
		return wrap(KindProtocol, err)
	}

	writeErr := c.endpoint.WriteCharacteristic(context.Background(), ble.CharacteristicUUID, frame)
	if writeErr == nil {
		c.activityMu.Unlock()
		return nil
	}

	// the write failed: drop to NONE and retry exactly once by
	// reconnecting to the last device address, per §4.5.
	c.handshake.Disconnect()
	c.sender = nil
	c.receiver = nil
	device := c.deviceAddr
	c.activityMu.Unlock()

	if reconnectErr := c.Connect(context.Background(), device); reconnectErr != nil {
		return wrap(KindConnectionState, fmt.Errorf("luminet: send failed and reconnect failed: %w", reconnectErr))
	}

	c.activityMu.Lock()
	inner, err = c.builder.PrepareOperation(op, target, payload)
	if err != nil {
		c.activityMu.Unlock()
		return wrap(KindProtocol, err)
	}
	frame, err = c.sender.Frame(inner)
	if err != nil {
		c.activityMu.Unlock()
		return wrap(KindProtocol, err)
	}
	writeErr = c.endpoint.WriteCharacteristic(context.Background(), ble.CharacteristicUUID, frame)
	c.activityMu.Unlock()

	if writeErr != nil {
		return wrap(KindConnectionState, fmt.Errorf("luminet: second send attempt failed: %w", writeErr))
	}
	return nil
}
