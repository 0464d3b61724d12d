/* SPDX-License-Identifier: MIT
 *
 * Copyright (C) 2017-2025 WireGuard LLC. All Rights Reserved.
 */

// Package luminet is the client facade (§6): it composes the channel
// handshake and framing, the unit and switch-event parsers, the BLE and
// cloud collaborators, and the on-disk cache into the public API a
// caller actually uses. Its concurrency shape mirrors the teacher's
// device package: a single mutex serialises channel-state mutation the
// way device.state.Mutex serialises WireGuard's device-wide state, and
// a bounded channel plus one consumer goroutine plays the role of the
// original asyncio.Queue-backed notification task.
package luminet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/luminet/luminet-go/ble"
	"github.com/luminet/luminet-go/cache"
	"github.com/luminet/luminet-go/channel"
	"github.com/luminet/luminet-go/cloud"
	"github.com/luminet/luminet-go/internal/reconnect"
	"github.com/luminet/luminet-go/switchevent"
	"github.com/luminet/luminet-go/unit"
)

// inboundQueueDepth bounds the inbound FIFO (§5): once it is full,
// further notifications are dropped with a warning rather than
// buffered unboundedly.
const inboundQueueDepth = 32

// preLockYield is the deliberate delay before the inbound processing
// lock acquisition described in §5: it loses any race between an
// outbound state transition and an inbound notification that depends
// on it, rather than trying to win it.
const preLockYield = time.Millisecond

// Callbacks holds the public event sinks (§6). Any nil field is simply
// not invoked.
type Callbacks struct {
	OnUnitChanged func(unit.Unit)
	OnSwitchEvent func(switchevent.Event)
	OnDisconnect  func()
}

// Client is a single connection to one mesh lighting network. It is
// not safe to share a Client across goroutines calling Connect/commands
// concurrently with a different Client for the same on-disk cache
// directory unless they go through the same *cache.Store (§5).
type Client struct {
	endpoint ble.Endpoint
	cloud    cloud.Client
	store    *cache.Store
	log      *slog.Logger

	callbacks Callbacks

	typeLookup unit.TypeLookup

	activityMu sync.Mutex
	handshake  *channel.Handshake
	sender     *channel.Sender
	receiver   *channel.Receiver
	builder    *channel.Builder

	units map[uint8]*unit.Unit

	deviceAddr string
	inbound    chan []byte
	stopLoop   chan struct{}
	loopDone   chan struct{}

	handshakeDone chan error

	connectLimiter reconnect.Limiter
}

// Config bundles a Client's collaborators and callbacks.
type Config struct {
	Endpoint   ble.Endpoint
	Cloud      cloud.Client
	Store      *cache.Store
	Logger     *slog.Logger
	TypeLookup unit.TypeLookup
	Keystore   *channel.Keystore
	Callbacks  Callbacks
}

// New constructs a disconnected Client.
func New(cfg Config) *Client {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	c := &Client{
		endpoint:   cfg.Endpoint,
		cloud:      cfg.Cloud,
		store:      cfg.Store,
		log:        log,
		callbacks:  cfg.Callbacks,
		typeLookup: cfg.TypeLookup,
		handshake:  channel.NewHandshake(cfg.Keystore),
		units:      make(map[uint8]*unit.Unit),
	}
	c.connectLimiter.Init()
	return c
}

// Connect opens the BLE endpoint, consumes the hello, starts the
// inbound processing loop that drives the rest of the handshake (§4.3)
// and waits until that handshake completes or fails.
func (c *Client) Connect(ctx context.Context, device string) error {
	if !c.connectLimiter.Allow(device) {
		return wrap(KindConnectionState, fmt.Errorf("luminet: too many connect attempts against %s, backing off", device))
	}

	c.activityMu.Lock()
	if c.handshake.State() != channel.StateNone {
		state := c.handshake.State()
		c.activityMu.Unlock()
		return wrap(KindConnectionState, fmt.Errorf("connect called from state %s", state))
	}

	if err := c.endpoint.Connect(ctx, device); err != nil {
		c.activityMu.Unlock()
		return wrap(KindBluetooth, err)
	}
	c.deviceAddr = device

	hello, err := c.endpoint.ReadCharacteristic(ctx, ble.CharacteristicUUID)
	if err != nil {
		c.activityMu.Unlock()
		return wrap(KindBluetooth, err)
	}

	if result := c.handshake.ConsumeHello(hello); result == channel.StepFailed {
		err := c.classifyHandshakeErr()
		c.activityMu.Unlock()
		return err
	}

	c.inbound = make(chan []byte, inboundQueueDepth)
	c.stopLoop = make(chan struct{})
	c.loopDone = make(chan struct{})
	c.handshakeDone = make(chan error, 1)

	c.endpoint.OnDisconnect(c.handleTransportDrop)
	if err := c.endpoint.Subscribe(ctx, ble.CharacteristicUUID, c.onNotify); err != nil {
		c.activityMu.Unlock()
		return wrap(KindBluetooth, err)
	}

	go c.inboundLoop()
	c.activityMu.Unlock()

	select {
	case err := <-c.handshakeDone:
		return err
	case <-ctx.Done():
		return wrap(KindBluetooth, ctx.Err())
	}
}

func (c *Client) classifyHandshakeErr() error {
	err := c.handshake.Err()
	switch {
	case err == nil:
		return nil
	default:
		return wrap(kindForHandshakeErr(err), err)
	}
}

func kindForHandshakeErr(err error) Kind {
	switch {
	case errors.Is(err, channel.ErrUnsupportedProtocolVersion):
		return KindUnsupportedProtocolVersion
	default:
		return KindProtocol
	}
}

// onNotify is the GATT notification callback: it only enqueues, never
// blocks on channel-state work, so the BLE stack's own goroutine is
// never held up behind application logic.
func (c *Client) onNotify(data []byte) {
	frame := append([]byte(nil), data...)
	select {
	case c.inbound <- frame:
	default:
		c.log.Warn("inbound queue full, dropping notification")
	}
}

func (c *Client) inboundLoop() {
	defer close(c.loopDone)
	for {
		select {
		case frame := <-c.inbound:
			time.Sleep(preLockYield)
			c.activityMu.Lock()
			c.handleFrame(frame)
			c.activityMu.Unlock()
		case <-c.stopLoop:
			return
		}
	}
}

func (c *Client) handleFrame(data []byte) {
	switch c.handshake.State() {
	case channel.StateConnected:
		c.handleConnectedFrame(data)
	case channel.StateKeyExchanged:
		c.handleAuthReply(data)
	case channel.StateAuthenticated:
		c.handleDataFrame(data)
	default:
		c.log.Warn("dropping inbound frame in unexpected state", "state", c.handshake.State().String())
	}
}

func (c *Client) handleConnectedFrame(data []byte) {
	if len(data) == 0 {
		c.log.Warn("empty inbound frame in CONNECTED state")
		return
	}
	switch data[0] {
	case 0x02:
		reply, result := c.handshake.ConsumePeerPublicKey(data)
		if result == channel.StepFailed {
			c.finishHandshake(c.classifyHandshakeErr())
			return
		}
		if err := c.writeRaw(reply); err != nil {
			c.handshake.Disconnect()
			c.finishHandshake(wrap(KindBluetooth, err))
			return
		}
	case 0x03:
		result := c.handshake.ConsumeKeyExchangeAck(data)
		if result == channel.StepFailed {
			c.finishHandshake(c.classifyHandshakeErr())
			return
		}
		switch c.handshake.State() {
		case channel.StateAuthenticated:
			c.completeHandshakeLocked()
		case channel.StateKeyExchanged:
			challenge, err := c.handshake.BuildAuthChallenge()
			if err != nil {
				c.finishHandshake(wrap(KindProtocol, err))
				return
			}
			if err := c.writeRaw(challenge); err != nil {
				c.handshake.Disconnect()
				c.finishHandshake(wrap(KindBluetooth, err))
				return
			}
		}
	default:
		c.log.Warn("unexpected first byte in CONNECTED state", "byte", data[0])
	}
}

func (c *Client) handleAuthReply(data []byte) {
	result := c.handshake.ConsumeAuthReply(data)
	if result == channel.StepFailed {
		c.finishHandshake(wrap(KindAuthentication, c.handshake.Err()))
		return
	}
	c.completeHandshakeLocked()
}

// completeHandshakeLocked builds the Sender/Receiver/Builder from the
// negotiated params and signals Connect's waiter. Caller holds activityMu.
func (c *Client) completeHandshakeLocked() {
	params := c.handshake.Params()
	c.sender = channel.NewSender(c.handshake.Encryptor(), params.NonceBase, params.OutgoingCounter)
	c.receiver = channel.NewReceiver(c.handshake.Encryptor(), params.NonceBase, params.IncomingCounter)
	c.builder = channel.NewBuilder()
	c.finishHandshake(nil)
}

func (c *Client) finishHandshake(err error) {
	select {
	case c.handshakeDone <- err:
	default:
	}
}

func (c *Client) handleDataFrame(data []byte) {
	body, err := c.receiver.Decrypt(data)
	if err != nil {
		c.log.Warn("dropping inbound frame", "err", err)
		return
	}

	msgType, inner, err := channel.Dispatch(body)
	if err != nil {
		c.log.Warn("dropping malformed inner payload", "err", err)
		return
	}

	switch msgType {
	case channel.MessageUnitState:
		c.applyUnitStateBroadcast(inner)
	case channel.MessageSwitchEvent:
		for _, ev := range switchevent.Parse(inner, c.log) {
			if c.callbacks.OnSwitchEvent != nil {
				c.callbacks.OnSwitchEvent(ev)
			}
		}
	case channel.MessageNetworkConfig:
		c.log.Debug("ignoring network-config broadcast, out of scope for the channel layer")
	default:
		c.log.Debug("ignoring unrecognised message type", "type", msgType)
	}
}

func (c *Client) applyUnitStateBroadcast(inner []byte) {
	for _, rec := range unit.ParseBroadcast(inner, c.typeLookup, c.log) {
		u, ok := c.units[rec.ID]
		if !ok {
			u = &unit.Unit{DeviceID: rec.ID}
			c.units[rec.ID] = u
		}
		st := rec.State
		u.State = &st
		u.On = rec.On
		u.Online = rec.Online

		if c.callbacks.OnUnitChanged != nil {
			c.callbacks.OnUnitChanged(*u)
		}
	}
}

// handleTransportDrop is the BLE endpoint's disconnect callback (§4.3:
// "any state -> NONE"). If the channel was AUTHENTICATED, every known
// unit is marked offline and OnUnitChanged fires for each before
// OnDisconnect, so observers never see a stale "online" unit after a
// drop.
func (c *Client) handleTransportDrop() {
	c.activityMu.Lock()
	wasAuthenticated := c.handshake.State() == channel.StateAuthenticated
	c.handshake.Disconnect()
	c.sender = nil
	c.receiver = nil

	if wasAuthenticated {
		for _, u := range c.units {
			if !u.Online {
				continue
			}
			u.Online = false
			u.On = false
			if c.callbacks.OnUnitChanged != nil {
				c.callbacks.OnUnitChanged(*u)
			}
		}
	}
	c.activityMu.Unlock()

	if c.stopLoop != nil {
		close(c.stopLoop)
		<-c.loopDone
	}

	if wasAuthenticated && c.callbacks.OnDisconnect != nil {
		c.callbacks.OnDisconnect()
	}
}

// writeRaw GATT-writes to the single authentication characteristic.
// Caller holds activityMu.
func (c *Client) writeRaw(data []byte) error {
	return c.endpoint.WriteCharacteristic(context.Background(), ble.CharacteristicUUID, data)
}

// Disconnect cancels the inbound loop and closes the GATT client,
// setting state back to NONE (§5 cancellation).
func (c *Client) Disconnect() error {
	c.activityMu.Lock()
	state := c.handshake.State()
	c.handshake.Disconnect()
	c.activityMu.Unlock()

	if c.stopLoop != nil {
		select {
		case <-c.stopLoop:
		default:
			close(c.stopLoop)
		}
		<-c.loopDone
	}

	err := c.endpoint.Disconnect()
	if err != nil {
		return wrap(KindBluetooth, err)
	}
	if state == channel.StateAuthenticated && c.callbacks.OnDisconnect != nil {
		c.callbacks.OnDisconnect()
	}
	return nil
}

// Units returns a snapshot of every unit this client has seen state for.
func (c *Client) Units() []unit.Unit {
	c.activityMu.Lock()
	defer c.activityMu.Unlock()
	out := make([]unit.Unit, 0, len(c.units))
	for _, u := range c.units {
		out = append(out, *u)
	}
	return out
}
