/* SPDX-License-Identifier: MIT
 *
 * Copyright (C) 2017-2025 WireGuard LLC. All Rights Reserved.
 */

package cli

import (
	"crypto/ecdh"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/luminet/luminet-go/ble"
	"github.com/luminet/luminet-go/channel"
	"github.com/luminet/luminet-go/luminet"
	"github.com/luminet/luminet-go/unit"
)

// demoCmd runs the connect/authenticate/command sequence against an
// in-process simulated peripheral, with no real Bluetooth hardware
// involved. It exists so the handshake and framing in this repo can be
// exercised end to end by an operator who doesn't have a BLE adapter
// to hand — the real ble.Endpoint is an interface any caller can
// implement against their own radio stack.
var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run a simulated handshake and dimmer command against an in-memory peripheral",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := rootCmdLoadConfig(cmd); err != nil {
			return err
		}
		level := viper.GetInt("level")
		if level < 0 || level > 255 {
			return fmt.Errorf("level %d out of range 0..255", level)
		}

		var nonceBase [channel.NonceSize]byte
		copy(nonceBase[:], []byte("luminetctl-demo!"))

		ep := ble.NewMemory(map[string][]byte{
			ble.CharacteristicUUID: helloFrame(channel.MinProtocolVersion, nonceBase),
		})

		client := luminet.New(luminet.Config{
			Endpoint: ep,
			Callbacks: luminet.Callbacks{
				OnUnitChanged: func(u unit.Unit) {
					fmt.Printf("unit %d changed: on=%v online=%v\n", u.DeviceID, u.On, u.Online)
				},
				OnDisconnect: func() {
					fmt.Println("disconnected")
				},
			},
		})

		connectDone := make(chan error, 1)
		go func() { connectDone <- client.Connect(cmd.Context(), "00:11:22:33:44:55") }()

		if err := peerHandshake(ep, connectDone); err != nil {
			return err
		}
		fmt.Println("handshake complete, AUTHENTICATED")

		if err := client.SetLevel(channel.TargetUnit(1), level); err != nil {
			return fmt.Errorf("set level: %w", err)
		}
		fmt.Printf("sent set-level %d to unit 1, wrote %d frame(s)\n", level, len(ep.Written))

		return client.Disconnect()
	},
}

func init() {
	rootCmd.AddCommand(demoCmd)
	demoCmd.Flags().Int("level", 128, "Dimmer level (0..255) to send once connected")
}

// helloFrame builds the §4.2 keyless hello the simulated peripheral
// presents on first read.
func helloFrame(version byte, nonceBase [channel.NonceSize]byte) []byte {
	hello := make([]byte, 23)
	hello[0] = 0x01
	hello[1] = version
	hello[2] = 0x17
	hello[3], hello[4] = 0x00, 0x2A
	hello[5], hello[6] = 0x00, 0x00
	copy(hello[7:23], nonceBase[:])
	return hello
}

// peerHandshake plays the peer side of the §4.3 handshake against a
// Client already mid-Connect: it waits for the subscription to land,
// delivers a peer public key, then acks the client's key-exchange
// reply. The simulated network is keyless, so no auth challenge follows.
func peerHandshake(ep *ble.Memory, connectDone chan error) error {
	peerPriv, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return err
	}

	deadline := time.Now().Add(2 * time.Second)
	for !ep.Subscribed(ble.CharacteristicUUID) {
		if time.Now().After(deadline) {
			return fmt.Errorf("simulated peripheral never saw a subscription")
		}
		time.Sleep(time.Millisecond)
	}
	ep.Deliver(ble.CharacteristicUUID, peerPublicKeyFrame(peerPriv.PublicKey()))

	deadline = time.Now().Add(2 * time.Second)
	for len(ep.Written) < 1 {
		if time.Now().After(deadline) {
			return fmt.Errorf("simulated peripheral never saw the key-exchange reply")
		}
		time.Sleep(time.Millisecond)
	}
	ep.Deliver(ble.CharacteristicUUID, []byte{0x03})

	select {
	case err := <-connectDone:
		return err
	case <-time.After(2 * time.Second):
		return fmt.Errorf("connect never completed")
	}
}

// peerPublicKeyFrame builds the §4.3 peer-public-key message: type
// 0x02 followed by the X and Y coordinates, each little-endian.
func peerPublicKeyFrame(pub *ecdh.PublicKey) []byte {
	raw := pub.Bytes() // 0x04 || X(BE) || Y(BE)
	msg := make([]byte, 65)
	msg[0] = 0x02
	copy(msg[1:33], reverseBytes(raw[1:33]))
	copy(msg[33:65], reverseBytes(raw[33:65]))
	return msg
}

func reverseBytes(b []byte) []byte {
	out := make([]byte, len(b))
	for i, v := range b {
		out[len(b)-1-i] = v
	}
	return out
}
