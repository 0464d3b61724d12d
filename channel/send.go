/* SPDX-License-Identifier: MIT
 *
 * Copyright (C) 2017-2025 WireGuard LLC. All Rights Reserved.
 */

package channel

import "encoding/binary"

// directionData is the hard-coded direction byte this client uses for
// every frame it sends; peer-originated frames use various type codes
// that double as the dispatch byte instead (§9: this asymmetry is
// observed behaviour, not something to generalise further).
const directionData = 0x07

// Sender frames and encrypts outgoing operation payloads, owning the
// per-direction outgoing counter (§4.5).
type Sender struct {
	encryptor *Encryptor
	nonceBase [NonceSize]byte
	counter   uint32
}

// NewSender builds a Sender starting at the given outgoing counter
// (2, per §3, once authenticated).
func NewSender(encryptor *Encryptor, nonceBase [NonceSize]byte, startCounter uint32) *Sender {
	return &Sender{encryptor: encryptor, nonceBase: nonceBase, counter: startCounter}
}

// Counter returns the next outgoing counter value that will be used.
func (s *Sender) Counter() uint32 { return s.counter }

// Frame implements §4.5 steps 2-6: prepend the 4-byte little-endian
// counter and the data direction byte to inner, encrypt-then-MAC it
// with nonce(counter), and advance the counter. The caller is
// responsible for steps 1 (lock) and 5 (GATT write).
func (s *Sender) Frame(inner []byte) ([]byte, error) {
	header := make([]byte, HeaderLen+1, HeaderLen+1+len(inner))
	binary.LittleEndian.PutUint32(header[0:4], s.counter)
	header[4] = directionData
	packet := append(header, inner...)

	nonce := Nonce(s.nonceBase, s.counter)
	frame, err := s.encryptor.EncryptThenMAC(packet, nonce, HeaderLen)
	if err != nil {
		return nil, err
	}

	s.counter++
	return frame, nil
}
