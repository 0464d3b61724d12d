/* SPDX-License-Identifier: MIT
 *
 * Copyright (C) 2017-2025 WireGuard LLC. All Rights Reserved.
 */

package channel

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"fmt"

	"github.com/aead/cmac"
)

// NonceSize is the fixed width of the per-packet nonce and of the
// nonce_base exchanged during the handshake.
const NonceSize = 16

// HeaderLen is the width of the cleartext counter window at the front
// of every encrypted frame, bound into the nonce as required by §3.
const HeaderLen = 4

// TagSize is the width of the trailing AES-CMAC authentication tag.
const TagSize = 16

// Nonce builds the per-packet nonce from a 16-byte template and a
// 32-bit counter: base[0:4] || counter_le32 || base[8:16]. The same
// construction is used for both directions; the caller supplies the
// right counter.
func Nonce(base [NonceSize]byte, counter uint32) [NonceSize]byte {
	var n [NonceSize]byte
	copy(n[0:4], base[0:4])
	binary.LittleEndian.PutUint32(n[4:8], counter)
	copy(n[8:16], base[8:16])
	return n
}

// Encryptor performs encrypt-then-MAC / verify-then-decrypt framing
// over a single 16-byte transport key. AES-CTR is implemented manually
// because this protocol's block counter is a little-endian value written
// over the last 4 bytes of the nonce, starting at zero for each packet;
// crypto/cipher's NewCTR instead increments the whole 16-byte IV as one
// big-endian number.
type Encryptor struct {
	block cipher.Block
}

// NewEncryptor builds an Encryptor bound to a 16-byte AES transport key.
func NewEncryptor(key [16]byte) (*Encryptor, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("channel: aes key setup: %w", err)
	}
	return &Encryptor{block: block}, nil
}

// ctrXOR XORs data in place against the AES-CTR keystream derived from
// nonce, one 16-byte block at a time, with the counter occupying the
// last 4 bytes of the nonce (little-endian), starting at zero.
func (e *Encryptor) ctrXOR(data []byte, nonce [NonceSize]byte) {
	var counterNonce [NonceSize]byte
	copy(counterNonce[:], nonce[:])

	var keystream [NonceSize]byte
	for offset := 0; offset < len(data); offset += NonceSize {
		counter := uint32(offset / NonceSize)
		binary.LittleEndian.PutUint32(counterNonce[12:16], counter)
		e.block.Encrypt(keystream[:], counterNonce[:])

		end := offset + NonceSize
		if end > len(data) {
			end = len(data)
		}
		for i := offset; i < end; i++ {
			data[i] ^= keystream[i-offset]
		}
	}
}

// cmacTag computes the AES-CMAC over data under the encryptor's key.
func (e *Encryptor) cmacTag(data []byte) ([]byte, error) {
	tag, err := cmac.Sum(data, e.block, TagSize)
	if err != nil {
		return nil, fmt.Errorf("channel: cmac: %w", err)
	}
	return tag, nil
}

// EncryptThenMAC implements §4.2: split packet into a cleartext header
// of headerLen bytes and a body, AES-CTR-encrypt the body in place,
// then CMAC the header||ciphertext and append the 16-byte tag.
func (e *Encryptor) EncryptThenMAC(packet []byte, nonce [NonceSize]byte, headerLen int) ([]byte, error) {
	out := make([]byte, len(packet))
	copy(out, packet)

	body := out[headerLen:]
	e.ctrXOR(body, nonce)

	tag, err := e.cmacTag(out)
	if err != nil {
		return nil, err
	}
	return append(out, tag...), nil
}

// DecryptAndVerify implements §4.2: decrypt unconditionally (constant
// time discipline for the tag check), then verify the CMAC tag over
// the still-ciphertext frame. On mismatch, returns ErrInvalidSignature
// and the caller must drop the packet without advancing any state.
func (e *Encryptor) DecryptAndVerify(frame []byte, nonce [NonceSize]byte, headerLen int) ([]byte, error) {
	if len(frame) < headerLen+TagSize {
		return nil, fmt.Errorf("%w: frame too short", ErrProtocol)
	}

	ciphertext := frame[:len(frame)-TagSize]
	tag := frame[len(frame)-TagSize:]

	plaintext := make([]byte, len(ciphertext))
	copy(plaintext, ciphertext)
	e.ctrXOR(plaintext[headerLen:], nonce)

	expected, err := e.cmacTag(ciphertext)
	if err != nil {
		return nil, err
	}
	if !constantTimeEqual(expected, tag) {
		return nil, ErrInvalidSignature
	}

	return plaintext[headerLen:], nil
}

func constantTimeEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	var v byte
	for i := range a {
		v |= a[i] ^ b[i]
	}
	return v == 0
}
