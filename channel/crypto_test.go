/* SPDX-License-Identifier: MIT
 *
 * Copyright (C) 2017-2025 WireGuard LLC. All Rights Reserved.
 */

package channel

import (
	"bytes"
	"testing"
)

func testKey() [16]byte {
	var k [16]byte
	for i := range k {
		k[i] = byte(i * 7)
	}
	return k
}

func testNonce() [NonceSize]byte {
	var n [NonceSize]byte
	for i := range n {
		n[i] = byte(0xA0 + i)
	}
	return n
}

func TestEncryptThenMACRoundTrip(t *testing.T) {
	enc, err := NewEncryptor(testKey())
	if err != nil {
		t.Fatal(err)
	}

	packet := append([]byte{0x02, 0x00, 0x00, 0x00}, []byte("hello casambi mesh payload")...)
	nonce := testNonce()

	frame, err := enc.EncryptThenMAC(packet, nonce, HeaderLen)
	if err != nil {
		t.Fatal(err)
	}
	if len(frame) != len(packet)+TagSize {
		t.Fatalf("frame length = %d, want %d", len(frame), len(packet)+TagSize)
	}

	got, err := enc.DecryptAndVerify(frame, nonce, HeaderLen)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, packet[HeaderLen:]) {
		t.Fatalf("round trip mismatch: got %x, want %x", got, packet[HeaderLen:])
	}
}

func TestDecryptAndVerifyDetectsTamperedCiphertext(t *testing.T) {
	enc, _ := NewEncryptor(testKey())
	packet := append([]byte{0x02, 0x00, 0x00, 0x00}, []byte("0123456789abcdef")...)
	nonce := testNonce()

	frame, err := enc.EncryptThenMAC(packet, nonce, HeaderLen)
	if err != nil {
		t.Fatal(err)
	}

	frame[HeaderLen] ^= 0x01

	if _, err := enc.DecryptAndVerify(frame, nonce, HeaderLen); err != ErrInvalidSignature {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestDecryptAndVerifyDetectsTamperedHeader(t *testing.T) {
	enc, _ := NewEncryptor(testKey())
	packet := append([]byte{0x02, 0x00, 0x00, 0x00}, []byte("fixed size body!")...)
	nonce := testNonce()

	frame, err := enc.EncryptThenMAC(packet, nonce, HeaderLen)
	if err != nil {
		t.Fatal(err)
	}

	frame[0] ^= 0x01

	if _, err := enc.DecryptAndVerify(frame, nonce, HeaderLen); err != ErrInvalidSignature {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestDecryptAndVerifyDetectsTamperedTag(t *testing.T) {
	enc, _ := NewEncryptor(testKey())
	packet := append([]byte{0x02, 0x00, 0x00, 0x00}, []byte("another fixed body")...)
	nonce := testNonce()

	frame, err := enc.EncryptThenMAC(packet, nonce, HeaderLen)
	if err != nil {
		t.Fatal(err)
	}

	frame[len(frame)-1] ^= 0x01

	if _, err := enc.DecryptAndVerify(frame, nonce, HeaderLen); err != ErrInvalidSignature {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestNonceConstruction(t *testing.T) {
	var base [NonceSize]byte
	for i := range base {
		base[i] = byte(i + 1)
	}

	n := Nonce(base, 0x01020304)
	if !bytes.Equal(n[0:4], base[0:4]) {
		t.Fatalf("nonce prefix mismatch")
	}
	if !bytes.Equal(n[8:16], base[8:16]) {
		t.Fatalf("nonce suffix mismatch")
	}
	if n[4] != 0x04 || n[5] != 0x03 || n[6] != 0x02 || n[7] != 0x01 {
		t.Fatalf("nonce counter window not little-endian: %x", n[4:8])
	}
}
