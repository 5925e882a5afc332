// Package crypto implements the per-session AEAD used by the comms
// layer: AES-GCM with a 128-bit key, 96-bit nonce, 128-bit tag. The
// approach of a nonce built from a little-endian counter, authenticated
// with crypto/aes + crypto/cipher's GCM mode, is grounded on
// backend/cryptomator's gcmCryptor (cryptor_gcm.go) - the one place in
// the teacher corpus that hand-rolls AES-GCM framing rather than
// reaching for NaCl secretbox.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
)

const (
	// KeySize is the session key length in bytes (128 bits).
	KeySize = 16
	// NonceSize is the GCM nonce length in bytes (96 bits).
	NonceSize = 12
	// TagSize is the GCM authentication tag length in bytes (128 bits).
	TagSize = 16
)

// NewKey generates a fresh random 128-bit session key. Called once by
// the boss per doer session and transported to the doer over the
// pre-authenticated shell transport.
func NewKey() ([KeySize]byte, error) {
	var k [KeySize]byte
	if _, err := rand.Read(k[:]); err != nil {
		return k, fmt.Errorf("crypto: generate session key: %w", err)
	}
	return k, nil
}

// NonceCounter is a monotonically incremented 96-bit counter, encoded
// as the low 96 bits of a little-endian value. Each direction of a
// session owns an independent counter starting at zero; reuse of any
// value is a protocol invariant violation and must be fatal.
type NonceCounter struct {
	next    uint64
	hi      uint32 // upper 32 bits of the 96-bit counter, vanishingly unlikely to be touched
	overflo bool
}

// Next returns the next nonce value and advances the counter. ok is
// false once the counter has exhausted the 96-bit space; the caller
// MUST treat that as fatal (spec: exhaustion is fatal, no re-keying).
func (c *NonceCounter) Next() (nonce [NonceSize]byte, ok bool) {
	if c.overflo {
		return nonce, false
	}
	low := c.next
	hi := c.hi
	c.next++
	if c.next == 0 {
		c.hi++
		if c.hi == 0 {
			c.overflo = true
		}
	}
	putNonce(&nonce, hi, low)
	return nonce, true
}

func putNonce(nonce *[NonceSize]byte, hi uint32, low uint64) {
	for i := 0; i < 8; i++ {
		nonce[i] = byte(low >> (8 * i))
	}
	for i := 0; i < 4; i++ {
		nonce[8+i] = byte(hi >> (8 * i))
	}
}

// Session holds one direction-pair of AES-GCM state: the shared key
// and two independent nonce counters, one for each direction, matching
// spec section 3's per-doer session state.
type Session struct {
	aead      cipher.AEAD
	sendNonce NonceCounter
	recvNonce NonceCounter
}

// NewSession builds an AES-GCM AEAD from the session key.
func NewSession(key [KeySize]byte) (*Session, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("crypto: new AES cipher: %w", err)
	}
	aead, err := cipher.NewGCMWithNonceSize(block, NonceSize)
	if err != nil {
		return nil, fmt.Errorf("crypto: new GCM: %w", err)
	}
	return &Session{aead: aead}, nil
}

// Seal encrypts plaintext using this session's outbound nonce counter,
// returning ciphertext||tag. Returns ok=false if the outbound counter
// has been exhausted - the caller MUST abort the session.
func (s *Session) Seal(plaintext []byte) (sealed []byte, ok bool) {
	nonce, ok := s.sendNonce.Next()
	if !ok {
		return nil, false
	}
	return s.aead.Seal(nil, nonce[:], plaintext, nil), true
}

// Open decrypts a ciphertext||tag frame using this session's inbound
// nonce counter. Both endpoints increment their receive counter in
// lockstep with the peer's send counter because frames are delivered
// in send order within a direction (comms layer invariant); Open does
// not itself re-derive the nonce from the wire, it trusts sequencing.
func (s *Session) Open(sealed []byte) (plaintext []byte, ok bool, err error) {
	nonce, ok := s.recvNonce.Next()
	if !ok {
		return nil, false, nil
	}
	plaintext, err = s.aead.Open(nil, nonce[:], sealed, nil)
	if err != nil {
		return nil, true, fmt.Errorf("crypto: authentication failed: %w", err)
	}
	return plaintext, true, nil
}

// Overhead is the number of bytes Seal adds to plaintext (the tag).
func (s *Session) Overhead() int { return TagSize }
