// Package mxe is the confidential-computation boundary: ciphertext envelopes,
// the Engine capability the orchestration layer submits work to, and
// LocalEngine, an in-process engine that runs the circuits package over
// sealed inputs.
package mxe

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// KeySize is the size of an MXE or shared symmetric key.
const KeySize = chacha20poly1305.KeySize

var ErrDecrypt = errors.New("ciphertext could not be opened")

// EncryptedValue is an opaque ciphertext of a T under some encryption
// context. Only a holder of the matching Cipher can open it.
type EncryptedValue[T any] struct {
	Ciphertext []byte `json:"ciphertext"`
	Nonce      []byte `json:"nonce"`
}

// Cipher is one encryption context (XChaCha20-Poly1305).
type Cipher struct {
	aead cipher.AEAD
}

func NewCipher(key []byte) (*Cipher, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("mxe key must be %d bytes, got %d", KeySize, len(key))
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return &Cipher{aead: aead}, nil
}

// Seal encrypts v with a fresh random nonce. aad binds the ciphertext to its
// owner (for example a session key) without being encrypted itself.
func Seal[T any](c *Cipher, v T, aad []byte) (EncryptedValue[T], error) {
	plaintext, err := binary.Append(nil, binary.LittleEndian, v)
	if err != nil {
		return EncryptedValue[T]{}, fmt.Errorf("failed to encode value: %w", err)
	}

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return EncryptedValue[T]{}, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return EncryptedValue[T]{
		Ciphertext: c.aead.Seal(nil, nonce, plaintext, aad),
		Nonce:      nonce,
	}, nil
}

// Open decrypts and decodes ev. Any tampering, wrong key or wrong aad yields
// ErrDecrypt.
func Open[T any](c *Cipher, ev EncryptedValue[T], aad []byte) (T, error) {
	var v T
	if len(ev.Nonce) != c.aead.NonceSize() {
		return v, fmt.Errorf("%w: bad nonce length %d", ErrDecrypt, len(ev.Nonce))
	}

	plaintext, err := c.aead.Open(nil, ev.Nonce, ev.Ciphertext, aad)
	if err != nil {
		return v, ErrDecrypt
	}

	n, err := binary.Decode(plaintext, binary.LittleEndian, &v)
	if err != nil {
		return v, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	if n != len(plaintext) {
		return v, fmt.Errorf("%w: %d trailing bytes", ErrDecrypt, len(plaintext)-n)
	}
	return v, nil
}

// SessionAAD is the associated data sealed session state is bound to.
func SessionAAD(sessionKey string) []byte {
	return []byte("match_session:" + sessionKey)
}

// ActionAAD is the associated data a like action is bound to: the session it
// was sealed for and the participant id of the user submitting it. An action
// cannot be replayed into another session or by the other participant.
func ActionAAD(sessionKey string, submitterID uint64) []byte {
	return binary.LittleEndian.AppendUint64([]byte("like_action:"+sessionKey+":"), submitterID)
}
