package mxe

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/sha3"
)

const sharedInfo = "encrypted-match/shared/v1"

// KeyPair is an X25519 key pair.
type KeyPair struct {
	Private [32]byte
	Public  [32]byte
}

func GenerateKeyPair() (KeyPair, error) {
	var kp KeyPair
	if _, err := rand.Read(kp.Private[:]); err != nil {
		return kp, fmt.Errorf("failed to generate x25519 key: %w", err)
	}
	pub, err := curve25519.X25519(kp.Private[:], curve25519.Basepoint)
	if err != nil {
		return kp, fmt.Errorf("failed to derive x25519 public key: %w", err)
	}
	copy(kp.Public[:], pub)
	return kp, nil
}

// SharedEnvelope is a value sealed by a client to the engine: the client's
// ephemeral public key plus the ciphertext under the derived shared key.
type SharedEnvelope[T any] struct {
	PublicKey [32]byte          `json:"publicKey"`
	Value     EncryptedValue[T] `json:"value"`
}

// SealShared seals v so that only the engine owning enginePublic can open it.
func SealShared[T any](enginePublic [32]byte, v T, aad []byte) (SharedEnvelope[T], error) {
	ephemeral, err := GenerateKeyPair()
	if err != nil {
		return SharedEnvelope[T]{}, err
	}

	c, err := sharedCipher(ephemeral.Private, enginePublic, ephemeral.Public, enginePublic)
	if err != nil {
		return SharedEnvelope[T]{}, err
	}

	sealed, err := Seal(c, v, aad)
	if err != nil {
		return SharedEnvelope[T]{}, err
	}
	return SharedEnvelope[T]{PublicKey: ephemeral.Public, Value: sealed}, nil
}

// OpenShared opens an envelope with the engine's key pair.
func OpenShared[T any](engine KeyPair, env SharedEnvelope[T], aad []byte) (T, error) {
	c, err := sharedCipher(engine.Private, env.PublicKey, env.PublicKey, engine.Public)
	if err != nil {
		var zero T
		return zero, err
	}
	return Open(c, env.Value, aad)
}

func sharedCipher(private, peer, clientPublic, enginePublic [32]byte) (*Cipher, error) {
	secret, err := curve25519.X25519(private[:], peer[:])
	if err != nil {
		return nil, fmt.Errorf("x25519 failed: %w", err)
	}

	salt := make([]byte, 0, 64)
	salt = append(salt, clientPublic[:]...)
	salt = append(salt, enginePublic[:]...)

	key := make([]byte, KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, salt, []byte(sharedInfo)), key); err != nil {
		return nil, fmt.Errorf("hkdf: %w", err)
	}
	return NewCipher(key)
}

// ParticipantID maps a user handle to the u64 identifier used inside the
// confidential state.
func ParticipantID(handle string) uint64 {
	sum := sha3.Sum256([]byte("encrypted-match/participant/" + handle))
	return binary.LittleEndian.Uint64(sum[:8])
}
