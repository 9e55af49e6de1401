package mxe

import (
	"bytes"
	"testing"

	"encrypted_match/circuits"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(b byte) []byte {
	return bytes.Repeat([]byte{b}, KeySize)
}

func TestSealOpenSession(t *testing.T) {
	c, err := NewCipher(testKey(1))
	require.NoError(t, err)

	session := circuits.InitSession(1, 2, 99)
	session.UserA = circuits.Passed

	sealed, err := Seal(c, session, SessionAAD("k1"))
	require.NoError(t, err)
	assert.Len(t, sealed.Nonce, 24)

	opened, err := Open(c, sealed, SessionAAD("k1"))
	require.NoError(t, err)
	assert.Equal(t, session, opened)
}

func TestSealUsesFreshNonce(t *testing.T) {
	c, err := NewCipher(testKey(1))
	require.NoError(t, err)

	session := circuits.InitSession(1, 2, 99)
	first, err := Seal(c, session, nil)
	require.NoError(t, err)
	second, err := Seal(c, session, nil)
	require.NoError(t, err)

	assert.NotEqual(t, first.Nonce, second.Nonce)
	assert.NotEqual(t, first.Ciphertext, second.Ciphertext)
}

func TestOpenRejectsWrongContext(t *testing.T) {
	c, err := NewCipher(testKey(1))
	require.NoError(t, err)
	other, err := NewCipher(testKey(2))
	require.NoError(t, err)

	sealed, err := Seal(c, circuits.InitSession(1, 2, 3), SessionAAD("k1"))
	require.NoError(t, err)

	_, err = Open(other, sealed, SessionAAD("k1"))
	assert.ErrorIs(t, err, ErrDecrypt)

	_, err = Open(c, sealed, SessionAAD("k2"))
	assert.ErrorIs(t, err, ErrDecrypt, "ciphertext is bound to its session key")

	tampered := sealed
	tampered.Ciphertext = append([]byte(nil), sealed.Ciphertext...)
	tampered.Ciphertext[0] ^= 0xff
	_, err = Open(c, tampered, SessionAAD("k1"))
	assert.ErrorIs(t, err, ErrDecrypt)

	tampered.Nonce = sealed.Nonce[:12]
	_, err = Open(c, tampered, SessionAAD("k1"))
	assert.ErrorIs(t, err, ErrDecrypt)
}

func TestNewCipherKeySize(t *testing.T) {
	_, err := NewCipher([]byte("short"))
	assert.Error(t, err)
}

func TestSharedEnvelopeRoundTrip(t *testing.T) {
	engine, err := GenerateKeyPair()
	require.NoError(t, err)

	action := circuits.UserLikeAction{UserID: 1, TargetID: 2, LikeAction: true, Timestamp: 5}
	env, err := SealShared(engine.Public, action, ActionAAD("k1", 1))
	require.NoError(t, err)
	assert.NotEqual(t, engine.Public, env.PublicKey)

	opened, err := OpenShared(engine, env, ActionAAD("k1", 1))
	require.NoError(t, err)
	assert.Equal(t, action, opened)

	stranger, err := GenerateKeyPair()
	require.NoError(t, err)
	_, err = OpenShared(stranger, env, ActionAAD("k1", 1))
	assert.ErrorIs(t, err, ErrDecrypt)

	_, err = OpenShared(engine, env, ActionAAD("k2", 1))
	assert.ErrorIs(t, err, ErrDecrypt)

	_, err = OpenShared(engine, env, ActionAAD("k1", 2))
	assert.ErrorIs(t, err, ErrDecrypt, "action is bound to its submitter")
}

func TestParticipantID(t *testing.T) {
	assert.Equal(t, ParticipantID("alice"), ParticipantID("alice"))
	assert.NotEqual(t, ParticipantID("alice"), ParticipantID("bob"))
}
