package services

import (
	"crypto/hmac"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"hash"

	"golang.org/x/crypto/sha3"
)

// Identity derives the keyed identifiers stored next to a session: the
// session key of a participant pair and the tag of each participant. Without
// the key neither can be linked back to a user id.
type Identity struct {
	key []byte
}

func NewIdentity(key []byte) (*Identity, error) {
	if len(key) < 16 {
		return nil, errors.New("participant key must be at least 16 bytes")
	}
	return &Identity{key: append([]byte(nil), key...)}, nil
}

func (i *Identity) mac(label string, parts ...string) []byte {
	m := hmac.New(func() hash.Hash { return sha3.New256() }, i.key)
	m.Write([]byte(label))
	for _, p := range parts {
		var n [4]byte
		binary.BigEndian.PutUint32(n[:], uint32(len(p)))
		m.Write(n[:])
		m.Write([]byte(p))
	}
	return m.Sum(nil)
}

// ParticipantTag returns the stored tag of userID.
func (i *Identity) ParticipantTag(userID string) string {
	return hex.EncodeToString(i.mac("participant", userID))
}

// SessionKey returns the session key of the unordered pair {a, b}.
func (i *Identity) SessionKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return hex.EncodeToString(i.mac("match_session", a, b)[:16])
}
