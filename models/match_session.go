package models

// MatchSessionRecord is the durable record of a session. Decisions and
// participant identities never appear here in plaintext: EncryptedState/Nonce
// is the engine's opaque ciphertext and ParticipantTags are keyed digests.
type MatchSessionRecord struct {
	SessionKey      string   `dynamodbav:"sessionKey" json:"sessionKey"`                       // Partition Key
	SessionID       string   `dynamodbav:"sessionId" json:"sessionId"`                         // Immutable uuid
	ParticipantTags []string `dynamodbav:"participantTags" json:"-"`                           // [tag(A), tag(B)]
	EncryptedState  []byte   `dynamodbav:"encryptedState" json:"-"`                            // Opaque, engine-owned
	Nonce           []byte   `dynamodbav:"nonce" json:"-"`                                     // Nonce of EncryptedState
	State           string   `dynamodbav:"state" json:"state"`                                 // created, like_pending, ...
	LikesRecorded   int      `dynamodbav:"likesRecorded" json:"likesRecorded"`                 // Accepted like transitions
	CreatedAt       int64    `dynamodbav:"createdAt" json:"createdAt"`                         // Unix seconds
	LastUpdated     int64    `dynamodbav:"lastUpdated" json:"lastUpdated"`                     // Advances on accepted transitions
	IsFinalized     bool     `dynamodbav:"isFinalized" json:"isFinalized"`                     // Terminal marker
	MatchFound      bool     `dynamodbav:"matchFound" json:"matchFound"`                       // Set with IsFinalized
	MatchStatus     string   `dynamodbav:"matchStatus,omitempty" json:"matchStatus,omitempty"` // Revealed check status at finalization
	MatchTimestamp  int64    `dynamodbav:"matchTimestamp" json:"matchTimestamp"`               // 0 unless matched
	FinalizedAt     int64    `dynamodbav:"finalizedAt,omitempty" json:"finalizedAt,omitempty"`
}

// HasParticipant reports whether tag belongs to one of the two participants.
func (r *MatchSessionRecord) HasParticipant(tag string) bool {
	for _, t := range r.ParticipantTags {
		if t == tag {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers can mutate a record without touching
// the loaded original.
func (r *MatchSessionRecord) Clone() *MatchSessionRecord {
	c := *r
	c.ParticipantTags = append([]string(nil), r.ParticipantTags...)
	c.EncryptedState = append([]byte(nil), r.EncryptedState...)
	c.Nonce = append([]byte(nil), r.Nonce...)
	return &c
}

// MatchSessionsTable is the default DynamoDB table for session records
const MatchSessionsTable = "MatchSessions"
