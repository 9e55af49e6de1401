// Package circuits holds the confidential match-session state and the pure
// transition functions the confidential engine runs over it.
//
// Values of MatchSession and UserLikeAction only ever exist in plaintext inside
// the engine. Everything that leaves the engine in the clear is one of the
// revealed types below: LikeStatus or MatchResult.
package circuits

// Decision is one side's like/pass decision. The zero value means the side has
// not acted yet.
type Decision uint8

const (
	Undecided Decision = iota
	Liked
	Passed
)

// Acted reports whether the side already submitted a decision.
func (d Decision) Acted() bool { return d != Undecided }

// Liked reports whether the decision is a like.
func (d Decision) Liked() bool { return d == Liked }

// DecisionFrom maps a like flag to a terminal decision.
func DecisionFrom(like bool) Decision {
	if like {
		return Liked
	}
	return Passed
}

// MatchSession is the confidential per-pair state. Slot A/B binding is fixed
// by InitSession and never swapped.
//
// Every field is fixed-size so the engine can encode it with encoding/binary.
type MatchSession struct {
	UserAID     uint64
	UserBID     uint64
	UserA       Decision
	UserB       Decision
	CreatedAt   uint64
	LastUpdated uint64
}

// UserLikeAction is a single sealed like/pass submitted by one participant.
type UserLikeAction struct {
	UserID     uint64
	TargetID   uint64
	LikeAction bool
	Timestamp  uint64
}
