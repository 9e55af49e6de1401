package models

// ✅ Externally visible session states
const (
	SessionStateCreated               = "created"
	SessionStateLikePending           = "like_pending"
	SessionStateMutualInterestPending = "mutual_interest_pending"
	SessionStateFinalized             = "finalized"
)

// ✅ Session events (also the socket.io event names)
const (
	EventSessionCreated = "session_created"
	EventLikeRecorded   = "like_recorded"
	EventMutualInterest = "mutual_interest"
	EventMatchConfirmed = "match_confirmed"
	EventNoMatch        = "no_match"
)

// ✅ Finalization policies for check results that are not a match
const (
	FinalizeWhenDecided = "when_decided" // finalize once the outcome can no longer change
	FinalizeAlways      = "always"       // finalize on every check
)
