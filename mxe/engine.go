package mxe

import (
	"context"
	"errors"

	"encrypted_match/circuits"
)

var (
	ErrEngineClosed         = errors.New("confidential engine is closed")
	ErrUnknownOpcode        = errors.New("unknown computation opcode")
	ErrMissingComputationID = errors.New("computation id is required")
	ErrMissingCallback      = errors.New("computation callback is required")
)

// Opcode names the confidential instruction a computation runs.
type Opcode uint8

const (
	OpInitSession Opcode = iota + 1
	OpSubmitLike
	OpCheckMatch
)

func (o Opcode) String() string {
	switch o {
	case OpInitSession:
		return "init_session"
	case OpSubmitLike:
		return "submit_like"
	case OpCheckMatch:
		return "check_match"
	default:
		return "unknown"
	}
}

type (
	SealedSession = EncryptedValue[circuits.MatchSession]
	SealedAction  = SharedEnvelope[circuits.UserLikeAction]
)

// InitArgs are the plaintext inputs of OpInitSession. They are only readable
// by the engine's cluster; the session they produce is sealed.
type InitArgs struct {
	UserAID uint64
	UserBID uint64
}

// Request is a queued computation. Which inputs are set depends on Opcode:
//
//	OpInitSession: Init, Now
//	OpSubmitLike:  Session, Action, SubmitterID
//	OpCheckMatch:  Session, Now
type Request struct {
	ComputationID string
	Opcode        Opcode
	SessionKey    string
	Session       *SealedSession
	Init          *InitArgs
	Action        *SealedAction
	// SubmitterID is the participant id of the authenticated user submitting
	// Action. The engine only applies actions made by that user.
	SubmitterID uint64
	Now         uint64
}

// Output is the success payload. Session is the re-encrypted state for
// OpInitSession and OpSubmitLike; Match is only set for OpCheckMatch.
type Output struct {
	Session    *SealedSession
	LikeStatus circuits.LikeStatus
	Match      *circuits.MatchResult
}

// Outcome is the single result delivered for a Request: Output on success,
// nil Output when the computation was aborted.
type Outcome struct {
	ComputationID string
	SessionKey    string
	Opcode        Opcode
	Output        *Output
	AbortReason   string
}

func (o Outcome) Aborted() bool { return o.Output == nil }

// AbortedOutcome builds the abort outcome for req.
func AbortedOutcome(req Request, reason string) Outcome {
	return Outcome{
		ComputationID: req.ComputationID,
		SessionKey:    req.SessionKey,
		Opcode:        req.Opcode,
		AbortReason:   reason,
	}
}

// Callback receives the outcome of a submitted computation, out of band.
type Callback func(ctx context.Context, out Outcome)

// Engine is the confidential computation capability. Submit only queues the
// request; the outcome arrives later through cb, exactly once. There is no
// cancellation once Submit has returned nil.
type Engine interface {
	Submit(ctx context.Context, req Request, cb Callback) error
	PublicKey() [32]byte
}

func validateRequest(req Request, cb Callback) error {
	if req.ComputationID == "" {
		return ErrMissingComputationID
	}
	if cb == nil {
		return ErrMissingCallback
	}
	switch req.Opcode {
	case OpInitSession, OpSubmitLike, OpCheckMatch:
		return nil
	default:
		return ErrUnknownOpcode
	}
}
