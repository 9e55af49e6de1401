package services

import "errors"

var (
	ErrComputationAborted  = errors.New("confidential computation aborted")
	ErrUnauthorizedUser    = errors.New("user is not a participant of this session")
	ErrSessionNotFound     = errors.New("session not found")
	ErrSessionExists       = errors.New("session already exists")
	ErrSessionFinalized    = errors.New("session is finalized")
	ErrStaleSession        = errors.New("session was modified by another computation")
	ErrInvalidParticipants = errors.New("a session needs two distinct participants")
	ErrUnknownComputation  = errors.New("no pending computation with this id")
	ErrReceiptNotFound     = errors.New("session has no receipt yet")
)
