package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"encrypted_match/circuits"
	"encrypted_match/models"
	"encrypted_match/mxe"

	"github.com/google/uuid"
)

// MatchSessionService drives sessions through the confidential engine. It
// never sees decisions: it forwards sealed state, applies revealed statuses
// and persists the re-encrypted state the engine returns.
//
// Work on one session key runs in a FIFO lane with at most one computation in
// flight, and every job reads the latest stored record before submitting.
// Sessions with different keys proceed in parallel.
type MatchSessionService struct {
	Store          SessionStore
	Engine         mxe.Engine
	Identity       *Identity
	Notifier       Notifier
	FinalizePolicy string
	Now            func() time.Time

	mu       sync.Mutex
	lanes    map[string]*lane
	inflight map[string]*pendingComputation
}

type CreateSessionResult struct {
	SessionKey string `json:"sessionKey"`
	SessionID  string `json:"sessionId"`
	Created    bool   `json:"created"`
}

type MatchOutcome struct {
	Status         circuits.MatchStatus `json:"-"`
	IsMutualMatch  bool                 `json:"isMutualMatch"`
	MatchTimestamp int64                `json:"matchTimestamp"`
	Finalized      bool                 `json:"finalized"`
}

// InFlightComputation describes a computation whose callback has not arrived.
type InFlightComputation struct {
	ComputationID string
	SessionKey    string
	Opcode        mxe.Opcode
	SubmittedAt   time.Time
}

type pendingComputation struct {
	InFlightComputation
	done chan mxe.Outcome
}

type job struct {
	ctx   context.Context
	run   func(ctx context.Context) (any, error)
	reply chan jobResult
}

type jobResult struct {
	value any
	err   error
}

type lane struct {
	jobs []*job
}

func (s *MatchSessionService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// CreateSession opens the session of the pair {userA, userB}. Creating an
// existing pair returns the existing session with Created=false.
func (s *MatchSessionService) CreateSession(ctx context.Context, userA, userB string) (CreateSessionResult, error) {
	if userA == "" || userB == "" || userA == userB {
		return CreateSessionResult{}, ErrInvalidParticipants
	}
	key := s.Identity.SessionKey(userA, userB)

	if res, err := s.existingSession(ctx, key); err == nil || !errors.Is(err, ErrSessionNotFound) {
		return res, err
	}

	return runInLane(ctx, s, key, func(ctx context.Context) (CreateSessionResult, error) {
		if res, err := s.existingSession(ctx, key); err == nil || !errors.Is(err, ErrSessionNotFound) {
			return res, err
		}

		now := s.now()
		out, err := s.compute(ctx, mxe.Request{
			Opcode:     mxe.OpInitSession,
			SessionKey: key,
			Init: &mxe.InitArgs{
				UserAID: mxe.ParticipantID(userA),
				UserBID: mxe.ParticipantID(userB),
			},
			Now: uint64(now.Unix()),
		})
		if err != nil {
			return CreateSessionResult{}, err
		}

		rec := &models.MatchSessionRecord{
			SessionKey:      key,
			SessionID:       uuid.NewString(),
			ParticipantTags: []string{s.Identity.ParticipantTag(userA), s.Identity.ParticipantTag(userB)},
			EncryptedState:  out.Session.Ciphertext,
			Nonce:           out.Session.Nonce,
			State:           models.SessionStateCreated,
			CreatedAt:       now.Unix(),
			LastUpdated:     now.Unix(),
		}

		pctx := context.WithoutCancel(ctx)
		if err := s.Store.Create(pctx, rec); err != nil {
			if errors.Is(err, ErrSessionExists) {
				return s.existingSession(pctx, key)
			}
			return CreateSessionResult{}, err
		}
		log.Printf("✅ Session %s created", key)
		s.notify(pctx, rec, models.EventSessionCreated)
		return CreateSessionResult{SessionKey: key, SessionID: rec.SessionID, Created: true}, nil
	})
}

func (s *MatchSessionService) existingSession(ctx context.Context, key string) (CreateSessionResult, error) {
	rec, err := s.Store.Load(ctx, key)
	if err != nil {
		return CreateSessionResult{}, err
	}
	return CreateSessionResult{SessionKey: key, SessionID: rec.SessionID}, nil
}

// SubmitLike seals the decision of userID about targetID for the engine and
// submits it. See SubmitSealedLike.
func (s *MatchSessionService) SubmitLike(ctx context.Context, key, userID, targetID string, like bool) (circuits.LikeStatus, error) {
	if _, err := s.participantRecord(ctx, key, userID); err != nil {
		return circuits.LikeNoOp, err
	}

	action := circuits.UserLikeAction{
		UserID:     mxe.ParticipantID(userID),
		TargetID:   mxe.ParticipantID(targetID),
		LikeAction: like,
		Timestamp:  uint64(s.now().Unix()),
	}
	env, err := mxe.SealShared(s.Engine.PublicKey(), action, mxe.ActionAAD(key, action.UserID))
	if err != nil {
		return circuits.LikeNoOp, fmt.Errorf("failed to seal like action: %w", err)
	}
	return s.SubmitSealedLike(ctx, key, userID, env)
}

// SubmitSealedLike submits an action that userID sealed to the engine key
// with mxe.ActionAAD(key, mxe.ParticipantID(userID)). The engine ignores an
// action whose UserID is not the submitter's. Only LikeRecorded and
// LikeMutualInterest change the stored session; a LikeNoOp leaves it
// untouched and emits nothing.
func (s *MatchSessionService) SubmitSealedLike(ctx context.Context, key, userID string, env mxe.SealedAction) (circuits.LikeStatus, error) {
	if _, err := s.participantRecord(ctx, key, userID); err != nil {
		return circuits.LikeNoOp, err
	}

	return runInLane(ctx, s, key, func(ctx context.Context) (circuits.LikeStatus, error) {
		rec, err := s.Store.Load(ctx, key)
		if err != nil {
			return circuits.LikeNoOp, err
		}
		if rec.IsFinalized {
			return circuits.LikeNoOp, ErrSessionFinalized
		}

		out, err := s.compute(ctx, mxe.Request{
			Opcode:      mxe.OpSubmitLike,
			SessionKey:  key,
			Session:     sealedState(rec),
			Action:      &env,
			SubmitterID: mxe.ParticipantID(userID),
		})
		if err != nil {
			return circuits.LikeNoOp, err
		}

		status := out.LikeStatus
		if status == circuits.LikeNoOp {
			log.Printf("↩️ Like on session %s was a no-op", key)
			return status, nil
		}

		next := rec.Clone()
		next.EncryptedState = out.Session.Ciphertext
		next.Nonce = out.Session.Nonce
		next.LikesRecorded++
		next.LastUpdated = s.now().Unix()
		event := models.EventLikeRecorded
		next.State = models.SessionStateLikePending
		if status == circuits.LikeMutualInterest {
			event = models.EventMutualInterest
			next.State = models.SessionStateMutualInterestPending
		}

		pctx := context.WithoutCancel(ctx)
		if err := s.Store.Store(pctx, next, rec.Nonce); err != nil {
			return circuits.LikeNoOp, err
		}
		s.notify(pctx, next, event)
		return status, nil
	})
}

// CheckMatch reveals whether the session is a mutual match. A finalized
// session returns its stored result without running a computation.
func (s *MatchSessionService) CheckMatch(ctx context.Context, key string) (MatchOutcome, error) {
	rec, err := s.Store.Load(ctx, key)
	if err != nil {
		return MatchOutcome{}, err
	}
	if rec.IsFinalized {
		return finalizedOutcome(rec), nil
	}

	return runInLane(ctx, s, key, func(ctx context.Context) (MatchOutcome, error) {
		rec, err := s.Store.Load(ctx, key)
		if err != nil {
			return MatchOutcome{}, err
		}
		if rec.IsFinalized {
			return finalizedOutcome(rec), nil
		}

		now := s.now()
		out, err := s.compute(ctx, mxe.Request{
			Opcode:     mxe.OpCheckMatch,
			SessionKey: key,
			Session:    sealedState(rec),
			Now:        uint64(now.Unix()),
		})
		if err != nil {
			return MatchOutcome{}, err
		}

		result := *out.Match
		outcome := MatchOutcome{
			Status:         result.Status,
			IsMutualMatch:  result.IsMutualMatch,
			MatchTimestamp: int64(result.MatchTimestamp),
		}
		if !s.shouldFinalize(rec, result) {
			return outcome, nil
		}

		next := rec.Clone()
		next.State = models.SessionStateFinalized
		next.IsFinalized = true
		next.MatchFound = result.IsMutualMatch
		next.MatchStatus = result.Status.String()
		next.MatchTimestamp = int64(result.MatchTimestamp)
		next.FinalizedAt = now.Unix()
		next.LastUpdated = now.Unix()

		pctx := context.WithoutCancel(ctx)
		if err := s.Store.Store(pctx, next, rec.Nonce); err != nil {
			return MatchOutcome{}, err
		}
		event := models.EventNoMatch
		if next.MatchFound {
			event = models.EventMatchConfirmed
			log.Printf("💘 Session %s finalized with a mutual match", key)
		} else {
			log.Printf("🔒 Session %s finalized without a match", key)
		}
		s.notify(pctx, next, event)

		outcome.Finalized = true
		return outcome, nil
	})
}

// shouldFinalize decides whether a revealed check result closes the session.
// A match always does. Otherwise FinalizeAlways closes on every check and
// FinalizeWhenDecided waits until both sides have acted, since only then can
// the result no longer change.
func (s *MatchSessionService) shouldFinalize(rec *models.MatchSessionRecord, result circuits.MatchResult) bool {
	if result.IsMutualMatch {
		return true
	}
	if s.FinalizePolicy == models.FinalizeAlways {
		return true
	}
	return rec.LikesRecorded >= 2
}

func finalizedOutcome(rec *models.MatchSessionRecord) MatchOutcome {
	status, ok := circuits.ParseMatchStatus(rec.MatchStatus)
	if !ok {
		status = circuits.MatchNoAction
		if rec.MatchFound {
			status = circuits.MatchConfirmed
		}
	}
	return MatchOutcome{
		Status:         status,
		IsMutualMatch:  rec.MatchFound,
		MatchTimestamp: rec.MatchTimestamp,
		Finalized:      true,
	}
}

// GetSession returns the stored record of a session.
func (s *MatchSessionService) GetSession(ctx context.Context, key string) (*models.MatchSessionRecord, error) {
	return s.Store.Load(ctx, key)
}

// Authorize fails with ErrUnauthorizedUser unless userID is one of the two
// participants of the session.
func (s *MatchSessionService) Authorize(ctx context.Context, key, userID string) error {
	_, err := s.authorizedRecord(ctx, key, userID)
	return err
}

func (s *MatchSessionService) authorizedRecord(ctx context.Context, key, userID string) (*models.MatchSessionRecord, error) {
	rec, err := s.Store.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	if userID == "" || !rec.HasParticipant(s.Identity.ParticipantTag(userID)) {
		log.Printf("⛔ Rejected action on session %s by a non-participant", key)
		return nil, ErrUnauthorizedUser
	}
	return rec, nil
}

// participantRecord is authorizedRecord plus the finalized check done
// before any like is queued.
func (s *MatchSessionService) participantRecord(ctx context.Context, key, userID string) (*models.MatchSessionRecord, error) {
	rec, err := s.authorizedRecord(ctx, key, userID)
	if err != nil {
		return nil, err
	}
	if rec.IsFinalized {
		return nil, ErrSessionFinalized
	}
	return rec, nil
}

func sealedState(rec *models.MatchSessionRecord) *mxe.SealedSession {
	return &mxe.SealedSession{Ciphertext: rec.EncryptedState, Nonce: rec.Nonce}
}

func (s *MatchSessionService) notify(ctx context.Context, rec *models.MatchSessionRecord, eventType string) {
	if s.Notifier == nil {
		return
	}
	ev := models.SessionEvent{
		Type:           eventType,
		SessionKey:     rec.SessionKey,
		SessionID:      rec.SessionID,
		State:          rec.State,
		MatchTimestamp: rec.MatchTimestamp,
		At:             s.now(),
	}
	if err := s.Notifier.Notify(ctx, ev); err != nil {
		log.Printf("⚠️ Failed to deliver %s for session %s: %v", eventType, rec.SessionKey, err)
	}
}

// compute submits req under a fresh computation id and waits for its outcome.
// Aborted or malformed outcomes return ErrComputationAborted.
func (s *MatchSessionService) compute(ctx context.Context, req mxe.Request) (*mxe.Output, error) {
	req.ComputationID = uuid.NewString()
	done := make(chan mxe.Outcome, 1)
	s.track(req, done)

	err := s.Engine.Submit(ctx, req, func(ctx context.Context, out mxe.Outcome) {
		_ = s.HandleOutcome(ctx, out)
	})
	if err != nil {
		s.untrack(req.ComputationID)
		return nil, fmt.Errorf("failed to queue %s computation: %w", req.Opcode, err)
	}

	out := <-done
	if out.Aborted() {
		log.Printf("⚠️ %s computation %s on session %s aborted: %s", req.Opcode, req.ComputationID, req.SessionKey, out.AbortReason)
		return nil, fmt.Errorf("%w: %s", ErrComputationAborted, out.AbortReason)
	}
	if err := validateOutput(req.Opcode, out.Output); err != nil {
		log.Printf("⚠️ %s computation %s returned an unusable result: %v", req.Opcode, req.ComputationID, err)
		return nil, fmt.Errorf("%w: %v", ErrComputationAborted, err)
	}
	return out.Output, nil
}

func validateOutput(op mxe.Opcode, out *mxe.Output) error {
	switch op {
	case mxe.OpInitSession, mxe.OpSubmitLike:
		if out.Session == nil {
			return errors.New("missing session state")
		}
		if out.LikeStatus > circuits.LikeMutualInterest {
			return fmt.Errorf("unknown like status %d", out.LikeStatus)
		}
	case mxe.OpCheckMatch:
		if out.Match == nil {
			return errors.New("missing match result")
		}
		if out.Match.Status > circuits.MatchNoAction {
			return fmt.Errorf("unknown match status %d", out.Match.Status)
		}
	}
	return nil
}

func (s *MatchSessionService) track(req mxe.Request, done chan mxe.Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight == nil {
		s.inflight = make(map[string]*pendingComputation)
	}
	s.inflight[req.ComputationID] = &pendingComputation{
		InFlightComputation: InFlightComputation{
			ComputationID: req.ComputationID,
			SessionKey:    req.SessionKey,
			Opcode:        req.Opcode,
			SubmittedAt:   s.now(),
		},
		done: done,
	}
}

func (s *MatchSessionService) untrack(id string) *pendingComputation {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.inflight[id]
	if !ok {
		return nil
	}
	delete(s.inflight, id)
	return p
}

// HandleOutcome is the engine callback. It resolves the computation by id;
// an outcome for an unknown id is dropped, and one that names a different
// session or opcode than was queued is treated as an abort.
func (s *MatchSessionService) HandleOutcome(_ context.Context, out mxe.Outcome) error {
	p := s.untrack(out.ComputationID)
	if p == nil {
		log.Printf("⚠️ Dropping outcome of unknown computation %s", out.ComputationID)
		return ErrUnknownComputation
	}
	if out.SessionKey != p.SessionKey || out.Opcode != p.Opcode {
		log.Printf("❌ Outcome of computation %s does not match its request, ignoring it", out.ComputationID)
		out = mxe.Outcome{
			ComputationID: p.ComputationID,
			SessionKey:    p.SessionKey,
			Opcode:        p.Opcode,
			AbortReason:   "outcome does not match the queued computation",
		}
	}
	p.done <- out
	return nil
}

// InFlight lists computations still waiting for a callback, oldest first.
func (s *MatchSessionService) InFlight() []InFlightComputation {
	s.mu.Lock()
	list := make([]InFlightComputation, 0, len(s.inflight))
	for _, p := range s.inflight {
		list = append(list, p.InFlightComputation)
	}
	s.mu.Unlock()

	sort.Slice(list, func(i, j int) bool { return list[i].SubmittedAt.Before(list[j].SubmittedAt) })
	return list
}

// runInLane queues fn on the lane of key and waits for its result. The
// caller's context only bounds the wait: once fn has started it runs to
// completion.
func runInLane[T any](ctx context.Context, s *MatchSessionService, key string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	j := &job{
		ctx: ctx,
		run: func(ctx context.Context) (any, error) {
			v, err := fn(ctx)
			return v, err
		},
		reply: make(chan jobResult, 1),
	}
	s.enqueue(key, j)

	select {
	case res := <-j.reply:
		if res.err != nil {
			return zero, res.err
		}
		return res.value.(T), nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (s *MatchSessionService) enqueue(key string, j *job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lanes == nil {
		s.lanes = make(map[string]*lane)
	}
	l, ok := s.lanes[key]
	if !ok {
		l = &lane{}
		s.lanes[key] = l
		go s.drain(key, l)
	}
	l.jobs = append(l.jobs, j)
}

func (s *MatchSessionService) drain(key string, l *lane) {
	for {
		s.mu.Lock()
		if len(l.jobs) == 0 {
			delete(s.lanes, key)
			s.mu.Unlock()
			return
		}
		j := l.jobs[0]
		l.jobs[0] = nil
		l.jobs = l.jobs[1:]
		s.mu.Unlock()

		if err := j.ctx.Err(); err != nil {
			j.reply <- jobResult{err: err}
			continue
		}
		v, err := j.run(j.ctx)
		j.reply <- jobResult{value: v, err: err}
	}
}
