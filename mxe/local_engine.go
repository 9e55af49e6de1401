package mxe

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"encrypted_match/circuits"

	"golang.org/x/sync/errgroup"
)

const (
	defaultWorkers   = 4
	defaultQueueSize = 256
)

// EngineConfig configures a LocalEngine.
type EngineConfig struct {
	// Secret is the 32-byte MXE key session state is sealed under.
	Secret []byte
	// Keys is the engine's X25519 key pair for the shared context. A fresh
	// pair is generated when nil.
	Keys      *KeyPair
	Workers   int
	QueueSize int
	// Abort, when set, is consulted before every computation; returning true
	// aborts it. Used to simulate cluster failures.
	Abort func(Request) bool
}

type task struct {
	req Request
	cb  Callback
}

// LocalEngine runs computations in-process on a bounded worker pool.
type LocalEngine struct {
	mxe   *Cipher
	keys  KeyPair
	abort func(Request) bool

	workers int
	tasks   chan task

	mu      sync.RWMutex
	closed  bool
	closing chan struct{}
	started bool
	group   *errgroup.Group
}

func NewLocalEngine(cfg EngineConfig) (*LocalEngine, error) {
	c, err := NewCipher(cfg.Secret)
	if err != nil {
		return nil, err
	}

	var keys KeyPair
	if cfg.Keys != nil {
		keys = *cfg.Keys
	} else if keys, err = GenerateKeyPair(); err != nil {
		return nil, err
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	return &LocalEngine{
		mxe:     c,
		keys:    keys,
		abort:   cfg.Abort,
		workers: workers,
		tasks:   make(chan task, queueSize),
		closing: make(chan struct{}),
	}, nil
}

// Start launches the worker pool. When ctx is done the engine closes itself:
// Submit fails with ErrEngineClosed and computations still queued are called
// back as aborted.
func (e *LocalEngine) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started || e.closed {
		return
	}
	e.started = true

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < e.workers; i++ {
		g.Go(func() error { return e.work(gctx) })
	}
	g.Go(func() error {
		select {
		case <-gctx.Done():
			log.Println("🔐 Confidential engine context done, aborting queued computations")
			e.shutdown()
		case <-e.closing:
		}
		return nil
	})
	e.group = g
	log.Printf("🔐 Confidential engine started with %d workers", e.workers)
}

// shutdown stops accepting work. It reports false if already closed.
func (e *LocalEngine) shutdown() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}
	e.closed = true
	close(e.tasks)
	close(e.closing)
	return true
}

// Close stops accepting work and waits for queued computations to finish.
// Every computation accepted by Submit is called back before Close returns.
func (e *LocalEngine) Close() error {
	e.shutdown()

	e.mu.RLock()
	g := e.group
	e.mu.RUnlock()

	if g == nil {
		// never started: nothing will run what is queued
		for t := range e.tasks {
			t.cb(context.Background(), AbortedOutcome(t.req, "confidential engine closed"))
		}
		return nil
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (e *LocalEngine) PublicKey() [32]byte { return e.keys.Public }

func (e *LocalEngine) Submit(ctx context.Context, req Request, cb Callback) error {
	if err := validateRequest(req, cb); err != nil {
		return err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return ErrEngineClosed
	}

	select {
	case e.tasks <- task{req: req, cb: cb}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *LocalEngine) work(ctx context.Context) error {
	for t := range e.tasks {
		if ctx.Err() != nil {
			t.cb(context.WithoutCancel(ctx), AbortedOutcome(t.req, "confidential engine stopped"))
			continue
		}
		t.cb(ctx, e.execute(t.req))
	}
	return nil
}

func (e *LocalEngine) execute(req Request) Outcome {
	if e.abort != nil && e.abort(req) {
		return AbortedOutcome(req, "computation aborted by cluster")
	}

	out, err := e.run(req)
	if err != nil {
		log.Printf("⚠️ Computation %s (%s) aborted: %v", req.ComputationID, req.Opcode, err)
		return AbortedOutcome(req, err.Error())
	}
	return Outcome{
		ComputationID: req.ComputationID,
		SessionKey:    req.SessionKey,
		Opcode:        req.Opcode,
		Output:        out,
	}
}

func (e *LocalEngine) run(req Request) (*Output, error) {
	switch req.Opcode {
	case OpInitSession:
		if req.Init == nil {
			return nil, errors.New("missing init arguments")
		}
		session := circuits.InitSession(req.Init.UserAID, req.Init.UserBID, req.Now)
		sealed, err := e.sealSession(req.SessionKey, session)
		if err != nil {
			return nil, err
		}
		return &Output{Session: sealed}, nil

	case OpSubmitLike:
		session, err := e.openSession(req)
		if err != nil {
			return nil, err
		}
		if req.Action == nil {
			return nil, errors.New("missing like action")
		}
		action, err := OpenShared(e.keys, *req.Action, ActionAAD(req.SessionKey, req.SubmitterID))
		if err != nil {
			return nil, fmt.Errorf("like action: %w", err)
		}
		next, status := session, circuits.LikeNoOp
		if action.UserID == req.SubmitterID {
			next, status = circuits.SubmitLike(session, action)
		}
		sealed, err := e.sealSession(req.SessionKey, next)
		if err != nil {
			return nil, err
		}
		return &Output{Session: sealed, LikeStatus: status}, nil

	case OpCheckMatch:
		session, err := e.openSession(req)
		if err != nil {
			return nil, err
		}
		result := circuits.CheckMutualMatch(session, req.Now)
		return &Output{Match: &result}, nil

	default:
		return nil, ErrUnknownOpcode
	}
}

func (e *LocalEngine) openSession(req Request) (circuits.MatchSession, error) {
	if req.Session == nil {
		return circuits.MatchSession{}, errors.New("missing session state")
	}
	session, err := Open(e.mxe, *req.Session, SessionAAD(req.SessionKey))
	if err != nil {
		return session, fmt.Errorf("session state: %w", err)
	}
	return session, nil
}

func (e *LocalEngine) sealSession(sessionKey string, session circuits.MatchSession) (*SealedSession, error) {
	sealed, err := Seal(e.mxe, session, SessionAAD(sessionKey))
	if err != nil {
		return nil, err
	}
	return &sealed, nil
}
