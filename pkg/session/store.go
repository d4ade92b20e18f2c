// Package session keeps one executor per client session and expires idle ones.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/entrhq/pilot/pkg/agent"
	"github.com/entrhq/pilot/pkg/logging"
	cronlib "github.com/robfig/cron/v3"
	"github.com/sourcegraph/conc/pool"
)

const (
	// DefaultIdleTTL is how long a session may sit unused before Expire removes it.
	DefaultIdleTTL = 30 * time.Minute

	// DefaultSweepSpec is the janitor schedule used when none is given.
	DefaultSweepSpec = "@every 1m"

	teardownConcurrency = 8
)

var (
	ErrNotFound = errors.New("session not found")
	ErrExists   = errors.New("session already exists")
	ErrClosed   = errors.New("session store is closed")
)

var debugLog *logging.Logger

func init() {
	var err error
	debugLog, err = logging.NewLogger("session")
	if err != nil {
		// Logger fell back to stderr due to initialization failure
		debugLog.Warnf("Failed to initialize session logger, using stderr fallback: %v", err)
	}
}

// Factory builds the executor for a new session.
type Factory func(ctx context.Context, id string) (*agent.Executor, error)

// Session is one client's executor together with its usage times.
type Session struct {
	ID        string
	Executor  *agent.Executor
	CreatedAt time.Time

	mu       sync.Mutex
	lastUsed time.Time
}

// LastUsed returns when the session was last fetched or run.
func (s *Session) LastUsed() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastUsed = now
	s.mu.Unlock()
}

// creation tracks a factory call in flight so concurrent requests for the
// same id share its result.
type creation struct {
	done    chan struct{}
	session *Session
	err     error
}

// Store is the registry of live sessions.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	pending  map[string]*creation
	closed   bool

	factory Factory
	idleTTL time.Duration
	now     func() time.Time
	janitor *cronlib.Cron
}

// Option configures a Store.
type Option func(*Store)

// WithIdleTTL sets the idle time after which Expire removes a session.
func WithIdleTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.idleTTL = ttl
		}
	}
}

// WithClock replaces time.Now for usage timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore creates an empty store that builds executors with factory.
func NewStore(factory Factory, opts ...Option) *Store {
	s := &Store{
		sessions: make(map[string]*Session),
		pending:  make(map[string]*creation),
		factory:  factory,
		idleTTL:  DefaultIdleTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IdleTTL returns the configured idle expiry.
func (s *Store) IdleTTL() time.Duration {
	return s.idleTTL
}

// Create builds a new session. It fails with ErrExists when id is taken or
// being created.
func (s *Store) Create(ctx context.Context, id string) (*Session, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	if _, ok := s.sessions[id]; ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrExists, id)
	}
	if _, ok := s.pending[id]; ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrExists, id)
	}
	c := s.beginCreate(id)
	s.mu.Unlock()

	return s.build(ctx, id, c)
}

// Get returns the session for id and marks it used.
func (s *Store) Get(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	sess.touch(s.now())
	return sess, nil
}

// GetOrCreate returns the session for id, creating it if needed. Concurrent
// calls for the same id share a single factory call.
func (s *Store) GetOrCreate(ctx context.Context, id string) (*Session, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	if sess, ok := s.sessions[id]; ok {
		sess.touch(s.now())
		s.mu.Unlock()
		return sess, nil
	}
	if c, ok := s.pending[id]; ok {
		s.mu.Unlock()
		select {
		case <-c.done:
			return c.session, c.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	c := s.beginCreate(id)
	s.mu.Unlock()

	return s.build(ctx, id, c)
}

// beginCreate registers a pending creation. Callers hold s.mu.
func (s *Store) beginCreate(id string) *creation {
	c := &creation{done: make(chan struct{})}
	s.pending[id] = c
	return c
}

func (s *Store) build(ctx context.Context, id string, c *creation) (*Session, error) {
	defer close(c.done)

	var exec *agent.Executor
	var err error
	if s.factory == nil {
		err = errors.New("no session factory configured")
	} else {
		exec, err = s.factory(ctx, id)
		if err == nil && exec == nil {
			err = errors.New("factory returned no executor")
		}
	}

	s.mu.Lock()
	delete(s.pending, id)
	if err != nil {
		s.mu.Unlock()
		c.err = fmt.Errorf("failed to create session %s: %w", id, err)
		return nil, c.err
	}
	if s.closed {
		s.mu.Unlock()
		_ = exec.Close(ctx)
		c.err = ErrClosed
		return nil, c.err
	}

	now := s.now()
	sess := &Session{ID: id, Executor: exec, CreatedAt: now, lastUsed: now}
	s.sessions[id] = sess
	s.mu.Unlock()

	debugLog.Infof("Created session %s", id)
	c.session = sess
	return sess, nil
}

// Delete removes the session and tears it down.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	debugLog.Infof("Deleted session %s", id)
	return teardown(ctx, []*Session{sess})
}

// Expire removes every session idle for longer than the TTL at now. Sessions
// with a run in progress are kept. Returns how many were removed.
func (s *Store) Expire(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	var expired []*Session
	for id, sess := range s.sessions {
		if now.Sub(sess.LastUsed()) <= s.idleTTL || sess.Executor.IsRunning() {
			continue
		}
		expired = append(expired, sess)
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	if len(expired) == 0 {
		return 0, nil
	}
	debugLog.Infof("Expiring %d idle sessions", len(expired))
	return len(expired), teardown(ctx, expired)
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// IDs returns the ids of the live sessions.
func (s *Store) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	return ids
}

// StartJanitor schedules Expire on a cron spec such as "@every 1m".
// An empty spec uses DefaultSweepSpec.
func (s *Store) StartJanitor(spec string) error {
	if spec == "" {
		spec = DefaultSweepSpec
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.janitor != nil {
		return errors.New("janitor already running")
	}

	janitor := cronlib.New()
	if _, err := janitor.AddFunc(spec, s.sweep); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", spec, err)
	}
	janitor.Start()
	s.janitor = janitor

	debugLog.Infof("Session janitor scheduled %s, idle TTL %s", spec, s.idleTTL)
	return nil
}

func (s *Store) sweep() {
	n, err := s.Expire(context.Background(), s.now())
	if err != nil {
		debugLog.Warnf("Session sweep failed: %v", err)
		return
	}
	if n > 0 {
		debugLog.Infof("Session sweep removed %d sessions", n)
	}
}

// Close stops the janitor and tears down every session. The store rejects
// new sessions afterwards.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	janitor := s.janitor
	s.janitor = nil
	all := make([]*Session, 0, len(s.sessions))
	for id, sess := range s.sessions {
		all = append(all, sess)
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	if janitor != nil {
		select {
		case <-janitor.Stop().Done():
		case <-ctx.Done():
		}
	}

	return teardown(ctx, all)
}

// teardown closes sessions concurrently and joins their errors.
func teardown(ctx context.Context, sessions []*Session) error {
	p := pool.New().WithErrors().WithMaxGoroutines(teardownConcurrency)
	for _, sess := range sessions {
		sess := sess
		p.Go(func() error {
			if err := sess.Executor.Close(ctx); err != nil {
				return fmt.Errorf("session %s: %w", sess.ID, err)
			}
			return nil
		})
	}
	return p.Wait()
}
