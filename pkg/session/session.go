// Package session keeps one editor controller per client.
//
// Every browser tab or WebSocket client that talks to "dagview serve" owns a
// [Session]: a [facade.Controller] with its own engine, document, selection
// and layout. Sessions live only in memory. The [Registry] bounds how many
// exist at once (least recently used sessions are evicted first) and drops
// sessions that have been idle longer than the configured TTL.
//
// # Usage
//
//	reg, err := session.NewRegistry(session.Options{
//	    Capacity: 64,
//	    TTL:      time.Hour,
//	    Facade:   cfg.FacadeOptions(),
//	})
//	sess, err := reg.Create(ctx)
//	...
//	sess, err = reg.Get(ctx, id) // refreshes the idle timer
package session

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/matzehuels/dagview/pkg/engine"
	gvengine "github.com/matzehuels/dagview/pkg/engine/graphviz"
	"github.com/matzehuels/dagview/pkg/errors"
	"github.com/matzehuels/dagview/pkg/facade"
	"github.com/matzehuels/dagview/pkg/observability"
)

// Defaults.
const (
	DefaultCapacity = 64
	DefaultTTL      = time.Hour
)

// Session is one client's editor state.
type Session struct {
	ID         string
	Controller *facade.Controller
	CreatedAt  time.Time

	mu       sync.Mutex
	lastSeen time.Time
	deleted  bool
}

// LastSeen returns when the session was last looked up.
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) expired(now time.Time, ttl time.Duration) bool {
	if ttl <= 0 {
		return false
	}
	return now.Sub(s.LastSeen()) > ttl
}

// Options configures a Registry.
type Options struct {
	// Capacity is the maximum number of live sessions. Defaults to
	// DefaultCapacity.
	Capacity int

	// TTL is the idle time after which a session is dropped. Zero uses
	// DefaultTTL; a negative value disables expiry.
	TTL time.Duration

	// NewEngine creates the engine for each session. Defaults to the
	// Graphviz engine.
	NewEngine func() engine.Engine

	// Facade is the template for each session's controller options.
	Facade facade.Options

	Logger *log.Logger
}

// Registry is a bounded, concurrency-safe set of sessions.
type Registry struct {
	mu        sync.Mutex
	cache     *lru.Cache[string, *Session]
	ttl       time.Duration
	newEngine func() engine.Engine
	facade    facade.Options
	logger    *log.Logger

	now func() time.Time
}

// NewRegistry creates a registry.
func NewRegistry(opts Options) (*Registry, error) {
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.TTL == 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if opts.NewEngine == nil {
		logger := opts.Logger
		opts.NewEngine = func() engine.Engine { return gvengine.New(gvengine.Options{Logger: logger}) }
	}

	r := &Registry{
		ttl:       opts.TTL,
		newEngine: opts.NewEngine,
		facade:    opts.Facade,
		logger:    opts.Logger,
		now:       time.Now,
	}
	cache, err := lru.NewWithEvict(opts.Capacity, r.onEvict)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "create session cache")
	}
	r.cache = cache
	return r, nil
}

func (r *Registry) onEvict(id string, s *Session) {
	s.mu.Lock()
	evicted := !s.deleted
	s.mu.Unlock()
	if evicted {
		r.logger.Info("session evicted", "session", id)
	}
	observability.Session().OnSessionClosed(context.Background(), id, evicted)
}

// Create starts a new session with a fresh engine and controller.
func (r *Registry) Create(ctx context.Context) (*Session, error) {
	now := r.now()
	s := &Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		lastSeen:  now,
	}
	opts := r.facade
	opts.Logger = r.logger.With("session", s.ID[:8])
	s.Controller = facade.New(r.newEngine(), opts)

	r.mu.Lock()
	r.cache.Add(s.ID, s)
	r.mu.Unlock()

	r.logger.Info("session created", "session", s.ID)
	observability.Session().OnSessionCreated(ctx, s.ID)
	return s, nil
}

// Get returns a live session and refreshes its idle timer. Unknown and
// expired sessions return a SESSION_NOT_FOUND error.
func (r *Registry) Get(ctx context.Context, id string) (*Session, error) {
	r.mu.Lock()
	s, ok := r.cache.Get(id)
	if ok && s.expired(r.now(), r.ttl) {
		r.cache.Remove(id)
		ok = false
	}
	r.mu.Unlock()

	if !ok {
		return nil, errors.New(errors.ErrCodeSessionNotFound, "session %q not found", id)
	}
	s.touch(r.now())
	return s, nil
}

// Delete closes a session. It reports whether the session existed.
func (r *Registry) Delete(ctx context.Context, id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.cache.Peek(id)
	if !ok {
		return false
	}
	s.mu.Lock()
	s.deleted = true
	s.mu.Unlock()
	r.cache.Remove(id)
	r.logger.Info("session closed", "session", id)
	return true
}

// Sweep drops every expired session and returns how many were removed.
func (r *Registry) Sweep(ctx context.Context) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	removed := 0
	for _, s := range r.cache.Values() {
		if s.expired(now, r.ttl) {
			r.cache.Remove(s.ID)
			removed++
		}
	}
	if removed > 0 {
		r.logger.Debug("expired sessions swept", "count", removed)
	}
	return removed
}

// Run sweeps expired sessions every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if r.ttl <= 0 {
		return
	}
	if interval <= 0 {
		interval = r.ttl / 2
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Len returns the number of live sessions, expired ones included until the
// next Get or Sweep.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cache.Len()
}

// IDs returns session ids from oldest to most recently used.
func (r *Registry) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cache.Keys()
}
