package session

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/school"
)

var (
	ErrUnauthenticated = errors.New("not authenticated")
	ErrTokenExpired    = errors.New("session expired, please log in again")
)

const resolveTimeout = 30 * time.Second

// Resolver fetches the identity behind a token ("who am I").
type Resolver func(ctx context.Context, token string) (school.User, error)

// Store holds the current identity and bearer token.
// Every token change starts an asynchronous identity resolution; a failed one logs out.
type Store struct {
	tokens  TokenStore
	resolve Resolver
	logger  core.Logger
	now     func() time.Time

	mu    sync.RWMutex
	token string
	user  *school.User
	gen   uint64
	ready chan struct{} // closed once the current generation settles
	done  bool          // ready is closed
	err   error
}

func NewStore(tokens TokenStore, resolve Resolver, logger core.Logger) *Store {
	ready := make(chan struct{})
	close(ready)
	return &Store{
		tokens:  tokens,
		resolve: resolve,
		logger:  logger,
		now:     time.Now,
		ready:   ready,
		done:    true,
	}
}

// Open loads the token from durable storage and starts resolving its identity.
func (s *Store) Open(ctx context.Context) error {
	token, err := s.tokens.Load()
	if err != nil {
		return errors.Wrap(err, "loading token")
	}
	if token == "" {
		return nil
	}
	if TokenExpired(token, s.now()) {
		s.logout(ErrTokenExpired)
		return nil
	}

	s.mu.Lock()
	gen := s.change(token, nil)
	s.mu.Unlock()
	go s.resolveIdentity(ctx, gen, token)
	return nil
}

// Login persists the token, optimistically sets the user and re-resolves the identity.
func (s *Store) Login(ctx context.Context, token string, usr school.User) error {
	if TokenExpired(token, s.now()) {
		return ErrTokenExpired
	}
	if err := s.tokens.Save(token); err != nil {
		return errors.Wrap(err, "saving token")
	}

	s.mu.Lock()
	gen := s.change(token, &usr)
	s.mu.Unlock()
	go s.resolveIdentity(ctx, gen, token)
	return nil
}

// Logout clears both the token and the user.
func (s *Store) Logout() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logoutLocked(nil)
}

func (s *Store) logout(cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.logoutLocked(cause); err != nil && s.logger != nil {
		s.logger.Error("session: clearing token", err)
	}
}

func (s *Store) logoutLocked(cause error) error {
	s.change("", nil)
	s.err = cause
	s.settle()
	return errors.Wrap(s.tokens.Clear(), "clearing token")
}

// change swaps the token and opens a new generation. The previous generation
// is settled so its waiters wake up and follow the new one. Callers hold mu.
func (s *Store) change(token string, usr *school.User) uint64 {
	s.settle()
	s.done = false
	s.gen++
	s.token = token
	s.user = usr
	s.err = nil
	s.ready = make(chan struct{})
	return s.gen
}

func (s *Store) resolveIdentity(ctx context.Context, gen uint64, token string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), resolveTimeout)
	defer cancel()

	usr, err := s.resolve(ctx, token)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen { // superseded by a newer token
		return
	}
	if err == nil {
		s.user = &usr
		s.settle()
		return
	}

	if s.logger != nil {
		s.logger.Info("session: identity resolution failed, logging out", err)
	}
	if cErr := s.logoutLocked(err); cErr != nil && s.logger != nil {
		s.logger.Error("session: clearing token", cErr)
	}
}

// settle closes the current ready channel once. Callers hold mu.
func (s *Store) settle() {
	if !s.done {
		close(s.ready)
		s.done = true
	}
}

// Token is read by every API request.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Store) User() (school.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return school.User{}, false
	}
	return *s.user, true
}

func (s *Store) IsAuthenticated() bool {
	_, ok := s.User()
	return ok
}

// Ready is closed once the current token's identity is resolved (or the session ended).
func (s *Store) Ready() <-chan struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

// Err is the reason of the last forced logout, if any.
func (s *Store) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Wait blocks until the identity of the current token is resolved.
// A token change while waiting moves the wait to the new token.
func (s *Store) Wait(ctx context.Context) (school.User, error) {
	for {
		ready := s.Ready()
		select {
		case <-ready:
		case <-ctx.Done():
			return school.User{}, ctx.Err()
		}
		if s.Ready() == ready {
			break
		}
	}
	if usr, ok := s.User(); ok {
		return usr, nil
	}
	if err := s.Err(); err != nil {
		return school.User{}, errors.Wrap(ErrUnauthenticated, err.Error())
	}
	return school.User{}, ErrUnauthenticated
}
