package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-portal/core/school"
)

var (
	jane = school.User{ID: "u-jane", Email: "jane@x.com", Name: "Jane", Role: school.RoleStudent}
	tom  = school.User{ID: "u-tom", Email: "tom@x.com", Name: "Tom", Role: school.RoleTeacher}
)

func signedToken(t *testing.T, sub string, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.StandardClaims{Subject: sub, ExpiresAt: exp.Unix()})
	ss, err := token.SignedString([]byte("secret"))
	require.NoError(t, err)
	return ss
}

// mapResolver resolves tokens from a fixed table; unknown tokens are rejected.
func mapResolver(users map[string]school.User) Resolver {
	return func(_ context.Context, token string) (school.User, error) {
		if usr, ok := users[token]; ok {
			return usr, nil
		}
		return school.User{}, errors.New("401 unauthorized")
	}
}

func waitCtx(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestStore_OpenResolvesIdentity(t *testing.T) {
	tokens := &MemoryTokenStore{token: "tok-jane"}
	s := NewStore(tokens, mapResolver(map[string]school.User{"tok-jane": jane}), nil)

	require.NoError(t, s.Open(context.Background()))
	assert.Equal(t, "tok-jane", s.Token())

	usr, err := s.Wait(waitCtx(t))
	require.NoError(t, err)
	assert.Equal(t, jane, usr)
	assert.True(t, s.IsAuthenticated())
}

func TestStore_OpenWithoutToken(t *testing.T) {
	s := NewStore(&MemoryTokenStore{}, mapResolver(nil), nil)
	require.NoError(t, s.Open(context.Background()))

	_, err := s.Wait(waitCtx(t))
	assert.True(t, errors.Is(err, ErrUnauthenticated))
	assert.False(t, s.IsAuthenticated())
}

func TestStore_FailedResolutionLogsOut(t *testing.T) {
	tokens := &MemoryTokenStore{token: "revoked"}
	s := NewStore(tokens, mapResolver(nil), nil)

	require.NoError(t, s.Open(context.Background()))
	_, err := s.Wait(waitCtx(t))
	assert.True(t, errors.Is(err, ErrUnauthenticated))
	assert.Empty(t, s.Token())
	assert.Empty(t, tokens.token, "durable token is cleared")
	assert.EqualError(t, s.Err(), "401 unauthorized")
}

func TestStore_WaitWakesOnFailedResolution(t *testing.T) {
	tokens := &MemoryTokenStore{token: "revoked"}
	resolve := func(context.Context, string) (school.User, error) {
		time.Sleep(50 * time.Millisecond)
		return school.User{}, errors.New("401 unauthorized")
	}
	s := NewStore(tokens, resolve, nil)
	require.NoError(t, s.Open(context.Background()))

	// waiting starts while /me is still in flight
	_, err := s.Wait(waitCtx(t))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnauthenticated), "got %v", err)
	assert.EqualError(t, s.Err(), "401 unauthorized")
	assert.Empty(t, s.Token())
	assert.Empty(t, tokens.token)
}

func TestStore_WaitFollowsNewToken(t *testing.T) {
	release := make(chan struct{})
	resolve := func(_ context.Context, token string) (school.User, error) {
		if token == "tok-jane" {
			<-release
			return jane, nil
		}
		time.Sleep(20 * time.Millisecond)
		return tom, nil
	}
	s := NewStore(&MemoryTokenStore{}, resolve, nil)
	require.NoError(t, s.Login(context.Background(), "tok-jane", jane))

	type result struct {
		usr school.User
		err error
	}
	waited := make(chan result, 1)
	ctx := waitCtx(t)
	go func() {
		usr, err := s.Wait(ctx)
		waited <- result{usr, err}
	}()
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, s.Login(context.Background(), "tok-tom", tom))

	select {
	case res := <-waited:
		require.NoError(t, res.err)
		assert.Equal(t, tom, res.usr)
	case <-time.After(time.Second):
		t.Fatal("Wait() did not return after the token changed")
	}
	close(release)
}

func TestStore_ExpiredToken(t *testing.T) {
	expired := signedToken(t, jane.ID, time.Now().Add(-time.Hour))
	called := false
	resolve := func(context.Context, string) (school.User, error) {
		called = true
		return jane, nil
	}

	t.Run("open", func(t *testing.T) {
		tokens := &MemoryTokenStore{token: expired}
		s := NewStore(tokens, resolve, nil)
		require.NoError(t, s.Open(context.Background()))

		_, err := s.Wait(waitCtx(t))
		assert.True(t, errors.Is(err, ErrUnauthenticated))
		assert.Equal(t, ErrTokenExpired, s.Err())
		assert.Empty(t, tokens.token)
	})

	t.Run("login", func(t *testing.T) {
		tokens := &MemoryTokenStore{}
		s := NewStore(tokens, resolve, nil)
		assert.Equal(t, ErrTokenExpired, s.Login(context.Background(), expired, jane))
		assert.Empty(t, tokens.token)
	})

	assert.False(t, called, "no round trip for an expired token")
}

func TestStore_LoginIsOptimistic(t *testing.T) {
	tokens := &MemoryTokenStore{}
	release := make(chan struct{})
	resolve := func(context.Context, string) (school.User, error) {
		<-release
		renamed := jane
		renamed.Name = "Jane Doe"
		return renamed, nil
	}
	s := NewStore(tokens, resolve, nil)

	valid := signedToken(t, jane.ID, time.Now().Add(time.Hour))
	require.NoError(t, s.Login(context.Background(), valid, jane))
	assert.Equal(t, valid, tokens.token)

	usr, ok := s.User()
	require.True(t, ok, "user set before identity resolution")
	assert.Equal(t, "Jane", usr.Name)

	close(release)
	usr, err := s.Wait(waitCtx(t))
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", usr.Name)
}

func TestStore_StaleResolutionDiscarded(t *testing.T) {
	slow := make(chan struct{})
	resolve := func(_ context.Context, token string) (school.User, error) {
		if token == "tok-jane" {
			<-slow
			return jane, nil
		}
		return tom, nil
	}
	s := NewStore(&MemoryTokenStore{}, resolve, nil)

	require.NoError(t, s.Login(context.Background(), "tok-jane", jane))
	require.NoError(t, s.Login(context.Background(), "tok-tom", tom))
	usr, err := s.Wait(waitCtx(t))
	require.NoError(t, err)
	assert.Equal(t, tom, usr)

	close(slow) // late result for the superseded token
	time.Sleep(20 * time.Millisecond)
	usr, _ = s.User()
	assert.Equal(t, tom, usr)
	assert.Equal(t, "tok-tom", s.Token())
}

func TestStore_Logout(t *testing.T) {
	tokens := &MemoryTokenStore{}
	s := NewStore(tokens, mapResolver(map[string]school.User{"tok-jane": jane}), nil)
	require.NoError(t, s.Login(context.Background(), "tok-jane", jane))
	_, err := s.Wait(waitCtx(t))
	require.NoError(t, err)

	require.NoError(t, s.Logout())
	assert.False(t, s.IsAuthenticated())
	assert.Empty(t, s.Token())
	assert.Empty(t, tokens.token)
	assert.NoError(t, s.Err())
}

func TestFileTokenStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "masomo")
	store := NewFileTokenStore(dir)

	token, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, token)

	require.NoError(t, store.Save("tok-jane"))
	info, err := os.Stat(filepath.Join(dir, TokenFileName))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	token, err = store.Load()
	require.NoError(t, err)
	assert.Equal(t, "tok-jane", token)

	require.NoError(t, store.Clear())
	require.NoError(t, store.Clear(), "clearing twice is fine")
	token, err = store.Load()
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestTokenExpired(t *testing.T) {
	now := time.Now()
	assert.True(t, TokenExpired(signedToken(t, "u", now.Add(-time.Minute)), now))
	assert.False(t, TokenExpired(signedToken(t, "u", now.Add(time.Minute)), now))
	assert.False(t, TokenExpired("opaque-token", now))
}
