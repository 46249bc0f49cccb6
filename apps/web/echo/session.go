package echoweb

import (
	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core/session"
)

const (
	sessionName = "masomo"
	tokenKey    = "token"
)

// NewCookieStore keeps the portal session (token and flashes) in a signed cookie.
func NewCookieStore(secret string, secure bool) sessions.Store {
	store := sessions.NewCookieStore([]byte(secret))
	store.Options.HttpOnly = true
	store.Options.Secure = secure
	store.Options.MaxAge = 7 * 24 * 60 * 60
	return store
}

// cookieTokens is the durable token storage of one portal request.
type cookieTokens struct {
	ctx   echo.Context
	store sessions.Store
}

var _ session.TokenStore = cookieTokens{}

// get ignores decoding errors: a tampered or rotated cookie is an empty session.
func (t cookieTokens) get() *sessions.Session {
	sess, _ := t.store.Get(t.ctx.Request(), sessionName)
	return sess
}

func (t cookieTokens) Load() (string, error) {
	token, _ := t.get().Values[tokenKey].(string)
	return token, nil
}

func (t cookieTokens) Save(token string) error {
	sess := t.get()
	sess.Values[tokenKey] = token
	return errors.Wrap(sess.Save(t.ctx.Request(), t.ctx.Response()), "saving session")
}

func (t cookieTokens) Clear() error {
	sess := t.get()
	delete(sess.Values, tokenKey)
	return errors.Wrap(sess.Save(t.ctx.Request(), t.ctx.Response()), "saving session")
}

func addFlash(ctx echo.Context, store sessions.Store, msg string) error {
	sess := cookieTokens{ctx: ctx, store: store}.get()
	sess.AddFlash(msg)
	return errors.Wrap(sess.Save(ctx.Request(), ctx.Response()), "saving flash")
}

// popFlashes must run before the response body is written.
func popFlashes(ctx echo.Context, store sessions.Store) []string {
	sess := cookieTokens{ctx: ctx, store: store}.get()
	raw := sess.Flashes()
	if len(raw) == 0 {
		return nil
	}
	_ = sess.Save(ctx.Request(), ctx.Response())
	msgs := make([]string, 0, len(raw))
	for _, f := range raw {
		if m, ok := f.(string); ok {
			msgs = append(msgs, m)
		}
	}
	return msgs
}
