package echoweb

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/session"
	apisvc "github.com/trezcool/masomo-portal/services/api"
)

type errorPage struct {
	Code    int
	Message string
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, store sessions.Store, views *renderer, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		if ctx.Response().Committed {
			return
		}

		// the token died mid-request: drop it and start over
		if apisvc.IsUnauthorized(err) {
			_ = cookieTokens{ctx: ctx, store: store}.Clear()
			_ = addFlash(ctx, store, session.ErrTokenExpired.Error())
			if rErr := ctx.Redirect(http.StatusSeeOther, "/login"); rErr != nil {
				ctx.Echo().Logger.Error(rErr)
			}
			return
		}

		var code int
		var message string

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = httpMessage(origErr.Message, http.StatusText(code))
		case *core.ValidationError:
			code = http.StatusBadRequest
			message = origErr.Error()
		default: // any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg

			var args []interface{}
			if v, vErr := getViewer(ctx); vErr == nil {
				args = append(args, v.user)
			}
			logger.Error(msg, append([]interface{}{errors.Wrap(err, msg)}, args...)...)

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug {
			message = err.Error()
		}

		// Send response
		switch {
		case ctx.Request().Method == http.MethodHead: // Issue #608
			err = ctx.NoContent(code)
		case wantsJSON(ctx.Request()):
			err = ctx.JSON(code, echo.Map{"error": message})
		default:
			var buf bytes.Buffer
			if err = views.render(&buf, "error.html", &page{
				Title: http.StatusText(code),
				Data:  errorPage{Code: code, Message: message},
			}); err == nil {
				err = ctx.HTMLBlob(code, buf.Bytes())
			}
		}
		if err != nil {
			ctx.Echo().Logger.Error(err)
		}
	}
}

func httpMessage(msg interface{}, fallback string) string {
	if m, ok := msg.(string); ok && m != "" {
		return m
	}
	return fallback
}

func wantsJSON(r *http.Request) bool {
	accept := r.Header.Get(echo.HeaderAccept)
	return strings.Contains(accept, echo.MIMEApplicationJSON) && !strings.Contains(accept, echo.MIMETextHTML)
}
