package echoweb

import (
	"bytes"
	"embed"
	"html/template"
	"io/fs"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"golang.org/x/sync/errgroup"

	"github.com/trezcool/masomo-portal/core/ledger"
	"github.com/trezcool/masomo-portal/core/navigation"
	"github.com/trezcool/masomo-portal/core/school"
	"github.com/trezcool/masomo-portal/core/timetable"
	apisvc "github.com/trezcool/masomo-portal/services/api"
)

const (
	csrfField   = "_csrf"
	layoutFile  = "layout.html"
	msgNotSaved = "failed to save"
	msgNoLoad   = "failed to load"
)

//go:embed templates/*.html
var templateFS embed.FS

type (
	// page is the data every template receives.
	page struct {
		Title   string
		User    school.User
		Menu    []navigation.Item
		CSRF    string
		Flashes []string
		Form    *formState
		Errors  map[string]string // per-section load failures
		Data    interface{}
	}

	// formState carries a rejected form back to its page.
	formState struct {
		Name   string
		Error  string
		Fields map[string]string
		Values url.Values
	}

	// rateForm is one rating form of the school page.
	rateForm struct {
		Page   *page
		Action string
		Name   string
	}

	renderer struct {
		pages map[string]*template.Template
	}
)

var funcs = template.FuncMap{
	"date": func(t time.Time) string { return t.Format("2006-01-02") },
	"datetime": func(t time.Time) string {
		return t.Format("2006-01-02 15:04")
	},
	"money": func(f float64) string { return ledger.FromFloat(f).String() },
	"percent": func(f float64) string {
		return cast.ToString(int(f+0.5)) + "%"
	},
	"weekdays": func() []string { return timetable.Days },
	"scores":   func() []int { return []int{10, 9, 8, 7, 6, 5, 4, 3, 2, 1} },
	"rateForm": func(p *page, action, name string) rateForm {
		return rateForm{Page: p, Action: action, Name: name}
	},
	"deref": func(p interface{}) interface{} {
		switch v := p.(type) {
		case *float64:
			if v != nil {
				return *v
			}
		case *string:
			if v != nil {
				return *v
			}
		case *time.Time:
			if v != nil {
				return v.Format("2006-01-02")
			}
		}
		return ""
	},
}

func newRenderer() *renderer {
	r := &renderer{pages: make(map[string]*template.Template)}
	names, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		panic(err)
	}
	for _, name := range names {
		base := name[len("templates/"):]
		if base == layoutFile {
			continue
		}
		r.pages[base] = template.Must(
			template.New(layoutFile).Funcs(funcs).ParseFS(templateFS, "templates/"+layoutFile, name),
		)
	}
	return r
}

func (r *renderer) render(w *bytes.Buffer, name string, data *page) error {
	tmpl, ok := r.pages[name]
	if !ok {
		return errors.Errorf("template %q not found", name)
	}
	return errors.Wrapf(tmpl.ExecuteTemplate(w, layoutFile, data), "rendering %s", name)
}

func (s *Server) write(ctx echo.Context, status int, name string, p *page) error {
	if token, ok := ctx.Get(middleware.DefaultCSRFConfig.ContextKey).(string); ok {
		p.CSRF = token
	}
	p.Flashes = popFlashes(ctx, s.opts.Sessions)

	var buf bytes.Buffer
	if err := s.views.render(&buf, name, p); err != nil {
		return err
	}
	return ctx.HTMLBlob(status, buf.Bytes())
}

// renderPublic renders a page outside the signed-in shell (login, signup).
func (s *Server) renderPublic(ctx echo.Context, status int, name, title string, form *formState) error {
	return s.write(ctx, status, name, &page{Title: title, Form: form})
}

// render renders a signed-in page with the menu and its unread badges.
func (s *Server) render(ctx echo.Context, v *viewer, name, title string, form *formState, errs map[string]string, data interface{}) error {
	var counters navigation.Counters
	msgs, notifs, err := v.messaging.Unread(ctx.Request().Context())
	if err != nil {
		if apisvc.IsUnauthorized(err) {
			return err
		}
		s.opts.Logger.Warn("loading unread counters", err, v.user)
	} else {
		counters = navigation.Counters{Messages: msgs, Notifications: notifs}
	}

	status := http.StatusOK
	if form != nil {
		status = http.StatusUnprocessableEntity
	}
	usr := v.user
	return s.write(ctx, status, name, &page{
		Title:  title,
		User:   usr,
		Menu:   navigation.Menu(&usr, counters, ctx.Request().URL.Path),
		Form:   form,
		Errors: errs,
		Data:   data,
	})
}

// newFormState turns a rejected submission into what its form shows.
func newFormState(name string, ctx echo.Context, err error) *formState {
	form := &formState{Name: name}
	if params, pErr := ctx.FormParams(); pErr == nil {
		form.Values = params
		form.Values.Del(csrfField)
		form.Values.Del("password")
	}
	if fErr := apisvc.FormError(err); fErr != nil {
		form.Fields = fErr.FieldMap()
		if len(form.Fields) == 0 {
			form.Error = fErr.Error()
		}
		return form
	}
	if apisvc.IsUnauthorized(err) {
		form.Error = err.Error()
		return form
	}
	form.Error = msgNotSaved
	return form
}

func (f *formState) Field(name string) string {
	if f == nil {
		return ""
	}
	return f.Fields[name]
}

func (f *formState) Value(name string) string {
	if f == nil {
		return ""
	}
	return f.Values.Get(name)
}

// Is reports whether the state belongs to the named form.
func (f *formState) Is(name string) bool {
	return f != nil && f.Name == name
}

// formFailure re-renders the page for rejections and transport failures; anything else goes to the error handler.
func formFailure(err error) bool {
	return apisvc.IsValidation(err) || apisvc.IsTransport(err)
}

// loader fetches the independent sections of a page concurrently.
// A failed section only blanks itself; an auth failure aborts the page.
type loader struct {
	g    errgroup.Group
	mu   sync.Mutex
	errs map[string]string
}

func (l *loader) Go(section string, fn func() error) {
	l.g.Go(func() error {
		err := fn()
		if err == nil {
			return nil
		}
		if apisvc.IsUnauthorized(err) {
			return err
		}
		msg := msgNoLoad
		if fErr := apisvc.FormError(err); fErr != nil {
			msg = fErr.Error()
		} else if !apisvc.IsTransport(err) && !apisvc.IsNotFound(err) {
			return err
		}
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.errs == nil {
			l.errs = make(map[string]string)
		}
		l.errs[section] = msg
		return nil
	})
}

func (l *loader) Wait() (map[string]string, error) {
	if err := l.g.Wait(); err != nil {
		return nil, err
	}
	return l.errs, nil
}
