package echoweb

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/attendance"
	"github.com/trezcool/masomo-portal/core/catalog"
	"github.com/trezcool/masomo-portal/core/enrollment"
	"github.com/trezcool/masomo-portal/core/grading"
	"github.com/trezcool/masomo-portal/core/ledger"
	"github.com/trezcool/masomo-portal/core/messaging"
	"github.com/trezcool/masomo-portal/core/navigation"
	"github.com/trezcool/masomo-portal/core/query"
	"github.com/trezcool/masomo-portal/core/reports"
	"github.com/trezcool/masomo-portal/core/school"
	"github.com/trezcool/masomo-portal/core/session"
	"github.com/trezcool/masomo-portal/core/timetable"
	apisvc "github.com/trezcool/masomo-portal/services/api"
)

const viewerKey = "viewer"

var (
	errViewerNotFoundInCtx = errors.New("viewer not found in echo.Context")
	errHttpForbidden       = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound        = echo.NewHTTPError(http.StatusNotFound, "not found")
	errSignupMismatch      = core.NewValidationError(nil, core.FieldError{Field: "confirm_password", Error: "passwords do not match"})
)

// viewer is the signed-in user of a request, with services bound to their token and cache scope.
type viewer struct {
	user    school.User
	session *session.Store
	queries *query.Client

	enrollment *enrollment.Service
	attendance *attendance.Service
	messaging  *messaging.Service
	catalog    *catalog.Service
	ledger     *ledger.Service
	grading    *grading.Service
	timetable  *timetable.Service
	reports    *reports.Service
}

func (s *Server) newViewer(usr school.User, st *session.Store) *viewer {
	api := s.opts.API.WithToken(st.Token())
	queries := s.opts.Cache.Scope(usr.ID)
	validator := s.opts.Validator
	return &viewer{
		user:       usr,
		session:    st,
		queries:    queries,
		enrollment: enrollment.NewService(api, queries, validator),
		attendance: attendance.NewService(api, queries, validator),
		messaging:  messaging.NewService(api, queries, validator),
		catalog:    catalog.NewService(api, queries, validator),
		ledger:     ledger.NewService(api, queries, validator),
		grading:    grading.NewService(api, queries, validator),
		timetable:  timetable.NewService(api, queries),
		reports:    reports.NewService(api, queries),
	}
}

func getViewer(ctx echo.Context) (*viewer, error) {
	v, ok := ctx.Get(viewerKey).(*viewer)
	if !ok {
		return nil, errViewerNotFoundInCtx
	}
	return v, nil
}

func (s *Server) sessionStore(ctx echo.Context) *session.Store {
	tokens := cookieTokens{ctx: ctx, store: s.opts.Sessions}
	return session.NewStore(tokens, s.opts.API.ResolveUser, s.opts.Logger)
}

// authenticate resolves the identity behind the session cookie before any page renders.
// A missing, expired or rejected token ends on the login page.
func (s *Server) authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		reqCtx := ctx.Request().Context()
		st := s.sessionStore(ctx)
		if err := st.Open(reqCtx); err != nil {
			return errors.Wrap(err, "opening session")
		}
		usr, err := st.Wait(reqCtx)
		if err != nil {
			if !apisvc.IsUnauthorized(err) {
				return errors.Wrap(err, "resolving session")
			}
			if st.Err() != nil {
				_ = addFlash(ctx, s.opts.Sessions, session.ErrTokenExpired.Error())
			}
			return ctx.Redirect(http.StatusSeeOther, "/login")
		}
		ctx.Set(viewerKey, s.newViewer(usr, st))
		return next(ctx)
	}
}

// allowedMiddleware applies the menu's role gating to every page below it.
func allowedMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		v, err := getViewer(ctx)
		if err != nil {
			return err
		}
		if !navigation.Allowed(v.user.Role, ctx.Request().URL.Path) {
			return errHttpForbidden
		}
		return next(ctx)
	}
}

func staffOnly(v *viewer) error {
	if !v.user.Role.IsStaff() {
		return errHttpForbidden
	}
	return nil
}

// Handlers

func (s *Server) loginPage(ctx echo.Context) error {
	return s.renderPublic(ctx, http.StatusOK, "login.html", "Sign in", nil)
}

func (s *Server) login(ctx echo.Context) error {
	creds := school.Credentials{
		Email:    core.CleanString(ctx.FormValue("email"), true),
		Password: ctx.FormValue("password"),
	}
	if err := s.opts.Validator.Check(creds); err != nil {
		return s.renderPublic(ctx, http.StatusUnprocessableEntity, "login.html", "Sign in", newFormState("login", ctx, err))
	}
	token, err := s.opts.API.Login(ctx.Request().Context(), creds)
	if err != nil {
		if apisvc.IsUnauthorized(err) || apisvc.IsValidation(err) || apisvc.IsTransport(err) {
			return s.renderPublic(ctx, http.StatusUnprocessableEntity, "login.html", "Sign in", newFormState("login", ctx, err))
		}
		return errors.Wrap(err, "logging in")
	}
	return s.startSession(ctx, token)
}

// startSession stores the token and waits for its identity before redirecting home.
func (s *Server) startSession(ctx echo.Context, token string) error {
	reqCtx := ctx.Request().Context()
	st := s.sessionStore(ctx)
	if err := st.Login(reqCtx, token, school.User{}); err != nil {
		return errors.Wrap(err, "starting session")
	}
	usr, err := st.Wait(reqCtx)
	if err != nil {
		return errors.Wrap(err, "resolving session")
	}
	// another account may have used this browser
	s.opts.Cache.Scope(usr.ID).Reset()
	return ctx.Redirect(http.StatusSeeOther, "/")
}

func (s *Server) signupPage(ctx echo.Context) error {
	return s.renderPublic(ctx, http.StatusOK, "signup.html", "Create an account", nil)
}

func (s *Server) signup(ctx echo.Context) error {
	reg := school.Registration{
		Email:    core.CleanString(ctx.FormValue("email"), true),
		Password: ctx.FormValue("password"),
		Role:     school.Role(ctx.FormValue("role")),
	}
	render := func(err error) error {
		return s.renderPublic(ctx, http.StatusUnprocessableEntity, "signup.html", "Create an account", newFormState("signup", ctx, err))
	}
	if err := s.opts.Validator.Check(reg); err != nil {
		return render(err)
	}
	if reg.Password != ctx.FormValue("confirm_password") {
		return render(errSignupMismatch)
	}

	reqCtx := ctx.Request().Context()
	if _, err := s.opts.API.Register(reqCtx, reg); err != nil {
		if apisvc.IsValidation(err) || apisvc.IsTransport(err) {
			return render(err)
		}
		return errors.Wrap(err, "registering")
	}
	token, err := s.opts.API.Login(reqCtx, school.Credentials{Email: reg.Email, Password: reg.Password})
	if err != nil {
		return errors.Wrap(err, "logging in after signup")
	}
	return s.startSession(ctx, token)
}

func (s *Server) logout(ctx echo.Context) error {
	v, err := getViewer(ctx)
	if err != nil {
		return err
	}
	if err := v.session.Logout(); err != nil {
		return errors.Wrap(err, "logging out")
	}
	v.queries.Reset()
	return ctx.Redirect(http.StatusSeeOther, "/login")
}
