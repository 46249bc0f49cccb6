package echoweb

import (
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core/school"
	apisvc "github.com/trezcool/masomo-portal/services/api"
)

func (s *Server) settingsPage(ctx echo.Context) error {
	return s.renderSettings(ctx, nil)
}

func (s *Server) renderSettings(ctx echo.Context, form *formState) error {
	v, err := getViewer(ctx)
	if err != nil {
		return err
	}
	return s.render(ctx, v, "settings.html", "Settings", form, nil, nil)
}

func (s *Server) changePassword(ctx echo.Context) error {
	v, err := getViewer(ctx)
	if err != nil {
		return err
	}
	chg := school.PasswordChange{
		CurrentPassword: ctx.FormValue("current_password"),
		NewPassword:     ctx.FormValue("new_password"),
		ConfirmPassword: ctx.FormValue("confirm_password"),
	}
	if err := v.catalog.ChangePassword(ctx.Request().Context(), chg); err != nil {
		if formFailure(err) {
			return s.renderSettings(ctx, newFormState("password", ctx, err))
		}
		return errors.Wrap(err, "changing password")
	}
	return s.redirectWith(ctx, "/settings", "password updated")
}

func (s *Server) profilePage(ctx echo.Context) error {
	return s.renderProfile(ctx, nil)
}

func (s *Server) renderProfile(ctx echo.Context, form *formState) error {
	v, err := getViewer(ctx)
	if err != nil {
		return err
	}
	var me school.User
	var l loader
	l.Go("profile", func() (err error) {
		me, err = v.catalog.Me(ctx.Request().Context())
		return err
	})
	errs, err := l.Wait()
	if err != nil {
		return errors.Wrap(err, "loading profile")
	}
	return s.render(ctx, v, "profile.html", "Profile", form, errs, me)
}

func (s *Server) updateProfile(ctx echo.Context) error {
	v, err := getViewer(ctx)
	if err != nil {
		return err
	}
	upd := school.ProfileUpdate{Name: ctx.FormValue("name"), Email: ctx.FormValue("email")}
	if _, err := v.catalog.UpdateProfile(ctx.Request().Context(), upd); err != nil {
		if formFailure(err) {
			return s.renderProfile(ctx, newFormState("profile", ctx, err))
		}
		return errors.Wrap(err, "updating profile")
	}
	return s.redirectWith(ctx, "/profile", "profile updated")
}

// apiGone is true when the target of a mutation no longer exists.
func apiGone(err error) bool {
	return apisvc.IsNotFound(err)
}

// isLocalPath guards redirects to links that come from form input.
func isLocalPath(p string) bool {
	return strings.HasPrefix(p, "/") && !strings.HasPrefix(p, "//") && !strings.Contains(p, "\\")
}
