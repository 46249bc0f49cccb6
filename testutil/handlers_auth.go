package testutil

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/masomo-portal/core/school"
)

func (b *Backend) login(ctx echo.Context) error {
	var creds school.Credentials
	if err := ctx.Bind(&creds); err != nil {
		return errBadRequest("invalid request body")
	}
	b.mu.Lock()
	usr := b.userByEmail(creds.Email)
	b.mu.Unlock()
	if usr == nil || bcrypt.CompareHashAndPassword(usr.hash, []byte(creds.Password)) != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"token": b.Token(usr.User)})
}

func (b *Backend) register(ctx echo.Context) error {
	var reg school.Registration
	if err := ctx.Bind(&reg); err != nil {
		return errBadRequest("invalid request body")
	}
	if reg.Email == "" || reg.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, map[string]string{"email": "this field is required"})
	}
	if reg.Role == "" {
		reg.Role = school.RoleStudent
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), bcrypt.MinCost)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.userByEmail(reg.Email) != nil {
		return echo.NewHTTPError(http.StatusConflict, "email already exists")
	}
	usr := &userRec{
		User: school.User{
			ID:        uuid.NewString(),
			Email:     reg.Email,
			Name:      strings.SplitN(reg.Email, "@", 2)[0],
			Role:      reg.Role,
			CreatedAt: b.now(),
		},
		hash: hash,
	}
	b.users = append(b.users, usr)
	return ctx.JSON(http.StatusCreated, usr.User)
}

func (b *Backend) me(ctx echo.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return ctx.JSON(http.StatusOK, contextUser(ctx).User)
}

func (b *Backend) updateMe(ctx echo.Context) error {
	var upd school.ProfileUpdate
	if err := ctx.Bind(&upd); err != nil {
		return errBadRequest("invalid request body")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	usr := contextUser(ctx)
	if other := b.userByEmail(upd.Email); other != nil && other.ID != usr.ID {
		return echo.NewHTTPError(http.StatusConflict, "email already exists")
	}
	usr.Name = upd.Name
	usr.Email = upd.Email
	return ctx.JSON(http.StatusOK, usr.User)
}

func (b *Backend) changePassword(ctx echo.Context) error {
	var chg school.PasswordChange
	if err := ctx.Bind(&chg); err != nil {
		return errBadRequest("invalid request body")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	usr := contextUser(ctx)
	if bcrypt.CompareHashAndPassword(usr.hash, []byte(chg.CurrentPassword)) != nil {
		return echo.NewHTTPError(http.StatusBadRequest, map[string]string{"current_password": "current password is incorrect"})
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(chg.NewPassword), bcrypt.MinCost)
	if err != nil {
		return err
	}
	usr.hash = hash
	return ctx.JSON(http.StatusOK, echo.Map{"message": "password updated"})
}
