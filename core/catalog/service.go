// Package catalog covers courses, the people directory, schools, ratings and the signed-in profile.
package catalog

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/query"
	"github.com/trezcool/masomo-portal/core/school"
)

var errNoRatingTarget = errors.New("choose a teacher or a school to rate")

type (
	Backend interface {
		Courses(ctx context.Context) ([]school.Course, error)
		CreateCourse(ctx context.Context, nc school.NewCourse) (school.Course, error)
		Students(ctx context.Context, search string) ([]school.User, error)
		MyStudents(ctx context.Context) ([]school.User, error)
		Teachers(ctx context.Context) ([]school.User, error)
		AddTeacher(ctx context.Context, nt school.NewTeacher) (school.User, error)
		School(ctx context.Context, id string) (school.School, error)
		Rate(ctx context.Context, nr school.NewRating) error
		Me(ctx context.Context) (school.User, error)
		UpdateMe(ctx context.Context, upd school.ProfileUpdate) (school.User, error)
		ChangePassword(ctx context.Context, chg school.PasswordChange) error
	}

	Service struct {
		backend   Backend
		queries   *query.Client
		validator *core.Validator
	}
)

func NewService(backend Backend, queries *query.Client, validator *core.Validator) *Service {
	return &Service{backend: backend, queries: queries, validator: validator}
}

// Courses

func (svc *Service) Courses(ctx context.Context) ([]school.Course, error) {
	return query.Fetch(ctx, svc.queries, query.Courses, svc.backend.Courses)
}

func (svc *Service) CreateCourse(ctx context.Context, nc school.NewCourse) (school.Course, error) {
	nc.Title = core.CleanString(nc.Title)
	nc.Description = core.CleanString(nc.Description)
	if nc.Schedule != nil && len(nc.Schedule.Days) == 0 {
		nc.Schedule = nil
	}
	if err := svc.validator.Check(nc); err != nil {
		return school.Course{}, err
	}
	c, err := svc.backend.CreateCourse(ctx, nc)
	if err != nil {
		return school.Course{}, err
	}
	svc.queries.Invalidate(query.Courses)
	return c, nil
}

// Directory

func (svc *Service) Students(ctx context.Context, search string) ([]school.User, error) {
	search = core.CleanString(search)
	return query.Fetch(ctx, svc.queries, query.Students(search), func(ctx context.Context) ([]school.User, error) {
		return svc.backend.Students(ctx, search)
	})
}

// MyStudents are the students enrolled in the courses the viewer manages.
func (svc *Service) MyStudents(ctx context.Context) ([]school.User, error) {
	return query.Fetch(ctx, svc.queries, query.MyStudents, svc.backend.MyStudents)
}

func (svc *Service) Teachers(ctx context.Context) ([]school.User, error) {
	return query.Fetch(ctx, svc.queries, query.Teachers, svc.backend.Teachers)
}

func (svc *Service) AddTeacher(ctx context.Context, nt school.NewTeacher) (school.User, error) {
	nt.Name = core.CleanString(nt.Name)
	nt.Email = core.CleanString(nt.Email, true)
	if err := svc.validator.Check(nt); err != nil {
		return school.User{}, err
	}
	usr, err := svc.backend.AddTeacher(ctx, nt)
	if err != nil {
		return school.User{}, err
	}
	svc.queries.Invalidate(query.Teachers)
	return usr, nil
}

func (svc *Service) School(ctx context.Context, id string) (school.School, error) {
	return query.Fetch(ctx, svc.queries, query.School(id), func(ctx context.Context) (school.School, error) {
		return svc.backend.School(ctx, id)
	}, query.Enabled(id != ""))
}

// Rate scores a teacher or a school; exactly one target must be set.
func (svc *Service) Rate(ctx context.Context, nr school.NewRating) error {
	if (nr.ToUserID == nil) == (nr.ToSchoolID == nil) {
		return core.NewValidationError(errNoRatingTarget)
	}
	nr.Comment = core.CleanString(nr.Comment)
	if err := svc.validator.Check(nr); err != nil {
		return err
	}
	if err := svc.backend.Rate(ctx, nr); err != nil {
		return err
	}
	// school pages list teacher ratings too
	svc.queries.Invalidate(query.Teachers, query.K("school"))
	return nil
}

// Profile

func (svc *Service) Me(ctx context.Context) (school.User, error) {
	return query.Fetch(ctx, svc.queries, query.Me, svc.backend.Me)
}

func (svc *Service) UpdateProfile(ctx context.Context, upd school.ProfileUpdate) (school.User, error) {
	upd.Name = core.CleanString(upd.Name)
	upd.Email = core.CleanString(upd.Email, true)
	if err := svc.validator.Check(upd); err != nil {
		return school.User{}, err
	}
	usr, err := svc.backend.UpdateMe(ctx, upd)
	if err != nil {
		return school.User{}, err
	}
	svc.queries.Invalidate(query.Me)
	return usr, nil
}

func (svc *Service) ChangePassword(ctx context.Context, chg school.PasswordChange) error {
	if err := svc.validator.Check(chg); err != nil {
		return err
	}
	return svc.backend.ChangePassword(ctx, chg)
}
