package timetable

import (
	"context"

	"github.com/trezcool/masomo-portal/core/enrollment"
	"github.com/trezcool/masomo-portal/core/query"
	"github.com/trezcool/masomo-portal/core/school"
)

type (
	Backend interface {
		Courses(ctx context.Context) ([]school.Course, error)
		MyEnrollments(ctx context.Context) ([]school.EnrollmentWithCourse, error)
	}

	Service struct {
		backend Backend
		queries *query.Client
	}
)

func NewService(backend Backend, queries *query.Client) *Service {
	return &Service{backend: backend, queries: queries}
}

// Courses are the active enrollments of a student, or the course list for staff.
func (svc *Service) Courses(ctx context.Context, viewer school.User) ([]school.Course, error) {
	if !viewer.Role.IsStudent() {
		return query.Fetch(ctx, svc.queries, query.Courses, svc.backend.Courses)
	}
	enrs, err := query.Fetch(ctx, svc.queries, query.MyEnrollments, svc.backend.MyEnrollments)
	if err != nil {
		return nil, err
	}
	var courses []school.Course
	for _, e := range enrs {
		if enrollment.ParseStatus(e.Enrollment.Status) == enrollment.StatusActive {
			courses = append(courses, e.Course)
		}
	}
	return courses, nil
}

// Week builds the viewer's weekly grid.
func (svc *Service) Week(ctx context.Context, viewer school.User) (Grid, error) {
	courses, err := svc.Courses(ctx, viewer)
	if err != nil {
		return Grid{}, err
	}
	return Build(courses), nil
}
