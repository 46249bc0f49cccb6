// Package grading covers grades, homework assignments and submissions.
package grading

import (
	"context"
	"sort"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/query"
	"github.com/trezcool/masomo-portal/core/school"
)

var (
	errNoMark    = errors.New("enter a score or a letter grade")
	errEmptyWork = errors.New("add some content or a link")
)

type (
	Backend interface {
		CourseGrades(ctx context.Context, courseID string) ([]school.Grade, error)
		AddGrade(ctx context.Context, courseID string, ng school.NewGrade) (school.Grade, error)
		MyGrades(ctx context.Context) ([]school.Grade, error)
		CourseAssignments(ctx context.Context, courseID string) ([]school.Assignment, error)
		CreateAssignment(ctx context.Context, courseID string, na school.NewAssignment) (school.Assignment, error)
		Submit(ctx context.Context, assignmentID string, ns school.NewSubmission) (school.Submission, error)
		Submissions(ctx context.Context, assignmentID string) ([]school.Submission, error)
		MyAssignments(ctx context.Context) ([]school.Assignment, error)
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

// Grades

func (svc *Service) MyGrades(ctx context.Context) ([]school.Grade, error) {
	return query.Fetch(ctx, svc.queries, query.MyGrades, svc.backend.MyGrades)
}

func (svc *Service) CourseGrades(ctx context.Context, courseID string) ([]school.Grade, error) {
	return query.Fetch(ctx, svc.queries, query.CourseGrades(courseID), func(ctx context.Context) ([]school.Grade, error) {
		return svc.backend.CourseGrades(ctx, courseID)
	}, query.Enabled(courseID != ""))
}

func (svc *Service) AddGrade(ctx context.Context, courseID string, ng school.NewGrade) (school.Grade, error) {
	ng.Title = core.CleanString(ng.Title)
	ng.Comment = core.CleanString(ng.Comment)
	if ng.LetterGrade != nil {
		if letter := core.CleanString(*ng.LetterGrade); letter != "" {
			ng.LetterGrade = &letter
		} else {
			ng.LetterGrade = nil
		}
	}
	if ng.Score == nil && ng.LetterGrade == nil {
		return school.Grade{}, core.NewValidationError(errNoMark)
	}
	if err := svc.validator.Check(ng); err != nil {
		return school.Grade{}, err
	}
	g, err := svc.backend.AddGrade(ctx, courseID, ng)
	if err != nil {
		return school.Grade{}, err
	}
	svc.queries.Invalidate(query.CourseGrades(courseID))
	return g, nil
}

// Average is the mean of the scored grades; ok is false when none has a score.
func Average(grades []school.Grade) (avg float64, ok bool) {
	scored := lo.FilterMap(grades, func(g school.Grade, _ int) (float64, bool) {
		return lo.FromPtr(g.Score), g.Score != nil
	})
	if len(scored) == 0 {
		return 0, false
	}
	return lo.Sum(scored) / float64(len(scored)), true
}

// Homework

// MyAssignments lists the homework of the student's active courses, soonest due first.
func (svc *Service) MyAssignments(ctx context.Context) ([]school.Assignment, error) {
	assignments, err := query.Fetch(ctx, svc.queries, query.MyAssignments, svc.backend.MyAssignments)
	if err != nil {
		return nil, err
	}
	return byDueDate(assignments), nil
}

func (svc *Service) CourseAssignments(ctx context.Context, courseID string) ([]school.Assignment, error) {
	assignments, err := query.Fetch(ctx, svc.queries, query.CourseAssignments(courseID),
		func(ctx context.Context) ([]school.Assignment, error) {
			return svc.backend.CourseAssignments(ctx, courseID)
		}, query.Enabled(courseID != ""))
	if err != nil {
		return nil, err
	}
	return byDueDate(assignments), nil
}

func (svc *Service) CreateAssignment(ctx context.Context, courseID string, na school.NewAssignment) (school.Assignment, error) {
	na.Title = core.CleanString(na.Title)
	na.Description = core.CleanString(na.Description)
	na.DueDate = core.CleanString(na.DueDate)
	if err := svc.validator.Check(na); err != nil {
		return school.Assignment{}, err
	}
	if na.DueDate != "" {
		if err := svc.validator.Var("due_date", na.DueDate, "datetime=2006-01-02"); err != nil {
			return school.Assignment{}, err
		}
	}
	a, err := svc.backend.CreateAssignment(ctx, courseID, na)
	if err != nil {
		return school.Assignment{}, err
	}
	svc.queries.Invalidate(query.CourseAssignments(courseID))
	return a, nil
}

func (svc *Service) Submit(ctx context.Context, assignmentID string, ns school.NewSubmission) (school.Submission, error) {
	ns.Content = core.CleanString(ns.Content)
	ns.Link = core.CleanString(ns.Link)
	if ns.Content == "" && ns.Link == "" {
		return school.Submission{}, core.NewValidationError(errEmptyWork)
	}
	if err := svc.validator.Check(ns); err != nil {
		return school.Submission{}, err
	}
	sub, err := svc.backend.Submit(ctx, assignmentID, ns)
	if err != nil {
		return school.Submission{}, err
	}
	svc.queries.Invalidate(query.Submissions(assignmentID), query.MyAssignments)
	return sub, nil
}

func (svc *Service) Submissions(ctx context.Context, assignmentID string) ([]school.Submission, error) {
	return query.Fetch(ctx, svc.queries, query.Submissions(assignmentID), func(ctx context.Context) ([]school.Submission, error) {
		return svc.backend.Submissions(ctx, assignmentID)
	}, query.Enabled(assignmentID != ""))
}

// byDueDate sorts a copy; assignments without a due date go last.
func byDueDate(assignments []school.Assignment) []school.Assignment {
	out := append([]school.Assignment(nil), assignments...)
	sort.SliceStable(out, func(i, j int) bool {
		di, dj := out[i].DueDate, out[j].DueDate
		switch {
		case di == nil:
			return false
		case dj == nil:
			return true
		}
		return di.Before(*dj)
	})
	return out
}
