package enrollment

import (
	"context"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/query"
	"github.com/trezcool/masomo-portal/core/school"
)

var (
	errAlreadyEnrolled   = errors.New("already enrolled or access requested")
	errAlreadyInvited    = errors.New("student already enrolled or invited")
	errInvitationMissing = errors.New("invitation not found")
	errNotInvited        = errors.New("this enrollment is not awaiting your response")
)

type (
	// Backend is the part of the school API the workflow needs.
	Backend interface {
		Courses(ctx context.Context) ([]school.Course, error)
		MyEnrollments(ctx context.Context) ([]school.EnrollmentWithCourse, error)
		Roster(ctx context.Context, courseID string) ([]school.RosterEntry, error)
		CourseEnrollments(ctx context.Context, courseID string) ([]school.CourseEnrollment, error)
		RequestAccess(ctx context.Context, courseID string) error
		Invite(ctx context.Context, courseID string, inv school.Invitation) error
		RespondToInvitation(ctx context.Context, enrollmentID string, accept bool) error
	}

	// CourseCard is a catalog course joined with the viewer's enrollment.
	CourseCard struct {
		Course     school.Course
		Enrollment *school.Enrollment
		Status     Status
		Actions    Actions
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

func (svc *Service) MyEnrollments(ctx context.Context) ([]school.EnrollmentWithCourse, error) {
	return query.Fetch(ctx, svc.queries, query.MyEnrollments, svc.backend.MyEnrollments)
}

// PendingInvitations are the invitations awaiting the student's answer.
func (svc *Service) PendingInvitations(ctx context.Context) ([]school.EnrollmentWithCourse, error) {
	return svc.withStatus(ctx, StatusInvited)
}

// ActiveCourses are the courses the student has full access to.
func (svc *Service) ActiveCourses(ctx context.Context) ([]school.EnrollmentWithCourse, error) {
	return svc.withStatus(ctx, StatusActive)
}

func (svc *Service) withStatus(ctx context.Context, s Status) ([]school.EnrollmentWithCourse, error) {
	enrs, err := svc.MyEnrollments(ctx)
	if err != nil {
		return nil, err
	}
	return lo.Filter(enrs, func(e school.EnrollmentWithCourse, _ int) bool {
		return ParseStatus(e.Enrollment.Status) == s
	}), nil
}

// CourseCards joins the catalog with the viewer's enrollments. Staff get no enrollment actions.
func (svc *Service) CourseCards(ctx context.Context, viewer school.User) ([]CourseCard, error) {
	var (
		courses []school.Course
		enrs    []school.EnrollmentWithCourse
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		courses, err = query.Fetch(gctx, svc.queries, query.Courses, svc.backend.Courses)
		return err
	})
	if viewer.Role.IsStudent() {
		g.Go(func() (err error) {
			enrs, err = svc.MyEnrollments(gctx)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	mine := lo.Map(enrs, func(e school.EnrollmentWithCourse, _ int) school.Enrollment { return e.Enrollment })
	cards := make([]CourseCard, 0, len(courses))
	for _, c := range courses {
		card := CourseCard{Course: c, Status: StatusNone}
		if viewer.Role.IsStudent() {
			enr, status := BestMatch(mine, c.ID)
			if status != StatusNone {
				card.Enrollment = &enr
			}
			card.Status = status
			card.Actions = ActionsFor(status)
		}
		cards = append(cards, card)
	}
	return cards, nil
}

// StatusOf is the viewer's status for one course.
func (svc *Service) StatusOf(ctx context.Context, courseID string) (school.Enrollment, Status, error) {
	enrs, err := svc.MyEnrollments(ctx)
	if err != nil {
		return school.Enrollment{}, StatusNone, err
	}
	mine := lo.Map(enrs, func(e school.EnrollmentWithCourse, _ int) school.Enrollment { return e.Enrollment })
	enr, status := BestMatch(mine, courseID)
	return enr, status, nil
}

// RequestAccess creates a pending enrollment for the signed-in student.
func (svc *Service) RequestAccess(ctx context.Context, courseID string) error {
	_, status, err := svc.StatusOf(ctx, courseID)
	if err != nil {
		return err
	}
	if _, err = Transition(status, EventRequest); err != nil {
		return core.NewValidationError(errAlreadyEnrolled)
	}
	if err = svc.backend.RequestAccess(ctx, courseID); err != nil {
		return err
	}
	svc.queries.Invalidate(query.MyEnrollments)
	return nil
}

// Invite invites a student by email; staff only.
func (svc *Service) Invite(ctx context.Context, courseID, email string) error {
	inv := school.Invitation{Email: core.CleanString(email, true)}
	if err := svc.validator.Check(inv); err != nil {
		return err
	}

	existing, err := query.Fetch(ctx, svc.queries, query.CourseEnrollments(courseID),
		func(ctx context.Context) ([]school.CourseEnrollment, error) {
			return svc.backend.CourseEnrollments(ctx, courseID)
		},
		query.Refetch(),
	)
	if err != nil {
		return err
	}
	status := StatusNone
	for _, ce := range existing {
		if core.CleanString(ce.StudentEmail, true) == inv.Email {
			if s := ParseStatus(ce.Status); priority[s] > priority[status] {
				status = s
			}
		}
	}
	if _, err = Transition(status, EventInvite); err != nil {
		return core.NewValidationError(errAlreadyInvited)
	}

	if err = svc.backend.Invite(ctx, courseID, inv); err != nil {
		return err
	}
	svc.queries.Invalidate(query.MyEnrollments, query.Roster(courseID), query.CourseEnrollments(courseID))
	return nil
}

// Respond accepts or declines an invitation addressed to the signed-in student.
func (svc *Service) Respond(ctx context.Context, enrollmentID string, accept bool) error {
	enrs, err := svc.MyEnrollments(ctx)
	if err != nil {
		return err
	}
	target, found := lo.Find(enrs, func(e school.EnrollmentWithCourse) bool { return e.Enrollment.ID == enrollmentID })
	if !found {
		return core.NewValidationError(errInvitationMissing)
	}
	if _, err = Transition(ParseStatus(target.Enrollment.Status), lo.Ternary(accept, EventAccept, EventDecline)); err != nil {
		return core.NewValidationError(errNotInvited)
	}

	if err = svc.backend.RespondToInvitation(ctx, enrollmentID, accept); err != nil {
		return err
	}
	svc.queries.Invalidate(query.MyEnrollments, query.Roster(target.Enrollment.CourseID))
	return nil
}

// Roster lists the course's active students.
func (svc *Service) Roster(ctx context.Context, courseID string) ([]school.RosterEntry, error) {
	return query.Fetch(ctx, svc.queries, query.Roster(courseID),
		func(ctx context.Context) ([]school.RosterEntry, error) {
			return svc.backend.Roster(ctx, courseID)
		},
		query.Enabled(courseID != ""),
	)
}

// CourseEnrollments lists every enrollment of a course, for staff.
func (svc *Service) CourseEnrollments(ctx context.Context, courseID string) ([]school.CourseEnrollment, error) {
	return query.Fetch(ctx, svc.queries, query.CourseEnrollments(courseID),
		func(ctx context.Context) ([]school.CourseEnrollment, error) {
			return svc.backend.CourseEnrollments(ctx, courseID)
		},
		query.Enabled(courseID != ""),
	)
}
