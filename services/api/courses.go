package apisvc

import (
	"context"

	"github.com/trezcool/masomo-portal/core/school"
)

func (c *Client) Courses(ctx context.Context) ([]school.Course, error) {
	var courses []school.Course
	err := c.Get(ctx, "/api/courses", nil, &courses)
	return courses, err
}

func (c *Client) CreateCourse(ctx context.Context, nc school.NewCourse) (school.Course, error) {
	var course school.Course
	err := c.Post(ctx, "/api/courses", nc, &course)
	return course, err
}

// Roster lists the active enrollments of a course.
func (c *Client) Roster(ctx context.Context, courseID string) ([]school.RosterEntry, error) {
	var roster []school.RosterEntry
	err := c.Get(ctx, pathf("/api/courses/%s/roster", courseID), nil, &roster)
	return roster, err
}

// CourseEnrollments lists every enrollment of a course, whatever its status.
func (c *Client) CourseEnrollments(ctx context.Context, courseID string) ([]school.CourseEnrollment, error) {
	var enrollments []school.CourseEnrollment
	err := c.Get(ctx, pathf("/api/courses/%s/enrollments", courseID), nil, &enrollments)
	return enrollments, err
}

func (c *Client) RequestAccess(ctx context.Context, courseID string) error {
	return c.Post(ctx, pathf("/api/courses/%s/request-access", courseID), nil, nil)
}

func (c *Client) Invite(ctx context.Context, courseID string, inv school.Invitation) error {
	return c.Post(ctx, pathf("/api/courses/%s/invite", courseID), inv, nil)
}

func (c *Client) RespondToInvitation(ctx context.Context, enrollmentID string, accept bool) error {
	return c.Post(ctx, pathf("/api/invitations/%s/respond", enrollmentID), school.InvitationResponse{Accept: accept}, nil)
}

// MyEnrollments is the student's enrollment+course join.
func (c *Client) MyEnrollments(ctx context.Context) ([]school.EnrollmentWithCourse, error) {
	var enrollments []school.EnrollmentWithCourse
	err := c.Get(ctx, "/api/my-enrollments", nil, &enrollments)
	return enrollments, err
}
