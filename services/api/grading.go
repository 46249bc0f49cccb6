package apisvc

import (
	"context"

	"github.com/trezcool/masomo-portal/core/school"
)

func (c *Client) CourseGrades(ctx context.Context, courseID string) ([]school.Grade, error) {
	var grades []school.Grade
	err := c.Get(ctx, pathf("/api/courses/%s/grades", courseID), nil, &grades)
	return grades, err
}

func (c *Client) AddGrade(ctx context.Context, courseID string, ng school.NewGrade) (school.Grade, error) {
	var grade school.Grade
	err := c.Post(ctx, pathf("/api/courses/%s/grades", courseID), ng, &grade)
	return grade, err
}

func (c *Client) MyGrades(ctx context.Context) ([]school.Grade, error) {
	var grades []school.Grade
	err := c.Get(ctx, "/api/my-grades", nil, &grades)
	return grades, err
}

// Homework

func (c *Client) CourseAssignments(ctx context.Context, courseID string) ([]school.Assignment, error) {
	var assignments []school.Assignment
	err := c.Get(ctx, pathf("/api/courses/%s/assignments", courseID), nil, &assignments)
	return assignments, err
}

func (c *Client) CreateAssignment(ctx context.Context, courseID string, na school.NewAssignment) (school.Assignment, error) {
	var assignment school.Assignment
	err := c.Post(ctx, pathf("/api/courses/%s/assignments", courseID), na, &assignment)
	return assignment, err
}

func (c *Client) Submit(ctx context.Context, assignmentID string, ns school.NewSubmission) (school.Submission, error) {
	var sub school.Submission
	err := c.Post(ctx, pathf("/api/assignments/%s/submit", assignmentID), ns, &sub)
	return sub, err
}

func (c *Client) Submissions(ctx context.Context, assignmentID string) ([]school.Submission, error) {
	var subs []school.Submission
	err := c.Get(ctx, pathf("/api/assignments/%s/submissions", assignmentID), nil, &subs)
	return subs, err
}

func (c *Client) MyAssignments(ctx context.Context) ([]school.Assignment, error) {
	var assignments []school.Assignment
	err := c.Get(ctx, "/api/my-assignments", nil, &assignments)
	return assignments, err
}
