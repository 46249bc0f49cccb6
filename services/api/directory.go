package apisvc

import (
	"context"
	"net/url"

	"github.com/trezcool/masomo-portal/core/school"
)

// Students lists the school's students, optionally filtered.
func (c *Client) Students(ctx context.Context, search string) ([]school.User, error) {
	var query url.Values
	if search != "" {
		query = url.Values{"search": {search}}
	}
	var users []school.User
	err := c.Get(ctx, "/api/students", query, &users)
	return users, err
}

// MyStudents lists the students enrolled in the teacher's courses.
func (c *Client) MyStudents(ctx context.Context) ([]school.User, error) {
	var users []school.User
	err := c.Get(ctx, "/api/my-students", nil, &users)
	return users, err
}

func (c *Client) Teachers(ctx context.Context) ([]school.User, error) {
	var users []school.User
	err := c.Get(ctx, "/api/schools/teachers", nil, &users)
	return users, err
}

func (c *Client) AddTeacher(ctx context.Context, nt school.NewTeacher) (school.User, error) {
	var usr school.User
	err := c.Post(ctx, "/api/schools/teachers", nt, &usr)
	return usr, err
}

func (c *Client) School(ctx context.Context, id string) (school.School, error) {
	var sch school.School
	err := c.Get(ctx, pathf("/api/schools/%s", id), nil, &sch)
	return sch, err
}

func (c *Client) Rate(ctx context.Context, nr school.NewRating) error {
	return c.Post(ctx, "/api/ratings", nr, nil)
}

// Dashboard

func (c *Client) DashboardStats(ctx context.Context) (school.DashboardStats, error) {
	var stats school.DashboardStats
	err := c.Get(ctx, "/api/dashboard/stats", nil, &stats)
	return stats, err
}

func (c *Client) DashboardActivity(ctx context.Context) ([]school.Activity, error) {
	var activity []school.Activity
	err := c.Get(ctx, "/api/dashboard/activity", nil, &activity)
	return activity, err
}
