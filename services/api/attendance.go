package apisvc

import (
	"context"
	"net/url"

	"github.com/trezcool/masomo-portal/core/school"
)

// Attendance lists the records of a course for one date (YYYY-MM-DD).
func (c *Client) Attendance(ctx context.Context, courseID, date string) ([]school.AttendanceRecord, error) {
	var records []school.AttendanceRecord
	err := c.Get(ctx, pathf("/api/courses/%s/attendance", courseID), url.Values{"date": {date}}, &records)
	return records, err
}

// SaveAttendance upserts the whole batch for (course, date) in one request.
func (c *Client) SaveAttendance(ctx context.Context, courseID string, batch school.AttendanceBatch) error {
	return c.Post(ctx, pathf("/api/courses/%s/attendance", courseID), batch, nil)
}

func (c *Client) MyAttendance(ctx context.Context) ([]school.AttendanceRecord, error) {
	var records []school.AttendanceRecord
	err := c.Get(ctx, "/api/my-attendance", nil, &records)
	return records, err
}

func (c *Client) MyAttendanceSummary(ctx context.Context) ([]school.AttendanceSummary, error) {
	var summary []school.AttendanceSummary
	err := c.Get(ctx, "/api/my-attendance/summary", nil, &summary)
	return summary, err
}
