package reports

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-portal/core/query"
	"github.com/trezcool/masomo-portal/core/school"
	apisvc "github.com/trezcool/masomo-portal/services/api"
	"github.com/trezcool/masomo-portal/testutil"
)

func TestService_Dashboard(t *testing.T) {
	backend := testutil.NewBackend(t)
	teacher := backend.CreateUser(t, "Mr Kabila", "kabila@x.com", "Passw0rd!", school.RoleTeacher)
	jane := backend.CreateUser(t, "Jane", "jane@x.com", "Passw0rd!", school.RoleStudent)
	joseph := backend.CreateUser(t, "Joseph", "joseph@x.com", "Passw0rd!", school.RoleStudent)
	course := backend.CreateCourse(t, teacher, "Algebra101", nil)
	backend.Enroll(jane, course)
	backend.AddEnrollment(joseph, course, "pending")

	cl := apisvc.NewClient(backend.URL(), apisvc.StaticToken(backend.Token(teacher)))
	_, err := cl.RecordPayment(context.Background(), school.NewPayment{
		StudentUserID: jane.ID, CourseID: course.ID, Amount: 150, Method: school.PaymentCash,
	})
	require.NoError(t, err)

	svc := NewService(cl, query.NewCache(time.Minute).Scope(teacher.ID))
	d, err := svc.Dashboard(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, d.Stats.TotalCourses)
	assert.Equal(t, 2, d.Stats.TotalStudents)
	assert.Equal(t, 1, d.Stats.ActiveEnrolments)
	assert.Equal(t, 1, d.Stats.PendingRequests)
	assert.Equal(t, 150.0, d.Stats.TotalRevenue)
	require.NotEmpty(t, d.Activity)
	assert.Equal(t, "payment", d.Activity[0].Type)

	_, err = svc.Dashboard(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, backend.Hits("GET /api/dashboard/stats"))
	assert.Equal(t, 1, backend.Hits("GET /api/dashboard/activity"))
}
