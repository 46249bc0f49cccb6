package enrollment

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/query"
	"github.com/trezcool/masomo-portal/core/school"
	apisvc "github.com/trezcool/masomo-portal/services/api"
	"github.com/trezcool/masomo-portal/testutil"
)

func newService(t *testing.T, backend *testutil.Backend, usr school.User) *Service {
	t.Helper()
	cl := apisvc.NewClient(backend.URL(), apisvc.StaticToken(backend.Token(usr)))
	cache := query.NewCache(time.Minute)
	return NewService(cl, cache.Scope(usr.ID), school.NewValidator())
}

func cardFor(t *testing.T, cards []CourseCard, title string) CourseCard {
	t.Helper()
	for _, c := range cards {
		if c.Course.Title == title {
			return c
		}
	}
	t.Fatalf("no card for %q", title)
	return CourseCard{}
}

func TestService_requestAccess(t *testing.T) {
	backend := testutil.NewBackend(t)
	teacher := backend.CreateUser(t, "Mr Kabila", "kabila@x.com", "Passw0rd!", school.RoleTeacher)
	student := backend.CreateUser(t, "Jane", "jane@x.com", "Passw0rd!", school.RoleStudent)
	algebra := backend.CreateCourse(t, teacher, "Algebra101", nil)

	ctx := context.Background()
	svc := newService(t, backend, student)

	cards, err := svc.CourseCards(ctx, student)
	require.NoError(t, err)
	card := cardFor(t, cards, "Algebra101")
	assert.Equal(t, StatusNone, card.Status)
	assert.Nil(t, card.Enrollment)
	assert.Equal(t, []Action{ActionRequestAccess}, card.Actions.Allowed)

	require.NoError(t, svc.RequestAccess(ctx, algebra.ID))

	cards, err = svc.CourseCards(ctx, student)
	require.NoError(t, err)
	card = cardFor(t, cards, "Algebra101")
	assert.Equal(t, StatusPending, card.Status)
	assert.Equal(t, "Pending", card.Status.Label())
	assert.Empty(t, card.Actions.Allowed)
	assert.False(t, card.Actions.Can(ActionAccept))
	assert.False(t, card.Actions.Can(ActionDecline))
	assert.Equal(t, "Request Pending", card.Actions.Indicator)

	// a second request is rejected locally
	err = svc.RequestAccess(ctx, algebra.ID)
	vErr, ok := core.AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, "already enrolled or access requested", vErr.Error())
	assert.Equal(t, 1, backend.Hits("POST /api/courses/:id/request-access"))
}

func TestService_inviteAndAccept(t *testing.T) {
	backend := testutil.NewBackend(t)
	teacher := backend.CreateUser(t, "Mr Kabila", "kabila@x.com", "Passw0rd!", school.RoleTeacher)
	jane := backend.CreateUser(t, "Jane", "jane@x.com", "Passw0rd!", school.RoleStudent)
	c1 := backend.CreateCourse(t, teacher, "C1", nil)

	ctx := context.Background()
	staff := newService(t, backend, teacher)
	student := newService(t, backend, jane)

	// warm Jane's cache before the invitation
	active, err := student.ActiveCourses(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	require.NoError(t, staff.Invite(ctx, c1.ID, " Jane@X.com "))

	// another user's mutation does not touch Jane's cache; she refetches explicitly
	student.queries.Invalidate(query.MyEnrollments)
	enrs, err := student.MyEnrollments(ctx)
	require.NoError(t, err)
	require.Len(t, enrs, 1)
	assert.Equal(t, StatusInvited, ParseStatus(enrs[0].Enrollment.Status))
	assert.Equal(t, "C1", enrs[0].Course.Title)

	invitations, err := student.PendingInvitations(ctx)
	require.NoError(t, err)
	require.Len(t, invitations, 1)

	require.NoError(t, student.Respond(ctx, invitations[0].Enrollment.ID, true))

	enrs, err = student.MyEnrollments(ctx)
	require.NoError(t, err)
	require.Len(t, enrs, 1)
	assert.Equal(t, StatusActive, ParseStatus(enrs[0].Enrollment.Status))

	active, err = student.ActiveCourses(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "C1", active[0].Course.Title)

	invitations, err = student.PendingInvitations(ctx)
	require.NoError(t, err)
	assert.Empty(t, invitations)

	roster, err := staff.Roster(ctx, c1.ID)
	require.NoError(t, err)
	require.Len(t, roster, 1)
	assert.Equal(t, jane.ID, roster[0].StudentUserID)

	// inviting her again is rejected before reaching the backend
	err = staff.Invite(ctx, c1.ID, "jane@x.com")
	vErr, ok := core.AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, "student already enrolled or invited", vErr.Error())
	assert.Equal(t, 1, backend.Hits("POST /api/courses/:id/invite"))
}

func TestService_acceptOnlyTouchesTarget(t *testing.T) {
	backend := testutil.NewBackend(t)
	teacher := backend.CreateUser(t, "Mr Kabila", "kabila@x.com", "Passw0rd!", school.RoleTeacher)
	jane := backend.CreateUser(t, "Jane", "jane@x.com", "Passw0rd!", school.RoleStudent)
	math := backend.CreateCourse(t, teacher, "Math", nil)
	physics := backend.CreateCourse(t, teacher, "Physics", nil)
	x := backend.AddEnrollment(jane, math, "invited")
	y := backend.AddEnrollment(jane, physics, "invited")

	ctx := context.Background()
	svc := newService(t, backend, jane)

	require.NoError(t, svc.Respond(ctx, x.ID, true))

	got, ok := backend.Enrollment(jane.ID, math.ID)
	require.True(t, ok)
	assert.Equal(t, "active", got.Status)
	got, ok = backend.Enrollment(jane.ID, physics.ID)
	require.True(t, ok)
	assert.Equal(t, "invited", got.Status)

	invitations, err := svc.PendingInvitations(ctx)
	require.NoError(t, err)
	require.Len(t, invitations, 1)
	assert.Equal(t, y.ID, invitations[0].Enrollment.ID)
}

func TestService_decline(t *testing.T) {
	backend := testutil.NewBackend(t)
	teacher := backend.CreateUser(t, "Mr Kabila", "kabila@x.com", "Passw0rd!", school.RoleTeacher)
	jane := backend.CreateUser(t, "Jane", "jane@x.com", "Passw0rd!", school.RoleStudent)
	c1 := backend.CreateCourse(t, teacher, "C1", nil)
	inv := backend.AddEnrollment(jane, c1, "invited")

	ctx := context.Background()
	svc := newService(t, backend, jane)

	require.NoError(t, svc.Respond(ctx, inv.ID, false))

	active, err := svc.ActiveCourses(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	cards, err := svc.CourseCards(ctx, jane)
	require.NoError(t, err)
	card := cardFor(t, cards, "C1")
	assert.Equal(t, StatusDeclined, card.Status)
	assert.Empty(t, card.Actions.Allowed)
	assert.Empty(t, card.Actions.Indicator)

	// declined is terminal
	err = svc.Respond(ctx, inv.ID, true)
	_, ok := core.AsValidationError(err)
	assert.True(t, ok)
}

func TestService_validation(t *testing.T) {
	backend := testutil.NewBackend(t)
	teacher := backend.CreateUser(t, "Mr Kabila", "kabila@x.com", "Passw0rd!", school.RoleTeacher)
	jane := backend.CreateUser(t, "Jane", "jane@x.com", "Passw0rd!", school.RoleStudent)
	c1 := backend.CreateCourse(t, teacher, "C1", nil)
	pending := backend.AddEnrollment(jane, c1, "pending")

	ctx := context.Background()

	t.Run("invalid email", func(t *testing.T) {
		err := newService(t, backend, teacher).Invite(ctx, c1.ID, "not-an-email")
		vErr, ok := core.AsValidationError(err)
		require.True(t, ok)
		assert.Contains(t, vErr.FieldMap(), "email")
	})

	t.Run("unknown student", func(t *testing.T) {
		err := newService(t, backend, teacher).Invite(ctx, c1.ID, "ghost@x.com")
		require.Error(t, err)
		assert.Equal(t, "student not found", err.Error())
	})

	t.Run("respond to a request", func(t *testing.T) {
		err := newService(t, backend, jane).Respond(ctx, pending.ID, true)
		vErr, ok := core.AsValidationError(err)
		require.True(t, ok)
		assert.Equal(t, "this enrollment is not awaiting your response", vErr.Error())
	})

	t.Run("respond to unknown", func(t *testing.T) {
		err := newService(t, backend, jane).Respond(ctx, "nope", true)
		_, ok := core.AsValidationError(err)
		assert.True(t, ok)
	})

	t.Run("staff cards have no actions", func(t *testing.T) {
		cards, err := newService(t, backend, teacher).CourseCards(ctx, teacher)
		require.NoError(t, err)
		card := cardFor(t, cards, "C1")
		assert.Equal(t, StatusNone, card.Status)
		assert.Empty(t, card.Actions.Allowed)
	})

	t.Run("roster needs a course", func(t *testing.T) {
		_, err := newService(t, backend, teacher).Roster(ctx, "")
		assert.ErrorIs(t, err, query.ErrDisabled)
	})
}
