package ledger

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
	return NewService(cl, query.NewCache(time.Minute).Scope(usr.ID), school.NewValidator())
}

func TestAmount(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{in: 0, want: "0.00"},
		{in: 150, want: "150.00"},
		{in: 0.1, want: "0.10"},
		{in: 19.999, want: "20.00"},
		{in: -2.5, want: "-2.50"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FromFloat(tt.in).String())
	}

	// ten dimes make exactly one unit
	var dimes []school.Payment
	for i := 0; i < 10; i++ {
		dimes = append(dimes, school.Payment{CourseID: "c1", Amount: 0.1})
	}
	assert.Equal(t, Amount(100), Total(dimes))
	assert.Equal(t, 1.0, Total(dimes).Float())
}

func TestByCourse(t *testing.T) {
	got := ByCourse([]school.Payment{
		{CourseID: "c1", CourseTitle: "Algebra", Amount: 10},
		{CourseID: "c2", CourseTitle: "Physics", Amount: 5.5},
		{CourseID: "c1", CourseTitle: "Algebra", Amount: 2.25},
	})
	assert.Equal(t, []CourseTotal{
		{CourseID: "c1", CourseTitle: "Algebra", Payments: 2, Total: 1225},
		{CourseID: "c2", CourseTitle: "Physics", Payments: 1, Total: 550},
	}, got)
	assert.Empty(t, ByCourse(nil))
}

func TestService_Record(t *testing.T) {
	backend := testutil.NewBackend(t)
	teacher := backend.CreateUser(t, "Mr Kabila", "kabila@x.com", "Passw0rd!", school.RoleTeacher)
	jane := backend.CreateUser(t, "Jane", "jane@x.com", "Passw0rd!", school.RoleStudent)
	algebra := backend.CreateCourse(t, teacher, "Algebra101", nil)
	physics := backend.CreateCourse(t, teacher, "Physics", nil)
	backend.Enroll(jane, algebra)
	backend.Enroll(jane, physics)

	ctx := context.Background()
	svc := newService(t, backend, teacher)

	_, err := svc.Record(ctx, school.NewPayment{StudentUserID: jane.ID, CourseID: physics.ID, Amount: 20.1, Method: "card"})
	require.NoError(t, err)

	before, err := svc.Payments(ctx, "")
	require.NoError(t, err)
	beforeAlgebra, err := svc.Payments(ctx, algebra.ID)
	require.NoError(t, err)
	assert.Empty(t, beforeAlgebra)

	p, err := svc.Record(ctx, school.NewPayment{
		StudentUserID: jane.ID, CourseID: algebra.ID, Amount: 150.00, Method: " Cash ", PaidAt: "2024-03-01",
	})
	require.NoError(t, err)
	assert.Equal(t, school.PaymentCash, p.Method)
	assert.Equal(t, "Algebra101", p.CourseTitle)

	after, err := svc.Payments(ctx, "")
	require.NoError(t, err)
	assert.Len(t, after, len(before)+1)
	assert.Equal(t, FromFloat(150), Total(after)-Total(before))
	assert.Equal(t, "170.10", Total(after).String())

	afterAlgebra, err := svc.Payments(ctx, algebra.ID)
	require.NoError(t, err)
	require.Len(t, afterAlgebra, 1, "course filter refetched after the prefix invalidation")
	assert.Equal(t, 150.0, afterAlgebra[0].Amount)

	mine, err := newService(t, backend, jane).MyPayments(ctx)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	t.Run("validation", func(t *testing.T) {
		tests := []struct {
			name  string
			np    school.NewPayment
			field string
		}{
			{name: "zero amount", np: school.NewPayment{StudentUserID: jane.ID, CourseID: algebra.ID, Method: "cash"}, field: "amount"},
			{name: "bad method", np: school.NewPayment{StudentUserID: jane.ID, CourseID: algebra.ID, Amount: 1, Method: "bitcoin"}, field: "method"},
			{name: "no student", np: school.NewPayment{CourseID: algebra.ID, Amount: 1, Method: "cash"}, field: "student_user_id"},
			{name: "bad date", np: school.NewPayment{StudentUserID: jane.ID, CourseID: algebra.ID, Amount: 1, Method: "cash", PaidAt: "01/03/2024"}, field: "paid_at"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := svc.Record(ctx, tt.np)
				vErr, ok := core.AsValidationError(err)
				require.True(t, ok)
				assert.Contains(t, vErr.FieldMap(), tt.field)
			})
		}
		assert.Equal(t, 2, backend.Hits("POST /api/payments"))
	})

	t.Run("students cannot record", func(t *testing.T) {
		_, err := newService(t, backend, jane).Record(ctx, school.NewPayment{
			StudentUserID: jane.ID, CourseID: algebra.ID, Amount: 1, Method: "cash",
		})
		assert.True(t, apisvc.IsValidation(err))
	})
}
