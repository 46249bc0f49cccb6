package school

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-portal/core"
)

func fieldErrs(t *testing.T, err error) map[string]string {
	t.Helper()
	if err == nil {
		return nil
	}
	vErr, ok := core.AsValidationError(err)
	require.True(t, ok, "want *core.ValidationError, got %T", err)
	return vErr.FieldMap()
}

func TestInputValidation(t *testing.T) {
	v := NewValidator()
	score := 12.5
	blank := "  "
	uid := "u1"

	tests := []struct {
		name    string
		input   interface{}
		wantErr map[string]string
	}{
		{
			name:    "credentials ok",
			input:   Credentials{Email: "jane@x.com", Password: "secret"},
			wantErr: nil,
		},
		{
			name:    "credentials invalid email",
			input:   Credentials{Email: "jane", Password: "secret"},
			wantErr: map[string]string{"email": "email must be a valid email address"},
		},
		{
			name:    "registration unknown role",
			input:   Registration{Email: "jane@x.com", Password: "Pass1234!", Role: "janitor"},
			wantErr: map[string]string{"role": "invalid role"},
		},
		{
			name:    "registration short password",
			input:   Registration{Email: "jane@x.com", Password: "abc", Role: RoleStudent},
			wantErr: map[string]string{"password": "password must contain at least 8 characters"},
		},
		{
			name:    "registration numeric password",
			input:   Registration{Email: "jane@x.com", Password: "12345678", Role: RoleStudent},
			wantErr: map[string]string{"password": "password cannot be entirely numeric"},
		},
		{
			name:    "registration password with space",
			input:   Registration{Email: "jane@x.com", Password: "pass word1", Role: RoleTeacher},
			wantErr: map[string]string{"password": "password must not contain whitespace"},
		},
		{
			name:    "payment ok",
			input:   NewPayment{StudentUserID: "s", CourseID: "c", Amount: 150, Method: PaymentCash},
			wantErr: nil,
		},
		{
			name:    "payment unknown method",
			input:   NewPayment{StudentUserID: "s", CourseID: "c", Amount: 150, Method: "bitcoin"},
			wantErr: map[string]string{"method": "method must be one of cash, card, transfer or other"},
		},
		{
			name:    "payment zero amount",
			input:   NewPayment{StudentUserID: "s", CourseID: "c", Amount: 0, Method: PaymentCard},
			wantErr: map[string]string{"amount": "amount must be greater than 0"},
		},
		{
			name:    "grade needs score or letter",
			input:   NewGrade{StudentUserID: "s", Title: "Quiz 1"},
			wantErr: map[string]string{"score": "a score or a letter grade is required"},
		},
		{
			name:    "grade with score",
			input:   NewGrade{StudentUserID: "s", Title: "Quiz 1", Score: &score},
			wantErr: nil,
		},
		{
			name:    "grade with blank letter",
			input:   NewGrade{StudentUserID: "s", Title: "Quiz 1", LetterGrade: &blank},
			wantErr: map[string]string{"score": "a score or a letter grade is required", "letter_grade": "this field cannot be blank"},
		},
		{
			name:    "blank announcement title",
			input:   NewAnnouncement{Title: "   ", Content: "hello"},
			wantErr: map[string]string{"title": "this field cannot be blank"},
		},
		{
			name:    "empty submission",
			input:   NewSubmission{},
			wantErr: map[string]string{"content": "content or a link is required"},
		},
		{
			name:    "rating out of range",
			input:   NewRating{ToUserID: &uid, Score: 11},
			wantErr: map[string]string{"score": "score must be 10 or less"},
		},
		{
			name:    "rating without target",
			input:   NewRating{Score: 7},
			wantErr: map[string]string{"to_user_id": "a teacher, student or school to rate is required"},
		},
		{
			name:    "message required",
			input:   NewMessage{ToUserID: "u2"},
			wantErr: map[string]string{"content": "this field is required"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Check(tt.input)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tt.wantErr, fieldErrs(t, err))
		})
	}
}

func TestValidator_Var(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.Var("status", AttendanceLate, "attendance_status"))
	err := v.Var("status", "sleeping", "attendance_status")
	assert.Equal(t, map[string]string{"status": "status must be one of present, absent, late or excused"}, fieldErrs(t, err))
}

func TestRole(t *testing.T) {
	tests := []struct {
		role      Role
		wantStaff bool
		wantAdmin bool
	}{
		{RoleStudent, false, false},
		{RoleTeacher, true, false},
		{RoleSchoolAdmin, true, true},
		{RoleAdmin, true, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			assert.Equal(t, tt.wantStaff, tt.role.IsStaff())
			assert.Equal(t, tt.wantAdmin, tt.role.IsAdmin())
		})
	}
}
