package apisvc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/school"
	"github.com/trezcool/masomo-portal/core/session"
	"github.com/trezcool/masomo-portal/testutil"
)

func TestClient_headers(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	ctx := context.Background()

	cl := NewClient(srv.URL+"/", StaticToken("tok"))
	_, err := cl.Courses(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok", got.Get("Authorization"))
	assert.Equal(t, "application/json", got.Get("Accept"))
	assert.NotEmpty(t, got.Get(HeaderRequestID))
	assert.Empty(t, got.Get("Content-Type"))

	_, err = NewClient(srv.URL, nil).Courses(ctx)
	require.NoError(t, err)
	assert.Empty(t, got.Get("Authorization"))

	require.NoError(t, cl.Post(ctx, "/x", map[string]string{"a": "b"}, nil))
	assert.Equal(t, "application/json", got.Get("Content-Type"))

	_, err = cl.WithToken("other").Courses(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Bearer other", got.Get("Authorization"))
}

func TestClient_roundTripper(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"count": 3}`))
	}))
	defer srv.Close()

	var calls int
	cl := NewClient(srv.URL, nil, WithRoundTripper(func(next http.RoundTripper) http.RoundTripper {
		return roundTripperFunc(func(r *http.Request) (*http.Response, error) {
			calls++
			return next.RoundTrip(r)
		})
	}))
	n, err := cl.UnreadMessages(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 1, calls)
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestNewResponseError(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantMessage string
		wantFields  map[string]string
	}{
		{
			name:        "error key",
			status:      http.StatusBadRequest,
			body:        `{"error": "already enrolled or access requested"}`,
			wantMessage: "already enrolled or access requested",
		},
		{
			name:        "message key",
			status:      http.StatusConflict,
			body:        `{"message": "email already exists"}`,
			wantMessage: "email already exists",
		},
		{
			name:        "field map",
			status:      http.StatusBadRequest,
			body:        `{"current_password": "current password is incorrect"}`,
			wantMessage: "invalid input",
			wantFields:  map[string]string{"current_password": "current password is incorrect"},
		},
		{
			name:        "plain text",
			status:      http.StatusInternalServerError,
			body:        "database is down\n",
			wantMessage: "database is down",
		},
		{
			name:        "empty body",
			status:      http.StatusNotFound,
			wantMessage: "not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := newResponseError(http.MethodPost, "/api/x", tt.status, []byte(tt.body))
			assert.Equal(t, tt.status, err.Status)
			assert.Equal(t, tt.wantMessage, err.Message)
			assert.Equal(t, tt.wantMessage, err.Error())
			if tt.wantFields != nil {
				assert.Equal(t, tt.wantFields, err.Fields)
			}
		})
	}
}

func TestErrorPredicates(t *testing.T) {
	tests := []struct {
		name             string
		err              error
		wantUnauthorized bool
		wantValidation   bool
		wantTransport    bool
		wantNotFound     bool
	}{
		{name: "401", err: &Error{Status: http.StatusUnauthorized}, wantUnauthorized: true},
		{name: "expired token", err: errors.Wrap(session.ErrTokenExpired, "open"), wantUnauthorized: true},
		{name: "400", err: &Error{Status: http.StatusBadRequest}, wantValidation: true},
		{name: "403", err: &Error{Status: http.StatusForbidden}, wantValidation: true},
		{name: "409 wrapped", err: errors.Wrap(&Error{Status: http.StatusConflict}, "rate"), wantValidation: true},
		{name: "422", err: &Error{Status: http.StatusUnprocessableEntity}, wantValidation: true},
		{name: "local validation", err: core.NewValidationError(errors.New("bad")), wantValidation: true},
		{name: "transport", err: &Error{Message: "failed to reach server"}, wantTransport: true},
		{name: "404", err: &Error{Status: http.StatusNotFound}, wantNotFound: true},
		{name: "500", err: &Error{Status: http.StatusInternalServerError}},
		{name: "plain", err: errors.New("boom")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantUnauthorized, IsUnauthorized(tt.err), "IsUnauthorized")
			assert.Equal(t, tt.wantValidation, IsValidation(tt.err), "IsValidation")
			assert.Equal(t, tt.wantTransport, IsTransport(tt.err), "IsTransport")
			assert.Equal(t, tt.wantNotFound, IsNotFound(tt.err), "IsNotFound")
		})
	}
}

func TestFormError(t *testing.T) {
	fErr := FormError(&Error{Status: http.StatusBadRequest, Message: "invalid input", Fields: map[string]string{
		"title": "this field is required",
		"price": "price must be 0 or greater",
	}})
	require.NotNil(t, fErr)
	assert.Equal(t, map[string]string{
		"title": "this field is required",
		"price": "price must be 0 or greater",
	}, fErr.FieldMap())
	assert.Equal(t, "price: price must be 0 or greater; title: this field is required", fErr.Error())

	fErr = FormError(&Error{Status: http.StatusBadRequest, Message: "student not found"})
	require.NotNil(t, fErr)
	assert.Equal(t, "student not found", fErr.Error())

	assert.Nil(t, FormError(&Error{Status: http.StatusInternalServerError}))
	assert.Nil(t, FormError(errors.New("boom")))
}

func TestClient_transportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, nil).Courses(context.Background())
	require.Error(t, err)
	assert.True(t, IsTransport(err))
	assert.False(t, IsValidation(err))
}

func TestClient_badBaseURL(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		wantErr bool
	}{
		{"missing scheme", "localhost:8080", true},
		{"relative", "/api/v1", true},
		{"unsupported scheme", "ftp://api.masomo.io", true},
		{"empty", "", true},
		{"https", "https://api.masomo.io", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := checkBaseURL(tc.baseURL)
			if !tc.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, core.IsShutdown(err))
		})
	}

	_, err := NewClient("localhost:8080", nil).Courses(context.Background())
	require.Error(t, err)
	assert.True(t, core.IsShutdown(err))
	assert.False(t, IsTransport(err))
	assert.Contains(t, err.Error(), "not an absolute http(s) URL")
}

func TestClient_backend(t *testing.T) {
	backend := testutil.NewBackend(t)
	teacher := backend.CreateUser(t, "Mr Kabila", "kabila@x.com", "Passw0rd!", school.RoleTeacher)
	student := backend.CreateUser(t, "Jane", "jane@x.com", "Passw0rd!", school.RoleStudent)
	course := backend.CreateCourse(t, teacher, "Algebra101", nil)

	ctx := context.Background()
	anon := NewClient(backend.URL(), nil)

	t.Run("login", func(t *testing.T) {
		token, err := anon.Login(ctx, school.Credentials{Email: "jane@x.com", Password: "Passw0rd!"})
		require.NoError(t, err)
		usr, err := anon.ResolveUser(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, student.ID, usr.ID)

		_, err = anon.Login(ctx, school.Credentials{Email: "jane@x.com", Password: "wrong"})
		assert.True(t, IsUnauthorized(err))
		assert.Equal(t, "invalid credentials", err.Error())
	})

	t.Run("unauthenticated", func(t *testing.T) {
		_, err := anon.Me(ctx)
		assert.True(t, IsUnauthorized(err))

		_, err = anon.ResolveUser(ctx, backend.ExpiredToken(student))
		assert.True(t, IsUnauthorized(err))
	})

	t.Run("business rejection", func(t *testing.T) {
		cl := anon.WithToken(backend.Token(student))
		require.NoError(t, cl.RequestAccess(ctx, course.ID))

		err := cl.RequestAccess(ctx, course.ID)
		require.Error(t, err)
		assert.True(t, IsValidation(err))
		assert.Equal(t, "already enrolled or access requested", FormError(err).Error())

		enrs, err := cl.MyEnrollments(ctx)
		require.NoError(t, err)
		require.Len(t, enrs, 1)
		assert.Equal(t, "pending", enrs[0].Enrollment.Status)
		assert.Equal(t, "Algebra101", enrs[0].Course.Title)
	})

	t.Run("forbidden", func(t *testing.T) {
		cl := anon.WithToken(backend.Token(student))
		_, err := cl.Roster(ctx, course.ID)
		assert.True(t, IsValidation(err))
		assert.Equal(t, "permission denied", err.Error())
	})

	t.Run("field errors", func(t *testing.T) {
		cl := anon.WithToken(backend.Token(teacher))
		err := cl.ChangePassword(ctx, school.PasswordChange{CurrentPassword: "nope", NewPassword: "Passw0rd!!"})
		fErr := FormError(err)
		require.NotNil(t, fErr)
		assert.Equal(t, map[string]string{"current_password": "current password is incorrect"}, fErr.FieldMap())
	})

	t.Run("path escaping", func(t *testing.T) {
		cl := anon.WithToken(backend.Token(teacher))
		_, err := cl.Roster(ctx, "a/b")
		assert.True(t, IsNotFound(err))
	})
}
