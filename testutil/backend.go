// Package testutil provides an in-memory fake of the school REST backend and test helpers.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/masomo-portal/core/school"
)

const (
	contextUserKey = "user"
	tokenLifetime  = time.Hour
)

// wire statuses as the backend stores them
const (
	statusPending  = "pending"
	statusInvited  = "invited"
	statusActive   = "active"
	statusRejected = "rejected"
)

type (
	userRec struct {
		school.User
		hash     []byte
		schoolID string
	}

	ratingRec struct {
		school.NewRating
		fromUserID string
	}

	attendanceRec struct {
		school.AttendanceRecord
		markedBy string
	}

	// Backend is a fake of the school REST backend served by an httptest.Server.
	Backend struct {
		Server *httptest.Server

		app    *echo.Echo
		secret []byte
		clock  time.Time

		mu            sync.Mutex
		hits          map[string]int
		users         []*userRec
		schools       []*school.School
		courses       []*school.Course
		enrollments   []*school.Enrollment
		attendance    []*attendanceRec
		payments      []*school.Payment
		grades        []*school.Grade
		assignments   []*school.Assignment
		submissions   []*school.Submission
		announcements []*school.Announcement
		messages      []*school.Message
		notifications []*notificationRec
		ratings       []*ratingRec
	}

	notificationRec struct {
		school.Notification
		userID string
	}
)

// NewBackend starts a fake backend; it is closed when the test ends.
func NewBackend(t testing.TB) *Backend {
	b := &Backend{
		app:    echo.New(),
		secret: []byte(uuid.NewString()),
		clock:  time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC),
		hits:   make(map[string]int),
	}
	b.setup()
	b.Server = httptest.NewServer(b.app)
	t.Cleanup(b.Server.Close)
	return b
}

func (b *Backend) URL() string {
	return b.Server.URL
}

func (b *Backend) setup() {
	b.app.HideBanner = true
	b.app.Pre(middleware.RemoveTrailingSlash())
	b.app.HTTPErrorHandler = fakeHTTPErrorHandler
	b.app.Use(b.countHits)

	b.app.POST("/login", b.login)
	b.app.POST("/register", b.register)

	auth := b.authenticate
	b.app.GET("/me", b.me, auth)
	b.app.PUT("/me", b.updateMe, auth)

	api := b.app.Group("/api", auth)
	api.POST("/settings/change-password", b.changePassword)

	api.GET("/courses", b.listCourses)
	api.POST("/courses", b.createCourse, staffOnly)
	api.GET("/courses/:id/roster", b.roster, staffOnly)
	api.GET("/courses/:id/enrollments", b.courseEnrollments, staffOnly)
	api.POST("/courses/:id/request-access", b.requestAccess)
	api.POST("/courses/:id/invite", b.invite, staffOnly)
	api.POST("/invitations/:id/respond", b.respond)
	api.GET("/my-enrollments", b.myEnrollments)

	api.GET("/courses/:id/attendance", b.getAttendance, staffOnly)
	api.POST("/courses/:id/attendance", b.markAttendance, staffOnly)
	api.GET("/my-attendance", b.myAttendance)
	api.GET("/my-attendance/summary", b.myAttendanceSummary)

	api.GET("/payments", b.listPayments, staffOnly)
	api.POST("/payments", b.recordPayment, staffOnly)
	api.GET("/my-payments", b.myPayments)

	api.GET("/courses/:id/grades", b.courseGrades, staffOnly)
	api.POST("/courses/:id/grades", b.addGrade, staffOnly)
	api.GET("/my-grades", b.myGrades)

	api.GET("/courses/:id/assignments", b.courseAssignments)
	api.POST("/courses/:id/assignments", b.createAssignment, staffOnly)
	api.POST("/assignments/:id/submit", b.submit)
	api.GET("/assignments/:id/submissions", b.listSubmissions, staffOnly)
	api.GET("/my-assignments", b.myAssignments)

	api.GET("/messages/conversations", b.conversations)
	api.GET("/messages/unread-count", b.unreadMessages)
	api.GET("/messages/:userId", b.thread)
	api.POST("/messages", b.sendMessage)
	api.GET("/users/search", b.searchUsers)

	api.GET("/notifications", b.listNotifications)
	api.GET("/notifications/unread-count", b.unreadNotifications)
	api.POST("/notifications/mark-all-read", b.markAllRead)
	api.POST("/notifications/:id/read", b.markRead)

	api.GET("/announcements", b.listAnnouncements)
	api.POST("/announcements", b.postAnnouncement, staffOnly)
	api.DELETE("/announcements/:id", b.deleteAnnouncement, staffOnly)

	api.GET("/students", b.listStudents, staffOnly)
	api.GET("/my-students", b.myStudents, staffOnly)
	api.GET("/schools/teachers", b.listTeachers)
	api.POST("/schools/teachers", b.addTeacher, adminOnly)
	api.GET("/schools/:id", b.getSchool)
	api.POST("/ratings", b.rate)

	api.GET("/dashboard/stats", b.dashboardStats)
	api.GET("/dashboard/activity", b.dashboardActivity)
}

// fakeHTTPErrorHandler renders {"error": msg} or a field map, like a JSON API would.
func fakeHTTPErrorHandler(err error, ctx echo.Context) {
	code := http.StatusInternalServerError
	var message interface{} = echo.Map{"error": err.Error()}
	if herr, ok := err.(*echo.HTTPError); ok {
		code = herr.Code
		switch m := herr.Message.(type) {
		case map[string]string:
			message = m
		default:
			message = echo.Map{"error": fmt.Sprint(m)}
		}
	}
	if !ctx.Response().Committed {
		_ = ctx.JSON(code, message)
	}
}

func (b *Backend) countHits(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		err := next(ctx)
		b.mu.Lock()
		b.hits[ctx.Request().Method+" "+ctx.Path()]++
		b.mu.Unlock()
		return err
	}
}

// Hits returns how many times a route was called, e.g. Hits("GET /api/courses/:id/roster").
func (b *Backend) Hits(route string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hits[route]
}

// now returns a strictly increasing time so records have a stable order.
func (b *Backend) now() time.Time {
	b.clock = b.clock.Add(time.Minute)
	return b.clock
}

// Authentication

func (b *Backend) signToken(usr school.User, exp time.Time) string {
	claims := jwt.StandardClaims{Subject: usr.ID, IssuedAt: time.Now().Unix(), ExpiresAt: exp.Unix()}
	ss, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(b.secret)
	if err != nil {
		panic(err)
	}
	return ss
}

// Token returns a valid bearer token for usr.
func (b *Backend) Token(usr school.User) string {
	return b.signToken(usr, time.Now().Add(tokenLifetime))
}

// ExpiredToken returns a token for usr that expired an hour ago.
func (b *Backend) ExpiredToken(usr school.User) string {
	return b.signToken(usr, time.Now().Add(-time.Hour))
}

func (b *Backend) authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		header := ctx.Request().Header.Get(echo.HeaderAuthorization)
		raw := strings.TrimPrefix(header, "Bearer ")
		if header == "" || raw == header {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing or malformed token")
		}
		claims := new(jwt.StandardClaims)
		_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) { return b.secret, nil })
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
		}

		b.mu.Lock()
		usr := b.userByID(claims.Subject)
		b.mu.Unlock()
		if usr == nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "user not found")
		}
		ctx.Set(contextUserKey, usr)
		return next(ctx)
	}
}

func contextUser(ctx echo.Context) *userRec {
	return ctx.Get(contextUserKey).(*userRec)
}

func staffOnly(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		if !contextUser(ctx).Role.IsStaff() {
			return echo.NewHTTPError(http.StatusForbidden, "permission denied")
		}
		return next(ctx)
	}
}

func adminOnly(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		if !contextUser(ctx).Role.IsAdmin() {
			return echo.NewHTTPError(http.StatusForbidden, "permission denied")
		}
		return next(ctx)
	}
}

func errBadRequest(msg string) error {
	return echo.NewHTTPError(http.StatusBadRequest, msg)
}

func errNotFound(what string) error {
	return echo.NewHTTPError(http.StatusNotFound, what+" not found")
}

// Seeding

// CreateUser registers a user directly in the store.
func (b *Backend) CreateUser(t testing.TB, name, email, pwd string, role school.Role) school.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("CreateUser(): %v", err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	usr := &userRec{
		User: school.User{ID: uuid.NewString(), Email: email, Name: name, Role: role, CreatedAt: b.now()},
		hash: hash,
	}
	b.users = append(b.users, usr)
	return usr.User
}

// CreateSchool creates a school administered by admin.
func (b *Backend) CreateSchool(t testing.TB, admin school.User, name string) school.School {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	sch := &school.School{ID: uuid.NewString(), Name: name, City: "Kinshasa", IsVerified: true}
	b.schools = append(b.schools, sch)
	if usr := b.userByID(admin.ID); usr != nil {
		usr.schoolID = sch.ID
	}
	return *sch
}

// JoinSchool attaches a teacher to a school.
func (b *Backend) JoinSchool(teacher school.User, schoolID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if usr := b.userByID(teacher.ID); usr != nil {
		usr.schoolID = schoolID
	}
}

// CreateCourse creates a course taught by teacher.
func (b *Backend) CreateCourse(t testing.TB, teacher school.User, title string, sched *school.Schedule) school.Course {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	tchr := b.userByID(teacher.ID)
	if tchr == nil {
		t.Fatalf("CreateCourse(): unknown teacher %s", teacher.ID)
	}
	return *b.newCourse(tchr, school.NewCourse{Title: title, Price: 100, Schedule: sched})
}

// Enroll creates an active enrollment.
func (b *Backend) Enroll(student school.User, course school.Course) school.Enrollment {
	return b.addEnrollment(student.ID, course.ID, statusActive)
}

// AddEnrollment creates an enrollment with a raw wire status.
func (b *Backend) AddEnrollment(student school.User, course school.Course, status string) school.Enrollment {
	return b.addEnrollment(student.ID, course.ID, status)
}

func (b *Backend) addEnrollment(studentID, courseID, status string) school.Enrollment {
	b.mu.Lock()
	defer b.mu.Unlock()
	enr := &school.Enrollment{
		ID:            uuid.NewString(),
		StudentUserID: studentID,
		CourseID:      courseID,
		EnrolledAt:    b.now(),
		Status:        status,
	}
	b.enrollments = append(b.enrollments, enr)
	return *enr
}

// Approve is the server-side approval (or rejection) of a pending request.
func (b *Backend) Approve(enrollmentID string, approve bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, enr := range b.enrollments {
		if enr.ID == enrollmentID && enr.Status == statusPending {
			if approve {
				enr.Status = statusActive
			} else {
				enr.Status = statusRejected
			}
		}
	}
}

// Enrollment returns the stored enrollment of (student, course), if any.
func (b *Backend) Enrollment(studentID, courseID string) (school.Enrollment, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if enr := b.enrollmentOf(studentID, courseID); enr != nil {
		return *enr, true
	}
	return school.Enrollment{}, false
}

// Notify sends a notification to a user.
func (b *Backend) Notify(usr school.User, typ, title string) school.Notification {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.notify(usr.ID, typ, title, "", "")
}

// SendMessage stores a direct message from one user to another.
func (b *Backend) SendMessage(from, to school.User, content string) school.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return *b.storeMessage(b.userByID(from.ID), b.userByID(to.ID), content)
}

// AttendanceFor returns the stored records of a course for a date.
func (b *Backend) AttendanceFor(courseID, date string) []school.AttendanceRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attendanceOf(courseID, date)
}

// Lookups; callers hold mu.

func (b *Backend) userByID(id string) *userRec {
	for _, usr := range b.users {
		if usr.ID == id {
			return usr
		}
	}
	return nil
}

func (b *Backend) userByEmail(email string) *userRec {
	for _, usr := range b.users {
		if strings.EqualFold(usr.Email, email) {
			return usr
		}
	}
	return nil
}

func (b *Backend) courseByID(id string) *school.Course {
	for _, c := range b.courses {
		if c.ID == id {
			return c
		}
	}
	return nil
}

func (b *Backend) schoolByID(id string) *school.School {
	for _, s := range b.schools {
		if s.ID == id {
			return s
		}
	}
	return nil
}

func (b *Backend) enrollmentOf(studentID, courseID string) *school.Enrollment {
	for _, enr := range b.enrollments {
		if enr.StudentUserID == studentID && enr.CourseID == courseID {
			return enr
		}
	}
	return nil
}

// manages reports whether usr may manage course c.
func (b *Backend) manages(usr *userRec, c *school.Course) bool {
	switch {
	case usr.Role == school.RoleAdmin:
		return true
	case usr.Role == school.RoleSchoolAdmin:
		return c.SchoolID != nil && *c.SchoolID == usr.schoolID
	case usr.Role.IsTeacher():
		return c.TeacherID != nil && *c.TeacherID == usr.ID
	}
	return false
}

func (b *Backend) visibleCourses(usr *userRec) []*school.Course {
	if usr.Role.IsStudent() {
		return b.courses
	}
	var courses []*school.Course
	for _, c := range b.courses {
		if b.manages(usr, c) {
			courses = append(courses, c)
		}
	}
	return courses
}

func (b *Backend) managedCourse(ctx echo.Context) (*school.Course, error) {
	c := b.courseByID(ctx.Param("id"))
	if c == nil {
		return nil, errNotFound("course")
	}
	if !b.manages(contextUser(ctx), c) {
		return nil, echo.NewHTTPError(http.StatusForbidden, "unauthorized for this course")
	}
	return c, nil
}

func (b *Backend) notify(userID, typ, title, msg, link string) school.Notification {
	n := &notificationRec{
		Notification: school.Notification{
			ID: uuid.NewString(), Type: typ, Title: title, Message: msg, Link: link, CreatedAt: b.now(),
		},
		userID: userID,
	}
	b.notifications = append(b.notifications, n)
	return n.Notification
}
