package testutil

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/samber/lo"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/masomo-portal/core/school"
)

func (b *Backend) listStudents(ctx echo.Context) error {
	search := strings.ToLower(ctx.QueryParam("search"))
	b.mu.Lock()
	defer b.mu.Unlock()
	users := make([]school.User, 0)
	for _, usr := range b.users {
		if !usr.Role.IsStudent() {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(usr.Name+" "+usr.Email), search) {
			continue
		}
		users = append(users, usr.User)
	}
	return ctx.JSON(http.StatusOK, users)
}

func (b *Backend) myStudents(ctx echo.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	usr := contextUser(ctx)
	seen := make(map[string]bool)
	users := make([]school.User, 0)
	for _, c := range b.visibleCourses(usr) {
		for _, entry := range b.rosterOf(c.ID) {
			if seen[entry.StudentUserID] {
				continue
			}
			seen[entry.StudentUserID] = true
			if student := b.userByID(entry.StudentUserID); student != nil {
				users = append(users, student.User)
			}
		}
	}
	return ctx.JSON(http.StatusOK, users)
}

func (b *Backend) teachersOf(schoolID string) []school.User {
	users := make([]school.User, 0)
	for _, usr := range b.users {
		if usr.Role.IsTeacher() && (schoolID == "" || usr.schoolID == schoolID) {
			users = append(users, usr.User)
		}
	}
	return users
}

func (b *Backend) listTeachers(ctx echo.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return ctx.JSON(http.StatusOK, b.teachersOf(contextUser(ctx).schoolID))
}

func (b *Backend) addTeacher(ctx echo.Context) error {
	var nt school.NewTeacher
	if err := ctx.Bind(&nt); err != nil {
		return errBadRequest("invalid request body")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(nt.Password), bcrypt.MinCost)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	admin := contextUser(ctx)
	if admin.schoolID == "" {
		return errBadRequest("school not found")
	}
	if b.userByEmail(nt.Email) != nil {
		return echo.NewHTTPError(http.StatusConflict, "email already exists")
	}
	teacher := &userRec{
		User:     school.User{ID: uuid.NewString(), Email: nt.Email, Name: nt.Name, Role: school.RoleTeacher, CreatedAt: b.now()},
		hash:     hash,
		schoolID: admin.schoolID,
	}
	b.users = append(b.users, teacher)
	return ctx.JSON(http.StatusCreated, teacher.User)
}

func (b *Backend) getSchool(ctx echo.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	sch := b.schoolByID(ctx.Param("id"))
	if sch == nil {
		return errNotFound("school")
	}
	out := *sch
	out.Teachers = b.teachersOf(sch.ID)
	out.Courses = make([]school.Course, 0)
	for _, c := range b.courses {
		if c.SchoolID != nil && *c.SchoolID == sch.ID {
			out.Courses = append(out.Courses, *c)
		}
	}
	return ctx.JSON(http.StatusOK, out)
}

func (b *Backend) rate(ctx echo.Context) error {
	var nr school.NewRating
	if err := ctx.Bind(&nr); err != nil {
		return errBadRequest("invalid request body")
	}
	if nr.Score < 1 || nr.Score > 10 {
		return echo.NewHTTPError(http.StatusBadRequest, map[string]string{"score": "score must be between 1 and 10"})
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	usr := contextUser(ctx)
	sameTarget := func(r *ratingRec) bool {
		return r.fromUserID == usr.ID && lo.FromPtr(r.ToUserID) == lo.FromPtr(nr.ToUserID) &&
			lo.FromPtr(r.ToSchoolID) == lo.FromPtr(nr.ToSchoolID)
	}
	if lo.ContainsBy(b.ratings, sameTarget) {
		return echo.NewHTTPError(http.StatusConflict, "you have already rated this user")
	}
	b.ratings = append(b.ratings, &ratingRec{NewRating: nr, fromUserID: usr.ID})

	if nr.ToUserID != nil {
		if target := b.userByID(*nr.ToUserID); target != nil {
			total := target.RatingAvg*float64(target.RatingCount) + float64(nr.Score)
			target.RatingCount++
			target.RatingAvg = total / float64(target.RatingCount)
		}
	}
	if nr.ToSchoolID != nil {
		if sch := b.schoolByID(*nr.ToSchoolID); sch != nil {
			total := sch.RatingAvg*float64(sch.RatingCount) + float64(nr.Score)
			sch.RatingCount++
			sch.RatingAvg = total / float64(sch.RatingCount)
		}
	}
	return ctx.JSON(http.StatusCreated, echo.Map{"message": "rating saved"})
}

// Dashboard

func (b *Backend) dashboardStats(ctx echo.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	usr := contextUser(ctx)
	courses := b.visibleCourses(usr)
	courseIDs := lo.Map(courses, func(c *school.Course, _ int) string { return c.ID })

	var stats school.DashboardStats
	stats.TotalCourses = len(courses)
	stats.TotalStudents = lo.CountBy(b.users, func(u *userRec) bool { return u.Role.IsStudent() })
	stats.TotalTeachers = len(b.teachersOf(usr.schoolID))
	for _, enr := range b.enrollments {
		if !lo.Contains(courseIDs, enr.CourseID) {
			continue
		}
		switch enr.Status {
		case statusActive:
			stats.ActiveEnrolments++
		case statusPending:
			stats.PendingRequests++
		}
	}
	monthAgo := b.clock.Add(-30 * 24 * time.Hour)
	for _, p := range b.payments {
		if !lo.Contains(courseIDs, p.CourseID) {
			continue
		}
		stats.TotalRevenue += p.Amount
		if p.PaidAt.After(monthAgo) {
			stats.RecentPayments++
		}
	}
	var attended, total int
	for _, rec := range b.attendance {
		if !lo.Contains(courseIDs, rec.CourseID) {
			continue
		}
		total++
		if rec.Status == school.AttendancePresent || rec.Status == school.AttendanceLate {
			attended++
		}
	}
	if total > 0 {
		stats.AvgAttendance = float64(attended) * 100 / float64(total)
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (b *Backend) dashboardActivity(ctx echo.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	activity := make([]school.Activity, 0)
	for i := len(b.payments) - 1; i >= 0 && len(activity) < 10; i-- {
		p := b.payments[i]
		activity = append(activity, school.Activity{
			Type:      "payment",
			Message:   p.StudentName + " paid for " + p.CourseTitle,
			Timestamp: p.CreatedAt.Format(time.RFC3339),
		})
	}
	for i := len(b.enrollments) - 1; i >= 0 && len(activity) < 20; i-- {
		enr := b.enrollments[i]
		name := enr.StudentUserID
		if usr := b.userByID(enr.StudentUserID); usr != nil {
			name = usr.DisplayName()
		}
		title := enr.CourseID
		if c := b.courseByID(enr.CourseID); c != nil {
			title = c.Title
		}
		activity = append(activity, school.Activity{
			Type:      "enrollment",
			Message:   name + " " + enr.Status + " in " + title,
			Timestamp: enr.EnrolledAt.Format(time.RFC3339),
		})
	}
	return ctx.JSON(http.StatusOK, activity)
}
