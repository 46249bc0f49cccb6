package testutil

import (
	"net/http"
	"sort"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/samber/lo"

	"github.com/trezcool/masomo-portal/core/school"
)

func (b *Backend) newCourse(creator *userRec, nc school.NewCourse) *school.Course {
	c := &school.Course{
		ID:          uuid.NewString(),
		Title:       nc.Title,
		Description: nc.Description,
		Price:       nc.Price,
		Schedule:    nc.Schedule,
		CreatedAt:   b.now(),
	}
	teacher := creator
	if creator.Role.IsAdmin() && nc.TeacherID != nil {
		if t := b.userByID(*nc.TeacherID); t != nil {
			teacher = t
		}
	}
	if teacher.Role.IsTeacher() {
		c.TeacherID = lo.ToPtr(teacher.ID)
		c.TeacherName = teacher.Name
		c.TeacherEmail = teacher.Email
	}
	if sid := lo.Ternary(creator.schoolID != "", creator.schoolID, teacher.schoolID); sid != "" {
		c.SchoolID = lo.ToPtr(sid)
		if sch := b.schoolByID(sid); sch != nil {
			c.SchoolName = sch.Name
		}
	}
	b.courses = append(b.courses, c)
	return c
}

func (b *Backend) listCourses(ctx echo.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	courses := make([]school.Course, 0)
	for _, c := range b.visibleCourses(contextUser(ctx)) {
		courses = append(courses, *c)
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (b *Backend) createCourse(ctx echo.Context) error {
	var nc school.NewCourse
	if err := ctx.Bind(&nc); err != nil {
		return errBadRequest("invalid request body")
	}
	if nc.Title == "" {
		return echo.NewHTTPError(http.StatusBadRequest, map[string]string{"title": "this field is required"})
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	c := b.newCourse(contextUser(ctx), nc)
	return ctx.JSON(http.StatusCreated, c)
}

func (b *Backend) roster(ctx echo.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, err := b.managedCourse(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, b.rosterOf(c.ID))
}

func (b *Backend) rosterOf(courseID string) []school.RosterEntry {
	roster := make([]school.RosterEntry, 0)
	for _, enr := range b.enrollments {
		if enr.CourseID != courseID || enr.Status != statusActive {
			continue
		}
		entry := school.RosterEntry{EnrollmentID: enr.ID, StudentUserID: enr.StudentUserID}
		if usr := b.userByID(enr.StudentUserID); usr != nil {
			entry.StudentName = usr.DisplayName()
		}
		roster = append(roster, entry)
	}
	sort.SliceStable(roster, func(i, j int) bool { return roster[i].StudentName < roster[j].StudentName })
	return roster
}

func (b *Backend) courseEnrollments(ctx echo.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, err := b.managedCourse(ctx)
	if err != nil {
		return err
	}
	enrollments := make([]school.CourseEnrollment, 0)
	for _, enr := range b.enrollments {
		if enr.CourseID != c.ID {
			continue
		}
		ce := school.CourseEnrollment{Enrollment: *enr}
		if usr := b.userByID(enr.StudentUserID); usr != nil {
			ce.StudentName = usr.Name
			ce.StudentEmail = usr.Email
		}
		enrollments = append(enrollments, ce)
	}
	return ctx.JSON(http.StatusOK, enrollments)
}

func (b *Backend) requestAccess(ctx echo.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	usr := contextUser(ctx)
	if !usr.Role.IsStudent() {
		return echo.NewHTTPError(http.StatusForbidden, "only students can request access")
	}
	c := b.courseByID(ctx.Param("id"))
	if c == nil {
		return errNotFound("course")
	}
	if b.enrollmentOf(usr.ID, c.ID) != nil {
		return errBadRequest("already enrolled or access requested")
	}
	enr := &school.Enrollment{
		ID: uuid.NewString(), StudentUserID: usr.ID, CourseID: c.ID, EnrolledAt: b.now(), Status: statusPending,
	}
	b.enrollments = append(b.enrollments, enr)
	return ctx.JSON(http.StatusCreated, enr)
}

func (b *Backend) invite(ctx echo.Context) error {
	var inv school.Invitation
	if err := ctx.Bind(&inv); err != nil {
		return errBadRequest("invalid request body")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	c, err := b.managedCourse(ctx)
	if err != nil {
		return err
	}
	student := b.userByEmail(inv.Email)
	if student == nil {
		return errBadRequest("student not found")
	}
	if !student.Role.IsStudent() {
		return errBadRequest("user is not a student")
	}
	if b.enrollmentOf(student.ID, c.ID) != nil {
		return errBadRequest("student already enrolled or invited")
	}
	enr := &school.Enrollment{
		ID: uuid.NewString(), StudentUserID: student.ID, CourseID: c.ID, EnrolledAt: b.now(), Status: statusInvited,
	}
	b.enrollments = append(b.enrollments, enr)
	b.notify(student.ID, school.NotificationSystem, "Course invitation", "You were invited to "+c.Title, "/courses")
	return ctx.JSON(http.StatusCreated, echo.Map{"message": "invitation sent"})
}

func (b *Backend) respond(ctx echo.Context) error {
	var resp school.InvitationResponse
	if err := ctx.Bind(&resp); err != nil {
		return errBadRequest("invalid request body")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	usr := contextUser(ctx)
	var target *school.Enrollment
	for _, enr := range b.enrollments {
		if enr.ID == ctx.Param("id") && enr.StudentUserID == usr.ID {
			target = enr
		}
	}
	if target == nil {
		return errBadRequest("invitation not found")
	}
	if target.Status != statusInvited {
		return errBadRequest("enrollment is not an invitation")
	}
	target.Status = lo.Ternary(resp.Accept, statusActive, statusRejected)
	return ctx.JSON(http.StatusOK, target)
}

func (b *Backend) myEnrollments(ctx echo.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	usr := contextUser(ctx)
	out := make([]school.EnrollmentWithCourse, 0)
	for _, enr := range b.enrollments {
		if enr.StudentUserID != usr.ID {
			continue
		}
		ewc := school.EnrollmentWithCourse{Enrollment: *enr}
		if c := b.courseByID(enr.CourseID); c != nil {
			ewc.Course = *c
		}
		out = append(out, ewc)
	}
	return ctx.JSON(http.StatusOK, out)
}

// Attendance

func (b *Backend) attendanceOf(courseID, date string) []school.AttendanceRecord {
	records := make([]school.AttendanceRecord, 0)
	for _, rec := range b.attendance {
		if rec.CourseID == courseID && rec.Date == date {
			records = append(records, rec.AttendanceRecord)
		}
	}
	return records
}

func (b *Backend) getAttendance(ctx echo.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, err := b.managedCourse(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, b.attendanceOf(c.ID, ctx.QueryParam("date")))
}

func (b *Backend) markAttendance(ctx echo.Context) error {
	var batch school.AttendanceBatch
	if err := ctx.Bind(&batch); err != nil {
		return errBadRequest("invalid request body")
	}
	if batch.Date == "" {
		return errBadRequest("course_id and date are required")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	c, err := b.managedCourse(ctx)
	if err != nil {
		return err
	}
	usr := contextUser(ctx)
	for _, in := range batch.Records {
		if !lo.Contains(school.AttendanceStatuses, in.Status) {
			return errBadRequest("invalid status: " + in.Status)
		}
	}
	for _, in := range batch.Records {
		existing, found := lo.Find(b.attendance, func(rec *attendanceRec) bool {
			return rec.EnrollmentID == in.EnrollmentID && rec.Date == batch.Date
		})
		if !found {
			existing = &attendanceRec{AttendanceRecord: school.AttendanceRecord{ID: uuid.NewString()}}
			b.attendance = append(b.attendance, existing)
		}
		existing.EnrollmentID = in.EnrollmentID
		existing.StudentUserID = in.StudentUserID
		existing.CourseID = c.ID
		existing.CourseTitle = c.Title
		existing.Date = batch.Date
		existing.Status = in.Status
		existing.Note = in.Note
		existing.markedBy = usr.ID
		if student := b.userByID(in.StudentUserID); student != nil {
			existing.StudentName = student.DisplayName()
		}
	}
	return ctx.JSON(http.StatusOK, echo.Map{"message": "attendance saved"})
}

func (b *Backend) myAttendance(ctx echo.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	usr := contextUser(ctx)
	records := make([]school.AttendanceRecord, 0)
	for _, rec := range b.attendance {
		if rec.StudentUserID == usr.ID {
			records = append(records, rec.AttendanceRecord)
		}
	}
	return ctx.JSON(http.StatusOK, records)
}

func (b *Backend) myAttendanceSummary(ctx echo.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	usr := contextUser(ctx)
	byCourse := make(map[string]*school.AttendanceSummary)
	order := make([]string, 0)
	for _, rec := range b.attendance {
		if rec.StudentUserID != usr.ID {
			continue
		}
		sum, ok := byCourse[rec.CourseID]
		if !ok {
			sum = &school.AttendanceSummary{CourseID: rec.CourseID, CourseTitle: rec.CourseTitle}
			byCourse[rec.CourseID] = sum
			order = append(order, rec.CourseID)
		}
		sum.TotalSessions++
		switch rec.Status {
		case school.AttendancePresent:
			sum.Present++
		case school.AttendanceAbsent:
			sum.Absent++
		case school.AttendanceLate:
			sum.Late++
		case school.AttendanceExcused:
			sum.Excused++
		}
		sum.Percentage = float64(sum.Present+sum.Late) * 100 / float64(sum.TotalSessions)
	}
	out := make([]school.AttendanceSummary, 0, len(order))
	for _, id := range order {
		out = append(out, *byCourse[id])
	}
	return ctx.JSON(http.StatusOK, out)
}
