package echoweb

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/spf13/cast"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/attendance"
	"github.com/trezcool/masomo-portal/core/grading"
	"github.com/trezcool/masomo-portal/core/ledger"
	"github.com/trezcool/masomo-portal/core/school"
	"github.com/trezcool/masomo-portal/core/timetable"
)

// coursePicker is the (course[, date]) selection shared by the staff record pages.
type coursePicker struct {
	Courses  []school.Course
	CourseID string
	Date     string
}

func (p coursePicker) Selected() (school.Course, bool) {
	return lo.Find(p.Courses, func(c school.Course) bool { return c.ID == p.CourseID })
}

func (s *Server) loadPicker(l *loader, ctx echo.Context, v *viewer, p *coursePicker) {
	l.Go("courses", func() (err error) {
		p.Courses, err = v.catalog.Courses(ctx.Request().Context())
		return err
	})
}

// Attendance

type attendanceData struct {
	Picker   coursePicker
	Statuses []string
	Rows     []attendance.Row
	Records  []school.AttendanceRecord
	Summary  []school.AttendanceSummary
}

func (s *Server) attendancePage(ctx echo.Context) error {
	return s.renderAttendance(ctx, ctx.QueryParam("course"), ctx.QueryParam("date"), nil)
}

func (s *Server) renderAttendance(ctx echo.Context, courseID, date string, form *formState) error {
	v, err := getViewer(ctx)
	if err != nil {
		return err
	}
	reqCtx := ctx.Request().Context()
	data := attendanceData{Statuses: school.AttendanceStatuses}

	var l loader
	if v.user.Role.IsStudent() {
		l.Go("records", func() (err error) {
			data.Records, err = v.attendance.MyAttendance(reqCtx)
			return err
		})
		l.Go("summary", func() (err error) {
			data.Summary, err = v.attendance.MySummary(reqCtx)
			return err
		})
	} else {
		data.Picker = coursePicker{CourseID: courseID, Date: lo.Ternary(date != "", date, today())}
		s.loadPicker(&l, ctx, v, &data.Picker)
		if courseID != "" {
			l.Go("sheet", func() error {
				sheet := attendance.NewSheet()
				if err := v.attendance.Load(reqCtx, sheet, courseID, data.Picker.Date); err != nil {
					return err
				}
				data.Rows = sheet.Rows()
				return nil
			})
		}
	}
	errs, err := l.Wait()
	if err != nil {
		return errors.Wrap(err, "loading attendance")
	}
	return s.render(ctx, v, "attendance.html", "Attendance", form, errs, data)
}

// saveAttendance applies the submitted marks to a freshly loaded sheet and saves it as one batch.
func (s *Server) saveAttendance(ctx echo.Context) error {
	v, err := getViewer(ctx)
	if err != nil {
		return err
	}
	if err := staffOnly(v); err != nil {
		return err
	}
	reqCtx := ctx.Request().Context()
	courseID, date := ctx.FormValue("course"), ctx.FormValue("date")

	fail := func(err error) error {
		if formFailure(err) {
			return s.renderAttendance(ctx, courseID, date, newFormState("attendance", ctx, err))
		}
		return errors.Wrap(err, "saving attendance")
	}

	sheet := attendance.NewSheet()
	if err := v.attendance.Load(reqCtx, sheet, courseID, date); err != nil {
		return fail(err)
	}
	for _, row := range sheet.Rows() {
		status := ctx.FormValue("status-" + row.EnrollmentID)
		if status == "" {
			continue
		}
		if err := sheet.Mark(row.EnrollmentID, status, ctx.FormValue("note-"+row.EnrollmentID)); err != nil {
			return fail(err)
		}
	}
	if err := v.attendance.Save(reqCtx, sheet); err != nil {
		return fail(err)
	}
	return s.redirectWith(ctx, "/attendance?course="+courseID+"&date="+date, "attendance saved")
}

// Payments

type paymentsData struct {
	Picker   coursePicker
	Methods  []string
	Payments []school.Payment
	Total    ledger.Amount
	ByCourse []ledger.CourseTotal
	Roster   []school.RosterEntry
}

func (s *Server) paymentsPage(ctx echo.Context) error {
	return s.renderPayments(ctx, ctx.QueryParam("course"), nil)
}

func (s *Server) renderPayments(ctx echo.Context, courseID string, form *formState) error {
	v, err := getViewer(ctx)
	if err != nil {
		return err
	}
	reqCtx := ctx.Request().Context()
	data := paymentsData{Methods: school.PaymentMethods, Picker: coursePicker{CourseID: courseID}}

	var l loader
	if v.user.Role.IsStudent() {
		l.Go("payments", func() (err error) {
			data.Payments, err = v.ledger.MyPayments(reqCtx)
			return err
		})
	} else {
		s.loadPicker(&l, ctx, v, &data.Picker)
		l.Go("payments", func() (err error) {
			data.Payments, err = v.ledger.Payments(reqCtx, courseID)
			return err
		})
		if courseID != "" {
			l.Go("roster", func() (err error) {
				data.Roster, err = v.enrollment.Roster(reqCtx, courseID)
				return err
			})
		}
	}
	errs, err := l.Wait()
	if err != nil {
		return errors.Wrap(err, "loading payments")
	}
	data.Total = ledger.Total(data.Payments)
	data.ByCourse = ledger.ByCourse(data.Payments)
	return s.render(ctx, v, "payments.html", "Payments", form, errs, data)
}

func (s *Server) recordPayment(ctx echo.Context) error {
	v, err := getViewer(ctx)
	if err != nil {
		return err
	}
	if err := staffOnly(v); err != nil {
		return err
	}
	courseID := ctx.FormValue("course")
	np := school.NewPayment{
		StudentUserID: ctx.FormValue("student"),
		CourseID:      courseID,
		Amount:        cast.ToFloat64(ctx.FormValue("amount")),
		Method:        ctx.FormValue("method"),
		Note:          ctx.FormValue("note"),
		PaidAt:        ctx.FormValue("paid_at"),
	}
	p, err := v.ledger.Record(ctx.Request().Context(), np)
	if err != nil {
		if formFailure(err) {
			return s.renderPayments(ctx, courseID, newFormState("payment", ctx, err))
		}
		return errors.Wrap(err, "recording payment")
	}
	return s.redirectWith(ctx, "/payments?course="+courseID, "payment of "+ledger.FromFloat(p.Amount).String()+" recorded")
}

// Grades

type gradesData struct {
	Picker     coursePicker
	Grades     []school.Grade
	Average    float64
	HasAverage bool
	Roster     []school.RosterEntry
}

func (s *Server) gradesPage(ctx echo.Context) error {
	return s.renderGrades(ctx, ctx.QueryParam("course"), nil)
}

func (s *Server) renderGrades(ctx echo.Context, courseID string, form *formState) error {
	v, err := getViewer(ctx)
	if err != nil {
		return err
	}
	reqCtx := ctx.Request().Context()
	data := gradesData{Picker: coursePicker{CourseID: courseID}}

	var l loader
	if v.user.Role.IsStudent() {
		l.Go("grades", func() (err error) {
			data.Grades, err = v.grading.MyGrades(reqCtx)
			return err
		})
	} else {
		s.loadPicker(&l, ctx, v, &data.Picker)
		if courseID != "" {
			l.Go("grades", func() (err error) {
				data.Grades, err = v.grading.CourseGrades(reqCtx, courseID)
				return err
			})
			l.Go("roster", func() (err error) {
				data.Roster, err = v.enrollment.Roster(reqCtx, courseID)
				return err
			})
		}
	}
	errs, err := l.Wait()
	if err != nil {
		return errors.Wrap(err, "loading grades")
	}
	data.Average, data.HasAverage = grading.Average(data.Grades)
	return s.render(ctx, v, "grades.html", "Grades", form, errs, data)
}

func (s *Server) addGrade(ctx echo.Context) error {
	v, err := getViewer(ctx)
	if err != nil {
		return err
	}
	if err := staffOnly(v); err != nil {
		return err
	}
	courseID := ctx.FormValue("course")
	ng := school.NewGrade{
		StudentUserID: ctx.FormValue("student"),
		Title:         ctx.FormValue("title"),
		Comment:       ctx.FormValue("comment"),
	}
	if score := core.CleanString(ctx.FormValue("score")); score != "" {
		ng.Score = lo.ToPtr(cast.ToFloat64(score))
	}
	if letter := ctx.FormValue("letter_grade"); letter != "" {
		ng.LetterGrade = lo.ToPtr(letter)
	}
	if _, err := v.grading.AddGrade(ctx.Request().Context(), courseID, ng); err != nil {
		if formFailure(err) {
			return s.renderGrades(ctx, courseID, newFormState("grade", ctx, err))
		}
		return errors.Wrap(err, "adding grade")
	}
	return s.redirectWith(ctx, "/grades?course="+courseID, "grade saved")
}

// Homework

type assignmentView struct {
	school.Assignment
	Due grading.DueState
}

type homeworkData struct {
	Picker      coursePicker
	Assignments []assignmentView
}

func (s *Server) homeworkPage(ctx echo.Context) error {
	return s.renderHomework(ctx, ctx.QueryParam("course"), nil)
}

func (s *Server) renderHomework(ctx echo.Context, courseID string, form *formState) error {
	v, err := getViewer(ctx)
	if err != nil {
		return err
	}
	reqCtx := ctx.Request().Context()
	data := homeworkData{Picker: coursePicker{CourseID: courseID}}

	var assignments []school.Assignment
	var l loader
	if v.user.Role.IsStudent() {
		l.Go("assignments", func() (err error) {
			assignments, err = v.grading.MyAssignments(reqCtx)
			return err
		})
	} else {
		s.loadPicker(&l, ctx, v, &data.Picker)
		if courseID != "" {
			l.Go("assignments", func() (err error) {
				assignments, err = v.grading.CourseAssignments(reqCtx, courseID)
				return err
			})
		}
	}
	errs, err := l.Wait()
	if err != nil {
		return errors.Wrap(err, "loading homework")
	}
	now := time.Now()
	data.Assignments = lo.Map(assignments, func(a school.Assignment, _ int) assignmentView {
		return assignmentView{Assignment: a, Due: grading.StateOf(a.DueDate, now)}
	})
	return s.render(ctx, v, "homework.html", "Homework", form, errs, data)
}

func (s *Server) createAssignment(ctx echo.Context) error {
	v, err := getViewer(ctx)
	if err != nil {
		return err
	}
	if err := staffOnly(v); err != nil {
		return err
	}
	courseID := ctx.FormValue("course")
	na := school.NewAssignment{
		Title:       ctx.FormValue("title"),
		Description: ctx.FormValue("description"),
		DueDate:     ctx.FormValue("due_date"),
		MaxScore:    cast.ToFloat64(ctx.FormValue("max_score")),
	}
	if _, err := v.grading.CreateAssignment(ctx.Request().Context(), courseID, na); err != nil {
		if formFailure(err) {
			return s.renderHomework(ctx, courseID, newFormState("assignment", ctx, err))
		}
		return errors.Wrap(err, "creating assignment")
	}
	return s.redirectWith(ctx, "/homework?course="+courseID, "assignment created")
}

func (s *Server) submit(ctx echo.Context) error {
	v, err := getViewer(ctx)
	if err != nil {
		return err
	}
	id := ctx.Param("id")
	ns := school.NewSubmission{Content: ctx.FormValue("content"), Link: ctx.FormValue("link")}
	if _, err := v.grading.Submit(ctx.Request().Context(), id, ns); err != nil {
		if formFailure(err) {
			return s.renderHomework(ctx, "", newFormState("submit-"+id, ctx, err))
		}
		return errors.Wrap(err, "submitting")
	}
	return s.redirectWith(ctx, "/homework", "work submitted")
}

func (s *Server) submissionsPage(ctx echo.Context) error {
	v, err := getViewer(ctx)
	if err != nil {
		return err
	}
	if err := staffOnly(v); err != nil {
		return err
	}
	var subs []school.Submission
	var l loader
	l.Go("submissions", func() (err error) {
		subs, err = v.grading.Submissions(ctx.Request().Context(), ctx.Param("id"))
		return err
	})
	errs, err := l.Wait()
	if err != nil {
		return errors.Wrap(err, "loading submissions")
	}
	return s.render(ctx, v, "submissions.html", "Submissions", nil, errs, subs)
}

// Timetable

type (
	timetableCell struct {
		Blocks []timetable.Block
	}

	timetableRow struct {
		Label string
		Cells []timetableCell
	}

	timetableData struct {
		Days     []string
		Rows     []timetableRow
		Unplaced []school.Course
		Empty    bool
	}
)

func (s *Server) timetablePage(ctx echo.Context) error {
	v, err := getViewer(ctx)
	if err != nil {
		return err
	}
	var grid timetable.Grid
	var l loader
	l.Go("timetable", func() (err error) {
		grid, err = v.timetable.Week(ctx.Request().Context(), v.user)
		return err
	})
	errs, err := l.Wait()
	if err != nil {
		return errors.Wrap(err, "loading timetable")
	}

	data := timetableData{Days: timetable.Days, Unplaced: grid.Unplaced, Empty: grid.Empty()}
	for row := 0; row < timetable.Rows; row++ {
		tr := timetableRow{Label: timetable.RowLabel(row)}
		for _, day := range timetable.Days {
			tr.Cells = append(tr.Cells, timetableCell{Blocks: grid.Starting(day, row)})
		}
		data.Rows = append(data.Rows, tr)
	}
	return s.render(ctx, v, "timetable.html", "Timetable", nil, errs, data)
}
