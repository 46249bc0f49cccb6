package echoweb

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core/enrollment"
	"github.com/trezcool/masomo-portal/core/reports"
	"github.com/trezcool/masomo-portal/core/school"
)

func (s *Server) registerPages(g *echo.Group) {
	g.GET("/", s.overview)
	g.GET("/reports", s.reportsPage)

	g.GET("/courses", s.coursesPage)
	g.POST("/courses", s.createCourse)
	g.GET("/courses/:id", s.courseDetail)
	g.POST("/courses/:id/request", s.requestAccess)
	g.POST("/courses/:id/invite", s.invite)
	g.POST("/invitations/:id/respond", s.respond)

	g.GET("/students", s.studentsPage)
	g.GET("/teachers", s.teachersPage)
	g.POST("/teachers", s.addTeacher)
	g.GET("/schools/:id", s.schoolPage)
	g.POST("/schools/:id/rate", s.rateSchool)
	g.POST("/schools/:id/teachers/:teacherId/rate", s.rateTeacher)

	g.GET("/attendance", s.attendancePage)
	g.POST("/attendance", s.saveAttendance)

	g.GET("/payments", s.paymentsPage)
	g.POST("/payments", s.recordPayment)
	g.GET("/grades", s.gradesPage)
	g.POST("/grades", s.addGrade)
	g.GET("/homework", s.homeworkPage)
	g.POST("/homework", s.createAssignment)
	g.GET("/homework/:id/submissions", s.submissionsPage)
	g.POST("/homework/:id/submit", s.submit)
	g.GET("/timetable", s.timetablePage)

	g.GET("/messages", s.messagesPage)
	g.POST("/messages", s.sendMessage)
	g.GET("/notifications", s.notificationsPage)
	g.POST("/notifications/read-all", s.markAllRead)
	g.POST("/notifications/:id/read", s.markRead)
	g.GET("/announcements", s.announcementsPage)
	g.POST("/announcements", s.postAnnouncement)
	g.POST("/announcements/:id/delete", s.deleteAnnouncement)

	g.GET("/settings", s.settingsPage)
	g.POST("/settings/password", s.changePassword)
	g.GET("/profile", s.profilePage)
	g.POST("/profile", s.updateProfile)
}

// redirectWith stores a flash and redirects after a successful mutation.
func (s *Server) redirectWith(ctx echo.Context, path, flash string) error {
	if flash != "" {
		if err := addFlash(ctx, s.opts.Sessions, flash); err != nil {
			return err
		}
	}
	return ctx.Redirect(http.StatusSeeOther, path)
}

type overviewData struct {
	Invitations []school.EnrollmentWithCourse
	Active      []school.EnrollmentWithCourse
	Attendance  []school.AttendanceSummary
	Dashboard   *reports.Dashboard
}

func (s *Server) overview(ctx echo.Context) error {
	v, err := getViewer(ctx)
	if err != nil {
		return err
	}
	reqCtx := ctx.Request().Context()

	var data overviewData
	var l loader
	if v.user.Role.IsStudent() {
		l.Go("invitations", func() (err error) {
			data.Invitations, err = v.enrollment.PendingInvitations(reqCtx)
			return err
		})
		l.Go("active", func() (err error) {
			data.Active, err = v.enrollment.ActiveCourses(reqCtx)
			return err
		})
		l.Go("attendance", func() (err error) {
			data.Attendance, err = v.attendance.MySummary(reqCtx)
			return err
		})
	} else {
		l.Go("dashboard", func() error {
			d, err := v.reports.Dashboard(reqCtx)
			data.Dashboard = &d
			return err
		})
	}
	errs, err := l.Wait()
	if err != nil {
		return errors.Wrap(err, "loading overview")
	}
	return s.render(ctx, v, "overview.html", "Overview", nil, errs, data)
}

func (s *Server) reportsPage(ctx echo.Context) error {
	v, err := getViewer(ctx)
	if err != nil {
		return err
	}
	var d reports.Dashboard
	var l loader
	l.Go("dashboard", func() (err error) {
		d, err = v.reports.Dashboard(ctx.Request().Context())
		return err
	})
	errs, err := l.Wait()
	if err != nil {
		return errors.Wrap(err, "loading reports")
	}
	return s.render(ctx, v, "reports.html", "Reports", nil, errs, d)
}

type courseCardView struct {
	enrollment.CourseCard
	CanRequest bool
	CanRespond bool
}

func (c courseCardView) EnrollmentID() string {
	if c.Enrollment == nil {
		return ""
	}
	return c.Enrollment.ID
}

func (s *Server) coursesPage(ctx echo.Context) error {
	return s.renderCourses(ctx, nil)
}

func (s *Server) renderCourses(ctx echo.Context, form *formState) error {
	v, err := getViewer(ctx)
	if err != nil {
		return err
	}
	var cards []courseCardView
	var l loader
	l.Go("courses", func() error {
		cc, err := v.enrollment.CourseCards(ctx.Request().Context(), v.user)
		for _, c := range cc {
			cards = append(cards, courseCardView{
				CourseCard: c,
				CanRequest: c.Actions.Can(enrollment.ActionRequestAccess),
				CanRespond: c.Actions.Can(enrollment.ActionAccept) && c.Enrollment != nil,
			})
		}
		return err
	})
	errs, err := l.Wait()
	if err != nil {
		return errors.Wrap(err, "loading courses")
	}
	return s.render(ctx, v, "courses.html", "Courses", form, errs, cards)
}

func today() string {
	return time.Now().Format("2006-01-02")
}
