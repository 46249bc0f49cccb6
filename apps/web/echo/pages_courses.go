package echoweb

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/spf13/cast"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/enrollment"
	"github.com/trezcool/masomo-portal/core/school"
	apisvc "github.com/trezcool/masomo-portal/services/api"
)

func (s *Server) createCourse(ctx echo.Context) error {
	v, err := getViewer(ctx)
	if err != nil {
		return err
	}
	if err := staffOnly(v); err != nil {
		return err
	}
	nc := school.NewCourse{
		Title:       ctx.FormValue("title"),
		Description: ctx.FormValue("description"),
		Price:       cast.ToFloat64(ctx.FormValue("price")),
	}
	if days := ctx.Request().Form["days"]; len(days) > 0 {
		nc.Schedule = &school.Schedule{
			Days:      days,
			StartTime: ctx.FormValue("start_time"),
			EndTime:   ctx.FormValue("end_time"),
		}
	}
	if _, err := v.catalog.CreateCourse(ctx.Request().Context(), nc); err != nil {
		if formFailure(err) {
			return s.renderCourses(ctx, newFormState("course", ctx, err))
		}
		return errors.Wrap(err, "creating course")
	}
	return s.redirectWith(ctx, "/courses", "course created")
}

func (s *Server) requestAccess(ctx echo.Context) error {
	v, err := getViewer(ctx)
	if err != nil {
		return err
	}
	if err := v.enrollment.RequestAccess(ctx.Request().Context(), ctx.Param("id")); err != nil {
		if formFailure(err) {
			return s.renderCourses(ctx, newFormState("course-"+ctx.Param("id"), ctx, err))
		}
		return errors.Wrap(err, "requesting access")
	}
	return s.redirectWith(ctx, "/courses", "access requested")
}

func (s *Server) respond(ctx echo.Context) error {
	v, err := getViewer(ctx)
	if err != nil {
		return err
	}
	accept := cast.ToBool(ctx.FormValue("accept"))
	if err := v.enrollment.Respond(ctx.Request().Context(), ctx.Param("id"), accept); err != nil {
		if formFailure(err) {
			return s.renderCourses(ctx, newFormState("invitation-"+ctx.Param("id"), ctx, err))
		}
		return errors.Wrap(err, "responding to invitation")
	}
	return s.redirectWith(ctx, "/courses", lo.Ternary(accept, "invitation accepted", "invitation declined"))
}

type courseDetailData struct {
	Course      school.Course
	Roster      []school.RosterEntry
	Enrollments []courseEnrollmentView
}

type courseEnrollmentView struct {
	school.CourseEnrollment
	Status enrollment.Status
}

func (s *Server) courseDetail(ctx echo.Context) error {
	return s.renderCourseDetail(ctx, nil)
}

func (s *Server) renderCourseDetail(ctx echo.Context, form *formState) error {
	v, err := getViewer(ctx)
	if err != nil {
		return err
	}
	if err := staffOnly(v); err != nil {
		return err
	}
	reqCtx := ctx.Request().Context()
	courseID := ctx.Param("id")

	courses, err := v.catalog.Courses(reqCtx)
	if err != nil {
		return errors.Wrap(err, "loading courses")
	}
	course, found := lo.Find(courses, func(c school.Course) bool { return c.ID == courseID })
	if !found {
		return errHttpNotFound
	}

	data := courseDetailData{Course: course}
	var l loader
	l.Go("roster", func() (err error) {
		data.Roster, err = v.enrollment.Roster(reqCtx, courseID)
		return err
	})
	l.Go("enrollments", func() error {
		enrs, err := v.enrollment.CourseEnrollments(reqCtx, courseID)
		data.Enrollments = lo.Map(enrs, func(e school.CourseEnrollment, _ int) courseEnrollmentView {
			return courseEnrollmentView{CourseEnrollment: e, Status: enrollment.ParseStatus(e.Status)}
		})
		return err
	})
	errs, err := l.Wait()
	if err != nil {
		return errors.Wrap(err, "loading course")
	}
	return s.render(ctx, v, "course.html", course.Title, form, errs, data)
}

func (s *Server) invite(ctx echo.Context) error {
	v, err := getViewer(ctx)
	if err != nil {
		return err
	}
	if err := staffOnly(v); err != nil {
		return err
	}
	courseID := ctx.Param("id")
	if err := v.enrollment.Invite(ctx.Request().Context(), courseID, ctx.FormValue("email")); err != nil {
		if formFailure(err) {
			return s.renderCourseDetail(ctx, newFormState("invite", ctx, err))
		}
		return errors.Wrap(err, "inviting student")
	}
	return s.redirectWith(ctx, "/courses/"+courseID, "invitation sent")
}

// Directory

type studentsData struct {
	Search string
	All    []school.User
	Mine   []school.User
}

func (s *Server) studentsPage(ctx echo.Context) error {
	v, err := getViewer(ctx)
	if err != nil {
		return err
	}
	reqCtx := ctx.Request().Context()
	data := studentsData{Search: core.CleanString(ctx.QueryParam("search"))}
	var l loader
	l.Go("all", func() (err error) {
		data.All, err = v.catalog.Students(reqCtx, data.Search)
		return err
	})
	if v.user.Role.IsTeacher() {
		l.Go("mine", func() (err error) {
			data.Mine, err = v.catalog.MyStudents(reqCtx)
			return err
		})
	}
	errs, err := l.Wait()
	if err != nil {
		return errors.Wrap(err, "loading students")
	}
	return s.render(ctx, v, "students.html", "Students", nil, errs, data)
}

func (s *Server) teachersPage(ctx echo.Context) error {
	return s.renderTeachers(ctx, nil)
}

func (s *Server) renderTeachers(ctx echo.Context, form *formState) error {
	v, err := getViewer(ctx)
	if err != nil {
		return err
	}
	var teachers []school.User
	var l loader
	l.Go("teachers", func() (err error) {
		teachers, err = v.catalog.Teachers(ctx.Request().Context())
		return err
	})
	errs, err := l.Wait()
	if err != nil {
		return errors.Wrap(err, "loading teachers")
	}
	return s.render(ctx, v, "teachers.html", "Teachers", form, errs, teachers)
}

func (s *Server) addTeacher(ctx echo.Context) error {
	v, err := getViewer(ctx)
	if err != nil {
		return err
	}
	nt := school.NewTeacher{
		Name:     ctx.FormValue("name"),
		Email:    ctx.FormValue("email"),
		Password: ctx.FormValue("password"),
		Bio:      ctx.FormValue("bio"),
	}
	if _, err := v.catalog.AddTeacher(ctx.Request().Context(), nt); err != nil {
		if formFailure(err) {
			return s.renderTeachers(ctx, newFormState("teacher", ctx, err))
		}
		return errors.Wrap(err, "adding teacher")
	}
	return s.redirectWith(ctx, "/teachers", "teacher added")
}

func (s *Server) schoolPage(ctx echo.Context) error {
	return s.renderSchool(ctx, nil)
}

func (s *Server) renderSchool(ctx echo.Context, form *formState) error {
	v, err := getViewer(ctx)
	if err != nil {
		return err
	}
	sch, err := v.catalog.School(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if apisvc.IsNotFound(err) {
			return errHttpNotFound
		}
		return errors.Wrap(err, "loading school")
	}
	return s.render(ctx, v, "school.html", sch.Name, form, nil, sch)
}

func (s *Server) rateSchool(ctx echo.Context) error {
	v, err := getViewer(ctx)
	if err != nil {
		return err
	}
	schoolID := ctx.Param("id")
	nr := school.NewRating{
		ToSchoolID: lo.ToPtr(schoolID),
		Score:      cast.ToInt(ctx.FormValue("score")),
		Comment:    ctx.FormValue("comment"),
	}
	return s.rate(ctx, v, schoolID, "rate-school", nr)
}

func (s *Server) rateTeacher(ctx echo.Context) error {
	v, err := getViewer(ctx)
	if err != nil {
		return err
	}
	teacherID := ctx.Param("teacherId")
	nr := school.NewRating{
		ToUserID: lo.ToPtr(teacherID),
		Score:    cast.ToInt(ctx.FormValue("score")),
		Comment:  ctx.FormValue("comment"),
	}
	return s.rate(ctx, v, ctx.Param("id"), "rate-"+teacherID, nr)
}

func (s *Server) rate(ctx echo.Context, v *viewer, schoolID, form string, nr school.NewRating) error {
	if err := v.catalog.Rate(ctx.Request().Context(), nr); err != nil {
		if formFailure(err) {
			return s.renderSchool(ctx, newFormState(form, ctx, err))
		}
		return errors.Wrap(err, "rating")
	}
	return s.redirectWith(ctx, "/schools/"+schoolID, "rating saved")
}
