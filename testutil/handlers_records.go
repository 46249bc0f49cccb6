package testutil

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/samber/lo"

	"github.com/trezcool/masomo-portal/core/school"
)

// Payments

func (b *Backend) listPayments(ctx echo.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	usr := contextUser(ctx)
	courseID := ctx.QueryParam("course_id")
	payments := make([]school.Payment, 0)
	for _, p := range b.payments {
		c := b.courseByID(p.CourseID)
		if c == nil || !b.manages(usr, c) || (courseID != "" && p.CourseID != courseID) {
			continue
		}
		payments = append(payments, *p)
	}
	return ctx.JSON(http.StatusOK, payments)
}

func (b *Backend) recordPayment(ctx echo.Context) error {
	var np school.NewPayment
	if err := ctx.Bind(&np); err != nil {
		return errBadRequest("invalid request body")
	}
	if np.Amount <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, map[string]string{"amount": "amount must be positive"})
	}
	if !lo.Contains(school.PaymentMethods, np.Method) {
		return echo.NewHTTPError(http.StatusBadRequest, map[string]string{"method": "invalid payment method"})
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	c := b.courseByID(np.CourseID)
	if c == nil {
		return errNotFound("course")
	}
	student := b.userByID(np.StudentUserID)
	if student == nil {
		return errNotFound("student")
	}
	now := b.now()
	paidAt := now
	if np.PaidAt != "" {
		t, err := time.Parse("2006-01-02", np.PaidAt)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, map[string]string{"paid_at": "invalid date"})
		}
		paidAt = t
	}
	p := &school.Payment{
		ID:            uuid.NewString(),
		StudentUserID: student.ID,
		StudentName:   student.DisplayName(),
		CourseID:      c.ID,
		CourseTitle:   c.Title,
		Amount:        np.Amount,
		Method:        np.Method,
		Note:          np.Note,
		RecordedBy:    contextUser(ctx).ID,
		PaidAt:        paidAt,
		CreatedAt:     now,
	}
	b.payments = append(b.payments, p)
	return ctx.JSON(http.StatusCreated, p)
}

func (b *Backend) myPayments(ctx echo.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	usr := contextUser(ctx)
	payments := make([]school.Payment, 0)
	for _, p := range b.payments {
		if p.StudentUserID == usr.ID {
			payments = append(payments, *p)
		}
	}
	return ctx.JSON(http.StatusOK, payments)
}

// Grades

func (b *Backend) courseGrades(ctx echo.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, err := b.managedCourse(ctx)
	if err != nil {
		return err
	}
	grades := make([]school.Grade, 0)
	for _, g := range b.grades {
		if g.CourseID == c.ID {
			grades = append(grades, *g)
		}
	}
	return ctx.JSON(http.StatusOK, grades)
}

func (b *Backend) addGrade(ctx echo.Context) error {
	var ng school.NewGrade
	if err := ctx.Bind(&ng); err != nil {
		return errBadRequest("invalid request body")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	c, err := b.managedCourse(ctx)
	if err != nil {
		return err
	}
	enr := b.enrollmentOf(ng.StudentUserID, c.ID)
	if enr == nil || enr.Status != statusActive {
		return errBadRequest("student is not enrolled in this course")
	}
	g := &school.Grade{
		ID:            uuid.NewString(),
		StudentUserID: ng.StudentUserID,
		CourseID:      c.ID,
		CourseTitle:   c.Title,
		Title:         ng.Title,
		Score:         ng.Score,
		LetterGrade:   ng.LetterGrade,
		Comment:       ng.Comment,
		GradedAt:      b.now(),
	}
	if student := b.userByID(ng.StudentUserID); student != nil {
		g.StudentName = student.DisplayName()
	}
	b.grades = append(b.grades, g)
	b.notify(ng.StudentUserID, school.NotificationGrade, "New grade", g.Title+" in "+c.Title, "/grades")
	return ctx.JSON(http.StatusCreated, g)
}

func (b *Backend) myGrades(ctx echo.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	usr := contextUser(ctx)
	grades := make([]school.Grade, 0)
	for _, g := range b.grades {
		if g.StudentUserID == usr.ID {
			grades = append(grades, *g)
		}
	}
	return ctx.JSON(http.StatusOK, grades)
}

// Homework

func (b *Backend) courseAssignments(ctx echo.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	c := b.courseByID(ctx.Param("id"))
	if c == nil {
		return errNotFound("course")
	}
	assignments := make([]school.Assignment, 0)
	for _, a := range b.assignments {
		if a.CourseID == c.ID {
			assignments = append(assignments, *a)
		}
	}
	return ctx.JSON(http.StatusOK, assignments)
}

func (b *Backend) createAssignment(ctx echo.Context) error {
	var na school.NewAssignment
	if err := ctx.Bind(&na); err != nil {
		return errBadRequest("invalid request body")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	c, err := b.managedCourse(ctx)
	if err != nil {
		return err
	}
	a := &school.Assignment{
		ID:          uuid.NewString(),
		CourseID:    c.ID,
		CourseTitle: c.Title,
		Title:       na.Title,
		Description: na.Description,
		MaxScore:    na.MaxScore,
		CreatedAt:   b.now(),
	}
	if na.DueDate != "" {
		due, err := time.Parse("2006-01-02", na.DueDate)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, map[string]string{"due_date": "invalid date"})
		}
		a.DueDate = &due
	}
	b.assignments = append(b.assignments, a)
	for _, entry := range b.rosterOf(c.ID) {
		b.notify(entry.StudentUserID, school.NotificationAssignment, "New assignment", a.Title, "/homework")
	}
	return ctx.JSON(http.StatusCreated, a)
}

func (b *Backend) submit(ctx echo.Context) error {
	var ns school.NewSubmission
	if err := ctx.Bind(&ns); err != nil {
		return errBadRequest("invalid request body")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	usr := contextUser(ctx)
	a, found := lo.Find(b.assignments, func(a *school.Assignment) bool { return a.ID == ctx.Param("id") })
	if !found {
		return errNotFound("assignment")
	}
	if enr := b.enrollmentOf(usr.ID, a.CourseID); enr == nil || enr.Status != statusActive {
		return echo.NewHTTPError(http.StatusForbidden, "not enrolled in this course")
	}
	if lo.ContainsBy(b.submissions, func(s *school.Submission) bool {
		return s.AssignmentID == a.ID && s.StudentUserID == usr.ID
	}) {
		return echo.NewHTTPError(http.StatusConflict, "already submitted")
	}
	sub := &school.Submission{
		ID:            uuid.NewString(),
		AssignmentID:  a.ID,
		StudentUserID: usr.ID,
		StudentName:   usr.DisplayName(),
		Content:       ns.Content,
		Link:          ns.Link,
		SubmittedAt:   b.now(),
	}
	b.submissions = append(b.submissions, sub)
	return ctx.JSON(http.StatusCreated, sub)
}

func (b *Backend) listSubmissions(ctx echo.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := make([]school.Submission, 0)
	for _, s := range b.submissions {
		if s.AssignmentID == ctx.Param("id") {
			subs = append(subs, *s)
		}
	}
	return ctx.JSON(http.StatusOK, subs)
}

func (b *Backend) myAssignments(ctx echo.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	usr := contextUser(ctx)
	assignments := make([]school.Assignment, 0)
	for _, a := range b.assignments {
		if enr := b.enrollmentOf(usr.ID, a.CourseID); enr != nil && enr.Status == statusActive {
			assignments = append(assignments, *a)
		}
	}
	return ctx.JSON(http.StatusOK, assignments)
}
