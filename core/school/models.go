package school

import (
	"time"
)

// Roles
const (
	RoleStudent     Role = "student"
	RoleTeacher     Role = "teacher"
	RoleSchoolAdmin Role = "school_admin"
	RoleAdmin       Role = "admin" // platform admin; sees what a school admin sees
)

var AllRoles = []Role{RoleStudent, RoleTeacher, RoleSchoolAdmin, RoleAdmin}

type Role string

func (r Role) IsStudent() bool { return r == RoleStudent }
func (r Role) IsTeacher() bool { return r == RoleTeacher }
func (r Role) IsAdmin() bool   { return r == RoleSchoolAdmin || r == RoleAdmin }

// IsStaff is true for roles that manage courses (teachers and admins).
func (r Role) IsStaff() bool { return r.IsTeacher() || r.IsAdmin() }

func (r Role) Label() string {
	switch r {
	case RoleStudent:
		return "Student"
	case RoleTeacher:
		return "Teacher"
	case RoleSchoolAdmin:
		return "School Admin"
	case RoleAdmin:
		return "Admin"
	}
	return string(r)
}

type User struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	Name        string    `json:"name"`
	Role        Role      `json:"role"`
	RatingAvg   float64   `json:"rating_avg"`
	RatingCount int       `json:"rating_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// DisplayName falls back to the email when the name is unset.
func (u User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

type Schedule struct {
	Days      []string `json:"days"`
	StartTime string   `json:"start_time"` // HH:MM
	EndTime   string   `json:"end_time"`   // HH:MM
	StartDate string   `json:"start_date,omitempty"`
	EndDate   string   `json:"end_date,omitempty"`
}

type Course struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Price        float64   `json:"price"`
	Schedule     *Schedule `json:"schedule,omitempty"`
	SchoolID     *string   `json:"school_id,omitempty"`
	TeacherID    *string   `json:"teacher_id,omitempty"`
	TeacherName  string    `json:"teacher_name,omitempty"`
	TeacherEmail string    `json:"teacher_email,omitempty"`
	SchoolName   string    `json:"school_name,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Enrollment links a student to a course. Status is kept as the raw wire value.
type Enrollment struct {
	ID            string    `json:"id"`
	StudentUserID string    `json:"student_user_id"`
	CourseID      string    `json:"course_id"`
	EnrolledAt    time.Time `json:"enrolled_at"`
	Status        string    `json:"status"`
}

// EnrollmentWithCourse is the joined projection of GET /api/my-enrollments.
type EnrollmentWithCourse struct {
	Enrollment Enrollment `json:"enrollment"`
	Course     Course     `json:"course"`
}

// CourseEnrollment is a course-side enrollment row (GET /api/courses/{id}/enrollments).
type CourseEnrollment struct {
	Enrollment
	StudentName  string `json:"student_name"`
	StudentEmail string `json:"student_email"`
}

type RosterEntry struct {
	EnrollmentID  string `json:"enrollment_id"`
	StudentUserID string `json:"student_user_id"`
	StudentName   string `json:"student_name"`
}

// Attendance statuses
const (
	AttendancePresent = "present"
	AttendanceAbsent  = "absent"
	AttendanceLate    = "late"
	AttendanceExcused = "excused"
)

var AttendanceStatuses = []string{AttendancePresent, AttendanceAbsent, AttendanceLate, AttendanceExcused}

type AttendanceRecord struct {
	ID            string `json:"id,omitempty"`
	EnrollmentID  string `json:"enrollment_id"`
	CourseID      string `json:"course_id,omitempty"`
	CourseTitle   string `json:"course_title,omitempty"`
	StudentUserID string `json:"student_user_id"`
	StudentName   string `json:"student_name,omitempty"`
	Date          string `json:"date,omitempty"` // YYYY-MM-DD
	Status        string `json:"status"`
	Note          string `json:"note"`
}

// AttendanceBatch is the body of the batch upsert for one (course, date).
type AttendanceBatch struct {
	Date    string             `json:"date"`
	Records []AttendanceRecord `json:"records"`
}

type AttendanceSummary struct {
	CourseID      string  `json:"course_id"`
	CourseTitle   string  `json:"course_title"`
	TotalSessions int     `json:"total_sessions"`
	Present       int     `json:"present"`
	Absent        int     `json:"absent"`
	Late          int     `json:"late"`
	Excused       int     `json:"excused"`
	Percentage    float64 `json:"percentage"`
}

// Payment methods
const (
	PaymentCash     = "cash"
	PaymentCard     = "card"
	PaymentTransfer = "transfer"
	PaymentOther    = "other"
)

var PaymentMethods = []string{PaymentCash, PaymentCard, PaymentTransfer, PaymentOther}

type Payment struct {
	ID            string    `json:"id"`
	StudentUserID string    `json:"student_user_id"`
	StudentName   string    `json:"student_name,omitempty"`
	CourseID      string    `json:"course_id"`
	CourseTitle   string    `json:"course_title,omitempty"`
	Amount        float64   `json:"amount"`
	Method        string    `json:"method"`
	Note          string    `json:"note"`
	RecordedBy    string    `json:"recorded_by,omitempty"`
	PaidAt        time.Time `json:"paid_at"`
	CreatedAt     time.Time `json:"created_at"`
}

type Grade struct {
	ID            string    `json:"id"`
	StudentUserID string    `json:"student_user_id"`
	StudentName   string    `json:"student_name,omitempty"`
	CourseID      string    `json:"course_id"`
	CourseTitle   string    `json:"course_title,omitempty"`
	Title         string    `json:"title"`
	Score         *float64  `json:"score,omitempty"`
	LetterGrade   *string   `json:"letter_grade,omitempty"`
	Comment       string    `json:"comment"`
	GradedAt      time.Time `json:"graded_at"`
}

type Assignment struct {
	ID          string     `json:"id"`
	CourseID    string     `json:"course_id"`
	CourseTitle string     `json:"course_title,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	MaxScore    float64    `json:"max_score"`
	CreatedAt   time.Time  `json:"created_at"`
}

type Submission struct {
	ID            string    `json:"id"`
	AssignmentID  string    `json:"assignment_id"`
	StudentUserID string    `json:"student_user_id"`
	StudentName   string    `json:"student_name,omitempty"`
	Content       string    `json:"content"`
	Link          string    `json:"link,omitempty"`
	Score         *float64  `json:"score,omitempty"`
	Feedback      string    `json:"feedback,omitempty"`
	SubmittedAt   time.Time `json:"submitted_at"`
}

type Announcement struct {
	ID          string    `json:"id"`
	CourseID    *string   `json:"course_id,omitempty"`
	CourseTitle string    `json:"course_title,omitempty"`
	AuthorID    string    `json:"author_id"`
	AuthorName  string    `json:"author_name,omitempty"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	IsPinned    bool      `json:"is_pinned"`
	CreatedAt   time.Time `json:"created_at"`
}

type Message struct {
	ID         string    `json:"id"`
	FromUserID string    `json:"from_user_id"`
	FromName   string    `json:"from_name,omitempty"`
	ToUserID   string    `json:"to_user_id"`
	ToName     string    `json:"to_name,omitempty"`
	Content    string    `json:"content"`
	IsRead     bool      `json:"is_read"`
	CreatedAt  time.Time `json:"created_at"`
}

// Conversation is the server-aggregated view of a thread with one counterpart.
type Conversation struct {
	UserID      string    `json:"user_id"`
	UserName    string    `json:"user_name"`
	UserEmail   string    `json:"user_email"`
	LastMessage string    `json:"last_message"`
	LastTime    time.Time `json:"last_time"`
	UnreadCount int       `json:"unread_count"`
}

// Notification types
const (
	NotificationGrade        = "grade"
	NotificationAssignment   = "assignment"
	NotificationMessage      = "message"
	NotificationAnnouncement = "announcement"
	NotificationSystem       = "system"
)

type Notification struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Link      string    `json:"link,omitempty"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

type School struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Phone       string   `json:"phone,omitempty"`
	Address     string   `json:"address,omitempty"`
	City        string   `json:"city,omitempty"`
	IsVerified  bool     `json:"is_verified"`
	RatingAvg   float64  `json:"rating_avg"`
	RatingCount int      `json:"rating_count"`
	Teachers    []User   `json:"teachers"`
	Courses     []Course `json:"courses"`
}

type DashboardStats struct {
	TotalStudents    int     `json:"total_students"`
	TotalCourses     int     `json:"total_courses"`
	TotalTeachers    int     `json:"total_teachers"`
	TotalRevenue     float64 `json:"total_revenue"`
	ActiveEnrolments int     `json:"active_enrolments"`
	AvgAttendance    float64 `json:"avg_attendance"`
	RecentPayments   int     `json:"recent_payments"`
	PendingRequests  int     `json:"pending_requests"`
}

type Activity struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// Count is the body of the unread-count endpoints.
type Count struct {
	Count int `json:"count"`
}
