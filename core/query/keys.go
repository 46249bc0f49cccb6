package query

// Keys shared by the feature services. Mutations invalidate these explicitly.
var (
	Me                  = K("me")
	Courses             = K("courses")
	MyEnrollments       = K("my-enrollments")
	MyAttendance        = K("my-attendance")
	MyAttendanceSummary = K("my-attendance-summary")
	Payments            = K("payments")
	MyPayments          = K("my-payments")
	MyGrades            = K("my-grades")
	MyAssignments       = K("my-assignments")
	Conversations       = K("conversations")
	MessageCount        = K("message-count")
	Notifications       = K("notifications")
	NotificationCount   = K("notification-count")
	Announcements       = K("announcements")
	Teachers            = K("teachers")
	MyStudents          = K("my-students")
	DashboardStats      = K("dashboard-stats")
	DashboardActivity   = K("dashboard-activity")
)

func Roster(courseID string) Key            { return K("roster", courseID) }
func CourseEnrollments(courseID string) Key { return K("course-enrollments", courseID) }
func Attendance(courseID, date string) Key  { return K("attendance", courseID, date) }
func CoursePayments(courseID string) Key    { return K("payments", courseID) }
func CourseGrades(courseID string) Key      { return K("course-grades", courseID) }
func CourseAssignments(courseID string) Key { return K("assignments", courseID) }
func Submissions(assignmentID string) Key   { return K("submissions", assignmentID) }
func Messages(userID string) Key            { return K("messages", userID) }
func UserSearch(q string) Key               { return K("user-search", q) }
func Students(search string) Key            { return K("students", search) }
func School(id string) Key                  { return K("school", id) }
