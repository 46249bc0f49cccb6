package school

// Input records carry the minimal form checks; the backend stays authoritative.

type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type Registration struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Role     Role   `json:"role" validate:"required,role"`
}

type ProfileUpdate struct {
	Name  string `json:"name" validate:"required,notblank"`
	Email string `json:"email" validate:"required,email"`
}

type PasswordChange struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required"`
	ConfirmPassword string `json:"confirm_password,omitempty" validate:"eqfield=NewPassword"`
}

type NewCourse struct {
	Title       string    `json:"title" validate:"required,notblank"`
	Description string    `json:"description"`
	Price       float64   `json:"price" validate:"gte=0"`
	Schedule    *Schedule `json:"schedule,omitempty"`
	TeacherID   *string   `json:"teacher_id,omitempty"`
}

type Invitation struct {
	Email string `json:"email" validate:"required,email"`
}

type InvitationResponse struct {
	Accept bool `json:"accept"`
}

type NewPayment struct {
	StudentUserID string  `json:"student_user_id" validate:"required"`
	CourseID      string  `json:"course_id" validate:"required"`
	Amount        float64 `json:"amount" validate:"gt=0"`
	Method        string  `json:"method" validate:"required,payment_method"`
	Note          string  `json:"note"`
	PaidAt        string  `json:"paid_at,omitempty"` // YYYY-MM-DD
}

type NewGrade struct {
	StudentUserID string   `json:"student_user_id" validate:"required"`
	Title         string   `json:"title" validate:"required,notblank"`
	Score         *float64 `json:"score,omitempty" validate:"omitempty,gte=0"`
	LetterGrade   *string  `json:"letter_grade,omitempty" validate:"omitempty,notblank"`
	Comment       string   `json:"comment"`
}

type NewAssignment struct {
	Title       string  `json:"title" validate:"required,notblank"`
	Description string  `json:"description"`
	DueDate     string  `json:"due_date,omitempty"` // YYYY-MM-DD
	MaxScore    float64 `json:"max_score" validate:"gte=0"`
}

type NewSubmission struct {
	Content string `json:"content"`
	Link    string `json:"link,omitempty" validate:"omitempty,url"`
}

type NewAnnouncement struct {
	CourseID *string `json:"course_id,omitempty"`
	Title    string  `json:"title" validate:"required,notblank"`
	Content  string  `json:"content" validate:"required,notblank"`
	IsPinned bool    `json:"is_pinned"`
}

type NewMessage struct {
	ToUserID string `json:"to_user_id" validate:"required"`
	Content  string `json:"content" validate:"required,notblank"`
}

type NewTeacher struct {
	Name     string `json:"name" validate:"required,notblank"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Bio      string `json:"bio"`
}

type NewRating struct {
	ToUserID   *string `json:"to_user_id,omitempty"`
	ToSchoolID *string `json:"to_school_id,omitempty"`
	Score      int     `json:"score" validate:"min=1,max=10"`
	Comment    string  `json:"comment"`
}
