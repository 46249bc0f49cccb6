package school

import (
	"fmt"
	"strings"
	"unicode"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"

	"github.com/trezcool/masomo-portal/core"
)

var (
	roleTag  = "role"
	roleText = "invalid role"

	attendanceStatusTag  = "attendance_status"
	attendanceStatusText = "status must be one of present, absent, late or excused"

	paymentMethodTag  = "payment_method"
	paymentMethodText = "method must be one of cash, card, transfer or other"

	gradeValueTag  = "grade_value"
	gradeValueText = "a score or a letter grade is required"

	submissionTag  = "submission"
	submissionText = "content or a link is required"

	ratingTargetTag  = "rating_target"
	ratingTargetText = "a teacher, student or school to rate is required"

	// password policy
	pwdMinLen     = 8
	pwdMinLenTag  = "pwdminlen"
	pwdMinLenText = fmt.Sprintf("password must contain at least %d characters", pwdMinLen)

	pwdNoSpaceTag  = "pwdnospace"
	pwdNoSpaceText = "password must not contain whitespace"

	pwdNotAllNumTag  = "pwdnotallnum"
	pwdNotAllNumText = "password cannot be entirely numeric"
)

// NewValidator returns a core.Validator with the school tags registered.
func NewValidator() *core.Validator {
	return core.NewValidator(InitValidators)
}

// InitValidators registers the school validation tags and struct rules.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(roleTag, roleValidation)
	core.RegisterCustomTranslation(validate, translator, roleTag, roleText)

	_ = validate.RegisterValidation(attendanceStatusTag, oneOfValidation(AttendanceStatuses))
	core.RegisterCustomTranslation(validate, translator, attendanceStatusTag, attendanceStatusText)

	_ = validate.RegisterValidation(paymentMethodTag, oneOfValidation(PaymentMethods))
	core.RegisterCustomTranslation(validate, translator, paymentMethodTag, paymentMethodText)

	validate.RegisterStructValidation(inputStructValidation,
		Registration{}, NewTeacher{}, PasswordChange{}, NewGrade{}, NewSubmission{}, NewRating{})
	core.RegisterCustomTranslation(validate, translator, gradeValueTag, gradeValueText)
	core.RegisterCustomTranslation(validate, translator, submissionTag, submissionText)
	core.RegisterCustomTranslation(validate, translator, ratingTargetTag, ratingTargetText)
	core.RegisterCustomTranslation(validate, translator, pwdMinLenTag, pwdMinLenText)
	core.RegisterCustomTranslation(validate, translator, pwdNoSpaceTag, pwdNoSpaceText)
	core.RegisterCustomTranslation(validate, translator, pwdNotAllNumTag, pwdNotAllNumText)
}

// Custom Validators

// roleValidation checks that the role is one of AllRoles.
func roleValidation(fl validator.FieldLevel) bool {
	return lo.Contains(AllRoles, Role(fl.Field().String()))
}

func oneOfValidation(allowed []string) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return lo.Contains(allowed, strings.ToLower(fl.Field().String()))
	}
}

// inputStructValidation does struct level validation on the input records.
func inputStructValidation(sl validator.StructLevel) {
	switch in := sl.Current().Interface().(type) {
	case Registration:
		if in.Password != "" {
			validatePassword(in.Password, "password", "Password", sl)
		}
	case NewTeacher:
		if in.Password != "" {
			validatePassword(in.Password, "password", "Password", sl)
		}
	case PasswordChange:
		if in.NewPassword != "" {
			validatePassword(in.NewPassword, "new_password", "NewPassword", sl)
		}
	case NewGrade:
		if in.Score == nil && (in.LetterGrade == nil || strings.TrimSpace(*in.LetterGrade) == "") {
			sl.ReportError(in.Score, "score", "Score", gradeValueTag, "")
		}
	case NewSubmission:
		if strings.TrimSpace(in.Content) == "" && strings.TrimSpace(in.Link) == "" {
			sl.ReportError(in.Content, "content", "Content", submissionTag, "")
		}
	case NewRating:
		if in.ToUserID == nil && in.ToSchoolID == nil {
			sl.ReportError(in.ToUserID, "to_user_id", "ToUserID", ratingTargetTag, "")
		}
	}
}

// validatePassword applies the password policy to provided password:
// - minLen: 8
// - no whitespace
// - no all numeric
func validatePassword(pwd, field, structField string, sl validator.StructLevel) {
	reportErr := func(tag string) {
		sl.ReportError(pwd, field, structField, tag, "")
	}

	pwdLen := len([]rune(pwd))
	if pwdLen < pwdMinLen {
		reportErr(pwdMinLenTag)
		return
	}
	var digitCount int
	for _, char := range pwd {
		if unicode.IsSpace(char) {
			reportErr(pwdNoSpaceTag)
			return
		}
		if unicode.IsDigit(char) {
			digitCount++
		}
	}
	if digitCount == pwdLen {
		reportErr(pwdNotAllNumTag)
	}
}
