package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// Константы валидации
const (
	MaxFieldOfStudyLength = 255
	MaxPositionLength     = 255
	MaxClassifierLength   = 100
	MaxDescriptionLength  = 5000
	MinMessageLength      = 1
	MaxMessageLength      = 5000
	MaxReasonLength       = 2000
)

// institutionalEmail - адрес должен оканчиваться на .edu или .edu.ng.
var institutionalEmail = regexp.MustCompile(`\.(edu|edu\.ng)$`)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validator возвращает общий экземпляр validator/v10.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// ValidateLength проверяет длину строки.
func ValidateLength(fieldName, value string, min, max int) error {
	length := utf8.RuneCountInString(value)
	if min > 0 && length < min {
		return fmt.Errorf("%s must be at least %d characters", fieldName, min)
	}
	if max > 0 && length > max {
		return fmt.Errorf("%s may not be greater than %d characters", fieldName, max)
	}
	return nil
}

// ValidateNonEmpty проверяет, что строка не пустая.
func ValidateNonEmpty(fieldName, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s is required", fieldName)
	}
	return nil
}

// ValidateEmail проверяет формат email.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return errors.New("email is required")
	}
	if err := Validator().Var(email, "email,max=255"); err != nil {
		return errors.New("must be a valid email address")
	}
	return nil
}

// ValidateSchoolEmail проверяет email и институциональный домен.
func ValidateSchoolEmail(email string) error {
	if err := ValidateEmail(email); err != nil {
		return err
	}
	if !institutionalEmail.MatchString(strings.ToLower(strings.TrimSpace(email))) {
		return errors.New("school email must end with .edu or .edu.ng")
	}
	return nil
}

// ValidateMessageContent проверяет содержимое сообщения.
func ValidateMessageContent(content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return errors.New("message may not be empty")
	}
	return ValidateLength("message", content, MinMessageLength, MaxMessageLength)
}

// FieldErrors превращает ошибки validator/v10 в карту поле -> сообщение.
// Для прочих ошибок возвращает nil.
func FieldErrors(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fieldName(fe)] = describe(fe)
	}
	return fields
}

func fieldName(fe validator.FieldError) string {
	name := fe.Field()
	if name == "" {
		name = fe.StructField()
	}
	return toSnake(name)
}

func describe(fe validator.FieldError) string {
	field := strings.ReplaceAll(fieldName(fe), "_", " ")
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("the %s field is required", field)
	case "email":
		return fmt.Sprintf("the %s must be a valid email address", field)
	case "uuid", "uuid4":
		return fmt.Sprintf("the %s must be a valid identifier", field)
	case "oneof":
		return fmt.Sprintf("the %s must be one of: %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("the %s may not be greater than %s", field, fe.Param())
	case "min":
		return fmt.Sprintf("the %s must be at least %s", field, fe.Param())
	case "datetime":
		return fmt.Sprintf("the %s must be a date in format %s", field, fe.Param())
	default:
		return fmt.Sprintf("the %s is invalid", field)
	}
}

func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 && s[i-1] >= 'a' && s[i-1] <= 'z' {
				b.WriteByte('_')
			}
			b.WriteRune(r + ('a' - 'A'))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
