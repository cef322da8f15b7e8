package valueobject

import (
	"strings"

	"github.com/ignatzorin/tertab-backend/internal/pkg/apperror"
)

// AttendanceType - в каком качестве пользователь связан с учебным заведением.
type AttendanceType string

const (
	AttendanceTypeStudent  AttendanceType = "student"
	AttendanceTypeLecturer AttendanceType = "lecturer"
	AttendanceTypeStaff    AttendanceType = "staff"
	AttendanceTypeAlumni   AttendanceType = "alumni"
)

func (t AttendanceType) IsValid() bool {
	switch t {
	case AttendanceTypeStudent, AttendanceTypeLecturer, AttendanceTypeStaff, AttendanceTypeAlumni:
		return true
	}
	return false
}

// RequiresEmailVerification - только преподаватели подтверждают школьную почту.
func (t AttendanceType) RequiresEmailVerification() bool {
	return t == AttendanceTypeLecturer
}

func NewAttendanceType(value string) (AttendanceType, error) {
	t := AttendanceType(strings.ToLower(strings.TrimSpace(value)))
	if !t.IsValid() {
		return "", apperror.FieldError("type", "the selected type is invalid")
	}
	return t, nil
}

// DocumentType - доменная метка прикреплённого файла.
type DocumentType string

const (
	DocumentTypeInstitution DocumentType = "institution"
	DocumentTypeReference   DocumentType = "reference"
)

// RequestClass определяет, какая цена платформы применяется к запросу.
type RequestClass string

const (
	RequestClassStandard RequestClass = "standard"
	RequestClassExpress  RequestClass = "express"
)

// ClassifyRequest сводит свободный request_type к классу цены.
func ClassifyRequest(requestType string) RequestClass {
	if strings.EqualFold(strings.TrimSpace(requestType), string(RequestClassExpress)) {
		return RequestClassExpress
	}
	return RequestClassStandard
}

type Role string

const (
	RoleStudent  Role = "student"
	RoleLecturer Role = "lecturer"
	RoleAdmin    Role = "admin"
)

func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}
