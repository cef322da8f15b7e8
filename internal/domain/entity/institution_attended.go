package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/tertab-backend/internal/domain/valueobject"
	"github.com/ignatzorin/tertab-backend/internal/pkg/apperror"
	"github.com/ignatzorin/tertab-backend/internal/validation"
)

// InstitutionAttended - заявленная пользователем связь с учебным заведением.
// VerificationTokenHash хранит bcrypt-хэш токена, пока вызов подтверждения не погашен.
type InstitutionAttended struct {
	ID                         uuid.UUID
	UserID                     uuid.UUID
	InstitutionID              uuid.UUID
	StateID                    uuid.UUID
	Type                       valueobject.AttendanceType
	FieldOfStudy               *string
	Position                   *string
	StartDate                  *time.Time
	EndDate                    *time.Time
	SchoolEmail                *string
	Status                     valueobject.AttendanceStatus
	VerificationTokenHash      *string
	VerificationTokenExpiresAt *time.Time
	CreatedAt                  time.Time
	UpdatedAt                  time.Time

	Documents []*Document
}

// AttendanceInput - поля, которые владелец передаёт при создании записи.
type AttendanceInput struct {
	InstitutionID uuid.UUID
	StateID       uuid.UUID
	Type          string
	FieldOfStudy  *string
	Position      *string
	StartDate     *time.Time
	EndDate       *time.Time
	SchoolEmail   *string
}

func NewInstitutionAttended(ownerID uuid.UUID, in AttendanceInput, now time.Time) (*InstitutionAttended, error) {
	fields := make(map[string]string)

	if in.InstitutionID == uuid.Nil {
		fields["institution_id"] = "the institution id field is required"
	}
	if in.StateID == uuid.Nil {
		fields["state_id"] = "the state id field is required"
	}

	attendanceType, err := valueobject.NewAttendanceType(in.Type)
	if err != nil {
		fields["type"] = "the selected type is invalid"
	}

	email := trimmed(in.SchoolEmail)
	switch {
	case email == nil && attendanceType.RequiresEmailVerification():
		fields["school_email"] = "School email is required for lecturers."
	case email != nil:
		if err := validation.ValidateSchoolEmail(*email); err != nil {
			fields["school_email"] = err.Error()
		}
	}

	if in.StartDate != nil && in.EndDate != nil && in.EndDate.Before(*in.StartDate) {
		fields["end_date"] = "the end date must be a date after or equal to start date"
	}
	if in.FieldOfStudy != nil {
		if err := validation.ValidateLength("field of study", *in.FieldOfStudy, 0, validation.MaxFieldOfStudyLength); err != nil {
			fields["field_of_study"] = err.Error()
		}
	}
	if in.Position != nil {
		if err := validation.ValidateLength("position", *in.Position, 0, validation.MaxPositionLength); err != nil {
			fields["position"] = err.Error()
		}
	}

	if len(fields) > 0 {
		return nil, apperror.Validation(fields)
	}

	status := valueobject.AttendanceStatusVerified
	if attendanceType.RequiresEmailVerification() {
		status = valueobject.AttendanceStatusPending
	}

	return &InstitutionAttended{
		ID:            uuid.New(),
		UserID:        ownerID,
		InstitutionID: in.InstitutionID,
		StateID:       in.StateID,
		Type:          attendanceType,
		FieldOfStudy:  trimmed(in.FieldOfStudy),
		Position:      trimmed(in.Position),
		StartDate:     in.StartDate,
		EndDate:       in.EndDate,
		SchoolEmail:   email,
		Status:        status,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

func (a *InstitutionAttended) IsOwnedBy(userID uuid.UUID) bool {
	return a.UserID == userID
}

func (a *InstitutionAttended) IsVerified() bool {
	return a.Status == valueobject.AttendanceStatusVerified
}

// CanReceiveChallenge - письмо с токеном шлётся только ожидающей записи со школьной почтой.
func (a *InstitutionAttended) CanReceiveChallenge() error {
	if a.Status != valueobject.AttendanceStatusPending {
		return apperror.ErrAlreadyVerified
	}
	if a.SchoolEmail == nil {
		return apperror.FieldError("school_email", "a school email is required to verify this institution")
	}
	return nil
}

// SetChallenge запоминает хэш нового токена, предыдущий токен перестаёт действовать.
func (a *InstitutionAttended) SetChallenge(tokenHash string, expiresAt, now time.Time) error {
	if err := a.CanReceiveChallenge(); err != nil {
		return err
	}
	a.VerificationTokenHash = &tokenHash
	a.VerificationTokenExpiresAt = &expiresAt
	a.UpdatedAt = now
	return nil
}

// ChallengeExpired - true, если токен выдан и срок его действия истёк к моменту now.
func (a *InstitutionAttended) ChallengeExpired(now time.Time) bool {
	return a.VerificationTokenExpiresAt != nil && !now.Before(*a.VerificationTokenExpiresAt)
}

func (a *InstitutionAttended) MarkVerified(now time.Time) error {
	if a.IsVerified() {
		return apperror.ErrAlreadyVerified
	}
	a.Status = valueobject.AttendanceStatusVerified
	a.VerificationTokenHash = nil
	a.VerificationTokenExpiresAt = nil
	a.UpdatedAt = now
	return nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
