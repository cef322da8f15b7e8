package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/tertab-backend/internal/domain/valueobject"
	"github.com/ignatzorin/tertab-backend/internal/pkg/apperror"
	"github.com/ignatzorin/tertab-backend/internal/validation"
)

// Reference - рекомендация, которую преподаватель готовит для студента.
// RejectionReason заполнен только у rejected, DocumentPath только у completed.
type Reference struct {
	ID               uuid.UUID
	StudentID        uuid.UUID
	LecturerID       uuid.UUID
	InstitutionID    *uuid.UUID
	ReferenceType    string
	RequestType      string
	Description      string
	Status           valueobject.ReferenceStatus
	RejectionReason  *string
	ReferenceEmail   *string
	PaymentProcessed bool
	DocumentPath     *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type ReferenceInput struct {
	LecturerID     uuid.UUID
	InstitutionID  *uuid.UUID
	ReferenceType  string
	RequestType    string
	Description    string
	ReferenceEmail *string
}

func NewReference(studentID uuid.UUID, in ReferenceInput, now time.Time) (*Reference, error) {
	fields := make(map[string]string)

	if in.LecturerID == uuid.Nil {
		fields["lecturer_id"] = "the lecturer id field is required"
	} else if in.LecturerID == studentID {
		fields["lecturer_id"] = "you cannot request a reference from yourself"
	}
	if err := validation.ValidateNonEmpty("reference type", in.ReferenceType); err != nil {
		fields["reference_type"] = err.Error()
	} else if err := validation.ValidateLength("reference type", in.ReferenceType, 0, validation.MaxClassifierLength); err != nil {
		fields["reference_type"] = err.Error()
	}
	if err := validation.ValidateNonEmpty("request type", in.RequestType); err != nil {
		fields["request_type"] = err.Error()
	} else if err := validation.ValidateLength("request type", in.RequestType, 0, validation.MaxClassifierLength); err != nil {
		fields["request_type"] = err.Error()
	}
	if err := validation.ValidateLength("reference description", in.Description, 0, validation.MaxDescriptionLength); err != nil {
		fields["reference_description"] = err.Error()
	}

	email := trimmed(in.ReferenceEmail)
	if email != nil {
		if err := validation.ValidateEmail(*email); err != nil {
			fields["reference_email"] = err.Error()
		}
	}

	if len(fields) > 0 {
		return nil, apperror.Validation(fields)
	}

	return &Reference{
		ID:             uuid.New(),
		StudentID:      studentID,
		LecturerID:     in.LecturerID,
		InstitutionID:  in.InstitutionID,
		ReferenceType:  strings.TrimSpace(in.ReferenceType),
		RequestType:    strings.TrimSpace(in.RequestType),
		Description:    strings.TrimSpace(in.Description),
		Status:         valueobject.ReferenceStatusRequested,
		ReferenceEmail: email,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// Class - ценовой класс запроса для проверки оплаты.
func (r *Reference) Class() valueobject.RequestClass {
	return valueobject.ClassifyRequest(r.RequestType)
}

func (r *Reference) IsParty(userID uuid.UUID) bool {
	return r.StudentID == userID || r.LecturerID == userID
}

func (r *Reference) StartProgress(now time.Time) error {
	if !r.Status.CanTransitionTo(valueobject.ReferenceStatusInProgress) {
		return apperror.New(apperror.ErrCodeConflict, "only a requested reference can be moved to in progress")
	}
	r.Status = valueobject.ReferenceStatusInProgress
	r.UpdatedAt = now
	return nil
}

// Complete проверяет путь, терминальность, оплату и только потом статус in_progress.
func (r *Reference) Complete(documentPath string, price valueobject.Money, now time.Time) error {
	documentPath = strings.TrimSpace(documentPath)
	if documentPath == "" {
		return apperror.FieldError("document_path", "the completed reference document is required")
	}
	if r.Status.IsTerminal() {
		return apperror.New(apperror.ErrCodeConflict, "reference is already "+string(r.Status))
	}
	if !r.PaymentProcessed && price.IsPositive() {
		return apperror.New(apperror.ErrCodePaymentRequired, "reference must be paid for before it can be completed")
	}
	if !r.Status.CanTransitionTo(valueobject.ReferenceStatusCompleted) {
		return apperror.New(apperror.ErrCodeConflict, "only a reference in progress can be completed")
	}

	r.Status = valueobject.ReferenceStatusCompleted
	r.DocumentPath = &documentPath
	r.RejectionReason = nil
	r.UpdatedAt = now
	return nil
}

func (r *Reference) Reject(reason string, now time.Time) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return apperror.FieldError("reference_rejection_reason", "a rejection reason is required")
	}
	if err := validation.ValidateLength("rejection reason", reason, 0, validation.MaxReasonLength); err != nil {
		return apperror.FieldError("reference_rejection_reason", err.Error())
	}
	if !r.Status.CanTransitionTo(valueobject.ReferenceStatusRejected) {
		return apperror.New(apperror.ErrCodeConflict, "reference is already "+string(r.Status))
	}

	r.Status = valueobject.ReferenceStatusRejected
	r.RejectionReason = &reason
	r.DocumentPath = nil
	r.UpdatedAt = now
	return nil
}

// MarkPaid возвращает false, если оплата уже была отмечена.
func (r *Reference) MarkPaid(now time.Time) bool {
	if r.PaymentProcessed {
		return false
	}
	r.PaymentProcessed = true
	r.UpdatedAt = now
	return true
}

// AcceptsDocuments - вспомогательные файлы принимаются до завершения.
func (r *Reference) AcceptsDocuments() error {
	if r.Status.IsTerminal() {
		return apperror.New(apperror.ErrCodeConflict, "documents cannot be attached to a "+string(r.Status)+" reference")
	}
	return nil
}
