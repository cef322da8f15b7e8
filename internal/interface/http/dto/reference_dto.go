package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/tertab-backend/internal/domain/entity"
)

type CreateReferenceRequest struct {
	LecturerID     uuid.UUID  `json:"lecturer_id" binding:"required"`
	InstitutionID  *uuid.UUID `json:"institution_id"`
	ReferenceType  string     `json:"reference_type" binding:"required,max=100"`
	RequestType    string     `json:"request_type" binding:"required,max=100"`
	Description    string     `json:"reference_description" binding:"max=5000"`
	ReferenceEmail *string    `json:"reference_email" binding:"omitempty,email,max=255"`
}

func (r CreateReferenceRequest) ToInput() entity.ReferenceInput {
	return entity.ReferenceInput{
		LecturerID:     r.LecturerID,
		InstitutionID:  r.InstitutionID,
		ReferenceType:  r.ReferenceType,
		RequestType:    r.RequestType,
		Description:    r.Description,
		ReferenceEmail: r.ReferenceEmail,
	}
}

// CompleteReferenceRequest используется, когда файл уже лежит в хранилище.
type CompleteReferenceRequest struct {
	DocumentPath string `json:"document_path" binding:"required"`
}

type RejectReferenceRequest struct {
	Reason string `json:"reason" binding:"required,max=2000"`
}

type ReferenceResponse struct {
	ID               uuid.UUID          `json:"id"`
	StudentID        uuid.UUID          `json:"student_id"`
	LecturerID       uuid.UUID          `json:"lecturer_id"`
	InstitutionID    *uuid.UUID         `json:"institution_id"`
	ReferenceType    string             `json:"reference_type"`
	RequestType      string             `json:"request_type"`
	Description      string             `json:"reference_description"`
	Status           string             `json:"status"`
	RejectionReason  *string            `json:"reference_rejection_reason"`
	ReferenceEmail   *string            `json:"reference_email"`
	PaymentProcessed bool               `json:"payment_processed"`
	DocumentPath     *string            `json:"document_path"`
	Documents        []DocumentResponse `json:"documents,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

func ToReferenceResponse(ref *entity.Reference) ReferenceResponse {
	return ReferenceResponse{
		ID:               ref.ID,
		StudentID:        ref.StudentID,
		LecturerID:       ref.LecturerID,
		InstitutionID:    ref.InstitutionID,
		ReferenceType:    ref.ReferenceType,
		RequestType:      ref.RequestType,
		Description:      ref.Description,
		Status:           string(ref.Status),
		RejectionReason:  ref.RejectionReason,
		ReferenceEmail:   ref.ReferenceEmail,
		PaymentProcessed: ref.PaymentProcessed,
		DocumentPath:     ref.DocumentPath,
		CreatedAt:        ref.CreatedAt,
		UpdatedAt:        ref.UpdatedAt,
	}
}

func ToReferenceResponses(refs []*entity.Reference) []ReferenceResponse {
	responses := make([]ReferenceResponse, 0, len(refs))
	for _, ref := range refs {
		responses = append(responses, ToReferenceResponse(ref))
	}
	return responses
}

func ToReferenceWithDocuments(ref *entity.Reference, docs []*entity.Document) ReferenceResponse {
	resp := ToReferenceResponse(ref)
	resp.Documents = ToDocumentResponses(docs)
	return resp
}
