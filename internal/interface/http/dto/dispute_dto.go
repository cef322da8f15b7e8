package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/tertab-backend/internal/domain/entity"
)

type OpenDisputeRequest struct {
	Reason string `json:"reason" binding:"required,max=2000"`
}

type PostDisputeMessageRequest struct {
	Message string `json:"message" binding:"required,max=5000"`
}

type ResolveDisputeRequest struct {
	Resolution string `json:"resolution" binding:"required,max=5000"`
}

type DisputeMessageResponse struct {
	ID        uuid.UUID `json:"id"`
	DisputeID uuid.UUID `json:"dispute_id"`
	UserID    uuid.UUID `json:"user_id"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

func ToDisputeMessageResponse(m *entity.DisputeMessage) DisputeMessageResponse {
	return DisputeMessageResponse{
		ID:        m.ID,
		DisputeID: m.DisputeID,
		UserID:    m.UserID,
		Message:   m.Message,
		CreatedAt: m.CreatedAt,
	}
}

type DisputeResponse struct {
	ID          uuid.UUID                `json:"id"`
	ReferenceID uuid.UUID                `json:"reference_id"`
	UserID      uuid.UUID                `json:"user_id"`
	Status      string                   `json:"status"`
	Reason      string                   `json:"reason"`
	Resolution  *string                  `json:"resolution"`
	ResolvedBy  *uuid.UUID               `json:"resolved_by"`
	ResolvedAt  *time.Time               `json:"resolved_at"`
	ClosedAt    *time.Time               `json:"closed_at"`
	Messages    []DisputeMessageResponse `json:"messages,omitempty"`
	CreatedAt   time.Time                `json:"created_at"`
	UpdatedAt   time.Time                `json:"updated_at"`
}

func ToDisputeResponse(d *entity.Dispute) DisputeResponse {
	resp := DisputeResponse{
		ID:          d.ID,
		ReferenceID: d.ReferenceID,
		UserID:      d.UserID,
		Status:      string(d.Status),
		Reason:      d.Reason,
		Resolution:  d.Resolution,
		ResolvedBy:  d.ResolvedBy,
		ResolvedAt:  d.ResolvedAt,
		ClosedAt:    d.ClosedAt,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
	for _, m := range d.Messages {
		resp.Messages = append(resp.Messages, ToDisputeMessageResponse(m))
	}
	return resp
}

func ToDisputeResponses(disputes []*entity.Dispute) []DisputeResponse {
	responses := make([]DisputeResponse, 0, len(disputes))
	for _, d := range disputes {
		responses = append(responses, ToDisputeResponse(d))
	}
	return responses
}
