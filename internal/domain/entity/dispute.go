package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/tertab-backend/internal/domain/valueobject"
	"github.com/ignatzorin/tertab-backend/internal/pkg/apperror"
	"github.com/ignatzorin/tertab-backend/internal/validation"
)

type Dispute struct {
	ID          uuid.UUID
	ReferenceID uuid.UUID
	UserID      uuid.UUID
	Status      valueobject.DisputeStatus
	Reason      string
	Resolution  *string
	ResolvedBy  *uuid.UUID
	ResolvedAt  *time.Time
	ClosedAt    *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Messages []*DisputeMessage
}

// DisputeMessage неизменяемо после создания.
type DisputeMessage struct {
	ID        uuid.UUID
	DisputeID uuid.UUID
	UserID    uuid.UUID
	Message   string
	CreatedAt time.Time
}

// OpenDispute создаёт спор по завершённой или отклонённой рекомендации
// и первое сообщение ветки с текстом причины.
func OpenDispute(ref *Reference, initiatorID uuid.UUID, reason string, now time.Time) (*Dispute, *DisputeMessage, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, nil, apperror.FieldError("reason", "a reason is required to open a dispute")
	}
	if err := validation.ValidateLength("reason", reason, 0, validation.MaxReasonLength); err != nil {
		return nil, nil, apperror.FieldError("reason", err.Error())
	}
	if !ref.Status.IsTerminal() {
		return nil, nil, apperror.New(apperror.ErrCodeConflict, "a dispute can only be opened on a completed or rejected reference")
	}

	d := &Dispute{
		ID:          uuid.New(),
		ReferenceID: ref.ID,
		UserID:      initiatorID,
		Status:      valueobject.DisputeStatusOpen,
		Reason:      reason,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	opening := &DisputeMessage{
		ID:        uuid.New(),
		DisputeID: d.ID,
		UserID:    initiatorID,
		Message:   reason,
		CreatedAt: now,
	}
	d.Messages = []*DisputeMessage{opening}
	return d, opening, nil
}

func (d *Dispute) IsOpen() bool {
	return d.Status == valueobject.DisputeStatusOpen
}

// NewMessage готовит сообщение в ветку; спор должен быть открыт.
func (d *Dispute) NewMessage(senderID uuid.UUID, text string, now time.Time) (*DisputeMessage, error) {
	if err := validation.ValidateMessageContent(text); err != nil {
		return nil, apperror.FieldError("message", err.Error())
	}
	if !d.IsOpen() {
		return nil, apperror.New(apperror.ErrCodeConflict, "messages can only be posted while the dispute is open")
	}
	return &DisputeMessage{
		ID:        uuid.New(),
		DisputeID: d.ID,
		UserID:    senderID,
		Message:   strings.TrimSpace(text),
		CreatedAt: now,
	}, nil
}

func (d *Dispute) Resolve(resolverID uuid.UUID, outcome string, now time.Time) error {
	outcome = strings.TrimSpace(outcome)
	if outcome == "" {
		return apperror.FieldError("resolution", "a resolution is required")
	}
	if !d.Status.CanTransitionTo(valueobject.DisputeStatusResolved) {
		return apperror.New(apperror.ErrCodeConflict, "only an open dispute can be resolved")
	}
	d.Status = valueobject.DisputeStatusResolved
	d.Resolution = &outcome
	d.ResolvedBy = &resolverID
	d.ResolvedAt = &now
	d.UpdatedAt = now
	return nil
}

func (d *Dispute) Close(now time.Time) error {
	if !d.Status.CanTransitionTo(valueobject.DisputeStatusClosed) {
		return apperror.New(apperror.ErrCodeConflict, "only a resolved dispute can be closed")
	}
	d.Status = valueobject.DisputeStatusClosed
	d.ClosedAt = &now
	d.UpdatedAt = now
	return nil
}
