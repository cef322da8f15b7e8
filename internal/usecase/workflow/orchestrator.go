// Package workflow связывает внешние запросы с менеджерами: определяет действующее лицо,
// проверяет права на целевую сущность и вызывает ровно одну операцию менеджера.
package workflow

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/ignatzorin/tertab-backend/internal/domain/entity"
	"github.com/ignatzorin/tertab-backend/internal/domain/policy"
	"github.com/ignatzorin/tertab-backend/internal/pkg/apperror"
	"github.com/ignatzorin/tertab-backend/internal/usecase/attendance"
	"github.com/ignatzorin/tertab-backend/internal/usecase/dispute"
	"github.com/ignatzorin/tertab-backend/internal/usecase/reference"
)

// Result - основной итог операции и предупреждения о побочных эффектах.
type Result[T any] struct {
	Outcome  T
	Warnings []entity.Warning
}

type Orchestrator struct {
	attendance *attendance.Manager
	references *reference.Manager
	disputes   *dispute.Manager
}

func NewOrchestrator(attendance *attendance.Manager, references *reference.Manager, disputes *dispute.Manager) *Orchestrator {
	return &Orchestrator{
		attendance: attendance,
		references: references,
		disputes:   disputes,
	}
}

// conceal скрывает отсутствие сущности от того, у кого нет к ней доступа.
func conceal(err error) error {
	if apperror.IsNotFound(err) {
		return apperror.ErrForbidden
	}
	return err
}

// --- Записи об учёбе ---

func (o *Orchestrator) SubmitInstitution(ctx context.Context, actor entity.Actor, in entity.AttendanceInput, uploads []entity.Upload) (Result[*entity.InstitutionAttended], error) {
	res, err := o.attendance.Submit(ctx, actor.ID, in, uploads)
	if err != nil {
		return Result[*entity.InstitutionAttended]{}, err
	}
	return Result[*entity.InstitutionAttended]{Outcome: res.Record, Warnings: res.Warnings}, nil
}

func (o *Orchestrator) ListInstitutions(ctx context.Context, actor entity.Actor) (*attendance.Listing, error) {
	return o.attendance.ListMine(ctx, actor.ID)
}

func (o *Orchestrator) ownedAttendance(ctx context.Context, actor entity.Actor, id uuid.UUID) (*entity.InstitutionAttended, error) {
	record, err := o.attendance.Find(ctx, id)
	if err != nil {
		return nil, conceal(err)
	}
	if !policy.CanManageAttendance(actor, record) {
		return nil, apperror.ErrForbidden
	}
	return record, nil
}

func (o *Orchestrator) ResendVerification(ctx context.Context, actor entity.Actor, id uuid.UUID) (Result[*entity.InstitutionAttended], error) {
	record, err := o.ownedAttendance(ctx, actor, id)
	if err != nil {
		return Result[*entity.InstitutionAttended]{}, err
	}
	warnings, err := o.attendance.SendVerificationChallenge(ctx, record)
	if err != nil {
		return Result[*entity.InstitutionAttended]{}, err
	}
	return Result[*entity.InstitutionAttended]{Outcome: record, Warnings: warnings}, nil
}

// VerifyInstitutionEmail вызывается по ссылке из письма; токен и есть подтверждение личности.
// Отсутствующая и уже подтверждённая запись отвечают как неверный токен.
func (o *Orchestrator) VerifyInstitutionEmail(ctx context.Context, id uuid.UUID, token string) (*entity.InstitutionAttended, error) {
	record, err := o.attendance.Verify(ctx, id, token)
	if apperror.IsNotFound(err) || errors.Is(err, apperror.ErrAlreadyVerified) {
		return nil, apperror.ErrTokenMismatch
	}
	return record, err
}

func (o *Orchestrator) DeleteInstitution(ctx context.Context, actor entity.Actor, id uuid.UUID) error {
	record, err := o.ownedAttendance(ctx, actor, id)
	if err != nil {
		return err
	}
	return o.attendance.Remove(ctx, actor.ID, record)
}

// --- Рекомендации ---

// ReferenceView - рекомендация с вспомогательными документами.
type ReferenceView struct {
	Reference *entity.Reference
	Documents []*entity.Document
}

func (o *Orchestrator) RequestReference(ctx context.Context, actor entity.Actor, in entity.ReferenceInput) (*entity.Reference, error) {
	return o.references.Create(ctx, actor.ID, in)
}

func (o *Orchestrator) visibleReference(ctx context.Context, actor entity.Actor, id uuid.UUID) (*entity.Reference, error) {
	ref, err := o.references.Find(ctx, id)
	if err != nil {
		return nil, conceal(err)
	}
	if !policy.CanViewReference(actor, ref) {
		return nil, apperror.ErrForbidden
	}
	return ref, nil
}

func (o *Orchestrator) lecturerReference(ctx context.Context, actor entity.Actor, id uuid.UUID) (*entity.Reference, error) {
	ref, err := o.visibleReference(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !policy.CanAdvanceReference(actor, ref) {
		return nil, apperror.ErrForbidden
	}
	return ref, nil
}

func (o *Orchestrator) GetReference(ctx context.Context, actor entity.Actor, id uuid.UUID) (*ReferenceView, error) {
	ref, err := o.visibleReference(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	docs, err := o.references.Documents(ctx, ref.ID)
	if err != nil {
		return nil, err
	}
	return &ReferenceView{Reference: ref, Documents: docs}, nil
}

func (o *Orchestrator) ListReferences(ctx context.Context, actor entity.Actor) ([]*entity.Reference, error) {
	return o.references.ListForUser(ctx, actor.ID)
}

func (o *Orchestrator) StartReference(ctx context.Context, actor entity.Actor, id uuid.UUID) (*entity.Reference, error) {
	ref, err := o.lecturerReference(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := o.references.MarkInProgress(ctx, ref); err != nil {
		return nil, err
	}
	return ref, nil
}

func (o *Orchestrator) CompleteReference(ctx context.Context, actor entity.Actor, id uuid.UUID, documentPath string) (*entity.Reference, error) {
	ref, err := o.lecturerReference(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := o.references.Complete(ctx, ref, documentPath); err != nil {
		return nil, err
	}
	return ref, nil
}

func (o *Orchestrator) CompleteReferenceWithUpload(ctx context.Context, actor entity.Actor, id uuid.UUID, upload entity.Upload) (*entity.Reference, error) {
	ref, err := o.lecturerReference(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := o.references.CompleteWithUpload(ctx, ref, upload); err != nil {
		return nil, err
	}
	return ref, nil
}

func (o *Orchestrator) RejectReference(ctx context.Context, actor entity.Actor, id uuid.UUID, reason string) (*entity.Reference, error) {
	ref, err := o.lecturerReference(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := o.references.Reject(ctx, ref, reason); err != nil {
		return nil, err
	}
	return ref, nil
}

// MarkReferencePaid вызывается платёжным колбэком, аутентифицированным внутренним ключом.
func (o *Orchestrator) MarkReferencePaid(ctx context.Context, id uuid.UUID) (*entity.Reference, error) {
	return o.references.MarkPaid(ctx, id)
}

func (o *Orchestrator) AttachReferenceDocuments(ctx context.Context, actor entity.Actor, id uuid.UUID, uploads []entity.Upload) (Result[[]*entity.Document], error) {
	ref, err := o.visibleReference(ctx, actor, id)
	if err != nil {
		return Result[[]*entity.Document]{}, err
	}
	if !policy.CanAttachToReference(actor, ref) {
		return Result[[]*entity.Document]{}, apperror.ErrForbidden
	}
	docs, warnings, err := o.references.AttachDocuments(ctx, actor.ID, ref, uploads)
	if err != nil {
		return Result[[]*entity.Document]{}, err
	}
	return Result[[]*entity.Document]{Outcome: docs, Warnings: warnings}, nil
}

// --- Споры ---

func (o *Orchestrator) OpenDispute(ctx context.Context, actor entity.Actor, referenceID uuid.UUID, reason string) (*entity.Dispute, error) {
	ref, err := o.references.Find(ctx, referenceID)
	if err != nil {
		return nil, conceal(err)
	}
	if !policy.CanOpenDispute(actor, ref) {
		return nil, apperror.ErrForbidden
	}
	return o.disputes.Open(ctx, ref, actor.ID, reason)
}

// disputeWithReference загружает спор и рекомендацию и проверяет право видеть ветку.
func (o *Orchestrator) disputeWithReference(ctx context.Context, actor entity.Actor, id uuid.UUID) (*entity.Dispute, *entity.Reference, error) {
	d, err := o.disputes.Find(ctx, id)
	if err != nil {
		return nil, nil, conceal(err)
	}
	ref, err := o.references.Find(ctx, d.ReferenceID)
	if err != nil {
		return nil, nil, conceal(err)
	}
	if !policy.CanViewDispute(actor, ref) {
		return nil, nil, apperror.ErrForbidden
	}
	return d, ref, nil
}

func (o *Orchestrator) GetDispute(ctx context.Context, actor entity.Actor, id uuid.UUID) (*entity.Dispute, error) {
	d, _, err := o.disputeWithReference(ctx, actor, id)
	return d, err
}

func (o *Orchestrator) ListDisputes(ctx context.Context, actor entity.Actor, referenceID uuid.UUID) ([]*entity.Dispute, error) {
	ref, err := o.references.Find(ctx, referenceID)
	if err != nil {
		return nil, conceal(err)
	}
	if !policy.CanViewDispute(actor, ref) {
		return nil, apperror.ErrForbidden
	}
	return o.disputes.ListForReference(ctx, ref.ID)
}

func (o *Orchestrator) PostDisputeMessage(ctx context.Context, actor entity.Actor, id uuid.UUID, text string) (*entity.DisputeMessage, error) {
	d, ref, err := o.disputeWithReference(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !policy.CanPostDisputeMessage(actor, ref) {
		return nil, apperror.ErrForbidden
	}
	return o.disputes.PostMessage(ctx, d, actor.ID, text)
}

func (o *Orchestrator) ResolveDispute(ctx context.Context, actor entity.Actor, id uuid.UUID, outcome string) (*entity.Dispute, error) {
	d, ref, err := o.disputeWithReference(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := o.disputes.Resolve(ctx, d, ref, actor, outcome); err != nil {
		return nil, err
	}
	return d, nil
}

// CloseDispute - закрывает тот же арбитр, что вправе разрешать спор.
func (o *Orchestrator) CloseDispute(ctx context.Context, actor entity.Actor, id uuid.UUID) (*entity.Dispute, error) {
	d, ref, err := o.disputeWithReference(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !policy.CanAdjudicate(actor, ref) {
		return nil, apperror.ErrForbidden
	}
	if err := o.disputes.Close(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}
