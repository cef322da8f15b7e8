package dispute

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/tertab-backend/internal/domain/entity"
	"github.com/ignatzorin/tertab-backend/internal/domain/policy"
	"github.com/ignatzorin/tertab-backend/internal/domain/repository"
	"github.com/ignatzorin/tertab-backend/internal/domain/valueobject"
	"github.com/ignatzorin/tertab-backend/internal/logger"
	"github.com/ignatzorin/tertab-backend/internal/metrics"
	"github.com/ignatzorin/tertab-backend/internal/pkg/apperror"
)

// Manager ведёт споры: open -> resolved -> closed.
type Manager struct {
	disputes repository.DisputeRepository
	clock    func() time.Time
	log      *logrus.Entry
}

func NewManager(disputes repository.DisputeRepository) *Manager {
	return &Manager{
		disputes: disputes,
		clock:    time.Now,
		log:      logger.For("dispute"),
	}
}

// Open создаёт спор и первое сообщение. У рекомендации может быть много споров,
// но незакрытый - не больше одного.
func (m *Manager) Open(ctx context.Context, ref *entity.Reference, initiatorID uuid.UUID, reason string) (*entity.Dispute, error) {
	d, opening, err := entity.OpenDispute(ref, initiatorID, reason, m.clock())
	if err != nil {
		return nil, err
	}

	active, err := m.disputes.FindActiveByReferenceID(ctx, ref.ID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, apperror.New(apperror.ErrCodeConflict, "this reference already has an active dispute")
	}

	if err := m.disputes.Create(ctx, d, opening); err != nil {
		return nil, err
	}

	metrics.DisputeEvents.WithLabelValues("opened").Inc()
	m.log.WithFields(logrus.Fields{
		"dispute_id":   d.ID,
		"reference_id": ref.ID,
		"user_id":      initiatorID,
	}).Info("dispute opened")
	return d, nil
}

// Find возвращает спор вместе с веткой сообщений.
func (m *Manager) Find(ctx context.Context, id uuid.UUID) (*entity.Dispute, error) {
	d, err := m.disputes.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	messages, err := m.disputes.FindMessages(ctx, id)
	if err != nil {
		return nil, err
	}
	d.Messages = messages
	return d, nil
}

func (m *Manager) ListForReference(ctx context.Context, referenceID uuid.UUID) ([]*entity.Dispute, error) {
	return m.disputes.FindByReferenceID(ctx, referenceID)
}

func (m *Manager) PostMessage(ctx context.Context, d *entity.Dispute, senderID uuid.UUID, text string) (*entity.DisputeMessage, error) {
	msg, err := d.NewMessage(senderID, text, m.clock())
	if err != nil {
		return nil, err
	}
	if err := m.disputes.AppendMessage(ctx, msg); err != nil {
		if apperror.IsConflict(err) {
			return nil, apperror.New(apperror.ErrCodeConflict, "messages can only be posted while the dispute is open")
		}
		return nil, err
	}
	d.Messages = append(d.Messages, msg)
	metrics.DisputeEvents.WithLabelValues("message").Inc()
	return msg, nil
}

// Resolve доступен только арбитру - администратору, не участвующему в рекомендации.
func (m *Manager) Resolve(ctx context.Context, d *entity.Dispute, ref *entity.Reference, resolver entity.Actor, outcome string) error {
	if d.ReferenceID != ref.ID {
		return apperror.New(apperror.ErrCodeBadRequest, "dispute does not belong to this reference")
	}
	if !policy.CanAdjudicate(resolver, ref) {
		return apperror.ErrForbidden
	}

	expected := d.Status
	if err := d.Resolve(resolver.ID, outcome, m.clock()); err != nil {
		return err
	}
	return m.save(ctx, d, expected, "resolved")
}

func (m *Manager) Close(ctx context.Context, d *entity.Dispute) error {
	expected := d.Status
	if err := d.Close(m.clock()); err != nil {
		return err
	}
	return m.save(ctx, d, expected, "closed")
}

func (m *Manager) save(ctx context.Context, d *entity.Dispute, expected valueobject.DisputeStatus, event string) error {
	if err := m.disputes.UpdateStatus(ctx, d, expected); err != nil {
		return err
	}
	metrics.DisputeEvents.WithLabelValues(event).Inc()
	m.log.WithFields(logrus.Fields{
		"dispute_id": d.ID,
		"from":       expected,
		"to":         d.Status,
	}).Info("dispute status changed")
	return nil
}
