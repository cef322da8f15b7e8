package dispute_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/tertab-backend/internal/domain/entity"
	"github.com/ignatzorin/tertab-backend/internal/domain/valueobject"
	"github.com/ignatzorin/tertab-backend/internal/pkg/apperror"
	"github.com/ignatzorin/tertab-backend/internal/testutil/memstore"
	"github.com/ignatzorin/tertab-backend/internal/usecase/dispute"
)

func rejectedReference() *entity.Reference {
	reason := "Not my student"
	return &entity.Reference{
		ID:              uuid.New(),
		StudentID:       uuid.New(),
		LecturerID:      uuid.New(),
		ReferenceType:   "academic",
		RequestType:     "standard",
		Status:          valueobject.ReferenceStatusRejected,
		RejectionReason: &reason,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
}

func admin() entity.Actor {
	return entity.Actor{ID: uuid.New(), Role: valueobject.RoleAdmin}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	m := dispute.NewManager(memstore.New().Disputes())
	ref := rejectedReference()

	d, err := m.Open(ctx, ref, ref.StudentID, "  I was in this lecturer's class for two years.  ")
	require.NoError(t, err)
	assert.Equal(t, valueobject.DisputeStatusOpen, d.Status)
	assert.Equal(t, "I was in this lecturer's class for two years.", d.Reason)

	found, err := m.Find(ctx, d.ID)
	require.NoError(t, err)
	require.Len(t, found.Messages, 1)
	assert.Equal(t, d.Reason, found.Messages[0].Message)
	assert.Equal(t, ref.StudentID, found.Messages[0].UserID)

	_, err = m.Open(ctx, ref, ref.LecturerID, "second dispute")
	assert.True(t, apperror.IsConflict(err), "only one active dispute per reference")

	inProgress := rejectedReference()
	inProgress.Status = valueobject.ReferenceStatusInProgress
	_, err = m.Open(ctx, inProgress, inProgress.StudentID, "too early")
	assert.True(t, apperror.IsConflict(err))

	_, err = m.Open(ctx, rejectedReference(), uuid.New(), "   ")
	assert.True(t, apperror.IsValidation(err))
}

func TestLifecycle(t *testing.T) {
	ctx := context.Background()
	m := dispute.NewManager(memstore.New().Disputes())
	ref := rejectedReference()

	d, err := m.Open(ctx, ref, ref.StudentID, "Please reconsider")
	require.NoError(t, err)

	_, err = m.PostMessage(ctx, d, ref.LecturerID, "I have no record of this student.")
	require.NoError(t, err)
	_, err = m.PostMessage(ctx, d, ref.StudentID, "")
	assert.True(t, apperror.IsValidation(err))

	err = m.Close(ctx, d)
	assert.True(t, apperror.IsConflict(err), "open dispute cannot be closed")

	student := entity.Actor{ID: ref.StudentID, Role: valueobject.RoleStudent}
	err = m.Resolve(ctx, d, ref, student, "in my favour")
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	partyAdmin := entity.Actor{ID: ref.LecturerID, Role: valueobject.RoleAdmin}
	err = m.Resolve(ctx, d, ref, partyAdmin, "upheld")
	assert.ErrorIs(t, err, apperror.ErrForbidden, "a party cannot adjudicate")

	arbiter := admin()
	err = m.Resolve(ctx, d, rejectedReference(), arbiter, "upheld")
	assert.Equal(t, apperror.ErrCodeBadRequest, appCode(t, err))

	require.NoError(t, m.Resolve(ctx, d, ref, arbiter, "Rejection upheld"))
	assert.Equal(t, valueobject.DisputeStatusResolved, d.Status)
	require.NotNil(t, d.ResolvedBy)
	assert.Equal(t, arbiter.ID, *d.ResolvedBy)

	_, err = m.PostMessage(ctx, d, ref.StudentID, "But...")
	assert.True(t, apperror.IsConflict(err))

	require.NoError(t, m.Close(ctx, d))

	found, err := m.Find(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.DisputeStatusClosed, found.Status)
	assert.Len(t, found.Messages, 2)

	// После закрытия можно открыть новый спор.
	second, err := m.Open(ctx, ref, ref.StudentID, "New evidence")
	require.NoError(t, err)

	all, err := m.ListForReference(ctx, ref.ID)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Contains(t, []uuid.UUID{all[0].ID, all[1].ID}, second.ID)
}

func TestPostMessage_RacesWithResolve(t *testing.T) {
	ctx := context.Background()
	m := dispute.NewManager(memstore.New().Disputes())
	ref := rejectedReference()

	d, err := m.Open(ctx, ref, ref.StudentID, "Please reconsider")
	require.NoError(t, err)
	stale, err := m.Find(ctx, d.ID)
	require.NoError(t, err)

	require.NoError(t, m.Resolve(ctx, d, ref, admin(), "upheld"))

	_, err = m.PostMessage(ctx, stale, ref.StudentID, "late message")
	assert.True(t, apperror.IsConflict(err))

	found, err := m.Find(ctx, d.ID)
	require.NoError(t, err)
	assert.Len(t, found.Messages, 1)
}

func appCode(t *testing.T, err error) apperror.ErrorCode {
	t.Helper()
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	return appErr.Code
}
