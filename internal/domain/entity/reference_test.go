package entity

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/tertab-backend/internal/domain/valueobject"
	"github.com/ignatzorin/tertab-backend/internal/pkg/apperror"
)

func newReference(t *testing.T) *Reference {
	t.Helper()
	ref, err := NewReference(uuid.New(), ReferenceInput{
		LecturerID:    uuid.New(),
		ReferenceType: "academic",
		RequestType:   "standard",
	}, now)
	require.NoError(t, err)
	return ref
}

func price(amount string) valueobject.Money {
	m, _ := valueobject.NewMoney(decimal.RequireFromString(amount), valueobject.DefaultCurrency)
	return m
}

func TestNewReference_Validation(t *testing.T) {
	student := uuid.New()
	_, err := NewReference(student, ReferenceInput{LecturerID: student}, now)

	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "you cannot request a reference from yourself", appErr.Fields["lecturer_id"])
	assert.Contains(t, appErr.Fields, "reference_type")
	assert.Contains(t, appErr.Fields, "request_type")
}

func TestReference_CompleteCheckOrder(t *testing.T) {
	t.Run("empty path is validation before anything else", func(t *testing.T) {
		ref := newReference(t)
		ref.Status = valueobject.ReferenceStatusCompleted
		assert.True(t, apperror.IsValidation(ref.Complete("  ", price("100"), now)))
	})

	t.Run("terminal beats payment", func(t *testing.T) {
		ref := newReference(t)
		ref.Status = valueobject.ReferenceStatusRejected
		assert.True(t, apperror.IsConflict(ref.Complete("a/b.pdf", price("100"), now)))
	})

	t.Run("unpaid priced reference needs payment", func(t *testing.T) {
		ref := newReference(t)
		ref.Status = valueobject.ReferenceStatusInProgress
		err := ref.Complete("a/b.pdf", price("100"), now)
		assert.True(t, apperror.IsPaymentRequired(err))
		assert.Equal(t, valueobject.ReferenceStatusInProgress, ref.Status)
	})

	t.Run("payment beats requested state", func(t *testing.T) {
		ref := newReference(t)
		assert.True(t, apperror.IsPaymentRequired(ref.Complete("a/b.pdf", price("100"), now)))
	})

	t.Run("requested free reference is a conflict", func(t *testing.T) {
		ref := newReference(t)
		assert.True(t, apperror.IsConflict(ref.Complete("a/b.pdf", valueobject.Zero(), now)))
	})

	t.Run("paid reference in progress completes", func(t *testing.T) {
		ref := newReference(t)
		ref.Status = valueobject.ReferenceStatusInProgress
		require.True(t, ref.MarkPaid(now))
		require.NoError(t, ref.Complete("a/b.pdf", price("100"), now))
		assert.Equal(t, valueobject.ReferenceStatusCompleted, ref.Status)
		require.NotNil(t, ref.DocumentPath)
		assert.Equal(t, "a/b.pdf", *ref.DocumentPath)
	})
}

func TestReference_Reject(t *testing.T) {
	ref := newReference(t)
	assert.True(t, apperror.IsValidation(ref.Reject(" ", now)))

	require.NoError(t, ref.Reject("not enough contact", now))
	assert.Equal(t, valueobject.ReferenceStatusRejected, ref.Status)
	require.NotNil(t, ref.RejectionReason)
	assert.Nil(t, ref.DocumentPath)

	assert.True(t, apperror.IsConflict(ref.Reject("again", now)))
	assert.True(t, apperror.IsConflict(ref.StartProgress(now)))
	assert.True(t, apperror.IsConflict(ref.AcceptsDocuments()))
}

func TestReference_MarkPaidIsIdempotent(t *testing.T) {
	ref := newReference(t)
	assert.True(t, ref.MarkPaid(now))
	assert.False(t, ref.MarkPaid(now))
	assert.True(t, ref.PaymentProcessed)
}
