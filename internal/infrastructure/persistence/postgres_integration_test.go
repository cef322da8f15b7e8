//go:build integration

package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/ignatzorin/tertab-backend/internal/db"
	"github.com/ignatzorin/tertab-backend/internal/domain/entity"
	"github.com/ignatzorin/tertab-backend/internal/domain/valueobject"
	"github.com/ignatzorin/tertab-backend/internal/pkg/apperror"
)

func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(
		ctx,
		"postgres:16-alpine",
		testcontainers.WithEnv(map[string]string{
			"POSTGRES_DB":       "tertab",
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
		}),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	conn, err := db.NewPostgres(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.NoError(t, db.RunMigrations(ctx, conn, "../../../migrations"))
	// Повторный прогон ничего не применяет.
	require.NoError(t, db.RunMigrations(ctx, conn, "../../../migrations"))
	return conn
}

func newLecturerRecord(t *testing.T, userID, institutionID uuid.UUID) *entity.InstitutionAttended {
	t.Helper()
	email := "lecturer@unilag.edu.ng"
	start := time.Date(2019, 9, 1, 0, 0, 0, 0, time.UTC)
	record, err := entity.NewInstitutionAttended(userID, entity.AttendanceInput{
		InstitutionID: institutionID,
		StateID:       uuid.New(),
		Type:          "lecturer",
		SchoolEmail:   &email,
		StartDate:     &start,
	}, time.Now().UTC().Truncate(time.Microsecond))
	require.NoError(t, err)
	return record
}

func TestPostgresRepositories(t *testing.T) {
	conn := setupTestDB(t)
	ctx := context.Background()

	attendances := NewAttendanceRepositoryAdapter(conn)
	documents := NewDocumentRepositoryAdapter(conn)
	references := NewReferenceRepositoryAdapter(conn)
	disputes := NewDisputeRepositoryAdapter(conn)
	settings := NewSettingsRepositoryAdapter(conn)

	lecturerID, studentID, institutionID := uuid.New(), uuid.New(), uuid.New()

	t.Run("attendance verification CAS", func(t *testing.T) {
		record := newLecturerRecord(t, lecturerID, institutionID)
		require.NoError(t, attendances.Create(ctx, record))

		ok, err := attendances.HasVerifiedLecturer(ctx, lecturerID, &institutionID)
		require.NoError(t, err)
		assert.False(t, ok)

		now := time.Now().UTC()
		require.NoError(t, attendances.SaveChallenge(ctx, record.ID, "hash-1", now.Add(time.Hour), now))
		require.NoError(t, attendances.SaveChallenge(ctx, record.ID, "hash-2", now.Add(time.Hour), now))

		err = attendances.MarkVerified(ctx, record.ID, "hash-1", now)
		assert.ErrorIs(t, err, apperror.ErrStaleState, "replaced token no longer matches")
		require.NoError(t, attendances.MarkVerified(ctx, record.ID, "hash-2", now))
		assert.ErrorIs(t, attendances.MarkVerified(ctx, record.ID, "hash-2", now), apperror.ErrStaleState)
		assert.ErrorIs(t, attendances.SaveChallenge(ctx, record.ID, "hash-3", now, now), apperror.ErrStaleState)

		saved, err := attendances.FindByID(ctx, record.ID)
		require.NoError(t, err)
		assert.True(t, saved.IsVerified())
		assert.Nil(t, saved.VerificationTokenHash)
		require.NotNil(t, saved.StartDate)
		assert.Equal(t, "2019-09-01", saved.StartDate.Format("2006-01-02"))

		ok, err = attendances.HasVerifiedLecturer(ctx, lecturerID, &institutionID)
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = attendances.HasVerifiedLecturer(ctx, lecturerID, nil)
		require.NoError(t, err)
		assert.True(t, ok)
		other := uuid.New()
		ok, err = attendances.HasVerifiedLecturer(ctx, lecturerID, &other)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("attendance delete removes documents", func(t *testing.T) {
		record := newLecturerRecord(t, uuid.New(), uuid.New())
		require.NoError(t, attendances.Create(ctx, record))

		owner := entity.InstitutionDocumentOwner(record.UserID, record.ID)
		for _, name := range []string{"a.pdf", "b.pdf"} {
			require.NoError(t, documents.Create(ctx, entity.NewDocument(owner, record.UserID.String()+"/"+name, name, time.Now())))
		}
		docs, err := documents.FindByAttendanceID(ctx, record.ID)
		require.NoError(t, err)
		assert.Len(t, docs, 2)

		require.NoError(t, attendances.Delete(ctx, record.ID))
		docs, err = documents.FindByAttendanceID(ctx, record.ID)
		require.NoError(t, err)
		assert.Empty(t, docs)

		_, err = attendances.FindByID(ctx, record.ID)
		assert.ErrorIs(t, err, apperror.ErrAttendanceNotFound)
		assert.ErrorIs(t, attendances.Delete(ctx, record.ID), apperror.ErrAttendanceNotFound)
	})

	var ref *entity.Reference
	t.Run("reference transitions", func(t *testing.T) {
		var err error
		ref, err = entity.NewReference(studentID, entity.ReferenceInput{
			LecturerID:    lecturerID,
			InstitutionID: &institutionID,
			ReferenceType: "academic",
			RequestType:   "express",
		}, time.Now().UTC())
		require.NoError(t, err)
		require.NoError(t, references.Create(ctx, ref))

		mine, err := references.FindByUserID(ctx, lecturerID)
		require.NoError(t, err)
		require.Len(t, mine, 1)

		require.NoError(t, ref.StartProgress(time.Now()))
		require.NoError(t, references.UpdateStatus(ctx, ref, valueobject.ReferenceStatusRequested))

		stale := *ref
		require.NoError(t, stale.Reject("late", time.Now()))
		assert.ErrorIs(t, references.UpdateStatus(ctx, &stale, valueobject.ReferenceStatusRequested), apperror.ErrStaleState)

		require.NoError(t, references.MarkPaid(ctx, ref.ID))
		require.NoError(t, references.MarkPaid(ctx, ref.ID))
		assert.ErrorIs(t, references.MarkPaid(ctx, uuid.New()), apperror.ErrReferenceNotFound)

		require.NoError(t, ref.Complete("refs/final.pdf", valueobject.Zero(), time.Now()))
		require.NoError(t, references.UpdateStatus(ctx, ref, valueobject.ReferenceStatusInProgress))

		saved, err := references.FindByID(ctx, ref.ID)
		require.NoError(t, err)
		assert.Equal(t, valueobject.ReferenceStatusCompleted, saved.Status)
		assert.True(t, saved.PaymentProcessed)
		require.NotNil(t, saved.DocumentPath)
		assert.Equal(t, "refs/final.pdf", *saved.DocumentPath)

		doc := entity.NewDocument(entity.ReferenceDocumentOwner(studentID, ref.ID), "x/transcript.pdf", "transcript.pdf", time.Now())
		require.NoError(t, documents.Create(ctx, doc))
		docs, err := documents.FindByReferenceID(ctx, ref.ID)
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, valueobject.DocumentTypeReference, docs[0].Type)
	})

	t.Run("disputes", func(t *testing.T) {
		require.NotNil(t, ref)
		d, opening, err := entity.OpenDispute(ref, studentID, "The grades are wrong", time.Now().UTC())
		require.NoError(t, err)
		require.NoError(t, disputes.Create(ctx, d, opening))

		second, secondOpening, err := entity.OpenDispute(ref, lecturerID, "another", time.Now().UTC())
		require.NoError(t, err)
		err = disputes.Create(ctx, second, secondOpening)
		assert.True(t, apperror.IsConflict(err), "unique index allows one active dispute")

		active, err := disputes.FindActiveByReferenceID(ctx, ref.ID)
		require.NoError(t, err)
		require.NotNil(t, active)
		assert.Equal(t, d.ID, active.ID)

		msg, err := d.NewMessage(lecturerID, "Let me check", time.Now().UTC())
		require.NoError(t, err)
		require.NoError(t, disputes.AppendMessage(ctx, msg))

		require.NoError(t, d.Resolve(uuid.New(), "Amended", time.Now().UTC()))
		require.NoError(t, disputes.UpdateStatus(ctx, d, valueobject.DisputeStatusOpen))

		late := &entity.DisputeMessage{ID: uuid.New(), DisputeID: d.ID, UserID: studentID, Message: "late", CreatedAt: time.Now()}
		assert.ErrorIs(t, disputes.AppendMessage(ctx, late), apperror.ErrStaleState)

		messages, err := disputes.FindMessages(ctx, d.ID)
		require.NoError(t, err)
		require.Len(t, messages, 2)
		assert.Equal(t, "The grades are wrong", messages[0].Message)

		require.NoError(t, d.Close(time.Now().UTC()))
		require.NoError(t, disputes.UpdateStatus(ctx, d, valueobject.DisputeStatusResolved))
		active, err = disputes.FindActiveByReferenceID(ctx, ref.ID)
		require.NoError(t, err)
		assert.Nil(t, active)

		require.NoError(t, disputes.Create(ctx, second, secondOpening), "closed dispute frees the slot")
		all, err := disputes.FindByReferenceID(ctx, ref.ID)
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})

	t.Run("platform settings", func(t *testing.T) {
		current, err := settings.Get(ctx)
		require.NoError(t, err)
		assert.False(t, current.ReferenceRequestPrice.IsPositive())

		_, err = conn.ExecContext(ctx, `UPDATE platform_settings SET reference_request_price = 1500.50, express_reference_request_price = 3000 WHERE id = 1`)
		require.NoError(t, err)

		current, err = settings.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, "1500.50", current.ReferenceRequestPrice.Amount.StringFixed(2))
		assert.Equal(t, "3000.00", current.PriceFor(valueobject.RequestClassExpress).Amount.StringFixed(2))
	})
}
