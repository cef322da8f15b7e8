package verification

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/ignatzorin/tertab-backend/internal/domain/entity"
	"github.com/ignatzorin/tertab-backend/internal/domain/repository"
	"github.com/ignatzorin/tertab-backend/internal/logger"
	"github.com/ignatzorin/tertab-backend/internal/metrics"
	"github.com/ignatzorin/tertab-backend/internal/pkg/apperror"
)

const (
	DefaultTTL = 24 * time.Hour
	tokenBytes = 32
)

// TokenService выдаёт и гасит одноразовые токены подтверждения школьной почты.
// В базе хранится только bcrypt-хэш токена.
type TokenService struct {
	repo     repository.AttendanceRepository
	ttl      time.Duration
	hashCost int
	clock    func() time.Time
	log      *logrus.Entry
}

type Option func(*TokenService)

func WithClock(clock func() time.Time) Option {
	return func(s *TokenService) { s.clock = clock }
}

func WithHashCost(cost int) Option {
	return func(s *TokenService) { s.hashCost = cost }
}

func NewTokenService(repo repository.AttendanceRepository, ttl time.Duration, opts ...Option) *TokenService {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := &TokenService{
		repo:     repo,
		ttl:      ttl,
		hashCost: bcrypt.DefaultCost,
		clock:    time.Now,
		log:      logger.For("verification"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issued - выданный токен и срок его действия.
type Issued struct {
	Token     string
	ExpiresAt time.Time
}

// Issue выпускает новый токен для записи, затирая предыдущий.
func (s *TokenService) Issue(ctx context.Context, attendanceID uuid.UUID) (*Issued, error) {
	record, err := s.repo.FindByID(ctx, attendanceID)
	if err != nil {
		return nil, err
	}
	if err := record.CanReceiveChallenge(); err != nil {
		metrics.VerificationOutcomes.WithLabelValues("issue", outcome(err)).Inc()
		return nil, err
	}

	token, err := generateToken()
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to generate verification token")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(token), s.hashCost)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to hash verification token")
	}

	now := s.clock()
	if err := record.SetChallenge(string(hash), now.Add(s.ttl), now); err != nil {
		return nil, err
	}
	expiresAt := *record.VerificationTokenExpiresAt
	if err := s.repo.SaveChallenge(ctx, attendanceID, *record.VerificationTokenHash, expiresAt, now); err != nil {
		if apperror.IsConflict(err) {
			metrics.VerificationOutcomes.WithLabelValues("issue", "already_verified").Inc()
			return nil, apperror.ErrAlreadyVerified
		}
		return nil, err
	}

	metrics.VerificationOutcomes.WithLabelValues("issue", "ok").Inc()
	return &Issued{Token: token, ExpiresAt: expiresAt}, nil
}

// Consume гасит токен: запись pending, токен совпадает, срок не истёк.
// Повторное гашение того же токена возвращает ErrAlreadyVerified.
func (s *TokenService) Consume(ctx context.Context, attendanceID uuid.UUID, token string) (*entity.InstitutionAttended, error) {
	record, err := s.consume(ctx, attendanceID, token)
	metrics.VerificationOutcomes.WithLabelValues("consume", outcome(err)).Inc()
	return record, err
}

func (s *TokenService) consume(ctx context.Context, attendanceID uuid.UUID, token string) (*entity.InstitutionAttended, error) {
	record, err := s.repo.FindByID(ctx, attendanceID)
	if err != nil {
		return nil, err
	}
	if record.IsVerified() {
		return nil, apperror.ErrAlreadyVerified
	}
	if record.VerificationTokenHash == nil || token == "" {
		return nil, apperror.ErrTokenMismatch
	}

	storedHash := *record.VerificationTokenHash
	if err := bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(token)); err != nil {
		return nil, apperror.ErrTokenMismatch
	}

	now := s.clock()
	if record.ChallengeExpired(now) {
		return nil, apperror.ErrTokenExpired
	}

	if err := s.repo.MarkVerified(ctx, attendanceID, storedHash, now); err != nil {
		if !errors.Is(err, apperror.ErrStaleState) {
			return nil, err
		}
		// Запись изменилась между чтением и CAS: либо её уже подтвердили, либо токен перевыпустили.
		current, findErr := s.repo.FindByID(ctx, attendanceID)
		if findErr != nil {
			return nil, findErr
		}
		if current.IsVerified() {
			return nil, apperror.ErrAlreadyVerified
		}
		return nil, apperror.ErrTokenMismatch
	}

	if err := record.MarkVerified(now); err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{
		"attendance_id": attendanceID,
		"user_id":       record.UserID,
	}).Info("institution email verified")
	return record, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, apperror.ErrAlreadyVerified):
		return "already_verified"
	case errors.Is(err, apperror.ErrTokenExpired):
		return "expired"
	case errors.Is(err, apperror.ErrTokenMismatch):
		return "mismatch"
	default:
		return "error"
	}
}

func generateToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}
