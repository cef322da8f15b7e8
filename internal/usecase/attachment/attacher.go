package attachment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ignatzorin/tertab-backend/internal/domain/entity"
	"github.com/ignatzorin/tertab-backend/internal/domain/repository"
	"github.com/ignatzorin/tertab-backend/internal/goroutine"
	"github.com/ignatzorin/tertab-backend/internal/logger"
	"github.com/ignatzorin/tertab-backend/internal/metrics"
	"github.com/ignatzorin/tertab-backend/internal/pkg/apperror"
)

const DefaultConcurrency = 4

// Attacher сохраняет пачку файлов к уже закоммиченной родительской записи.
// Каждый файл обрабатывается независимо: ошибка одного не прерывает остальные
// и возвращается отдельным предупреждением.
type Attacher struct {
	storage      repository.FileStorage
	documents    repository.DocumentRepository
	storeTimeout time.Duration
	concurrency  int
	clock        func() time.Time
	log          *logrus.Entry
}

func NewAttacher(storage repository.FileStorage, documents repository.DocumentRepository, storeTimeout time.Duration, concurrency int) *Attacher {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Attacher{
		storage:      storage,
		documents:    documents,
		storeTimeout: storeTimeout,
		concurrency:  concurrency,
		clock:        time.Now,
		log:          logger.For("attachment"),
	}
}

type outcome struct {
	doc     *entity.Document
	warning *entity.Warning
}

// Attach возвращает сохранённые документы и предупреждения в порядке загрузок.
func (a *Attacher) Attach(ctx context.Context, owner entity.DocumentOwner, uploads []entity.Upload) ([]*entity.Document, []entity.Warning) {
	if len(uploads) == 0 {
		return nil, nil
	}

	results := make([]outcome, len(uploads))
	var g errgroup.Group
	g.SetLimit(a.concurrency)

	for i, upload := range uploads {
		g.Go(func() error {
			defer goroutine.Recover("attachment", func(err error) {
				results[i].warning = a.warn(owner, upload, err)
			})
			doc, err := a.attachOne(ctx, owner, upload)
			if err != nil {
				results[i].warning = a.warn(owner, upload, err)
				return nil
			}
			metrics.AttachmentResults.WithLabelValues(string(owner.Type), "ok").Inc()
			results[i].doc = doc
			return nil
		})
	}
	_ = g.Wait()

	var (
		docs     []*entity.Document
		warnings []entity.Warning
	)
	for _, r := range results {
		if r.doc != nil {
			docs = append(docs, r.doc)
		}
		if r.warning != nil {
			warnings = append(warnings, *r.warning)
		}
	}
	return docs, warnings
}

func (a *Attacher) attachOne(ctx context.Context, owner entity.DocumentOwner, upload entity.Upload) (*entity.Document, error) {
	body, err := upload.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer body.Close()

	storeCtx := ctx
	if a.storeTimeout > 0 {
		var cancel context.CancelFunc
		storeCtx, cancel = context.WithTimeout(ctx, a.storeTimeout)
		defer cancel()
	}

	path, err := a.storage.Store(storeCtx, owner.UserID, upload.Name, body)
	if err != nil {
		return nil, err
	}

	doc := entity.NewDocument(owner, path, upload.Name, a.clock())
	if err := a.documents.Create(ctx, doc); err != nil {
		// Строка не записалась, файл в хранилище больше никому не принадлежит.
		if _, delErr := a.storage.Delete(context.WithoutCancel(ctx), path); delErr != nil {
			a.log.WithError(delErr).WithField("path", path).Error("failed to clean up orphaned document file")
		}
		return nil, err
	}
	return doc, nil
}

func (a *Attacher) warn(owner entity.DocumentOwner, upload entity.Upload, err error) *entity.Warning {
	code := entity.WarningAttachmentFailed
	message := fmt.Sprintf("failed to upload %s", upload.Name)
	if apperror.IsValidation(err) {
		code = entity.WarningAttachmentRejected
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			message = fmt.Sprintf("%s: %s", upload.Name, appErr.Message)
		}
	}

	metrics.AttachmentResults.WithLabelValues(string(owner.Type), code).Inc()
	a.log.WithFields(logrus.Fields{
		"file":    upload.Name,
		"user_id": owner.UserID,
		"type":    owner.Type,
	}).WithError(err).Warn("document attachment failed")

	return &entity.Warning{Code: code, Target: upload.Name, Message: message}
}
