package handler

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/tertab-backend/internal/domain/entity"
	"github.com/ignatzorin/tertab-backend/internal/http/middleware"
	"github.com/ignatzorin/tertab-backend/internal/pkg/apperror"
	"github.com/ignatzorin/tertab-backend/internal/validation"
)

// documentsField - имя multipart-поля с файлами.
const documentsField = "documents"

func getActor(c *gin.Context) (entity.Actor, error) {
	value, exists := c.Get(middleware.ContextActorKey)
	if !exists {
		return entity.Actor{}, apperror.ErrUnauthorized
	}
	actor, ok := value.(entity.Actor)
	if !ok {
		return entity.Actor{}, apperror.ErrUnauthorized
	}
	return actor, nil
}

// parseID читает UUID из параметра маршрута.
func parseID(c *gin.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, apperror.FieldError(name, "must be a valid identifier")
	}
	return id, nil
}

// bindError переводит ошибку привязки gin в ошибку валидации с полями.
func bindError(err error) error {
	if fields := validation.FieldErrors(err); len(fields) > 0 {
		return apperror.Validation(fields)
	}
	return apperror.New(apperror.ErrCodeBadRequest, "malformed request body")
}

// formUploads собирает файлы поля field из multipart-формы.
// Запрос без multipart-тела означает, что файлов нет.
func formUploads(c *gin.Context, field string) ([]entity.Upload, error) {
	form, err := c.MultipartForm()
	if errors.Is(err, http.ErrNotMultipart) {
		return nil, nil
	}
	if err != nil {
		return nil, apperror.New(apperror.ErrCodeBadRequest, "request is not a valid multipart form")
	}
	return toUploads(form.File[field]), nil
}

func toUploads(headers []*multipart.FileHeader) []entity.Upload {
	uploads := make([]entity.Upload, 0, len(headers))
	for _, fh := range headers {
		uploads = append(uploads, entity.Upload{
			Name: fh.Filename,
			Size: fh.Size,
			Open: func() (io.ReadCloser, error) { return fh.Open() },
		})
	}
	return uploads
}
