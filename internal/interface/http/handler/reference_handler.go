package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/tertab-backend/internal/domain/entity"
	"github.com/ignatzorin/tertab-backend/internal/interface/http/dto"
	"github.com/ignatzorin/tertab-backend/internal/interface/http/response"
	"github.com/ignatzorin/tertab-backend/internal/pkg/apperror"
	"github.com/ignatzorin/tertab-backend/internal/usecase/workflow"
)

// referenceFileField - поле multipart-формы с итоговым файлом рекомендации.
const referenceFileField = "document"

type ReferenceHandler struct {
	workflow *workflow.Orchestrator
}

func NewReferenceHandler(orchestrator *workflow.Orchestrator) *ReferenceHandler {
	return &ReferenceHandler{workflow: orchestrator}
}

func (h *ReferenceHandler) Create(c *gin.Context) {
	actor, err := getActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.CreateReferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}

	ref, err := h.workflow.RequestReference(c.Request.Context(), actor, req.ToInput())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.ToReferenceResponse(ref))
}

func (h *ReferenceHandler) Get(c *gin.Context) {
	actor, err := getActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	id, err := parseID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	view, err := h.workflow.GetReference(c.Request.Context(), actor, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToReferenceWithDocuments(view.Reference, view.Documents))
}

func (h *ReferenceHandler) List(c *gin.Context) {
	actor, err := getActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	refs, err := h.workflow.ListReferences(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToReferenceResponses(refs))
}

func (h *ReferenceHandler) Start(c *gin.Context) {
	h.transition(c, func(actor entity.Actor, c *gin.Context) (*entity.Reference, error) {
		id, err := parseID(c, "id")
		if err != nil {
			return nil, err
		}
		return h.workflow.StartReference(c.Request.Context(), actor, id)
	})
}

// Complete принимает либо multipart с файлом document, либо JSON с document_path
// уже сохранённого файла.
func (h *ReferenceHandler) Complete(c *gin.Context) {
	h.transition(c, func(actor entity.Actor, c *gin.Context) (*entity.Reference, error) {
		id, err := parseID(c, "id")
		if err != nil {
			return nil, err
		}

		if c.ContentType() == gin.MIMEMultipartPOSTForm {
			uploads, err := formUploads(c, referenceFileField)
			if err != nil {
				return nil, err
			}
			if len(uploads) != 1 {
				return nil, apperror.FieldError(referenceFileField, "exactly one reference document is required")
			}
			return h.workflow.CompleteReferenceWithUpload(c.Request.Context(), actor, id, uploads[0])
		}

		var req dto.CompleteReferenceRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			return nil, bindError(err)
		}
		return h.workflow.CompleteReference(c.Request.Context(), actor, id, req.DocumentPath)
	})
}

func (h *ReferenceHandler) Reject(c *gin.Context) {
	h.transition(c, func(actor entity.Actor, c *gin.Context) (*entity.Reference, error) {
		id, err := parseID(c, "id")
		if err != nil {
			return nil, err
		}
		var req dto.RejectReferenceRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			return nil, bindError(err)
		}
		return h.workflow.RejectReference(c.Request.Context(), actor, id, req.Reason)
	})
}

func (h *ReferenceHandler) AttachDocuments(c *gin.Context) {
	actor, err := getActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	id, err := parseID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	uploads, err := formUploads(c, documentsField)
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.workflow.AttachReferenceDocuments(c.Request.Context(), actor, id, uploads)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.WithWarnings(c, http.StatusCreated, dto.ToDocumentResponses(result.Outcome), result.Warnings)
}

// MarkPaid - служебный колбэк платёжного сервиса.
func (h *ReferenceHandler) MarkPaid(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	ref, err := h.workflow.MarkReferencePaid(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToReferenceResponse(ref))
}

func (h *ReferenceHandler) transition(c *gin.Context, fn func(entity.Actor, *gin.Context) (*entity.Reference, error)) {
	actor, err := getActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	ref, err := fn(actor, c)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToReferenceResponse(ref))
}
