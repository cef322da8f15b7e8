package router_test

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/ignatzorin/tertab-backend/internal/config"
	"github.com/ignatzorin/tertab-backend/internal/domain/entity"
	"github.com/ignatzorin/tertab-backend/internal/domain/valueobject"
	"github.com/ignatzorin/tertab-backend/internal/http/middleware"
	"github.com/ignatzorin/tertab-backend/internal/http/router"
	"github.com/ignatzorin/tertab-backend/internal/interface/http/handler"
	"github.com/ignatzorin/tertab-backend/internal/service"
	"github.com/ignatzorin/tertab-backend/internal/testutil/memstore"
	"github.com/ignatzorin/tertab-backend/internal/usecase/attachment"
	"github.com/ignatzorin/tertab-backend/internal/usecase/attendance"
	"github.com/ignatzorin/tertab-backend/internal/usecase/dispute"
	"github.com/ignatzorin/tertab-backend/internal/usecase/reference"
	"github.com/ignatzorin/tertab-backend/internal/usecase/verification"
	"github.com/ignatzorin/tertab-backend/internal/usecase/workflow"
)

const internalKey = "internal-test-key"

type envelope struct {
	Success  bool             `json:"success"`
	Data     json.RawMessage  `json:"data"`
	Warnings []entity.Warning `json:"warnings"`
	Error    *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields"`
	} `json:"error"`
}

type api struct {
	t      *testing.T
	engine *gin.Engine
	store  *memstore.Store
	mailer *memstore.Mailer
	tokens *service.TokenManager
}

func newAPI(t *testing.T) *api {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memstore.New()
	files := memstore.NewStorage()
	mailer := &memstore.Mailer{}
	settings := memstore.Settings{Store: store}
	attacher := attachment.NewAttacher(files, store.Documents(), time.Second, 2)
	codes := verification.NewTokenService(store.Attendances(), time.Hour, verification.WithHashCost(bcrypt.MinCost))

	orchestrator := workflow.NewOrchestrator(
		attendance.NewManager(store.Attendances(), store.Documents(), files, mailer, settings, attacher, codes,
			attendance.Config{VerifyBaseURL: "http://localhost:8080"}),
		reference.NewManager(store.References(), store.Documents(), files, settings, attacher,
			reference.NewLecturerEligibility(store.Attendances())),
		dispute.NewManager(store.Disputes()),
	)

	rateStore, err := middleware.NewRateLimitStore(nil)
	require.NoError(t, err)

	tokens := service.NewTokenManager("router-test-secret-0123456789abcdef", time.Hour)
	cfg := &config.Config{
		Env:             "test",
		InternalAPIKey:  internalKey,
		AllowedOrigins:  []string{"http://localhost:3000"},
		RateLimitLimit:  1000,
		RateLimitPeriod: time.Minute,
	}
	engine := router.SetupRouter(cfg, router.Handlers{
		Institutions: handler.NewInstitutionHandler(orchestrator),
		References:   handler.NewReferenceHandler(orchestrator),
		Disputes:     handler.NewDisputeHandler(orchestrator),
		Health:       handler.NewHealthHandler(nil),
	}, tokens, rateStore)

	return &api{t: t, engine: engine, store: store, mailer: mailer, tokens: tokens}
}

func (a *api) bearer(id uuid.UUID, role valueobject.Role) string {
	token, err := a.tokens.GenerateAccess(id, role)
	require.NoError(a.t, err)
	return token
}

func (a *api) do(method, path, token string, body io.Reader, contentType string) (int, envelope) {
	a.t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w.Code, env
}

func (a *api) json(method, path, token string, payload any) (int, envelope) {
	a.t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(a.t, err)
		body = bytes.NewReader(raw)
	}
	return a.do(method, path, token, body, "application/json")
}

func (a *api) multipart(path, token string, fields map[string]string, fileField string, files map[string][]byte) (int, envelope) {
	a.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(a.t, mw.WriteField(k, v))
	}
	for name, content := range files {
		fw, err := mw.CreateFormFile(fileField, name)
		require.NoError(a.t, err)
		_, err = fw.Write(content)
		require.NoError(a.t, err)
	}
	require.NoError(a.t, mw.Close())
	return a.do(http.MethodPost, path, token, &buf, mw.FormDataContentType())
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

type idStatus struct {
	ID     uuid.UUID `json:"id"`
	Status string    `json:"status"`
}

func TestReferenceLifecycleOverHTTP(t *testing.T) {
	a := newAPI(t)
	lecturerID, studentID, adminID := uuid.New(), uuid.New(), uuid.New()
	lecturer := a.bearer(lecturerID, valueobject.RoleLecturer)
	student := a.bearer(studentID, valueobject.RoleStudent)
	admin := a.bearer(adminID, valueobject.RoleAdmin)
	institutionID := uuid.New()

	standard, err := valueobject.ParseMoney("1500", valueobject.DefaultCurrency)
	require.NoError(t, err)
	express, err := valueobject.ParseMoney("3000", valueobject.DefaultCurrency)
	require.NoError(t, err)
	a.store.SetPrices(standard, express)

	// Преподаватель заявляет место работы и подтверждает почту по ссылке.
	code, env := a.multipart("/api/institutions", lecturer, map[string]string{
		"institution_id": institutionID.String(),
		"state_id":       uuid.NewString(),
		"type":           "lecturer",
		"school_email":   "lecturer@unilag.edu.ng",
		"position":       "Senior Lecturer",
	}, "documents", map[string][]byte{"appointment.pdf": []byte("%PDF-1.4")})
	require.Equal(t, http.StatusCreated, code, env.Error)
	record := decode[idStatus](t, env)
	assert.Equal(t, "pending", record.Status)
	assert.NotContains(t, string(env.Data), "token")

	msg, ok := a.mailer.Last()
	require.True(t, ok)
	verifyPath := strings.TrimPrefix(msg.Data["verify_url"], "http://localhost:8080")

	code, env = a.do(http.MethodGet, verifyPath, "", nil, "")
	require.Equal(t, http.StatusOK, code, env.Error)
	assert.Equal(t, "verified", decode[idStatus](t, env).Status)

	code, env = a.do(http.MethodGet, verifyPath, "", nil, "")
	assert.Equal(t, http.StatusGone, code)
	assert.Equal(t, "INVALID_TOKEN", env.Error.Code)

	code, env = a.json(http.MethodGet, "/api/institutions", lecturer, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"amount":"1500.00"`)

	// Студент запрашивает платную рекомендацию.
	code, env = a.json(http.MethodPost, "/api/references", student, map[string]any{
		"lecturer_id":    lecturerID,
		"institution_id": institutionID,
		"reference_type": "academic",
		"request_type":   "standard",
	})
	require.Equal(t, http.StatusCreated, code, env.Error)
	ref := decode[idStatus](t, env)
	assert.Equal(t, "requested", ref.Status)
	refPath := "/api/references/" + ref.ID.String()

	code, _ = a.json(http.MethodPost, refPath+"/start", student, nil)
	assert.Equal(t, http.StatusForbidden, code)
	code, env = a.json(http.MethodPost, refPath+"/start", lecturer, nil)
	require.Equal(t, http.StatusOK, code, env.Error)
	assert.Equal(t, "in_progress", decode[idStatus](t, env).Status)

	code, env = a.multipart(refPath+"/complete", lecturer, nil, "document", map[string][]byte{"reference.pdf": []byte("%PDF-1.4")})
	assert.Equal(t, http.StatusPaymentRequired, code)
	assert.Equal(t, "PAYMENT_REQUIRED", env.Error.Code)

	code, _ = a.do(http.MethodPost, "/internal/references/"+ref.ID.String()+"/paid", "", nil, "")
	assert.Equal(t, http.StatusUnauthorized, code)

	req := httptest.NewRequest(http.MethodPost, "/internal/references/"+ref.ID.String()+"/paid", nil)
	req.Header.Set("X-Internal-Key", internalKey)
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	code, env = a.multipart(refPath+"/complete", lecturer, nil, "document", map[string][]byte{"reference.pdf": []byte("%PDF-1.4")})
	require.Equal(t, http.StatusOK, code, env.Error)
	assert.Equal(t, "completed", decode[idStatus](t, env).Status)

	// Спор по завершённой рекомендации.
	code, env = a.json(http.MethodPost, refPath+"/disputes", student, map[string]string{"reason": "The reference misstates my grades"})
	require.Equal(t, http.StatusCreated, code, env.Error)
	d := decode[idStatus](t, env)
	disputePath := "/api/disputes/" + d.ID.String()

	code, _ = a.json(http.MethodPost, refPath+"/disputes", lecturer, map[string]string{"reason": "second"})
	assert.Equal(t, http.StatusConflict, code)

	code, _ = a.json(http.MethodPost, disputePath+"/messages", lecturer, map[string]string{"message": "I will review it"})
	assert.Equal(t, http.StatusCreated, code)

	code, _ = a.json(http.MethodPost, disputePath+"/resolve", student, map[string]string{"resolution": "mine"})
	assert.Equal(t, http.StatusForbidden, code)
	code, env = a.json(http.MethodPost, disputePath+"/resolve", admin, map[string]string{"resolution": "Reference amended"})
	require.Equal(t, http.StatusOK, code, env.Error)
	assert.Equal(t, "resolved", decode[idStatus](t, env).Status)

	code, env = a.json(http.MethodPost, disputePath+"/close", admin, nil)
	require.Equal(t, http.StatusOK, code, env.Error)
	assert.Equal(t, "closed", decode[idStatus](t, env).Status)

	code, env = a.json(http.MethodGet, disputePath, student, nil)
	require.Equal(t, http.StatusOK, code)
	var thread struct {
		Messages []struct {
			Message string `json:"message"`
		} `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &thread))
	assert.Len(t, thread.Messages, 2)
}

func TestAccessControlOverHTTP(t *testing.T) {
	a := newAPI(t)
	stranger := a.bearer(uuid.New(), valueobject.RoleStudent)

	code, env := a.json(http.MethodGet, "/api/references", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.False(t, env.Success)

	code, _ = a.json(http.MethodGet, "/api/references/not-a-uuid", stranger, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = a.json(http.MethodGet, "/api/references/"+uuid.NewString(), stranger, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = a.json(http.MethodDelete, "/api/institutions/"+uuid.NewString(), stranger, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, env = a.do(http.MethodGet, "/api/institutions/"+uuid.NewString()+"/verify", "", nil, "")
	assert.Equal(t, http.StatusBadRequest, code, "token is required")
	assert.Contains(t, env.Error.Fields, "token")

	code, env = a.do(http.MethodGet, "/api/institutions/"+uuid.NewString()+"/verify?token=abc", "", nil, "")
	assert.Equal(t, http.StatusGone, code)
	assert.Equal(t, "INVALID_TOKEN", env.Error.Code)
}

func TestValidationErrorsOverHTTP(t *testing.T) {
	a := newAPI(t)
	student := a.bearer(uuid.New(), valueobject.RoleStudent)

	code, env := a.multipart("/api/institutions", student, map[string]string{
		"institution_id": uuid.NewString(),
		"state_id":       uuid.NewString(),
		"type":           "lecturer",
		"school_email":   "lecturer@gmail.com",
	}, "documents", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	assert.Contains(t, env.Error.Fields, "school_email")

	code, env = a.json(http.MethodPost, "/api/references", student, map[string]any{
		"lecturer_id":    uuid.New(),
		"reference_type": "academic",
		"request_type":   "standard",
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, env.Error.Fields, "lecturer_id")

	code, _ = a.do(http.MethodPost, "/api/references", student, strings.NewReader("{"), "application/json")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestSubmitInstitutionWithoutDocuments(t *testing.T) {
	a := newAPI(t)
	student := a.bearer(uuid.New(), valueobject.RoleStudent)

	form := url.Values{
		"institution_id": {uuid.NewString()},
		"state_id":       {uuid.NewString()},
		"type":           {"student"},
		"field_of_study": {"Computer Science"},
	}
	code, env := a.do(http.MethodPost, "/api/institutions", student,
		strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
	require.Equal(t, http.StatusCreated, code, env.Error)
	assert.Equal(t, "verified", decode[idStatus](t, env).Status)
	assert.Empty(t, env.Warnings)
}

func TestHealthAndMetrics(t *testing.T) {
	a := newAPI(t)

	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)

	w = httptest.NewRecorder()
	a.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
