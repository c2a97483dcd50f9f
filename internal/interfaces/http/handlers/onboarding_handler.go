package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"memberhub.backend/internal/domain/entities"
	domainerrors "memberhub.backend/internal/domain/errors"
	"memberhub.backend/internal/interfaces/http/middleware"
	"memberhub.backend/internal/interfaces/http/response"
)

// OnboardingService drives the onboarding stages for a session.
type OnboardingService interface {
	GetState(ctx context.Context, session *entities.Session) (*entities.OnboardingState, error)
	UploadDocument(ctx context.Context, session *entities.Session, kind entities.DocumentKind, data []byte) (*entities.DocumentUpload, error)
	SubmitDocuments(ctx context.Context, session *entities.Session) (*entities.OnboardingState, error)
	StartPayment(ctx context.Context, session *entities.Session, input *entities.StartPaymentInput) (*entities.StartPaymentResult, error)
	PaymentStatus(ctx context.Context, session *entities.Session) (*entities.PaymentStatusResult, error)
	CancelPayment(ctx context.Context, session *entities.Session) (*entities.PaymentAttempt, error)
	SubmitSignature(ctx context.Context, session *entities.Session, input *entities.SubmitSignatureInput) (*entities.OnboardingState, error)
}

// OnboardingHandler handles onboarding endpoints
type OnboardingHandler struct {
	onboarding OnboardingService
	maxUpload  int64
}

// NewOnboardingHandler creates a new onboarding handler. maxUpload bounds the
// bytes read from a multipart file; the document stage enforces the real cap.
func NewOnboardingHandler(onboarding OnboardingService, maxUpload int64) *OnboardingHandler {
	return &OnboardingHandler{onboarding: onboarding, maxUpload: maxUpload}
}

func (h *OnboardingHandler) session(c *gin.Context) (*entities.Session, bool) {
	session, ok := middleware.GetSession(c)
	if !ok {
		response.Error(c, domainerrors.Unauthorized("Session required"))
	}
	return session, ok
}

// GetState returns the derived stage
// GET /api/v1/onboarding
func (h *OnboardingHandler) GetState(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	state, err := h.onboarding.GetState(c.Request.Context(), session)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, state)
}

// UploadDocument stores one document slot from the multipart "file" field
// POST /api/v1/onboarding/documents/:kind
func (h *OnboardingHandler) UploadDocument(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	kind := entities.DocumentKind(c.Param("kind"))
	if !kind.Valid() {
		response.Error(c, domainerrors.Invalid("kind", "must be id or address"))
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, domainerrors.Invalid(string(kind), "multipart field \"file\" is required"))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, domainerrors.Invalid(string(kind), "file could not be read"))
		return
	}
	defer file.Close()

	// one byte over the limit is enough for the stage to reject the file
	data, err := io.ReadAll(io.LimitReader(file, h.maxUpload+1))
	if err != nil {
		response.Error(c, domainerrors.Invalid(string(kind), "file could not be read"))
		return
	}

	upload, err := h.onboarding.UploadDocument(c.Request.Context(), session, kind, data)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, upload)
}

// SubmitDocuments closes the document stage
// POST /api/v1/onboarding/documents/submit
func (h *OnboardingHandler) SubmitDocuments(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	state, err := h.onboarding.SubmitDocuments(c.Request.Context(), session)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, state)
}

// StartPayment charges the membership fee
// POST /api/v1/onboarding/payment
func (h *OnboardingHandler) StartPayment(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	var input entities.StartPaymentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}
	input.CustomerIP = c.ClientIP()

	result, err := h.onboarding.StartPayment(c.Request.Context(), session, &input)
	if err != nil {
		response.Error(c, err)
		return
	}
	status := http.StatusAccepted
	if result.Stage != entities.StagePayment {
		status = http.StatusCreated
	}
	response.Success(c, status, result)
}

// PaymentStatus reports the latest attempt
// GET /api/v1/onboarding/payment
func (h *OnboardingHandler) PaymentStatus(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	result, err := h.onboarding.PaymentStatus(c.Request.Context(), session)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

// CancelPayment stops polling the processing attempt
// DELETE /api/v1/onboarding/payment
func (h *OnboardingHandler) CancelPayment(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	attempt, err := h.onboarding.CancelPayment(c.Request.Context(), session)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"attempt": attempt})
}

// SubmitSignature signs the application and activates the membership
// POST /api/v1/onboarding/signature
func (h *OnboardingHandler) SubmitSignature(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	var input entities.SubmitSignatureInput
	if err := c.ShouldBindJSON(&input); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			response.Error(c, domainerrors.Invalid("signature", "image is too large"))
			return
		}
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	state, err := h.onboarding.SubmitSignature(c.Request.Context(), session, &input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, state)
}
