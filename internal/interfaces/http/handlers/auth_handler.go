package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"memberhub.backend/internal/domain/entities"
	domainerrors "memberhub.backend/internal/domain/errors"
	"memberhub.backend/internal/interfaces/http/middleware"
	"memberhub.backend/internal/interfaces/http/response"
)

// SessionService opens and tears down onboarding sessions.
type SessionService interface {
	Open(ctx context.Context, identity entities.Identity) (*entities.OpenSessionResult, error)
	Close(ctx context.Context, sessionID string) error
}

// AuthHandler handles session endpoints
type AuthHandler struct {
	sessions SessionService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(sessions SessionService) *AuthHandler {
	return &AuthHandler{sessions: sessions}
}

// OpenSession bootstraps the member profile and opens a session.
// POST /api/v1/auth/session
func (h *AuthHandler) OpenSession(c *gin.Context) {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		response.Error(c, domainerrors.Unauthorized("User not authenticated"))
		return
	}

	result, err := h.sessions.Open(c.Request.Context(), identity)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header(middleware.SessionHeader, result.SessionID)
	response.Success(c, http.StatusCreated, result)
}

// CloseSession stops the session's payment polls and removes it.
// DELETE /api/v1/auth/session
func (h *AuthHandler) CloseSession(c *gin.Context) {
	sessionID := c.GetHeader(middleware.SessionHeader)
	if sessionID == "" {
		response.Error(c, domainerrors.BadRequest("X-Session-ID header is required"))
		return
	}

	if err := h.sessions.Close(c.Request.Context(), sessionID); err != nil {
		response.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
