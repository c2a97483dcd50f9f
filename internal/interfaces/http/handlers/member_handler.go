package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"memberhub.backend/internal/domain/entities"
	domainerrors "memberhub.backend/internal/domain/errors"
	"memberhub.backend/internal/interfaces/http/middleware"
	"memberhub.backend/internal/interfaces/http/response"
)

// MemberService is the self-service part of the member usecase.
type MemberService interface {
	GetMember(ctx context.Context, id uuid.UUID) (*entities.MemberProfile, error)
	Register(ctx context.Context, id uuid.UUID, input *entities.RegisterMemberInput) (*entities.MemberProfile, error)
	UpdateSelf(ctx context.Context, id uuid.UUID, input *entities.UpdateMemberInput) (*entities.MemberProfile, error)
}

// MemberHandler handles the authenticated member's own profile
type MemberHandler struct {
	members MemberService
}

// NewMemberHandler creates a new member handler
func NewMemberHandler(members MemberService) *MemberHandler {
	return &MemberHandler{members: members}
}

// GetMe returns the caller's profile
// GET /api/v1/members/me
func (h *MemberHandler) GetMe(c *gin.Context) {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		response.Error(c, domainerrors.Unauthorized("User not authenticated"))
		return
	}

	member, err := h.members.GetMember(c.Request.Context(), identity.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"member": member})
}

// Register completes the registration form
// POST /api/v1/members/me/registration
func (h *MemberHandler) Register(c *gin.Context) {
	var input entities.RegisterMemberInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		response.Error(c, domainerrors.Unauthorized("User not authenticated"))
		return
	}

	member, err := h.members.Register(c.Request.Context(), identity.ID, &input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"member": member})
}

// UpdateMe patches the caller's profile. Explicit nulls clear optional fields.
// PATCH /api/v1/members/me
func (h *MemberHandler) UpdateMe(c *gin.Context) {
	var input entities.UpdateMemberInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		response.Error(c, domainerrors.Unauthorized("User not authenticated"))
		return
	}

	member, err := h.members.UpdateSelf(c.Request.Context(), identity.ID, &input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"member": member})
}
