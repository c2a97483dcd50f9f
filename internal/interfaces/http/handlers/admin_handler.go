package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"memberhub.backend/internal/domain/entities"
	domainerrors "memberhub.backend/internal/domain/errors"
	"memberhub.backend/internal/interfaces/http/response"
	"memberhub.backend/pkg/utils"
)

// AdminMemberService is the admin part of the member usecase.
type AdminMemberService interface {
	ListMembers(ctx context.Context, search string, pagination utils.PaginationParams) ([]*entities.MemberProfile, utils.PaginationMeta, error)
	AdminUpdate(ctx context.Context, id uuid.UUID, input *entities.AdminUpdateMemberInput) (*entities.MemberProfile, error)
	DeleteMember(ctx context.Context, id uuid.UUID) error
	ResetOnboarding(ctx context.Context, id uuid.UUID) error
	GetCard(ctx context.Context, id uuid.UUID) (*entities.MembershipCard, error)
	UpdateCard(ctx context.Context, id uuid.UUID, input *entities.UpdateCardInput) (*entities.MembershipCard, error)
}

// RepairService bootstraps identities that have no member profile.
type RepairService interface {
	RepairAll(ctx context.Context) (*entities.RepairReport, error)
	RepairIDs(ctx context.Context, ids []uuid.UUID) (*entities.RepairReport, error)
}

// AdminHandler handles admin endpoints
type AdminHandler struct {
	members AdminMemberService
	repair  RepairService
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(members AdminMemberService, repair RepairService) *AdminHandler {
	return &AdminHandler{members: members, repair: repair}
}

// RepairRequest selects identities to repair; an empty list repairs every orphan.
type RepairRequest struct {
	IDs []string `json:"ids"`
}

func memberID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, domainerrors.BadRequest("Invalid member ID"))
		return uuid.Nil, false
	}
	return id, true
}

// ListMembers lists member profiles
// GET /api/v1/admin/members?page=&limit=&search=
func (h *AdminHandler) ListMembers(c *gin.Context) {
	var pagination utils.PaginationParams
	if err := c.ShouldBindQuery(&pagination); err != nil {
		response.Error(c, domainerrors.BadRequest("Invalid pagination parameters"))
		return
	}

	members, meta, err := h.members.ListMembers(c.Request.Context(), c.Query("search"), pagination)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, "members", members, meta)
}

// UpdateMember applies an admin patch
// PATCH /api/v1/admin/members/:id
func (h *AdminHandler) UpdateMember(c *gin.Context) {
	id, ok := memberID(c)
	if !ok {
		return
	}
	var input entities.AdminUpdateMemberInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	member, err := h.members.AdminUpdate(c.Request.Context(), id, &input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"member": member})
}

// DeleteMember removes a member and its onboarding data
// DELETE /api/v1/admin/members/:id
func (h *AdminHandler) DeleteMember(c *gin.Context) {
	id, ok := memberID(c)
	if !ok {
		return
	}
	if err := h.members.DeleteMember(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ResetOnboarding sends the member back to the document stage
// POST /api/v1/admin/members/:id/onboarding/reset
func (h *AdminHandler) ResetOnboarding(c *gin.Context) {
	id, ok := memberID(c)
	if !ok {
		return
	}
	if err := h.members.ResetOnboarding(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"stage": entities.StageDocuments})
}

// GetCard returns a member's card
// GET /api/v1/admin/members/:id/card
func (h *AdminHandler) GetCard(c *gin.Context) {
	id, ok := memberID(c)
	if !ok {
		return
	}
	card, err := h.members.GetCard(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"card": card})
}

// UpdateCard changes card status and delivery date
// PUT /api/v1/admin/members/:id/card
func (h *AdminHandler) UpdateCard(c *gin.Context) {
	id, ok := memberID(c)
	if !ok {
		return
	}
	var input entities.UpdateCardInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	card, err := h.members.UpdateCard(c.Request.Context(), id, &input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"card": card})
}

// Repair bootstraps missing member profiles
// POST /api/v1/admin/reconciliation/repair
func (h *AdminHandler) Repair(c *gin.Context) {
	var req RepairRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, domainerrors.BadRequest(err.Error()))
			return
		}
	}

	var (
		report *entities.RepairReport
		err    error
	)
	if len(req.IDs) == 0 {
		report, err = h.repair.RepairAll(c.Request.Context())
	} else {
		ids, invalid := utils.ParseUUIDs(req.IDs)
		if len(invalid) > 0 {
			response.Error(c, domainerrors.BadRequest("Invalid identity IDs: "+strings.Join(invalid, ", ")))
			return
		}
		report, err = h.repair.RepairIDs(c.Request.Context(), ids)
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, report)
}
