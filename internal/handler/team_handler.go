package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-api/internal/dto"
	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/internal/service"
	"github.com/noah-isme/lms-api/pkg/response"
)

type teamService interface {
	UpdateStudentProgress(ctx context.Context, callerID string, req dto.UpdateProgressRequest, meta service.RequestMeta) (*dto.UpdateProgressResponse, error)
	Create(ctx context.Context, callerID string, req dto.CreateTeamRequest, meta service.RequestMeta) (*models.Team, error)
	List(ctx context.Context, callerID string) ([]dto.TeamView, error)
	Get(ctx context.Context, callerID, teamID string) (*dto.TeamView, error)
	RequestJoin(ctx context.Context, callerID, teamID string) error
	ListRequests(ctx context.Context, callerID, teamID string) ([]dto.JoinRequestItem, error)
	AcceptRequest(ctx context.Context, callerID, teamID, userID string, meta service.RequestMeta) error
	RejectRequest(ctx context.Context, callerID, teamID, userID string) error
	UpdateMemberRole(ctx context.Context, callerID, teamID, userID string, req dto.UpdateMemberRoleRequest, meta service.RequestMeta) error
	RemoveMember(ctx context.Context, callerID, teamID, userID string, meta service.RequestMeta) error
}

// TeamHandler exposes team management and progress endpoints.
type TeamHandler struct {
	service teamService
}

// NewTeamHandler constructs the handler.
func NewTeamHandler(svc teamService) *TeamHandler {
	return &TeamHandler{service: svc}
}

// UpdateProgress godoc
// @Summary Update student progress
// @Description Updates progress, project name and LOR flag of a student in the caller's teams
// @Tags Teams
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.UpdateProgressRequest true "Progress update"
// @Success 200 {object} dto.UpdateProgressResponse
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /teams/update-progress [put]
func (h *TeamHandler) UpdateProgress(c *gin.Context) {
	caller, ok := callerID(c)
	if !ok {
		return
	}
	var req dto.UpdateProgressRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.service.UpdateStudentProgress(c.Request.Context(), caller, req, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Raw(c, http.StatusOK, result)
}

// Create godoc
// @Summary Create team
// @Tags Teams
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.CreateTeamRequest true "Team"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /teams [post]
func (h *TeamHandler) Create(c *gin.Context) {
	caller, ok := callerID(c)
	if !ok {
		return
	}
	var req dto.CreateTeamRequest
	if !bindJSON(c, &req) {
		return
	}
	team, err := h.service.Create(c.Request.Context(), caller, req, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, team)
}

// List godoc
// @Summary List my teams
// @Tags Teams
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /teams [get]
func (h *TeamHandler) List(c *gin.Context) {
	caller, ok := callerID(c)
	if !ok {
		return
	}
	teams, err := h.service.List(c.Request.Context(), caller)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, teams)
}

// Get godoc
// @Summary Get team
// @Tags Teams
// @Produce json
// @Security BearerAuth
// @Param id path string true "Team ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /teams/{id} [get]
func (h *TeamHandler) Get(c *gin.Context) {
	caller, ok := callerID(c)
	if !ok {
		return
	}
	team, err := h.service.Get(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, team)
}

// RequestJoin godoc
// @Summary Ask to join a team
// @Tags Teams
// @Produce json
// @Security BearerAuth
// @Param id path string true "Team ID"
// @Success 202 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /teams/{id}/join [post]
func (h *TeamHandler) RequestJoin(c *gin.Context) {
	caller, ok := callerID(c)
	if !ok {
		return
	}
	if err := h.service.RequestJoin(c.Request.Context(), caller, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusAccepted, "join request sent")
}

// ListRequests godoc
// @Summary Pending join requests
// @Tags Teams
// @Produce json
// @Security BearerAuth
// @Param id path string true "Team ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /teams/{id}/requests [get]
func (h *TeamHandler) ListRequests(c *gin.Context) {
	caller, ok := callerID(c)
	if !ok {
		return
	}
	requests, err := h.service.ListRequests(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests)
}

// AcceptRequest godoc
// @Summary Accept a join request
// @Tags Teams
// @Produce json
// @Security BearerAuth
// @Param id path string true "Team ID"
// @Param userId path string true "Requesting user"
// @Success 200 {object} response.Envelope
// @Router /teams/{id}/requests/{userId}/accept [post]
func (h *TeamHandler) AcceptRequest(c *gin.Context) {
	caller, ok := callerID(c)
	if !ok {
		return
	}
	if err := h.service.AcceptRequest(c.Request.Context(), caller, c.Param("id"), c.Param("userId"), requestMeta(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "request accepted")
}

// RejectRequest godoc
// @Summary Reject a join request
// @Tags Teams
// @Produce json
// @Security BearerAuth
// @Param id path string true "Team ID"
// @Param userId path string true "Requesting user"
// @Success 200 {object} response.Envelope
// @Router /teams/{id}/requests/{userId}/reject [post]
func (h *TeamHandler) RejectRequest(c *gin.Context) {
	caller, ok := callerID(c)
	if !ok {
		return
	}
	if err := h.service.RejectRequest(c.Request.Context(), caller, c.Param("id"), c.Param("userId")); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "request rejected")
}

// UpdateMemberRole godoc
// @Summary Change a member's role
// @Tags Teams
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Team ID"
// @Param userId path string true "Member"
// @Param payload body dto.UpdateMemberRoleRequest true "Role"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /teams/{id}/members/{userId}/role [put]
func (h *TeamHandler) UpdateMemberRole(c *gin.Context) {
	caller, ok := callerID(c)
	if !ok {
		return
	}
	var req dto.UpdateMemberRoleRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.service.UpdateMemberRole(c.Request.Context(), caller, c.Param("id"), c.Param("userId"), req, requestMeta(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "role updated")
}

// RemoveMember godoc
// @Summary Remove a member
// @Tags Teams
// @Security BearerAuth
// @Param id path string true "Team ID"
// @Param userId path string true "Member"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Router /teams/{id}/members/{userId} [delete]
func (h *TeamHandler) RemoveMember(c *gin.Context) {
	caller, ok := callerID(c)
	if !ok {
		return
	}
	if err := h.service.RemoveMember(c.Request.Context(), caller, c.Param("id"), c.Param("userId"), requestMeta(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
