package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/barber-academy-api/internal/dto"
	"github.com/noah-isme/barber-academy-api/internal/models"
	"github.com/noah-isme/barber-academy-api/pkg/response"
)

type funnelService interface {
	CreateLead(ctx context.Context, actor models.Actor, req dto.LeadRequest) (*dto.LeadResult, error)
	UpdateLeadStatus(ctx context.Context, actor models.Actor, id string, req dto.LeadStatusRequest) (*models.Lead, error)
	ListLeads(ctx context.Context, filter models.LeadFilter) ([]models.Lead, *models.Pagination, error)
	GetLead(ctx context.Context, id string) (*models.Lead, error)
	CreateApplication(ctx context.Context, actor models.Actor, req dto.ApplicationRequest) (*models.Application, error)
	GetApplication(ctx context.Context, id string) (*models.Application, error)
	ListApplications(ctx context.Context, filter models.ApplicationFilter) ([]models.Application, *models.Pagination, error)
	SubmitApplication(ctx context.Context, actor models.Actor, id string) (*models.Application, error)
	DecideApplication(ctx context.Context, actor models.Actor, id string, req dto.DecisionRequest) (*models.Application, error)
	EnrollApplication(ctx context.Context, actor models.Actor, id string) (*dto.ApplicationEnrollment, error)
}

// FunnelHandler exposes lead and application endpoints.
type FunnelHandler struct {
	service funnelService
}

// NewFunnelHandler constructs FunnelHandler.
func NewFunnelHandler(service funnelService) *FunnelHandler {
	return &FunnelHandler{service: service}
}

// CreateLead godoc
// @Summary Capture a lead, reusing an existing one with the same email or phone
// @Tags Funnel
// @Accept json
// @Produce json
// @Param payload body dto.LeadRequest true "Lead payload"
// @Success 201 {object} response.Envelope
// @Success 200 {object} response.Envelope
// @Router /leads [post]
func (h *FunnelHandler) CreateLead(c *gin.Context) {
	var req dto.LeadRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.service.CreateLead(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	response.JSON(c, status, result, nil)
}

// ListLeads godoc
// @Summary List leads
// @Tags Funnel
// @Produce json
// @Param status query string false "Lead status"
// @Param source query string false "Lead source"
// @Param search query string false "Name, email or phone"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /leads [get]
func (h *FunnelHandler) ListLeads(c *gin.Context) {
	filter := models.LeadFilter{
		Source: strings.TrimSpace(c.Query("source")),
		Search: strings.TrimSpace(c.Query("search")),
	}
	if status := strings.TrimSpace(c.Query("status")); status != "" {
		s := models.LeadStatus(status)
		filter.Status = &s
	}
	filter.Page, filter.PageSize = pageParams(c)
	leads, pagination, err := h.service.ListLeads(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, leads, pagination)
}

// GetLead godoc
// @Summary Get lead
// @Tags Funnel
// @Produce json
// @Param id path string true "Lead ID"
// @Success 200 {object} response.Envelope
// @Router /leads/{id} [get]
func (h *FunnelHandler) GetLead(c *gin.Context) {
	lead, err := h.service.GetLead(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lead, nil)
}

// UpdateLeadStatus godoc
// @Summary Change lead status
// @Tags Funnel
// @Accept json
// @Produce json
// @Param id path string true "Lead ID"
// @Param payload body dto.LeadStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Router /leads/{id}/status [patch]
func (h *FunnelHandler) UpdateLeadStatus(c *gin.Context) {
	var req dto.LeadStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	lead, err := h.service.UpdateLeadStatus(c.Request.Context(), actorFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lead, nil)
}

// CreateApplication godoc
// @Summary Start an application, optionally from a lead
// @Tags Funnel
// @Accept json
// @Produce json
// @Param payload body dto.ApplicationRequest true "Application payload"
// @Success 201 {object} response.Envelope
// @Router /applications [post]
func (h *FunnelHandler) CreateApplication(c *gin.Context) {
	var req dto.ApplicationRequest
	if !bindJSON(c, &req) {
		return
	}
	app, err := h.service.CreateApplication(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, app)
}

// ListApplications godoc
// @Summary List applications
// @Tags Funnel
// @Produce json
// @Param status query string false "Application status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /applications [get]
func (h *FunnelHandler) ListApplications(c *gin.Context) {
	var filter models.ApplicationFilter
	if status := strings.TrimSpace(c.Query("status")); status != "" {
		s := models.ApplicationStatus(status)
		filter.Status = &s
	}
	filter.Page, filter.PageSize = pageParams(c)
	apps, pagination, err := h.service.ListApplications(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, apps, pagination)
}

// GetApplication godoc
// @Summary Get application
// @Tags Funnel
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Router /applications/{id} [get]
func (h *FunnelHandler) GetApplication(c *gin.Context) {
	app, err := h.service.GetApplication(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, app, nil)
}

// SubmitApplication godoc
// @Summary Submit a draft application
// @Tags Funnel
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /applications/{id}/submit [post]
func (h *FunnelHandler) SubmitApplication(c *gin.Context) {
	app, err := h.service.SubmitApplication(c.Request.Context(), actorFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, app, nil)
}

// DecideApplication godoc
// @Summary Accept or deny a submitted application
// @Tags Funnel
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Param payload body dto.DecisionRequest true "Decision payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /applications/{id}/decision [post]
func (h *FunnelHandler) DecideApplication(c *gin.Context) {
	var req dto.DecisionRequest
	if !bindJSON(c, &req) {
		return
	}
	app, err := h.service.DecideApplication(c.Request.Context(), actorFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, app, nil)
}

// EnrollApplication godoc
// @Summary Convert an accepted application into an enrolled student
// @Tags Funnel
// @Produce json
// @Param id path string true "Application ID"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /applications/{id}/enroll [post]
func (h *FunnelHandler) EnrollApplication(c *gin.Context) {
	result, err := h.service.EnrollApplication(c.Request.Context(), actorFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}
