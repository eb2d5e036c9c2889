package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/barber-academy-api/internal/dto"
	"github.com/noah-isme/barber-academy-api/internal/models"
	"github.com/noah-isme/barber-academy-api/pkg/response"
)

type sequenceService interface {
	Enroll(ctx context.Context, actor models.Actor, req dto.EnrollSequenceRequest) (*models.EmailSequenceEnrollment, error)
	ProcessSequenceEmail(ctx context.Context, enrollmentID string) (*models.StepOutcome, error)
	ProcessDue(ctx context.Context, now time.Time, limit int) (*models.ProcessDueSummary, error)
	Pause(ctx context.Context, actor models.Actor, id string) (*models.EmailSequenceEnrollment, error)
	Resume(ctx context.Context, actor models.Actor, id string) (*models.EmailSequenceEnrollment, error)
	Unsubscribe(ctx context.Context, actor models.Actor, req dto.UnsubscribeRequest) (int64, error)
}

// SequenceHandler exposes drip email enrollment endpoints.
type SequenceHandler struct {
	service sequenceService
	now     func() time.Time
}

// NewSequenceHandler constructs SequenceHandler.
func NewSequenceHandler(service sequenceService) *SequenceHandler {
	return &SequenceHandler{service: service, now: time.Now}
}

// Enroll godoc
// @Summary Enroll a contact in an email sequence
// @Tags Sequences
// @Accept json
// @Produce json
// @Param payload body dto.EnrollSequenceRequest true "Enrollment payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /sequences/enrollments [post]
func (h *SequenceHandler) Enroll(c *gin.Context) {
	var req dto.EnrollSequenceRequest
	if !bindJSON(c, &req) {
		return
	}
	enrollment, err := h.service.Enroll(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, enrollment)
}

// Process godoc
// @Summary Send the next step of an active enrollment now
// @Tags Sequences
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /sequences/enrollments/{id}/process [post]
func (h *SequenceHandler) Process(c *gin.Context) {
	outcome, err := h.service.ProcessSequenceEmail(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, outcome, nil)
}

// Pause godoc
// @Summary Pause an enrollment
// @Tags Sequences
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /sequences/enrollments/{id}/pause [post]
func (h *SequenceHandler) Pause(c *gin.Context) {
	enrollment, err := h.service.Pause(c.Request.Context(), actorFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// Resume godoc
// @Summary Resume a paused enrollment
// @Tags Sequences
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /sequences/enrollments/{id}/resume [post]
func (h *SequenceHandler) Resume(c *gin.Context) {
	enrollment, err := h.service.Resume(c.Request.Context(), actorFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// Unsubscribe godoc
// @Summary Stop every sequence for an email address
// @Tags Sequences
// @Accept json
// @Produce json
// @Param payload body dto.UnsubscribeRequest true "Email"
// @Success 200 {object} response.Envelope
// @Router /sequences/unsubscribe [post]
func (h *SequenceHandler) Unsubscribe(c *gin.Context) {
	var req dto.UnsubscribeRequest
	if !bindJSON(c, &req) {
		return
	}
	affected, err := h.service.Unsubscribe(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"unsubscribed": affected}, nil)
}

// ProcessDue godoc
// @Summary Send every sequence email that is due
// @Tags Sequences
// @Accept json
// @Produce json
// @Param payload body dto.ProcessDueRequest false "Batch limit"
// @Success 200 {object} response.Envelope
// @Router /sequences/process-due [post]
func (h *SequenceHandler) ProcessDue(c *gin.Context) {
	var req dto.ProcessDueRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	summary, err := h.service.ProcessDue(c.Request.Context(), h.now(), req.Limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}
