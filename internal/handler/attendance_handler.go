package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/barber-academy-api/internal/dto"
	"github.com/noah-isme/barber-academy-api/internal/models"
	"github.com/noah-isme/barber-academy-api/pkg/response"
)

type attendanceService interface {
	ClockIn(ctx context.Context, actor models.Actor, req dto.ClockInRequest) (*models.AttendanceRecord, error)
	ClockOut(ctx context.Context, actor models.Actor, recordID string, req dto.ClockOutRequest) (*dto.ClockOutResult, error)
	RequestCorrection(ctx context.Context, actor models.Actor, req dto.CorrectionRequest) (*models.AttendanceRecord, error)
	ApproveCorrection(ctx context.Context, actor models.Actor, id string) (*dto.ClockOutResult, error)
	RejectCorrection(ctx context.Context, actor models.Actor, id string, req dto.ReviewRequest) (*models.AttendanceRecord, error)
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.AttendanceRecord, error)
	OpenSession(ctx context.Context, studentID string) (*models.AttendanceRecord, error)
}

// AttendanceHandler exposes clock-in/out and correction endpoints.
type AttendanceHandler struct {
	service attendanceService
}

// NewAttendanceHandler constructs AttendanceHandler.
func NewAttendanceHandler(service attendanceService) *AttendanceHandler {
	return &AttendanceHandler{service: service}
}

// ClockIn godoc
// @Summary Open today's attendance session for a student
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body dto.ClockInRequest true "Clock-in payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /attendance/clock-in [post]
func (h *AttendanceHandler) ClockIn(c *gin.Context) {
	var req dto.ClockInRequest
	if !bindJSON(c, &req) {
		return
	}
	record, err := h.service.ClockIn(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}

// ClockOut godoc
// @Summary Close an attendance session and credit hours
// @Tags Attendance
// @Accept json
// @Produce json
// @Param id path string true "Attendance record ID"
// @Param payload body dto.ClockOutRequest false "Theory override"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /attendance/{id}/clock-out [post]
func (h *AttendanceHandler) ClockOut(c *gin.Context) {
	var req dto.ClockOutRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	result, err := h.service.ClockOut(c.Request.Context(), actorFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// RequestCorrection godoc
// @Summary Submit an attendance correction for approval
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body dto.CorrectionRequest true "Correction payload"
// @Success 201 {object} response.Envelope
// @Router /attendance/corrections [post]
func (h *AttendanceHandler) RequestCorrection(c *gin.Context) {
	var req dto.CorrectionRequest
	if !bindJSON(c, &req) {
		return
	}
	record, err := h.service.RequestCorrection(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}

// ApproveCorrection godoc
// @Summary Approve a pending correction
// @Tags Attendance
// @Produce json
// @Param id path string true "Correction ID"
// @Success 200 {object} response.Envelope
// @Router /attendance/corrections/{id}/approve [post]
func (h *AttendanceHandler) ApproveCorrection(c *gin.Context) {
	result, err := h.service.ApproveCorrection(c.Request.Context(), actorFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// RejectCorrection godoc
// @Summary Reject a pending correction
// @Tags Attendance
// @Accept json
// @Produce json
// @Param id path string true "Correction ID"
// @Param payload body dto.ReviewRequest false "Review note"
// @Success 200 {object} response.Envelope
// @Router /attendance/corrections/{id}/reject [post]
func (h *AttendanceHandler) RejectCorrection(c *gin.Context) {
	var req dto.ReviewRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	record, err := h.service.RejectCorrection(c.Request.Context(), actorFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// List godoc
// @Summary List attendance records
// @Tags Attendance
// @Produce json
// @Param student_id query string false "Student"
// @Param campus_id query string false "Campus"
// @Param status query string false "Status"
// @Param is_correction query bool false "Corrections only"
// @Param date_from query string false "From date (YYYY-MM-DD)"
// @Param date_to query string false "To date (YYYY-MM-DD)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /attendance [get]
func (h *AttendanceHandler) List(c *gin.Context) {
	filter, err := attendanceFilterFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	records, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, pagination)
}

// Get godoc
// @Summary Get attendance record
// @Tags Attendance
// @Produce json
// @Param id path string true "Attendance record ID"
// @Success 200 {object} response.Envelope
// @Router /attendance/{id} [get]
func (h *AttendanceHandler) Get(c *gin.Context) {
	record, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// OpenSession godoc
// @Summary Today's session for a student
// @Tags Attendance
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/attendance/today [get]
func (h *AttendanceHandler) OpenSession(c *gin.Context) {
	record, err := h.service.OpenSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}
