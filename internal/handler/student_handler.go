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

type studentService interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.StudentDetail, error)
	Create(ctx context.Context, actor models.Actor, req dto.CreateStudentRequest) (*models.StudentDetail, error)
	Update(ctx context.Context, actor models.Actor, id string, req dto.UpdateStudentRequest) (*models.StudentDetail, error)
	UpdateStatus(ctx context.Context, actor models.Actor, id string, req dto.StudentStatusRequest) (*models.StudentDetail, error)
	Milestones(ctx context.Context, id string) ([]models.StudentMilestone, error)
}

type sapService interface {
	Evaluate(ctx context.Context, actor models.Actor, studentID string, req dto.SAPEvaluationRequest) (*models.SAPEvaluation, error)
	History(ctx context.Context, studentID string) ([]models.SAPEvaluation, error)
}

// StudentHandler exposes student endpoints.
type StudentHandler struct {
	students studentService
	sap      sapService
}

// NewStudentHandler constructs StudentHandler.
func NewStudentHandler(students studentService, sap sapService) *StudentHandler {
	return &StudentHandler{students: students, sap: sap}
}

// List godoc
// @Summary List students
// @Tags Students
// @Produce json
// @Param search query string false "Search by name, email or student number"
// @Param program_id query string false "Filter by program"
// @Param campus_id query string false "Filter by campus"
// @Param status query string false "Filter by enrollment status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /students [get]
func (h *StudentHandler) List(c *gin.Context) {
	filter := models.StudentFilter{
		Search:    strings.TrimSpace(c.Query("search")),
		ProgramID: c.Query("program_id"),
		CampusID:  c.Query("campus_id"),
		SortBy:    c.Query("sort"),
		SortOrder: c.Query("order"),
	}
	if status := strings.TrimSpace(c.Query("status")); status != "" {
		s := models.EnrollmentStatus(status)
		filter.Status = &s
	}
	filter.Page, filter.PageSize = pageParams(c)

	students, pagination, err := h.students.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, students, pagination)
}

// Get godoc
// @Summary Get student detail with program and hour totals
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id} [get]
func (h *StudentHandler) Get(c *gin.Context) {
	student, err := h.students.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// Create godoc
// @Summary Create student
// @Tags Students
// @Accept json
// @Produce json
// @Param payload body dto.CreateStudentRequest true "Student payload"
// @Success 201 {object} response.Envelope
// @Router /students [post]
func (h *StudentHandler) Create(c *gin.Context) {
	var req dto.CreateStudentRequest
	if !bindJSON(c, &req) {
		return
	}
	student, err := h.students.Create(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, student)
}

// Update godoc
// @Summary Update student profile
// @Tags Students
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body dto.UpdateStudentRequest true "Student payload"
// @Success 200 {object} response.Envelope
// @Router /students/{id} [put]
func (h *StudentHandler) Update(c *gin.Context) {
	var req dto.UpdateStudentRequest
	if !bindJSON(c, &req) {
		return
	}
	student, err := h.students.Update(c.Request.Context(), actorFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// UpdateStatus godoc
// @Summary Change enrollment status
// @Tags Students
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body dto.StudentStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /students/{id}/status [patch]
func (h *StudentHandler) UpdateStatus(c *gin.Context) {
	var req dto.StudentStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	student, err := h.students.UpdateStatus(c.Request.Context(), actorFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// Milestones godoc
// @Summary List hour milestones reached by a student
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/milestones [get]
func (h *StudentHandler) Milestones(c *gin.Context) {
	milestones, err := h.students.Milestones(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, milestones, nil)
}

// EvaluateSAP godoc
// @Summary Record a satisfactory academic progress evaluation
// @Tags Students
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body dto.SAPEvaluationRequest true "Evaluation payload"
// @Success 201 {object} response.Envelope
// @Router /students/{id}/sap-evaluations [post]
func (h *StudentHandler) EvaluateSAP(c *gin.Context) {
	var req dto.SAPEvaluationRequest
	if !bindJSON(c, &req) {
		return
	}
	evaluation, err := h.sap.Evaluate(c.Request.Context(), actorFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, evaluation)
}

// SAPHistory godoc
// @Summary List SAP evaluations for a student
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/sap-evaluations [get]
func (h *StudentHandler) SAPHistory(c *gin.Context) {
	history, err := h.sap.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, history, nil)
}
