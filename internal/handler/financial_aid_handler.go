package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/barber-academy-api/internal/dto"
	"github.com/noah-isme/barber-academy-api/internal/models"
	"github.com/noah-isme/barber-academy-api/pkg/response"
)

type financialAidService interface {
	CreateRecord(ctx context.Context, actor models.Actor, studentID string, req dto.AidRecordRequest) (*models.FinancialAidRecord, error)
	ListForStudent(ctx context.Context, studentID string) ([]models.FinancialAidRecord, error)
	GetPackage(ctx context.Context, recordID string) (*models.FinancialAidPackage, error)
	AddAward(ctx context.Context, actor models.Actor, recordID string, req dto.AwardRequest) (*models.FinancialAidAward, error)
	PackageAward(ctx context.Context, actor models.Actor, awardID string) (*models.FinancialAidAward, error)
	AcceptAward(ctx context.Context, actor models.Actor, awardID string) (*models.FinancialAidAward, error)
	CancelAward(ctx context.Context, actor models.Actor, awardID string) (*models.FinancialAidAward, error)
	ScheduleDisbursement(ctx context.Context, actor models.Actor, awardID string, req dto.DisbursementRequest) (*models.Disbursement, error)
	ReleaseDisbursement(ctx context.Context, actor models.Actor, disbursementID string) (*dto.ReleaseResult, error)
}

// FinancialAidHandler exposes the aid record, award and disbursement pipeline.
type FinancialAidHandler struct {
	service financialAidService
}

// NewFinancialAidHandler constructs FinancialAidHandler.
func NewFinancialAidHandler(service financialAidService) *FinancialAidHandler {
	return &FinancialAidHandler{service: service}
}

// CreateRecord godoc
// @Summary Open a financial aid record for an award year
// @Tags Financial Aid
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body dto.AidRecordRequest true "Award year"
// @Success 201 {object} response.Envelope
// @Router /students/{id}/aid-records [post]
func (h *FinancialAidHandler) CreateRecord(c *gin.Context) {
	var req dto.AidRecordRequest
	if !bindJSON(c, &req) {
		return
	}
	record, err := h.service.CreateRecord(c.Request.Context(), actorFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}

// ListRecords godoc
// @Summary List aid records for a student
// @Tags Financial Aid
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/aid-records [get]
func (h *FinancialAidHandler) ListRecords(c *gin.Context) {
	records, err := h.service.ListForStudent(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}

// GetPackage godoc
// @Summary Aid record with awards and disbursements
// @Tags Financial Aid
// @Produce json
// @Param id path string true "Aid record ID"
// @Success 200 {object} response.Envelope
// @Router /aid-records/{id} [get]
func (h *FinancialAidHandler) GetPackage(c *gin.Context) {
	pkg, err := h.service.GetPackage(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, pkg, nil)
}

// AddAward godoc
// @Summary Add an award to an aid record
// @Tags Financial Aid
// @Accept json
// @Produce json
// @Param id path string true "Aid record ID"
// @Param payload body dto.AwardRequest true "Award payload"
// @Success 201 {object} response.Envelope
// @Router /aid-records/{id}/awards [post]
func (h *FinancialAidHandler) AddAward(c *gin.Context) {
	var req dto.AwardRequest
	if !bindJSON(c, &req) {
		return
	}
	award, err := h.service.AddAward(c.Request.Context(), actorFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, award)
}

// TransitionAward godoc
// @Summary Package, accept or cancel an award
// @Tags Financial Aid
// @Produce json
// @Param id path string true "Award ID"
// @Param action path string true "package, accept or cancel"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /awards/{id}/{action} [post]
func (h *FinancialAidHandler) TransitionAward(action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var (
			award *models.FinancialAidAward
			err   error
		)
		actor := actorFromContext(c)
		switch action {
		case "package":
			award, err = h.service.PackageAward(c.Request.Context(), actor, c.Param("id"))
		case "accept":
			award, err = h.service.AcceptAward(c.Request.Context(), actor, c.Param("id"))
		default:
			award, err = h.service.CancelAward(c.Request.Context(), actor, c.Param("id"))
		}
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, award, nil)
	}
}

// ScheduleDisbursement godoc
// @Summary Schedule a disbursement against an accepted award
// @Tags Financial Aid
// @Accept json
// @Produce json
// @Param id path string true "Award ID"
// @Param payload body dto.DisbursementRequest true "Disbursement payload"
// @Success 201 {object} response.Envelope
// @Router /awards/{id}/disbursements [post]
func (h *FinancialAidHandler) ScheduleDisbursement(c *gin.Context) {
	var req dto.DisbursementRequest
	if !bindJSON(c, &req) {
		return
	}
	disbursement, err := h.service.ScheduleDisbursement(c.Request.Context(), actorFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, disbursement)
}

// ReleaseDisbursement godoc
// @Summary Release a scheduled disbursement to the student ledger
// @Tags Financial Aid
// @Produce json
// @Param id path string true "Disbursement ID"
// @Success 200 {object} response.Envelope
// @Router /disbursements/{id}/release [post]
func (h *FinancialAidHandler) ReleaseDisbursement(c *gin.Context) {
	result, err := h.service.ReleaseDisbursement(c.Request.Context(), actorFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
