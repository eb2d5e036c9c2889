package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/barber-academy-api/internal/models"
	appErrors "github.com/noah-isme/barber-academy-api/pkg/errors"
	"github.com/noah-isme/barber-academy-api/pkg/response"
)

type lookupLister interface {
	ListPrograms(ctx context.Context) ([]models.Program, error)
	ListCampuses(ctx context.Context) ([]models.Campus, error)
}

// LookupHandler serves program and campus reference data.
type LookupHandler struct {
	lookups lookupLister
}

// NewLookupHandler constructs LookupHandler.
func NewLookupHandler(lookups lookupLister) *LookupHandler {
	return &LookupHandler{lookups: lookups}
}

// Programs godoc
// @Summary List programs with required clock hours
// @Tags Lookups
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /programs [get]
func (h *LookupHandler) Programs(c *gin.Context) {
	programs, err := h.lookups.ListPrograms(c.Request.Context())
	if err != nil {
		response.Error(c, appErrors.Internal(err, "failed to list programs"))
		return
	}
	response.JSON(c, http.StatusOK, programs, nil)
}

// Campuses godoc
// @Summary List campuses
// @Tags Lookups
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /campuses [get]
func (h *LookupHandler) Campuses(c *gin.Context) {
	campuses, err := h.lookups.ListCampuses(c.Request.Context())
	if err != nil {
		response.Error(c, appErrors.Internal(err, "failed to list campuses"))
		return
	}
	response.JSON(c, http.StatusOK, campuses, nil)
}
