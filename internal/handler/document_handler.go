package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/barber-academy-api/internal/dto"
	"github.com/noah-isme/barber-academy-api/internal/models"
	appErrors "github.com/noah-isme/barber-academy-api/pkg/errors"
	"github.com/noah-isme/barber-academy-api/pkg/response"
)

type documentService interface {
	Generate(ctx context.Context, actor models.Actor, kind models.DocumentKind, req dto.DocumentRequest) (*models.GeneratedDocument, error)
	Download(ctx context.Context, token string) ([]byte, string, error)
}

// DocumentHandler exposes transcript, certificate and statement generation.
type DocumentHandler struct {
	service documentService
}

// NewDocumentHandler constructs DocumentHandler.
func NewDocumentHandler(service documentService) *DocumentHandler {
	return &DocumentHandler{service: service}
}

// Generate godoc
// @Summary Generate a student document
// @Tags Documents
// @Accept json
// @Produce json
// @Param kind path string true "transcript, certificate or statement"
// @Param payload body dto.DocumentRequest true "Document payload"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /documents/{kind} [post]
func (h *DocumentHandler) Generate(c *gin.Context) {
	kind := models.DocumentKind(c.Param("kind"))
	if !kind.Valid() {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "unknown document kind"))
		return
	}
	var req dto.DocumentRequest
	if !bindJSON(c, &req) {
		return
	}
	if claims := claimsFromContext(c); claims != nil && claims.Role == models.RoleStudent && claims.StudentID != req.StudentID {
		response.Error(c, appErrors.ErrForbidden)
		return
	}
	doc, err := h.service.Generate(c.Request.Context(), actorFromContext(c), kind, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc, nil)
}

// Download godoc
// @Summary Download a stored document through its signed link
// @Tags Documents
// @Produce application/pdf
// @Param token path string true "Signed token"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Router /documents/download/{token} [get]
func (h *DocumentHandler) Download(c *gin.Context) {
	data, filename, err := h.service.Download(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, "application/pdf", filename, data)
}
