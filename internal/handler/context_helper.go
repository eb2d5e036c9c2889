package handler

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/barber-academy-api/internal/middleware"
	"github.com/noah-isme/barber-academy-api/internal/models"
	appErrors "github.com/noah-isme/barber-academy-api/pkg/errors"
	"github.com/noah-isme/barber-academy-api/pkg/response"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	return middleware.Claims(c)
}

func actorFromContext(c *gin.Context) models.Actor {
	return middleware.ActorFrom(c)
}

// bindJSON decodes the request body, writing a validation error on failure.
func bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Validation(err, "invalid payload"))
		return false
	}
	return true
}

// bindOptionalJSON accepts an empty body and decodes anything else.
func bindOptionalJSON(c *gin.Context, dest interface{}) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	return bindJSON(c, dest)
}

func pageParams(c *gin.Context) (int, int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil {
		page = 1
	}
	size, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil {
		size = 20
	}
	return page, size
}

// queryDate parses an optional YYYY-MM-DD query parameter.
func queryDate(c *gin.Context, key string) (*time.Time, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, key+" must be formatted YYYY-MM-DD")
	}
	return &parsed, nil
}

// attendanceFilterFromQuery reads the filters shared by attendance listing and exports.
func attendanceFilterFromQuery(c *gin.Context) (models.AttendanceFilter, error) {
	filter := models.AttendanceFilter{
		StudentID: strings.TrimSpace(c.Query("student_id")),
		CampusID:  strings.TrimSpace(c.Query("campus_id")),
		SortBy:    c.Query("sort"),
		SortOrder: c.Query("order"),
	}
	filter.Page, filter.PageSize = pageParams(c)
	if status := strings.TrimSpace(c.Query("status")); status != "" {
		s := models.AttendanceStatus(status)
		filter.Status = &s
	}
	if raw := c.Query("is_correction"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, appErrors.Clone(appErrors.ErrValidation, "is_correction must be true or false")
		}
		filter.IsCorrection = &v
	}
	var err error
	if filter.DateFrom, err = queryDate(c, "date_from"); err != nil {
		return filter, err
	}
	if filter.DateTo, err = queryDate(c, "date_to"); err != nil {
		return filter, err
	}
	return filter, nil
}
