package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-portal-api/internal/models"
	"github.com/noah-isme/school-portal-api/internal/service"
	appErrors "github.com/noah-isme/school-portal-api/pkg/errors"
	"github.com/noah-isme/school-portal-api/pkg/response"
)

// GradeHandler exposes grade ledger endpoints.
type GradeHandler struct {
	grades  *service.GradeService
	exports *service.ExportService
}

// NewGradeHandler constructs handler.
func NewGradeHandler(grades *service.GradeService, exports *service.ExportService) *GradeHandler {
	return &GradeHandler{grades: grades, exports: exports}
}

// List godoc
// @Summary List grade records
// @Tags Grades
// @Produce json
// @Param student_id query string false "Filter by student"
// @Param subject_id query string false "Filter by subject"
// @Param term query string false "Filter by term"
// @Param year query int false "Filter by year"
// @Success 200 {object} response.Envelope
// @Router /grades [get]
func (h *GradeHandler) List(c *gin.Context) {
	year, _ := strconv.Atoi(c.Query("year"))
	filter := models.GradeFilter{
		StudentID: c.Query("student_id"),
		SubjectID: c.Query("subject_id"),
		Term:      c.Query("term"),
		Year:      year,
	}
	grades, err := h.grades.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grades, nil)
}

// Batch godoc
// @Summary Submit a grade sheet batch
// @Tags Grades
// @Accept json
// @Produce json
// @Param payload body service.SubmitGradesRequest true "Grade batch"
// @Success 200 {object} response.Envelope
// @Router /grades/batch [post]
func (h *GradeHandler) Batch(c *gin.Context) {
	var req service.SubmitGradesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.grades.Submit(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ExportSheet godoc
// @Summary Export a subject grade sheet as CSV
// @Tags Grades
// @Produce text/csv
// @Param subject_id query string true "Subject ID"
// @Param term query string true "Term"
// @Param year query int true "Year"
// @Success 200 {file} file
// @Router /grades/export [get]
func (h *GradeHandler) ExportSheet(c *gin.Context) {
	year, _ := strconv.Atoi(c.Query("year"))
	sheet, err := h.exports.GradeSheetCSV(c.Request.Context(), c.Query("subject_id"), c.Query("term"), year)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", sheet.Filename))
	c.Data(http.StatusOK, "text/csv", sheet.Payload)
}
