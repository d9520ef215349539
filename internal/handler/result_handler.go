package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-portal-api/internal/service"
	"github.com/noah-isme/school-portal-api/pkg/response"
)

// ResultHandler exposes derived summary endpoints.
type ResultHandler struct {
	results *service.ResultService
}

// NewResultHandler constructs handler.
func NewResultHandler(results *service.ResultService) *ResultHandler {
	return &ResultHandler{results: results}
}

// GradeSummary godoc
// @Summary Student grade summary
// @Tags Results
// @Produce json
// @Param id path string true "Student ID"
// @Param term query string false "Filter by term"
// @Param year query int false "Filter by year"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/results/grades [get]
func (h *ResultHandler) GradeSummary(c *gin.Context) {
	year, _ := strconv.Atoi(c.Query("year"))
	summary, err := h.results.GradeSummary(c.Request.Context(), c.Param("id"), c.Query("term"), year)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// AttendanceSummary godoc
// @Summary Student attendance summary
// @Tags Results
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/results/attendance [get]
func (h *ResultHandler) AttendanceSummary(c *gin.Context) {
	summary, err := h.results.AttendanceSummary(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}
