package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-portal-api/internal/models"
	"github.com/noah-isme/school-portal-api/internal/service"
	appErrors "github.com/noah-isme/school-portal-api/pkg/errors"
	"github.com/noah-isme/school-portal-api/pkg/response"
)

// ResourceHandler exposes learning material endpoints.
type ResourceHandler struct {
	resources   *service.ResourceService
	maxFileSize int64
}

// NewResourceHandler constructs handler.
func NewResourceHandler(resources *service.ResourceService, maxFileSize int64) *ResourceHandler {
	if maxFileSize <= 0 {
		maxFileSize = 10 << 20
	}
	return &ResourceHandler{resources: resources, maxFileSize: maxFileSize}
}

// List godoc
// @Summary List resources
// @Tags Resources
// @Produce json
// @Param class_id query string false "Filter by class"
// @Param subject_id query string false "Filter by subject"
// @Success 200 {object} response.Envelope
// @Router /resources [get]
func (h *ResourceHandler) List(c *gin.Context) {
	page, pageSize := paginationFromQuery(c)
	filter := models.ResourceFilter{
		ClassID:   c.Query("class_id"),
		SubjectID: c.Query("subject_id"),
		Page:      page,
		PageSize:  pageSize,
	}
	resources, total, err := h.resources.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resources, paging(page, pageSize, total))
}

// Upload godoc
// @Summary Upload a resource file
// @Tags Resources
// @Accept multipart/form-data
// @Produce json
// @Param title formData string true "Title"
// @Param class_id formData string false "Class ID"
// @Param subject_id formData string false "Subject ID"
// @Param file formData file true "Resource file"
// @Success 201 {object} response.Envelope
// @Router /resources [post]
func (h *ResourceHandler) Upload(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "resource file required"))
		return
	}
	if fileHeader.Size > h.maxFileSize {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file exceeds maximum allowed size"))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload"))
		return
	}
	defer file.Close() //nolint:errcheck
	data, err := io.ReadAll(io.LimitReader(file, h.maxFileSize+1))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload"))
		return
	}
	if int64(len(data)) > h.maxFileSize {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file exceeds maximum allowed size"))
		return
	}

	req := service.UploadResourceRequest{
		Title:    c.PostForm("title"),
		MimeType: fileHeader.Header.Get("Content-Type"),
	}
	if classID := c.PostForm("class_id"); classID != "" {
		req.ClassID = &classID
	}
	if subjectID := c.PostForm("subject_id"); subjectID != "" {
		req.SubjectID = &subjectID
	}
	if req.MimeType == "" {
		req.MimeType = "application/octet-stream"
	}

	resource, err := h.resources.Upload(c.Request.Context(), claims.UserID, req, fileHeader.Filename, data)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, resource)
}

// Download godoc
// @Summary Get a signed download token for a resource
// @Tags Resources
// @Produce json
// @Param id path string true "Resource ID"
// @Success 200 {object} response.Envelope
// @Router /resources/{id}/download [get]
func (h *ResourceHandler) Download(c *gin.Context) {
	download, err := h.resources.Download(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, download, nil)
}

// Delete godoc
// @Summary Delete a resource
// @Tags Resources
// @Produce json
// @Param id path string true "Resource ID"
// @Success 204
// @Router /resources/{id} [delete]
func (h *ResourceHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.resources.Delete(c.Request.Context(), c.Param("id"), claims.UserID, claims.Role); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
