package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-portal-api/internal/models"
	"github.com/noah-isme/school-portal-api/internal/service"
	appErrors "github.com/noah-isme/school-portal-api/pkg/errors"
	"github.com/noah-isme/school-portal-api/pkg/response"
)

// AssignmentHandler exposes assignment and submission endpoints.
type AssignmentHandler struct {
	assignments *service.AssignmentService
	maxFileSize int64
}

// NewAssignmentHandler constructs handler.
func NewAssignmentHandler(assignments *service.AssignmentService, maxFileSize int64) *AssignmentHandler {
	if maxFileSize <= 0 {
		maxFileSize = 10 << 20
	}
	return &AssignmentHandler{assignments: assignments, maxFileSize: maxFileSize}
}

// List godoc
// @Summary List assignments
// @Tags Assignments
// @Produce json
// @Param class_id query string false "Filter by class"
// @Param subject_id query string false "Filter by subject"
// @Success 200 {object} response.Envelope
// @Router /assignments [get]
func (h *AssignmentHandler) List(c *gin.Context) {
	page, pageSize := paginationFromQuery(c)
	filter := models.AssignmentFilter{
		ClassID:   c.Query("class_id"),
		SubjectID: c.Query("subject_id"),
		TeacherID: c.Query("teacher_id"),
		Page:      page,
		PageSize:  pageSize,
	}
	assignments, total, err := h.assignments.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignments, paging(page, pageSize, total))
}

// Get godoc
// @Summary Get one assignment
// @Tags Assignments
// @Produce json
// @Param id path string true "Assignment ID"
// @Success 200 {object} response.Envelope
// @Router /assignments/{id} [get]
func (h *AssignmentHandler) Get(c *gin.Context) {
	assignment, err := h.assignments.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignment, nil)
}

// Create godoc
// @Summary Publish an assignment with optional attachment
// @Tags Assignments
// @Accept multipart/form-data
// @Produce json
// @Param class_id formData string true "Class ID"
// @Param subject_id formData string true "Subject ID"
// @Param title formData string true "Title"
// @Param description formData string false "Description"
// @Param deadline formData string true "Deadline (RFC3339)"
// @Param attachment formData file false "Attachment"
// @Success 201 {object} response.Envelope
// @Router /assignments [post]
func (h *AssignmentHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	deadline, err := time.Parse(time.RFC3339, c.PostForm("deadline"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "deadline must be RFC3339"))
		return
	}
	req := service.CreateAssignmentRequest{
		ClassID:     c.PostForm("class_id"),
		SubjectID:   c.PostForm("subject_id"),
		Title:       c.PostForm("title"),
		Description: c.PostForm("description"),
		Deadline:    deadline,
	}

	var attachmentName string
	var attachment []byte
	if fileHeader, err := c.FormFile("attachment"); err == nil {
		attachmentName = fileHeader.Filename
		attachment, err = h.readUpload(fileHeader.Size, func() (io.ReadCloser, error) { return fileHeader.Open() })
		if err != nil {
			response.Error(c, err)
			return
		}
	}

	assignment, err := h.assignments.Create(c.Request.Context(), claims.UserID, req, attachmentName, attachment)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, assignment)
}

// Update godoc
// @Summary Edit an assignment
// @Tags Assignments
// @Accept json
// @Produce json
// @Param id path string true "Assignment ID"
// @Param payload body service.UpdateAssignmentRequest true "Assignment payload"
// @Success 200 {object} response.Envelope
// @Router /assignments/{id} [put]
func (h *AssignmentHandler) Update(c *gin.Context) {
	var req service.UpdateAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	assignment, err := h.assignments.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignment, nil)
}

// Delete godoc
// @Summary Delete an assignment
// @Tags Assignments
// @Produce json
// @Param id path string true "Assignment ID"
// @Success 204
// @Router /assignments/{id} [delete]
func (h *AssignmentHandler) Delete(c *gin.Context) {
	if err := h.assignments.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Submit godoc
// @Summary Submit work for an assignment
// @Tags Assignments
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Assignment ID"
// @Param student_id formData string true "Student ID"
// @Param file formData file true "Submission file"
// @Success 200 {object} response.Envelope
// @Router /assignments/{id}/submissions [post]
func (h *AssignmentHandler) Submit(c *gin.Context) {
	studentID := c.PostForm("student_id")
	if studentID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "student_id required"))
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "submission file required"))
		return
	}
	data, err := h.readUpload(fileHeader.Size, func() (io.ReadCloser, error) { return fileHeader.Open() })
	if err != nil {
		response.Error(c, err)
		return
	}
	submission, err := h.assignments.Submit(c.Request.Context(), c.Param("id"), studentID, fileHeader.Filename, data)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submission, nil)
}

// Submissions godoc
// @Summary List submissions for an assignment
// @Tags Assignments
// @Produce json
// @Param id path string true "Assignment ID"
// @Success 200 {object} response.Envelope
// @Router /assignments/{id}/submissions [get]
func (h *AssignmentHandler) Submissions(c *gin.Context) {
	submissions, err := h.assignments.Submissions(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submissions, nil)
}

// GradeSubmission godoc
// @Summary Grade a student's submission
// @Tags Assignments
// @Accept json
// @Produce json
// @Param id path string true "Assignment ID"
// @Param studentId path string true "Student ID"
// @Param payload body service.GradeSubmissionRequest true "Grade payload"
// @Success 200 {object} response.Envelope
// @Router /assignments/{id}/submissions/{studentId} [put]
func (h *AssignmentHandler) GradeSubmission(c *gin.Context) {
	var req service.GradeSubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	submission, err := h.assignments.GradeSubmission(c.Request.Context(), c.Param("id"), c.Param("studentId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submission, nil)
}

func (h *AssignmentHandler) readUpload(size int64, open func() (io.ReadCloser, error)) ([]byte, error) {
	if size > h.maxFileSize {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file exceeds maximum allowed size")
	}
	file, err := open()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload")
	}
	defer file.Close() //nolint:errcheck
	data, err := io.ReadAll(io.LimitReader(file, h.maxFileSize+1))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload")
	}
	if int64(len(data)) > h.maxFileSize {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file exceeds maximum allowed size")
	}
	return data, nil
}
