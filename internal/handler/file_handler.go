package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/school-portal-api/pkg/errors"
	"github.com/noah-isme/school-portal-api/pkg/response"
	"github.com/noah-isme/school-portal-api/pkg/storage"
)

// FileHandler serves stored files referenced by signed tokens. The token is
// the sole credential so these routes sit outside the JWT middleware.
type FileHandler struct {
	uploads      *storage.LocalStorage
	uploadSigner *storage.SignedURLSigner
	reports      *storage.LocalStorage
	reportSigner *storage.SignedURLSigner
}

// NewFileHandler constructs handler.
func NewFileHandler(uploads *storage.LocalStorage, uploadSigner *storage.SignedURLSigner, reports *storage.LocalStorage, reportSigner *storage.SignedURLSigner) *FileHandler {
	return &FileHandler{
		uploads:      uploads,
		uploadSigner: uploadSigner,
		reports:      reports,
		reportSigner: reportSigner,
	}
}

// ServeUpload godoc
// @Summary Download an uploaded file by signed token
// @Tags Files
// @Produce application/octet-stream
// @Param token query string true "Signed token"
// @Success 200 {file} file
// @Router /files/uploads [get]
func (h *FileHandler) ServeUpload(c *gin.Context) {
	h.serve(c, h.uploadSigner, h.uploads)
}

// ServeReport godoc
// @Summary Download a generated report by signed token
// @Tags Files
// @Produce application/pdf
// @Param token query string true "Signed token"
// @Success 200 {file} file
// @Router /files/reports [get]
func (h *FileHandler) ServeReport(c *gin.Context) {
	h.serve(c, h.reportSigner, h.reports)
}

func (h *FileHandler) serve(c *gin.Context, signer *storage.SignedURLSigner, store *storage.LocalStorage) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token required"))
		return
	}
	_, relPath, _, err := signer.Parse(token, false)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired token"))
		return
	}
	file, err := store.Open(relPath)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "file not found"))
		return
	}
	defer file.Close() //nolint:errcheck

	c.Status(http.StatusOK)
	c.Header("Content-Disposition", "attachment")
	_, _ = io.Copy(c.Writer, file)
}
