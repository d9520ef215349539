package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-portal-api/pkg/storage"
)

func newFileHandlerFixture(t *testing.T) (*FileHandler, *storage.LocalStorage, *storage.SignedURLSigner) {
	t.Helper()
	uploads, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	reports, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	uploadSigner := storage.NewSignedURLSigner("upload-secret", time.Minute)
	reportSigner := storage.NewSignedURLSigner("report-secret", time.Minute)
	return NewFileHandler(uploads, uploadSigner, reports, reportSigner), uploads, uploadSigner
}

func TestFileHandlerServeUpload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h, uploads, signer := newFileHandlerFixture(t)

	relPath, err := uploads.Save("notes/lesson-1.txt", []byte("photosynthesis"))
	require.NoError(t, err)
	token, _, err := signer.Generate("res-1", relPath)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/files/uploads?token="+token, nil)

	h.ServeUpload(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "photosynthesis", w.Body.String())
}

func TestFileHandlerServeUploadMissingToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h, _, _ := newFileHandlerFixture(t)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/files/uploads", nil)

	h.ServeUpload(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFileHandlerServeUploadBadToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h, uploads, _ := newFileHandlerFixture(t)

	relPath, err := uploads.Save("notes/lesson-2.txt", []byte("osmosis"))
	require.NoError(t, err)

	// Signed with the report secret, so the upload signer must reject it.
	wrongSigner := storage.NewSignedURLSigner("report-secret", time.Minute)
	token, _, err := wrongSigner.Generate("res-2", relPath)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/files/uploads?token="+token, nil)

	h.ServeUpload(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestFileHandlerServeUploadMissingFile(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h, _, signer := newFileHandlerFixture(t)

	token, _, err := signer.Generate("res-3", "notes/never-saved.txt")
	require.NoError(t, err)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/files/uploads?token="+token, nil)

	h.ServeUpload(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}
