package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/school-portal-api/internal/models"
	appErrors "github.com/noah-isme/school-portal-api/pkg/errors"
)

type resourceRepo interface {
	List(ctx context.Context, filter models.ResourceFilter) ([]models.Resource, int, error)
	FindByID(ctx context.Context, id string) (*models.Resource, error)
	Create(ctx context.Context, resource *models.Resource) error
	Delete(ctx context.Context, id string) error
}

type urlSigner interface {
	Generate(recordID, relPath string) (string, time.Time, error)
}

// UploadResourceRequest publishes a file to a class and/or subject.
type UploadResourceRequest struct {
	Title     string  `json:"title" validate:"required"`
	ClassID   *string `json:"class_id"`
	SubjectID *string `json:"subject_id"`
	MimeType  string  `json:"mime_type" validate:"required"`
}

// ResourceDownload pairs a resource with a signed, time-limited URL token.
type ResourceDownload struct {
	Resource  models.Resource `json:"resource"`
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// ResourceService manages shared learning material.
type ResourceService struct {
	resources resourceRepo
	classes   classReader
	subjects  subjectReader
	uploads   fileStore
	signer    urlSigner
	validator *validator.Validate
	logger    *zap.Logger
}

// NewResourceService constructs ResourceService.
func NewResourceService(resources resourceRepo, classes classReader, subjects subjectReader, uploads fileStore, signer urlSigner, validate *validator.Validate, logger *zap.Logger) *ResourceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResourceService{
		resources: resources,
		classes:   classes,
		subjects:  subjects,
		uploads:   uploads,
		signer:    signer,
		validator: validate,
		logger:    logger,
	}
}

// List returns resources matching the filter.
func (s *ResourceService) List(ctx context.Context, filter models.ResourceFilter) ([]models.Resource, int, error) {
	resources, total, err := s.resources.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list resources")
	}
	return resources, total, nil
}

// Upload stores the file and records the resource.
func (s *ResourceService) Upload(ctx context.Context, uploaderID string, req UploadResourceRequest, filename string, data []byte) (*models.Resource, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid resource payload")
	}
	if len(data) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "resource file is empty")
	}
	if req.ClassID != nil && *req.ClassID != "" {
		if _, err := s.classes.FindByID(ctx, *req.ClassID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrReferentialIntegrity, "class does not exist")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
		}
	}
	if req.SubjectID != nil && *req.SubjectID != "" {
		if _, err := s.subjects.FindByID(ctx, *req.SubjectID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrReferentialIntegrity, "subject does not exist")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
		}
	}

	name := fmt.Sprintf("resources/%s%s", uuid.NewString(), filepath.Ext(filename))
	ref, err := s.uploads.Save(name, data)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store resource file")
	}

	resource := &models.Resource{
		Title:      req.Title,
		FileRef:    ref,
		MimeType:   req.MimeType,
		SizeBytes:  int64(len(data)),
		ClassID:    req.ClassID,
		SubjectID:  req.SubjectID,
		UploadedBy: uploaderID,
	}
	if err := s.resources.Create(ctx, resource); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record resource")
	}
	return resource, nil
}

// Download returns the resource with a signed download token.
func (s *ResourceService) Download(ctx context.Context, id string) (*ResourceDownload, error) {
	resource, err := s.resources.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "resource not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load resource")
	}
	token, expiresAt, err := s.signer.Generate(resource.ID, resource.FileRef)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download url")
	}
	return &ResourceDownload{Resource: *resource, Token: token, ExpiresAt: expiresAt}, nil
}

// Delete removes a resource; only the uploader or an admin may delete.
func (s *ResourceService) Delete(ctx context.Context, id, actorID string, actorRole models.UserRole) error {
	resource, err := s.resources.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "resource not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load resource")
	}
	if resource.UploadedBy != actorID && actorRole != models.RoleAdmin {
		return appErrors.Clone(appErrors.ErrForbidden, "only the uploader may delete this resource")
	}
	if err := s.resources.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete resource")
	}
	return nil
}
