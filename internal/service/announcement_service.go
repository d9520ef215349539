package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/school-portal-api/internal/models"
	appErrors "github.com/noah-isme/school-portal-api/pkg/errors"
)

type announcementRepo interface {
	List(ctx context.Context, filter models.AnnouncementFilter) ([]models.AnnouncementDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Announcement, error)
	Create(ctx context.Context, announcement *models.Announcement) error
	Update(ctx context.Context, announcement *models.Announcement) error
	Delete(ctx context.Context, id string) error
}

// AnnouncementRequest creates or edits an announcement.
type AnnouncementRequest struct {
	Title    string `json:"title" validate:"required"`
	Body     string `json:"body" validate:"required"`
	Audience string `json:"audience" validate:"required,oneof=ALL TEACHERS STUDENTS"`
}

// AnnouncementService manages school-wide notices.
type AnnouncementService struct {
	announcements announcementRepo
	validator     *validator.Validate
	logger        *zap.Logger
}

// NewAnnouncementService constructs AnnouncementService.
func NewAnnouncementService(announcements announcementRepo, validate *validator.Validate, logger *zap.Logger) *AnnouncementService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnnouncementService{announcements: announcements, validator: validate, logger: logger}
}

// ListFor returns announcements visible to the given role. Admins see all.
func (s *AnnouncementService) ListFor(ctx context.Context, role models.UserRole, page, pageSize int) ([]models.AnnouncementDetail, int, error) {
	filter := models.AnnouncementFilter{Page: page, PageSize: pageSize}
	switch role {
	case models.RoleTeacher:
		filter.Audience = string(models.AudienceTeachers)
	case models.RoleStudent:
		filter.Audience = string(models.AudienceStudents)
	}
	announcements, total, err := s.announcements.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list announcements")
	}
	return announcements, total, nil
}

// Create publishes an announcement.
func (s *AnnouncementService) Create(ctx context.Context, authorID string, req AnnouncementRequest) (*models.Announcement, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid announcement payload")
	}
	announcement := &models.Announcement{
		AuthorID: authorID,
		Title:    req.Title,
		Body:     req.Body,
		Audience: models.AnnouncementAudience(req.Audience),
	}
	if err := s.announcements.Create(ctx, announcement); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create announcement")
	}
	return announcement, nil
}

// Update edits an announcement; only the author or an admin may edit.
func (s *AnnouncementService) Update(ctx context.Context, id, actorID string, actorRole models.UserRole, req AnnouncementRequest) (*models.Announcement, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid announcement payload")
	}
	announcement, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if announcement.AuthorID != actorID && actorRole != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the author may edit this announcement")
	}
	announcement.Title = req.Title
	announcement.Body = req.Body
	announcement.Audience = models.AnnouncementAudience(req.Audience)
	if err := s.announcements.Update(ctx, announcement); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update announcement")
	}
	return announcement, nil
}

// Delete removes an announcement; only the author or an admin may delete.
func (s *AnnouncementService) Delete(ctx context.Context, id, actorID string, actorRole models.UserRole) error {
	announcement, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if announcement.AuthorID != actorID && actorRole != models.RoleAdmin {
		return appErrors.Clone(appErrors.ErrForbidden, "only the author may delete this announcement")
	}
	if err := s.announcements.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete announcement")
	}
	return nil
}

func (s *AnnouncementService) get(ctx context.Context, id string) (*models.Announcement, error) {
	announcement, err := s.announcements.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "announcement not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load announcement")
	}
	return announcement, nil
}
