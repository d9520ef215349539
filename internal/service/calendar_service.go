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

type calendarRepo interface {
	List(ctx context.Context, filter models.CalendarFilter) ([]models.CalendarEvent, error)
	FindByID(ctx context.Context, id string) (*models.CalendarEvent, error)
	Create(ctx context.Context, event *models.CalendarEvent) error
	Update(ctx context.Context, event *models.CalendarEvent) error
	Delete(ctx context.Context, id string) error
}

// CalendarEventRequest creates or edits a calendar event.
type CalendarEventRequest struct {
	Title     string `json:"title" validate:"required"`
	Details   string `json:"details"`
	StartDate string `json:"start_date" validate:"required"`
	EndDate   string `json:"end_date" validate:"required"`
	Audience  string `json:"audience" validate:"required,oneof=ALL TEACHERS STUDENTS"`
}

// CalendarService manages school calendar events.
type CalendarService struct {
	events    calendarRepo
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCalendarService constructs CalendarService.
func NewCalendarService(events calendarRepo, validate *validator.Validate, logger *zap.Logger) *CalendarService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CalendarService{events: events, validator: validate, logger: logger}
}

// ListFor returns events in the window visible to the given role.
func (s *CalendarService) ListFor(ctx context.Context, role models.UserRole, from, to string) ([]models.CalendarEvent, error) {
	filter := models.CalendarFilter{}
	if from != "" {
		parsed, err := parseLedgerDate(from)
		if err != nil {
			return nil, err
		}
		filter.From = &parsed
	}
	if to != "" {
		parsed, err := parseLedgerDate(to)
		if err != nil {
			return nil, err
		}
		filter.To = &parsed
	}
	switch role {
	case models.RoleTeacher:
		filter.Audience = string(models.AudienceTeachers)
	case models.RoleStudent:
		filter.Audience = string(models.AudienceStudents)
	}
	events, err := s.events.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list calendar events")
	}
	return events, nil
}

// Create adds an event.
func (s *CalendarService) Create(ctx context.Context, creatorID string, req CalendarEventRequest) (*models.CalendarEvent, error) {
	event, err := s.buildEvent(req)
	if err != nil {
		return nil, err
	}
	event.CreatedBy = creatorID
	if err := s.events.Create(ctx, event); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create calendar event")
	}
	return event, nil
}

// Update edits an event.
func (s *CalendarService) Update(ctx context.Context, id string, req CalendarEventRequest) (*models.CalendarEvent, error) {
	existing, err := s.events.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "calendar event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load calendar event")
	}
	updated, err := s.buildEvent(req)
	if err != nil {
		return nil, err
	}
	existing.Title = updated.Title
	existing.Details = updated.Details
	existing.StartDate = updated.StartDate
	existing.EndDate = updated.EndDate
	existing.Audience = updated.Audience
	if err := s.events.Update(ctx, existing); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update calendar event")
	}
	return existing, nil
}

// Delete removes an event.
func (s *CalendarService) Delete(ctx context.Context, id string) error {
	if _, err := s.events.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "calendar event not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load calendar event")
	}
	if err := s.events.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete calendar event")
	}
	return nil
}

func (s *CalendarService) buildEvent(req CalendarEventRequest) (*models.CalendarEvent, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid calendar payload")
	}
	start, err := parseLedgerDate(req.StartDate)
	if err != nil {
		return nil, err
	}
	end, err := parseLedgerDate(req.EndDate)
	if err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end date precedes start date")
	}
	return &models.CalendarEvent{
		Title:     req.Title,
		Details:   req.Details,
		StartDate: start,
		EndDate:   end,
		Audience:  models.AnnouncementAudience(req.Audience),
	}, nil
}
