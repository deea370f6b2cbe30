// Package calendar stores calendar events and announces changes on the event bus.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/VidhuSarwal/chatshare/internal/chaterr"
	"github.com/VidhuSarwal/chatshare/internal/events"
	"github.com/VidhuSarwal/chatshare/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrEventNotFound = errors.New("calendar event not found")

// Repository persists calendar events.
type Repository interface {
	SaveCalendarEvent(ctx context.Context, event *models.CalendarEvent) error
	GetCalendarEvent(ctx context.Context, userID, id string) (*models.CalendarEvent, error)
	CalendarEventsBetween(ctx context.Context, userID string, from, to time.Time) ([]models.CalendarEvent, error)
}

// Publisher is the part of the event bus the service needs.
type Publisher interface {
	Publish(ctx context.Context, eventType events.Type, userID string, payload any) *events.Event
}

type Service struct {
	repo   Repository
	bus    Publisher
	logger *zap.Logger
	now    func() time.Time
}

func NewService(repo Repository, bus Publisher, logger *zap.Logger) *Service {
	return &Service{repo: repo, bus: bus, logger: logger, now: time.Now}
}

func validate(e *models.CalendarEvent) error {
	if strings.TrimSpace(e.Title) == "" {
		return fmt.Errorf("%w: event title required", chaterr.ErrInvalidRequest)
	}
	if e.Start.IsZero() {
		return fmt.Errorf("%w: event start required", chaterr.ErrInvalidRequest)
	}
	if e.End.IsZero() {
		e.End = e.Start
	}
	if e.End.Before(e.Start) {
		return fmt.Errorf("%w: event ends before it starts", chaterr.ErrInvalidRequest)
	}
	return nil
}

// Create stores a new event for userID and publishes CalendarEventCreated.
func (s *Service) Create(ctx context.Context, userID string, e *models.CalendarEvent) (*models.CalendarEvent, error) {
	if err := validate(e); err != nil {
		return nil, err
	}
	e.ID = uuid.NewString()
	e.UserID = userID
	e.UpdatedAt = s.now().UTC()
	if err := s.repo.SaveCalendarEvent(ctx, e); err != nil {
		return nil, fmt.Errorf("save calendar event: %w", err)
	}
	s.logger.Info("calendar event created", zap.String("user", userID), zap.String("event_id", e.ID))
	s.bus.Publish(ctx, events.CalendarEventCreated, userID, e)
	return e, nil
}

// Update replaces an existing event and publishes CalendarEventUpdated.
func (s *Service) Update(ctx context.Context, userID, id string, e *models.CalendarEvent) (*models.CalendarEvent, error) {
	existing, err := s.repo.GetCalendarEvent(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, fmt.Errorf("%w: %s", ErrEventNotFound, id)
	}
	if err := validate(e); err != nil {
		return nil, err
	}
	e.ID = id
	e.UserID = userID
	e.UpdatedAt = s.now().UTC()
	if err := s.repo.SaveCalendarEvent(ctx, e); err != nil {
		return nil, fmt.Errorf("save calendar event: %w", err)
	}
	s.logger.Info("calendar event updated", zap.String("user", userID), zap.String("event_id", id))
	s.bus.Publish(ctx, events.CalendarEventUpdated, userID, e)
	return e, nil
}

// Get returns one event of userID.
func (s *Service) Get(ctx context.Context, userID, id string) (*models.CalendarEvent, error) {
	e, err := s.repo.GetCalendarEvent(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, fmt.Errorf("%w: %s", ErrEventNotFound, id)
	}
	return e, nil
}

// EventsBetween returns the events of userID starting in [from, to).
func (s *Service) EventsBetween(ctx context.Context, userID string, from, to time.Time) ([]models.CalendarEvent, error) {
	return s.repo.CalendarEventsBetween(ctx, userID, from, to)
}
