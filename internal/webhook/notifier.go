package webhook

import (
	"context"
	"fmt"
	"time"

	"github.com/VidhuSarwal/chatshare/internal/events"
	"github.com/VidhuSarwal/chatshare/internal/models"

	"go.uber.org/zap"
)

// Webhook payload event types.
const (
	EventDailySummary         = "dailySummary"
	EventImminentEvents       = "imminentEvents"
	EventCalendarEventCreated = "calendarEventCreated"
	EventCalendarEventUpdated = "calendarEventUpdated"
)

// ConfigSource reads per-user webhook settings.
type ConfigSource interface {
	WebhookConfig(ctx context.Context, userID string) (*models.WebhookConfig, error)
	SetLastDailySummaryDate(ctx context.Context, userID, date string) error
	WebhookUsers(ctx context.Context) ([]string, error)
}

// EventSource lists calendar events.
type EventSource interface {
	EventsBetween(ctx context.Context, userID string, from, to time.Time) ([]models.CalendarEvent, error)
}

// Sender delivers one payload.
type Sender interface {
	Send(ctx context.Context, url string, content any, secret string)
}

type Notifier struct {
	config    ConfigSource
	calendar  EventSource
	sender    Sender
	format    *Formatter
	loc       *time.Location
	lookahead time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

func NewNotifier(config ConfigSource, calendar EventSource, sender Sender, format *Formatter,
	loc *time.Location, lookahead time.Duration, logger *zap.Logger) *Notifier {
	if loc == nil {
		loc = time.UTC
	}
	return &Notifier{
		config:    config,
		calendar:  calendar,
		sender:    sender,
		format:    format,
		loc:       loc,
		lookahead: lookahead,
		logger:    logger,
		now:       time.Now,
	}
}

func result(userID, status string) *models.JobResult {
	return &models.JobResult{UserID: userID, Status: status}
}

func failed(userID string, err error) *models.JobResult {
	return &models.JobResult{UserID: userID, Status: models.JobFailed, Error: err.Error()}
}

// DailySummary sends today's events to the user's daily-summary URL, at most
// once per calendar day in the notifier's timezone.
func (n *Notifier) DailySummary(ctx context.Context, userID string) *models.JobResult {
	cfg, err := n.config.WebhookConfig(ctx, userID)
	if err != nil {
		return failed(userID, err)
	}
	if !cfg.Enabled {
		return result(userID, models.JobWebhooksDisabled)
	}
	if cfg.DailySummaryURL == "" {
		return result(userID, models.JobNoWebhookURL)
	}

	now := n.now().In(n.loc)
	today := now.Format("2006-01-02")
	if cfg.LastDailySummaryDate == today {
		return result(userID, models.JobAlreadyExecuted)
	}

	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, n.loc)
	list, err := n.calendar.EventsBetween(ctx, userID, dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		return failed(userID, fmt.Errorf("list events: %w", err))
	}
	// recorded before delivery: a failed POST is not retried the same day
	if err := n.config.SetLastDailySummaryDate(ctx, userID, today); err != nil {
		return failed(userID, fmt.Errorf("record summary date: %w", err))
	}

	n.sender.Send(ctx, cfg.DailySummaryURL, map[string]any{
		"eventType": EventDailySummary,
		"date":      today,
		"events":    n.format.Events(list),
	}, cfg.Secret)
	n.logger.Info("daily summary sent", zap.String("user", userID), zap.Int("events", len(list)))
	return &models.JobResult{UserID: userID, Status: models.JobSent, EventCount: len(list)}
}

// ImminentEvents sends the events starting within the lookahead window.
func (n *Notifier) ImminentEvents(ctx context.Context, userID string) *models.JobResult {
	cfg, err := n.config.WebhookConfig(ctx, userID)
	if err != nil {
		return failed(userID, err)
	}
	if !cfg.Enabled {
		return result(userID, models.JobWebhooksDisabled)
	}
	if cfg.ImminentEventsURL == "" {
		return result(userID, models.JobNoWebhookURL)
	}

	now := n.now()
	list, err := n.calendar.EventsBetween(ctx, userID, now, now.Add(n.lookahead))
	if err != nil {
		return failed(userID, fmt.Errorf("list events: %w", err))
	}
	if len(list) == 0 {
		return result(userID, models.JobNoEvents)
	}

	n.sender.Send(ctx, cfg.ImminentEventsURL, map[string]any{
		"eventType": EventImminentEvents,
		"events":    n.format.Events(list),
	}, cfg.Secret)
	n.logger.Info("imminent events sent", zap.String("user", userID), zap.Int("events", len(list)))
	return &models.JobResult{UserID: userID, Status: models.JobSent, EventCount: len(list)}
}

// HandleCalendarEvent is the bus subscriber for calendar mutations.
func (n *Notifier) HandleCalendarEvent(ctx context.Context, e *events.Event) error {
	ce, ok := e.Payload.(*models.CalendarEvent)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", e.Payload, e.Type)
	}
	cfg, err := n.config.WebhookConfig(ctx, e.UserID)
	if err != nil {
		return err
	}
	if !cfg.Enabled {
		return nil
	}

	var url, eventType string
	switch e.Type {
	case events.CalendarEventCreated:
		url, eventType = cfg.CalendarCreatedURL, EventCalendarEventCreated
	case events.CalendarEventUpdated:
		url, eventType = cfg.CalendarUpdatedURL, EventCalendarEventUpdated
	default:
		return nil
	}
	if url == "" {
		return nil
	}

	n.sender.Send(ctx, url, map[string]any{
		"eventType": eventType,
		"event":     n.format.Event(ce),
	}, cfg.Secret)
	return nil
}

// RunDailySummary runs the daily job for userIDs, or for every user with
// webhooks enabled when userIDs is empty.
func (n *Notifier) RunDailySummary(ctx context.Context, userIDs []string) ([]models.JobResult, error) {
	return n.runAll(ctx, userIDs, n.DailySummary)
}

func (n *Notifier) RunImminentEvents(ctx context.Context, userIDs []string) ([]models.JobResult, error) {
	return n.runAll(ctx, userIDs, n.ImminentEvents)
}

func (n *Notifier) runAll(ctx context.Context, userIDs []string, job func(context.Context, string) *models.JobResult) ([]models.JobResult, error) {
	if len(userIDs) == 0 {
		var err error
		if userIDs, err = n.config.WebhookUsers(ctx); err != nil {
			return nil, fmt.Errorf("list webhook users: %w", err)
		}
	}
	results := make([]models.JobResult, 0, len(userIDs))
	for _, uid := range userIDs {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		r := job(ctx, uid)
		if r.Status == models.JobFailed {
			n.logger.Warn("webhook job failed", zap.String("user", uid), zap.String("error", r.Error))
		}
		results = append(results, *r)
	}
	return results, nil
}
