package models

import "time"

// Attendee is a participant of a calendar event.
type Attendee struct {
	Name   string `bson:"name" json:"name"`
	Email  string `bson:"email" json:"email"`
	Status string `bson:"status,omitempty" json:"status,omitempty"`
}

// CalendarEvent is an event from the calendar provider.
type CalendarEvent struct {
	ID           string     `bson:"_id" json:"id"`
	UserID       string     `bson:"user_id" json:"user_id"`
	CalendarName string     `bson:"calendar_name" json:"calendar_name"`
	Color        string     `bson:"color" json:"color"`
	Title        string     `bson:"title" json:"title"`
	Location     string     `bson:"location,omitempty" json:"location,omitempty"`
	Start        time.Time  `bson:"start" json:"start"`
	End          time.Time  `bson:"end" json:"end"`
	AllDay       bool       `bson:"all_day" json:"all_day"`
	Organizer    *Attendee  `bson:"organizer,omitempty" json:"organizer,omitempty"`
	Attendees    []Attendee `bson:"attendees,omitempty" json:"attendees,omitempty"`
	UpdatedAt    time.Time  `bson:"updated_at" json:"updated_at"`
}

// WebhookEvent is a calendar event flattened for webhook payloads.
type WebhookEvent struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Calendar       string     `json:"calendar"`
	Start          string     `json:"start"`
	End            string     `json:"end"`
	StartFormatted string     `json:"startFormatted"`
	EndFormatted   string     `json:"endFormatted"`
	StartRelative  string     `json:"startRelative"`
	AllDay         bool       `json:"allDay"`
	Location       string     `json:"location,omitempty"`
	Link           string     `json:"link"`
	ColorURL       string     `json:"colorUrl"`
	Organizer      *Attendee  `json:"organizer,omitempty"`
	Attendees      []Attendee `json:"attendees"`
}

// Job outcomes reported per user.
const (
	JobSent             = "sent"
	JobAlreadyExecuted  = "already_executed_today"
	JobWebhooksDisabled = "webhooks_disabled"
	JobNoWebhookURL     = "no_webhook_url"
	JobNoEvents         = "no_events"
	JobFailed           = "failed"
)

// JobResult is the outcome of one webhook job run for one user.
type JobResult struct {
	UserID     string `json:"user_id"`
	Status     string `json:"status"`
	EventCount int    `json:"event_count"`
	Error      string `json:"error,omitempty"`
}
