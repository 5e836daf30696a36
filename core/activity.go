package core

import (
	"context"
	"time"
)

// Activity actions
const (
	ActionEnrollmentCreated       = "enrollment.created"
	ActionEnrollmentCompleted     = "enrollment.completed"
	ActionEnrollmentStatusChanged = "enrollment.status_changed"
	ActionEnrollmentWithdrawn     = "enrollment.withdrawn"
	ActionEnrollmentExpired       = "enrollment.expired"
	ActionCourseCompleted         = "course.completed"
	ActionCertificateIssued       = "certificate.issued"
	ActionAssessmentSubmitted     = "assessment.submitted"
)

type ActivityEvent struct {
	OrgID      string                 `json:"org_id"`
	ActorID    string                 `json:"actor_id"`
	Action     string                 `json:"action"`
	EntityType string                 `json:"entity_type"`
	EntityID   string                 `json:"entity_id"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	OccurredAt time.Time              `json:"occurred_at"` // UTC
}

// ActivitySink is a best-effort notifier. Log must not block the caller and has no way
// to report failure: implementations handle their own errors.
type ActivitySink interface {
	Log(ctx context.Context, ev ActivityEvent)
}

// NopActivitySink discards every event.
type NopActivitySink struct{}

func (NopActivitySink) Log(context.Context, ActivityEvent) {}

type ActivityFilter struct {
	OrgID    string `query:"org_id"`
	EntityID string `query:"entity_id"`
	Action   string `query:"action"`
	Limit    int    `query:"limit"`
}

// Match reports whether ev satisfies every set field of the filter (Limit aside).
func (f ActivityFilter) Match(ev ActivityEvent) bool {
	return (f.OrgID == "" || ev.OrgID == f.OrgID) &&
		(f.EntityID == "" || ev.EntityID == f.EntityID) &&
		(f.Action == "" || ev.Action == f.Action)
}

// ActivityRepository stores the audit trail.
type ActivityRepository interface {
	AddActivity(ctx context.Context, ev ActivityEvent) error
	// QueryActivities returns the latest matching events first.
	QueryActivities(ctx context.Context, filter ActivityFilter) ([]ActivityEvent, error)
}
