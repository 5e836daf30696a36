package enrollment

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/tuutta/core"
)

type Status string

// Statuses
const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusWithdrawn Status = "withdrawn"
	StatusExpired   Status = "expired"
)

var Statuses = []Status{StatusActive, StatusCompleted, StatusWithdrawn, StatusExpired}

func (st Status) IsValid() bool {
	for _, s := range Statuses {
		if s == st {
			return true
		}
	}
	return false
}

// ID returns the deterministic Enrollment ID: one Enrollment per (org, user, course).
func ID(orgID, userID, courseID string) string {
	return core.CompositeID(orgID, userID, courseID)
}

type Enrollment struct {
	ID             string     `json:"id"`
	OrgID          string     `json:"org_id"`
	UserID         string     `json:"user_id"`
	CourseID       string     `json:"course_id"`
	EnrolledBy     string     `json:"enrolled_by"`
	Status         Status     `json:"status"`
	EnrolledAt     time.Time  `json:"enrolled_at"`            // UTC
	CompletedAt    *time.Time `json:"completed_at,omitempty"` // UTC
	DueDate        *time.Time `json:"due_date,omitempty"`     // UTC
	CertificateID  string     `json:"certificate_id,omitempty"`
	WithdrawReason string     `json:"withdraw_reason,omitempty"`
	UpdatedAt      time.Time  `json:"updated_at"` // UTC
}

// IsOverdue reports whether an active enrollment has passed its due date.
func (e Enrollment) IsOverdue(now time.Time) bool {
	return e.Status == StatusActive && e.DueDate != nil && e.DueDate.Before(now)
}

// NewEnrollment contains information needed to enroll a learner.
// EnrolledBy defaults to UserID (self-enrollment).
type NewEnrollment struct {
	OrgID      string     `json:"org_id" validate:"idpart"`
	UserID     string     `json:"user_id" validate:"idpart"`
	CourseID   string     `json:"course_id" validate:"idpart"`
	EnrolledBy string     `json:"enrolled_by"`
	DueDate    *time.Time `json:"due_date"`
}

func (ne *NewEnrollment) Validate(validate *validator.Validate) error {
	ne.OrgID = core.CleanString(ne.OrgID)
	ne.UserID = core.CleanString(ne.UserID)
	ne.CourseID = core.CleanString(ne.CourseID)
	ne.EnrolledBy = core.CleanString(ne.EnrolledBy)
	if ne.EnrolledBy == "" {
		ne.EnrolledBy = ne.UserID
	}
	return validate.Struct(ne)
}

type StatusUpdate struct {
	Status Status `json:"status" validate:"required,oneof=active completed withdrawn expired"`
}

type Withdrawal struct {
	Reason string `json:"reason" validate:"max=1000"`
}

type QueryFilter struct {
	OrgID     string    `query:"org_id"`
	UserID    string    `query:"user_id"`
	CourseID  string    `query:"course_id"`
	Statuses  []Status  `query:"status"`
	DueBefore time.Time `query:"due_before"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.OrgID == "" && qf.UserID == "" && qf.CourseID == "" && qf.Statuses == nil && qf.DueBefore.IsZero()
}

func (qf *QueryFilter) Clean() {
	qf.OrgID = core.CleanString(qf.OrgID)
	qf.UserID = core.CleanString(qf.UserID)
	qf.CourseID = core.CleanString(qf.CourseID)
}

// Match reports whether e satisfies every set field of the filter.
func (qf *QueryFilter) Match(e Enrollment) bool {
	if qf == nil {
		return true
	}
	if qf.OrgID != "" && e.OrgID != qf.OrgID {
		return false
	}
	if qf.UserID != "" && e.UserID != qf.UserID {
		return false
	}
	if qf.CourseID != "" && e.CourseID != qf.CourseID {
		return false
	}
	if len(qf.Statuses) > 0 {
		var ok bool
		for _, st := range qf.Statuses {
			if e.Status == st {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if !qf.DueBefore.IsZero() && (e.DueDate == nil || !e.DueDate.Before(qf.DueBefore)) {
		return false
	}
	return true
}
