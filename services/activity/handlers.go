package activitysvc

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/trezcool/tuutta/core"
)

// NewRecorder stores every event in the audit trail.
func NewRecorder(repo core.ActivityRepository) Handler {
	return HandlerFunc(func(ctx context.Context, ev core.ActivityEvent) error {
		return repo.AddActivity(ctx, ev)
	})
}

// notified actions
var mailedActions = map[string]string{
	core.ActionEnrollmentCreated: "New enrollment",
	core.ActionCourseCompleted:   "Course completed",
	core.ActionCertificateIssued: "Certificate issued",
	core.ActionEnrollmentExpired: "Enrollment expired",
}

// Mailer emails milestone events to the audit mailbox.
type Mailer struct {
	email core.EmailService
	to    string
}

var _ Handler = (*Mailer)(nil)

func NewMailer(email core.EmailService, auditEmail string) *Mailer {
	return &Mailer{email: email, to: auditEmail}
}

func (m *Mailer) Handle(_ context.Context, ev core.ActivityEvent) error {
	subject, ok := mailedActions[ev.Action]
	if !ok || m.to == "" {
		return nil
	}
	m.email.SendMessages(&core.EmailMessage{
		To:         []mail.Address{{Address: m.to}},
		Subject:    subject,
		BodyStr:    describe(ev),
		Categories: []string{"activity", ev.Action},
	})
	return nil
}

func describe(ev core.ActivityEvent) string {
	b := new(strings.Builder)
	_, _ = fmt.Fprintf(b, "Action: %s\n", ev.Action)
	_, _ = fmt.Fprintf(b, "Organization: %s\n", ev.OrgID)
	_, _ = fmt.Fprintf(b, "Actor: %s\n", ev.ActorID)
	_, _ = fmt.Fprintf(b, "%s: %s\n", ev.EntityType, ev.EntityID)
	for k, v := range ev.Metadata {
		_, _ = fmt.Fprintf(b, "%s: %v\n", k, v)
	}
	_, _ = fmt.Fprintf(b, "At: %s\n", ev.OccurredAt.Format("2006-01-02 15:04:05 MST"))
	return b.String()
}
