// Package completion keeps "course 100% complete implies enrollment completed" in one place.
package completion

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/tuutta/core"
	"github.com/trezcool/tuutta/core/certificate"
	"github.com/trezcool/tuutta/core/enrollment"
	"github.com/trezcool/tuutta/core/progress"
)

type (
	EnrollmentUpdater interface {
		Get(ctx context.Context, id string) (enrollment.Enrollment, error)
		UpdateStatus(ctx context.Context, id string, status enrollment.Status) (enrollment.Enrollment, error)
		LinkCertificate(ctx context.Context, id, certificateID string) (enrollment.Enrollment, error)
	}

	CertificateIssuer interface {
		Issue(ctx context.Context, enr enrollment.Enrollment) (certificate.Certificate, error)
	}

	Deps struct {
		Enrollments  EnrollmentUpdater
		Certificates CertificateIssuer // optional
		Activity     core.ActivitySink
		Logger       core.Logger
	}

	Orchestrator struct {
		enrollments  EnrollmentUpdater
		certificates CertificateIssuer
		activity     core.ActivitySink
		logger       core.Logger
	}
)

var _ progress.CompletionHandler = (*Orchestrator)(nil)

func NewOrchestrator(deps Deps) *Orchestrator {
	activity := deps.Activity
	if activity == nil {
		activity = core.NopActivitySink{}
	}
	return &Orchestrator{
		enrollments:  deps.Enrollments,
		certificates: deps.Certificates,
		activity:     activity,
		logger:       deps.Logger,
	}
}

// CourseCompleted marks the enrollment of s completed and issues its certificate.
// Calling it again for a completed enrollment only repairs a missing certificate;
// a withdrawn or expired enrollment is left untouched.
func (o *Orchestrator) CourseCompleted(ctx context.Context, s progress.Summary) error {
	enr, err := o.enrollments.Get(ctx, s.EnrollmentID)
	if err != nil {
		return errors.Wrap(err, "finding enrollment")
	}

	var transitioned bool
	switch enr.Status {
	case enrollment.StatusActive:
		transitioned = true
	case enrollment.StatusCompleted:
	default:
		// withdrawn and expired enrollments are closed: progress never reopens them
		return nil
	}
	if transitioned {
		if enr, err = o.enrollments.UpdateStatus(ctx, enr.ID, enrollment.StatusCompleted); err != nil {
			return errors.Wrap(err, "completing enrollment")
		}
	}

	if o.certificates != nil && enr.CertificateID == "" {
		o.issueCertificate(ctx, enr)
	}

	if transitioned {
		occurredAt := enr.UpdatedAt
		if enr.CompletedAt != nil {
			occurredAt = *enr.CompletedAt
		}
		o.activity.Log(ctx, core.ActivityEvent{
			OrgID:      enr.OrgID,
			ActorID:    enr.UserID,
			Action:     core.ActionCourseCompleted,
			EntityType: "enrollment",
			EntityID:   enr.ID,
			Metadata:   map[string]interface{}{"courseId": enr.CourseID, "timeSpentSeconds": s.TotalTimeSpentSeconds},
			OccurredAt: occurredAt,
		})
	}
	return nil
}

// issueCertificate does not fail the completion: a missing certificate is repaired
// the next time the completion is replayed.
func (o *Orchestrator) issueCertificate(ctx context.Context, enr enrollment.Enrollment) {
	cert, err := o.certificates.Issue(ctx, enr)
	if err != nil {
		o.logger.Error(fmt.Sprintf("issuing certificate for enrollment %s: %v", enr.ID, err), err)
		return
	}
	if _, err = o.enrollments.LinkCertificate(ctx, enr.ID, cert.ID); err != nil {
		o.logger.Error(fmt.Sprintf("linking certificate %s to enrollment %s: %v", cert.ID, enr.ID, err), err)
	}
}
