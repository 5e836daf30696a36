package enrollment

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/tuutta/core"
	"github.com/trezcool/tuutta/core/progress"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrNotFound       = core.NewNotFoundError("enrollment")
	ErrProgressExists = core.NewPolicyError("progress_exists", "progress for this user and course is already tracked by another enrollment")
	ErrInvalidStatus  = core.NewValidationError(nil, core.FieldError{Field: "status", Error: "invalid status"})
)

type (
	Repository interface {
		// CreateEnrollment returns core.ErrConflict if an Enrollment with the same ID exists.
		CreateEnrollment(ctx context.Context, e Enrollment) error
		GetEnrollment(ctx context.Context, id string) (Enrollment, error)
		// QueryEnrollments applies AND operation on available QueryFilter fields.
		QueryEnrollments(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Enrollment, error)
		UpdateEnrollment(ctx context.Context, e Enrollment) (Enrollment, error)
	}

	ServiceDeps struct {
		TxRunner     core.TxRunner
		Repo         Repository
		ProgressRepo progress.Repository
		Validate     *validator.Validate
		Activity     core.ActivitySink
		Logger       core.Logger
	}

	Service struct {
		tx           core.TxRunner
		repo         Repository
		progressRepo progress.Repository
		validate     *validator.Validate
		activity     core.ActivitySink
		logger       core.Logger
	}
)

func NewService(deps ServiceDeps) *Service {
	activity := deps.Activity
	if activity == nil {
		activity = core.NopActivitySink{}
	}
	return &Service{
		tx:           deps.TxRunner,
		repo:         deps.Repo,
		progressRepo: deps.ProgressRepo,
		validate:     deps.Validate,
		activity:     activity,
		logger:       deps.Logger,
	}
}

// Enroll registers a learner in a course. Enrolling twice returns the existing
// Enrollment unchanged. A new Enrollment and its ProgressSummary are created in the
// same transaction: one never exists without the other.
func (svc *Service) Enroll(ctx context.Context, ne NewEnrollment) (Enrollment, error) {
	if err := ne.Validate(svc.validate); err != nil {
		return Enrollment{}, err
	}
	id := ID(ne.OrgID, ne.UserID, ne.CourseID)

	var (
		enr     Enrollment
		created bool
	)
	err := svc.tx.RunInTx(ctx, func(ctx context.Context) error {
		existing, err := svc.repo.GetEnrollment(ctx, id)
		if err == nil {
			enr = existing
			return nil
		}
		if errors.Cause(err) != ErrNotFound {
			return errors.Wrap(err, "finding enrollment")
		}

		now := NowFunc().UTC()
		enr = Enrollment{
			ID:         id,
			OrgID:      ne.OrgID,
			UserID:     ne.UserID,
			CourseID:   ne.CourseID,
			EnrolledBy: ne.EnrolledBy,
			Status:     StatusActive,
			EnrolledAt: now,
			DueDate:    utcPtr(ne.DueDate),
			UpdatedAt:  now,
		}
		if err = svc.repo.CreateEnrollment(ctx, enr); err != nil {
			return errors.Wrap(err, "creating enrollment")
		}
		if err = svc.progressRepo.CreateSummary(ctx, progress.NewSummary(id, ne.UserID, ne.CourseID, now)); err != nil {
			return errors.Wrap(err, "creating progress summary")
		}
		created = true
		return nil
	})
	if err != nil {
		if !core.IsConflict(err) {
			return Enrollment{}, err
		}
		// a concurrent Enroll committed first
		existing, gErr := svc.repo.GetEnrollment(ctx, id)
		if gErr != nil {
			if errors.Cause(gErr) == ErrNotFound {
				return Enrollment{}, ErrProgressExists
			}
			return Enrollment{}, errors.Wrap(gErr, "finding enrollment")
		}
		return existing, nil
	}

	if created {
		svc.activity.Log(ctx, core.ActivityEvent{
			OrgID:      enr.OrgID,
			ActorID:    enr.EnrolledBy,
			Action:     core.ActionEnrollmentCreated,
			EntityType: "enrollment",
			EntityID:   enr.ID,
			Metadata:   map[string]interface{}{"userId": enr.UserID, "courseId": enr.CourseID},
			OccurredAt: enr.EnrolledAt,
		})
	}
	return enr, nil
}

func (svc *Service) Get(ctx context.Context, id string) (Enrollment, error) {
	return svc.repo.GetEnrollment(ctx, id)
}

func (svc *Service) GetFor(ctx context.Context, orgID, userID, courseID string) (Enrollment, error) {
	return svc.repo.GetEnrollment(ctx, ID(orgID, userID, courseID))
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Enrollment, error) {
	if filter != nil {
		filter.Clean()
	}
	return svc.repo.QueryEnrollments(ctx, filter, ordering)
}

// update applies fn to the stored Enrollment inside a transaction.
func (svc *Service) update(ctx context.Context, id string, fn func(e *Enrollment) error) (before, after Enrollment, err error) {
	err = svc.tx.RunInTx(ctx, func(ctx context.Context) error {
		e, err := svc.repo.GetEnrollment(ctx, id)
		if err != nil {
			return err
		}
		before = e
		if err = fn(&e); err != nil {
			return err
		}
		e.UpdatedAt = NowFunc().UTC()
		after, err = svc.repo.UpdateEnrollment(ctx, e)
		return err
	})
	return before, after, err
}

// UpdateStatus transitions the Enrollment to status. Completing stamps CompletedAt,
// unless the Enrollment was already completed.
func (svc *Service) UpdateStatus(ctx context.Context, id string, status Status) (Enrollment, error) {
	if !status.IsValid() {
		return Enrollment{}, ErrInvalidStatus
	}

	before, after, err := svc.update(ctx, id, func(e *Enrollment) error {
		if status == StatusCompleted {
			if e.Status != StatusCompleted || e.CompletedAt == nil {
				now := NowFunc().UTC()
				e.CompletedAt = &now
			}
		} else {
			e.CompletedAt = nil
		}
		e.Status = status
		return nil
	})
	if err != nil {
		return Enrollment{}, errors.Wrap(err, "updating enrollment status")
	}

	if before.Status != after.Status {
		action := core.ActionEnrollmentStatusChanged
		if after.Status == StatusCompleted {
			action = core.ActionEnrollmentCompleted
		}
		svc.activity.Log(ctx, core.ActivityEvent{
			OrgID:      after.OrgID,
			ActorID:    after.UserID,
			Action:     action,
			EntityType: "enrollment",
			EntityID:   after.ID,
			Metadata:   map[string]interface{}{"courseId": after.CourseID, "from": string(before.Status), "to": string(after.Status)},
			OccurredAt: after.UpdatedAt,
		})
	}
	return after, nil
}

// Withdraw sets the Enrollment status to withdrawn, whatever its current status.
func (svc *Service) Withdraw(ctx context.Context, id string, reason string) (Enrollment, error) {
	reason = core.CleanString(reason)
	_, after, err := svc.update(ctx, id, func(e *Enrollment) error {
		e.Status = StatusWithdrawn
		e.WithdrawReason = reason
		return nil
	})
	if err != nil {
		return Enrollment{}, errors.Wrap(err, "withdrawing enrollment")
	}

	meta := map[string]interface{}{"courseId": after.CourseID}
	if reason != "" {
		meta["reason"] = reason
	}
	svc.activity.Log(ctx, core.ActivityEvent{
		OrgID:      after.OrgID,
		ActorID:    after.UserID,
		Action:     core.ActionEnrollmentWithdrawn,
		EntityType: "enrollment",
		EntityID:   after.ID,
		Metadata:   meta,
		OccurredAt: after.UpdatedAt,
	})
	return after, nil
}

func (svc *Service) LinkCertificate(ctx context.Context, id, certificateID string) (Enrollment, error) {
	_, after, err := svc.update(ctx, id, func(e *Enrollment) error {
		e.CertificateID = certificateID
		return nil
	})
	if err != nil {
		return Enrollment{}, errors.Wrap(err, "linking certificate")
	}
	return after, nil
}

// ExpireOverdue marks every active Enrollment whose due date is before now as expired.
// It returns the number of expired enrollments.
func (svc *Service) ExpireOverdue(ctx context.Context, now time.Time) (int, error) {
	now = now.UTC()
	overdue, err := svc.repo.QueryEnrollments(ctx, &QueryFilter{Statuses: []Status{StatusActive}, DueBefore: now}, nil)
	if err != nil {
		return 0, errors.Wrap(err, "querying overdue enrollments")
	}

	var count int
	for _, enr := range overdue {
		var expired bool
		_, after, err := svc.update(ctx, enr.ID, func(e *Enrollment) error {
			// may have been completed in the meantime
			if expired = e.IsOverdue(now); expired {
				e.Status = StatusExpired
			}
			return nil
		})
		if err != nil {
			svc.logger.Error(fmt.Sprintf("expiring enrollment %s: %v", enr.ID, err), err)
			continue
		}
		if !expired {
			continue
		}
		count++
		svc.activity.Log(ctx, core.ActivityEvent{
			OrgID:      after.OrgID,
			ActorID:    "system",
			Action:     core.ActionEnrollmentExpired,
			EntityType: "enrollment",
			EntityID:   after.ID,
			Metadata:   map[string]interface{}{"courseId": after.CourseID, "dueDate": after.DueDate},
			OccurredAt: now,
		})
	}
	return count, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}
