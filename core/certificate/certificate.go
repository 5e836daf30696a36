package certificate

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/tuutta/core"
	"github.com/trezcool/tuutta/core/enrollment"
)

var (
	NowFunc = time.Now // mockable

	ErrNotFound = core.NewNotFoundError("certificate")
)

type Certificate struct {
	ID           string    `json:"id"`
	Number       string    `json:"number"`
	OrgID        string    `json:"org_id"`
	UserID       string    `json:"user_id"`
	CourseID     string    `json:"course_id"`
	EnrollmentID string    `json:"enrollment_id"`
	IssuedAt     time.Time `json:"issued_at"` // UTC
}

type (
	Repository interface {
		// CreateCertificate returns core.ErrConflict if the enrollment already has a Certificate.
		CreateCertificate(ctx context.Context, c Certificate) error
		GetCertificate(ctx context.Context, id string) (Certificate, error)
		GetByEnrollment(ctx context.Context, enrollmentID string) (Certificate, error)
	}

	Service struct {
		repo     Repository
		activity core.ActivitySink
	}
)

func NewService(repo Repository, activity core.ActivitySink) *Service {
	if activity == nil {
		activity = core.NopActivitySink{}
	}
	return &Service{repo: repo, activity: activity}
}

// NewNumber returns a human-readable certificate number: "CERT-" and 12 upper-case hex digits.
func NewNumber() string {
	hex := strings.ReplaceAll(uuid.New().String(), "-", "")
	return "CERT-" + strings.ToUpper(hex[:12])
}

func (svc *Service) Get(ctx context.Context, id string) (Certificate, error) {
	return svc.repo.GetCertificate(ctx, id)
}

// Issue returns the Certificate of enr, creating it on first call.
func (svc *Service) Issue(ctx context.Context, enr enrollment.Enrollment) (Certificate, error) {
	existing, err := svc.repo.GetByEnrollment(ctx, enr.ID)
	if err == nil {
		return existing, nil
	}
	if errors.Cause(err) != ErrNotFound {
		return Certificate{}, errors.Wrap(err, "finding certificate")
	}

	cert := Certificate{
		ID:           uuid.New().String(),
		Number:       NewNumber(),
		OrgID:        enr.OrgID,
		UserID:       enr.UserID,
		CourseID:     enr.CourseID,
		EnrollmentID: enr.ID,
		IssuedAt:     NowFunc().UTC(),
	}
	if err = svc.repo.CreateCertificate(ctx, cert); err != nil {
		if core.IsConflict(err) {
			// issued concurrently
			return svc.repo.GetByEnrollment(ctx, enr.ID)
		}
		return Certificate{}, errors.Wrap(err, "creating certificate")
	}

	svc.activity.Log(ctx, core.ActivityEvent{
		OrgID:      cert.OrgID,
		ActorID:    "system",
		Action:     core.ActionCertificateIssued,
		EntityType: "certificate",
		EntityID:   cert.ID,
		Metadata:   map[string]interface{}{"number": cert.Number, "enrollmentId": enr.ID, "userId": enr.UserID, "courseId": enr.CourseID},
		OccurredAt: cert.IssuedAt,
	})
	return cert, nil
}
