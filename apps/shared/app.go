// Package shared builds the service graph used by the API server and the admin CLI.
package shared

import (
	"context"
	"fmt"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/tuutta/core"
	"github.com/trezcool/tuutta/core/assessment"
	"github.com/trezcool/tuutta/core/certificate"
	"github.com/trezcool/tuutta/core/completion"
	"github.com/trezcool/tuutta/core/enrollment"
	"github.com/trezcool/tuutta/core/progress"
	activitysvc "github.com/trezcool/tuutta/services/activity"
	emailsvc "github.com/trezcool/tuutta/services/email"
	"github.com/trezcool/tuutta/storage/cache"
	"github.com/trezcool/tuutta/storage/database"
	sqlxrepos "github.com/trezcool/tuutta/storage/database/sqlx"
)

type App struct {
	Conf       *core.Config
	DB         *sqlx.DB
	Validate   *validator.Validate
	Translator ut.Translator
	Sink       *activitysvc.AsyncSink
	Activities core.ActivityRepository

	Enrollments  *enrollment.Service
	Tracker      *progress.Tracker
	Assessments  *assessment.Service
	Certificates *certificate.Service

	redis  *redis.Client
	logger core.Logger
}

// NewApp opens and migrates the database, then wires every service on top of it.
func NewApp(ctx context.Context, conf *core.Config, logger core.Logger) (*App, error) {
	db, err := OpenDB(ctx, conf)
	if err != nil {
		return nil, err
	}
	if err = database.Migrate(db); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "migrating database")
	}
	return Wire(ctx, conf, db, logger), nil
}

// OpenDB creates the database if needed and opens it, without migrating.
func OpenDB(ctx context.Context, conf *core.Config) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(ctx, conf); err != nil {
		return nil, errors.Wrap(err, "creating database")
	}
	db, err := database.Open(conf)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	return db, nil
}

// Wire builds the services on an opened and migrated database.
func Wire(ctx context.Context, conf *core.Config, db *sqlx.DB, logger core.Logger) *App {
	app := &App{Conf: conf, DB: db, logger: logger}
	app.Translator = core.NewTranslator()
	app.Validate = core.NewValidator(app.Translator)

	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	app.Activities = sqlxrepos.NewActivityRepository(db)
	app.Sink = activitysvc.NewAsyncSink(
		conf.ActivityBuffer,
		logger,
		activitysvc.NewRecorder(app.Activities),
		activitysvc.NewMailer(mailSvc, conf.AuditEmail),
	)

	var assessmentRepo assessment.Repository = sqlxrepos.NewAssessmentRepository(db)
	if conf.Redis.URL != "" {
		client, err := cache.NewClient(ctx, conf.Redis.URL)
		if err != nil {
			// caching is optional
			logger.Warn(fmt.Sprintf("redis unavailable, assessments are not cached: %v", err), err)
		} else {
			app.redis = client
			assessmentRepo = cache.NewAssessmentRepository(assessmentRepo, client, conf.Redis.AssessmentTTL, logger)
		}
	}

	txRunner := sqlxrepos.NewTxRunner(db)
	progressRepo := sqlxrepos.NewProgressRepository(db)

	app.Enrollments = enrollment.NewService(enrollment.ServiceDeps{
		TxRunner:     txRunner,
		Repo:         sqlxrepos.NewEnrollmentRepository(db),
		ProgressRepo: progressRepo,
		Validate:     app.Validate,
		Activity:     app.Sink,
		Logger:       logger,
	})
	app.Certificates = certificate.NewService(sqlxrepos.NewCertificateRepository(db), app.Sink)
	app.Tracker = progress.NewTracker(progress.TrackerDeps{
		TxRunner: txRunner,
		Repo:     progressRepo,
		OnComplete: completion.NewOrchestrator(completion.Deps{
			Enrollments:  app.Enrollments,
			Certificates: app.Certificates,
			Activity:     app.Sink,
			Logger:       logger,
		}),
		Validate: app.Validate,
		Logger:   logger,
		Retry:    conf.Retry,
	})
	app.Assessments = assessment.NewService(assessment.ServiceDeps{
		TxRunner:    txRunner,
		Repo:        assessmentRepo,
		Enrollments: app.Enrollments,
		Validate:    app.Validate,
		Activity:    app.Sink,
		Retry:       conf.Retry,
	})
	return app
}

// Close drains pending activity events, then releases the connections.
func (app *App) Close(ctx context.Context) error {
	if err := app.Sink.Close(ctx); err != nil {
		app.logger.Warn(fmt.Sprintf("draining activity events: %v", err), err)
	}
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Warn(fmt.Sprintf("closing redis: %v", err), err)
		}
	}
	return errors.Wrap(app.DB.Close(), "closing database")
}
