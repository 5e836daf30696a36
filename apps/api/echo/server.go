package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/pkg/errors"

	"github.com/trezcool/tuutta/core"
)

type (
	ServerDeps struct {
		Debug          bool
		TestMode       bool
		DisableReqLogs bool
		Logger         core.Logger
		Validate       *validator.Validate
		Translator     ut.Translator

		Enrollments  EnrollmentService
		Tracker      ProgressService
		Assessments  AssessmentService
		Certificates CertificateService
		Activities   core.ActivityRepository
	}

	Server struct {
		addr     string
		app      *echo.Echo
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(addr string, shutdown chan os.Signal, deps ServerDeps) *Server {
	if shutdown == nil {
		shutdown = make(chan os.Signal, 1)
	}
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	s := &Server{
		addr:     addr,
		app:      echo.New(),
		errors:   make(chan error, 1),
		shutdown: shutdown,
	}
	s.setup(deps)
	return s
}

func (s *Server) setup(deps ServerDeps) {
	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	s.app.Use(middleware.RequestID())
	if !deps.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(deps.Debug || deps.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(deps.Logger, deps.Translator, s.signalShutdown)
	s.app.Debug = deps.Debug

	s.app.GET("/", home)

	v1 := s.app.Group("/v1")
	registerEnrollmentAPI(v1, deps.Enrollments, deps.Validate)
	registerProgressAPI(v1, deps.Tracker)
	registerAssessmentAPI(v1, deps.Assessments)
	registerCertificateAPI(v1, deps.Certificates)
	registerActivityAPI(v1, deps.Activities)
}

func (s *Server) Start() {
	if err := s.app.Start(s.addr); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

// Errors receives the error that stopped the server.
func (s *Server) Errors() <-chan error {
	return s.errors
}

// ShutdownSignal receives OS interrupts and internal shutdown requests.
func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	return errors.Wrap(s.app.Shutdown(ctx), "shutting down server")
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to Tuutta API!")
}
