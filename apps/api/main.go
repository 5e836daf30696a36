package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"
	"time"

	"github.com/robfig/cron/v3"

	echoapi "github.com/trezcool/tuutta/apps/api/echo"
	"github.com/trezcool/tuutta/apps/shared"
	"github.com/trezcool/tuutta/core"
	"github.com/trezcool/tuutta/core/enrollment"
	logsvc "github.com/trezcool/tuutta/services/logger"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)
	defer logger.Close()

	cronLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "CRON : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	cronLogger.Enable(!conf.Debug)

	app, err := shared.NewApp(context.Background(), conf, logger)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up application: %v", err), err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()
		if err = app.Close(ctx); err != nil {
			logger.Error(fmt.Sprintf("closing application: %v", err), err)
		}
	}()

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	// =========================================================================
	// Start Scheduler

	scheduler := cron.New()
	_, err = scheduler.AddFunc(conf.ExpirySchedule, func() {
		expireOverdue(app.Enrollments, cronLogger)
	})
	if err != nil {
		logger.Fatal(fmt.Sprintf("scheduling enrollment expiry %q: %v", conf.ExpirySchedule, err), err)
	}
	scheduler.Start()
	defer func() {
		<-scheduler.Stop().Done() // wait for a running job
	}()

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		conf.Server.Host,
		nil,
		echoapi.ServerDeps{
			Debug:        conf.Debug,
			TestMode:     conf.TestMode,
			Logger:       logger,
			Validate:     app.Validate,
			Translator:   app.Translator,
			Enrollments:  app.Enrollments,
			Tracker:      app.Tracker,
			Assessments:  app.Assessments,
			Certificates: app.Certificates,
			Activities:   app.Activities,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Error(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Error(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func expireOverdue(svc *enrollment.Service, logger core.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	n, err := svc.ExpireOverdue(ctx, time.Now())
	if err != nil {
		logger.Error(fmt.Sprintf("expiring overdue enrollments: %v", err), err)
		return
	}
	if n > 0 {
		logger.Info(fmt.Sprintf("expired %d overdue enrollments", n))
	}
}
