package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/trezcool/tuutta/apps/shared"
	"github.com/trezcool/tuutta/core"
	logsvc "github.com/trezcool/tuutta/services/logger"
	"github.com/trezcool/tuutta/storage/database"
)

func main() {
	os.Exit(start())
}

// start returns the exit code once every deferred cleanup has run.
func start() int {
	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)
	defer logger.Close()

	ctx := context.Background()

	// set up DB
	db, err := shared.OpenDB(ctx, conf)
	errAndDie(logger, err)
	errAndDie(logger, database.Ping(ctx, db))

	cli := commandLine{db: db}

	// migrations run on the bare database; other commands need the services
	if len(os.Args) > 1 && os.Args[1] != "migrate" {
		errAndDie(logger, database.Migrate(db))
		app := shared.Wire(ctx, conf, db, logger)
		defer func() {
			ctx, cancel := context.WithTimeout(ctx, conf.Server.ShutdownTimeout)
			defer cancel()
			if err := app.Close(ctx); err != nil {
				logger.Error(fmt.Sprintf("closing application: %v", err), err)
			}
		}()
		cli.enrollments = app.Enrollments
	} else {
		defer db.Close()
	}

	// start CLI
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("error: %s", err), err)
		}
		return 1
	}
	return 0
}

func errAndDie(logger core.Logger, err error) {
	if err != nil {
		logger.Fatal(err.Error(), err)
	}
}
