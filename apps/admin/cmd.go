package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/tuutta/core/enrollment"
)

var (
	nowFunc = time.Now // mockable

	errHelp = errors.New("help provided")
)

type enrollmentService interface {
	Enroll(ctx context.Context, ne enrollment.NewEnrollment) (enrollment.Enrollment, error)
	ExpireOverdue(ctx context.Context, now time.Time) (int, error)
}

type commandLine struct {
	db          *sqlx.DB
	enrollments enrollmentService
	out         io.Writer
}

func (cli *commandLine) stdout() io.Writer {
	if cli.out == nil {
		return os.Stdout
	}
	return cli.out
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS] - run a goose command (up, down, status, ...)")
	fmt.Println("  expire [-now RFC3339] - expire active enrollments past their due date")
	fmt.Println("  enroll -org ORG -course COURSE [-by USER] [-due RFC3339] -file FILE - enroll one user per line of FILE (\"-\" for stdin)")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	expireCmd := flag.NewFlagSet("expire", flag.ContinueOnError)
	expireNow := expireCmd.String("now", "", "Reference time (RFC3339). Defaults to the current time.")

	enrollCmd := flag.NewFlagSet("enroll", flag.ContinueOnError)
	enrollOrg := enrollCmd.String("org", "", "The organization ID.")
	enrollCourse := enrollCmd.String("course", "", "The course ID.")
	enrollBy := enrollCmd.String("by", "", "The ID of the user enrolling the learners. Defaults to self-enrollment.")
	enrollDue := enrollCmd.String("due", "", "Optional due date (RFC3339).")
	enrollFile := enrollCmd.String("file", "", "A file listing one user ID per line.")

	switch args[1] {
	case "migrate":
		return cli.migrate(args[2:])

	case "expire":
		if err := expireCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		now := nowFunc()
		if *expireNow != "" {
			t, err := time.Parse(time.RFC3339, *expireNow)
			if err != nil {
				return fmt.Errorf("invalid -now: %w", err)
			}
			now = t
		}
		return cli.expire(now)

	case "enroll":
		if err := enrollCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *enrollOrg == "" || *enrollCourse == "" || *enrollFile == "" {
			enrollCmd.Usage()
			return errHelp
		}
		var due *time.Time
		if *enrollDue != "" {
			t, err := time.Parse(time.RFC3339, *enrollDue)
			if err != nil {
				return fmt.Errorf("invalid -due: %w", err)
			}
			due = &t
		}
		return cli.enroll(*enrollOrg, *enrollCourse, *enrollBy, due, *enrollFile)

	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) expire(now time.Time) error {
	n, err := cli.enrollments.ExpireOverdue(context.Background(), now)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.stdout(), "%d enrollment(s) expired\n", n)
	return nil
}

// enroll enrolls every user listed in path. Blank lines and "#" comments are skipped;
// a failing user does not stop the others.
func (cli *commandLine) enroll(orgID, courseID, enrolledBy string, due *time.Time, path string) error {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}

	var enrolled, failed int
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		userID := strings.TrimSpace(scanner.Text())
		if userID == "" || strings.HasPrefix(userID, "#") {
			continue
		}
		enr, err := cli.enrollments.Enroll(context.Background(), enrollment.NewEnrollment{
			OrgID:      orgID,
			UserID:     userID,
			CourseID:   courseID,
			EnrolledBy: enrolledBy,
			DueDate:    due,
		})
		if err != nil {
			failed++
			fmt.Fprintf(cli.stdout(), "%s: %v\n", userID, err)
			continue
		}
		enrolled++
		fmt.Fprintf(cli.stdout(), "%s: %s (%s)\n", userID, enr.ID, enr.Status)
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	fmt.Fprintf(cli.stdout(), "%d enrolled, %d failed\n", enrolled, failed)
	if failed > 0 {
		return fmt.Errorf("%d enrollment(s) failed", failed)
	}
	return nil
}
