package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/tuutta/core/enrollment"
	testutil "github.com/trezcool/tuutta/tests"
)

func setup(t *testing.T) (*commandLine, testutil.Services) {
	svcs := testutil.NewServices(t)
	return &commandLine{enrollments: svcs.Enrollments, out: &bytes.Buffer{}}, svcs
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
}

func (tt cliTest) check(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		if tt.wantErr != nil || tt.wantErrStr != "" {
			t.Errorf("cli.run() error = nil, wantErr %v%s", tt.wantErr, tt.wantErrStr)
		}
		return
	}
	switch {
	case tt.wantErr != nil:
		if err != tt.wantErr {
			t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
		}
	case tt.wantErrStr != "":
		if err.Error() != tt.wantErrStr {
			t.Errorf("cli.run() error.Error() = %s, wantErrStr %s", err.Error(), tt.wantErrStr)
		}
	default:
		t.Errorf("cli.run() unexpected error = %v", err)
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _ := setup(t)

	origRun := gooseRunFunc
	defer func() { gooseRunFunc = origRun }()

	gooseRunFunc = func(db *sqlx.DB, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(args))
		})
	}
}

func Test_commandLine_expire(t *testing.T) {
	cli, svcs := setup(t)
	ctx := context.Background()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	overdue := testutil.Enroll(t, svcs.Enrollments, "org", "overdue", "c1", now.Add(-time.Hour))
	notDue := testutil.Enroll(t, svcs.Enrollments, "org", "not-due", "c1", now.Add(time.Hour))
	noDue := testutil.Enroll(t, svcs.Enrollments, "org", "no-due", "c1")

	tests := []cliTest{
		{name: "invalid now", args: []string{"expire", "-now", "lol"}, wantErrStr: `invalid -now: parsing time "lol" as "2006-01-02T15:04:05Z07:00": cannot parse "lol" as "2006"`},
		{name: "expire", args: []string{"expire", "-now", now.Format(time.RFC3339)}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(args))
		})
	}

	want := map[string]enrollment.Status{
		overdue.ID: enrollment.StatusExpired,
		notDue.ID:  enrollment.StatusActive,
		noDue.ID:   enrollment.StatusActive,
	}
	for id, status := range want {
		enr, err := svcs.Enrollments.Get(ctx, id)
		if err != nil {
			t.Fatalf("Get(%s) failed: %v", id, err)
		}
		if enr.Status != status {
			t.Errorf("Get(%s).Status = %s, want %s", id, enr.Status, status)
		}
	}
	if out := cli.out.(*bytes.Buffer).String(); out != "1 enrollment(s) expired\n" {
		t.Errorf("output = %q", out)
	}
}

func Test_commandLine_enroll(t *testing.T) {
	cli, svcs := setup(t)

	dir := t.TempDir()
	users := filepath.Join(dir, "users.txt")
	if err := os.WriteFile(users, []byte("u1\n\n# comment\n u2 \nu1\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	invalid := filepath.Join(dir, "invalid.txt")
	if err := os.WriteFile(invalid, []byte("u3\nbad_id\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []cliTest{
		{name: "no args", args: []string{"enroll"}, wantErr: errHelp},
		{name: "no file", args: []string{"enroll", "-org", "org", "-course", "c1"}, wantErr: errHelp},
		{name: "missing file", args: []string{"enroll", "-org", "org", "-course", "c1", "-file", filepath.Join(dir, "lol.txt")}, wantErrStr: "open " + filepath.Join(dir, "lol.txt") + ": no such file or directory"},
		{name: "enroll", args: []string{"enroll", "-org", "org", "-course", "c1", "-by", "admin", "-file", users}},
		{name: "partial failure", args: []string{"enroll", "-org", "org", "-course", "c1", "-file", invalid}, wantErrStr: "1 enrollment(s) failed"},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(args))
		})
	}

	enrs, err := svcs.Enrollments.Query(context.Background(), &enrollment.QueryFilter{CourseID: "c1"}, nil)
	if err != nil {
		t.Fatalf("Query() failed: %v", err)
	}
	if len(enrs) != 3 {
		t.Fatalf("len(Query()) = %d, want 3", len(enrs))
	}
	for _, enr := range enrs {
		if enr.UserID != "u3" && enr.EnrolledBy != "admin" {
			t.Errorf("%s EnrolledBy = %s, want admin", enr.UserID, enr.EnrolledBy)
		}
	}
}
