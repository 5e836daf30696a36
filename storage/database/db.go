package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"net/url"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/trezcool/tuutta/core"
)

// Engines
const (
	EnginePostgres = "postgres"
	EngineSQLite   = "sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

func openPostgres(dbName string, admin bool, conf *core.Config) (*sqlx.DB, error) {
	user := url.UserPassword(conf.Database.User, conf.Database.Password)
	if admin && conf.Database.AdminUser != "" {
		user = url.UserPassword(conf.Database.AdminUser, conf.Database.AdminPassword)
	}

	sslMode := "require"
	if conf.Database.DisableTLS {
		sslMode = "disable"
	}
	q := make(url.Values)
	q.Set("sslmode", sslMode)
	q.Set("timezone", "utc")

	u := url.URL{
		Scheme:   EnginePostgres,
		User:     user,
		Host:     conf.Database.Address(),
		Path:     dbName,
		RawQuery: q.Encode(),
	}
	return sqlx.Open(EnginePostgres, u.String())
}

// OpenSQLite opens a sqlite database (a file path, or ":memory:").
// sqlite serializes writers, so the pool holds a single connection.
func OpenSQLite(dsn string) (*sqlx.DB, error) {
	db, err := sql.Open(EngineSQLite, dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	// sqlx picks "?" bind vars for the "sqlite3" driver name
	return sqlx.NewDb(db, "sqlite3"), nil
}

func Open(conf *core.Config) (*sqlx.DB, error) {
	switch conf.Database.Engine {
	case EngineSQLite:
		return OpenSQLite(conf.Database.Name)
	case EnginePostgres:
		return openPostgres(conf.Database.Name, false, conf)
	default:
		return nil, fmt.Errorf("unsupported database engine %q", conf.Database.Engine)
	}
}

// Ping waits for the database to be ready. Waits 100ms longer between each attempt.
func Ping(ctx context.Context, db *sqlx.DB) error {
	var err error
	maxAttempts := 30
	for attempts := 1; attempts <= maxAttempts; attempts++ {
		if err = db.PingContext(ctx); err == nil {
			break
		}
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "DB ping")
		case <-time.After(time.Duration(attempts) * 100 * time.Millisecond):
		}
	}

	if err != nil {
		return errors.Wrap(err, "DB ping timeout")
	}
	return nil
}

func exists(db *sqlx.DB, query, name string) (bool, error) {
	var found bool
	rows, err := db.Query(query, name)
	if err != nil {
		return false, err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		if err = rows.Scan(&found); err != nil {
			return false, err
		}
	}
	return found, rows.Err()
}

func createAppUser(db *sqlx.DB, conf *core.Config) error {
	if conf.Database.User == "" {
		return nil
	}

	found, err := exists(db, "SELECT true FROM pg_roles WHERE rolname=$1", conf.Database.User)
	if err != nil {
		return errors.Wrap(err, "checking app user")
	}
	if !found {
		q := fmt.Sprintf("CREATE USER %s CREATEDB ENCRYPTED PASSWORD '%s'", conf.Database.User, conf.Database.Password)
		if _, err = db.Exec(q); err != nil {
			return errors.Wrap(err, "creating app user")
		}
	}
	return nil
}

func createDB(db *sqlx.DB, conf *core.Config) error {
	found, err := exists(db, "SELECT true FROM pg_database WHERE datname=$1", conf.Database.Name)
	if err != nil {
		return errors.Wrap(err, "checking DB")
	}
	if !found {
		if _, err = db.Exec(fmt.Sprintf("CREATE DATABASE %s", conf.Database.Name)); err != nil {
			return errors.Wrap(err, "creating database")
		}
	}
	return nil
}

// CreateIfNotExist creates the postgres app user and database. No-op for sqlite.
func CreateIfNotExist(ctx context.Context, conf *core.Config) error {
	if conf.Database.Engine != EnginePostgres {
		return nil
	}

	// connect as admin
	db, err := openPostgres("postgres", true, conf)
	if err != nil {
		return errors.Wrap(err, "opening database")
	}
	defer func() { _ = db.Close() }()
	if err = Ping(ctx, db); err != nil {
		return errors.Wrap(err, "pinging database")
	}
	if err = createAppUser(db, conf); err != nil {
		return err
	}

	// create DB as app user
	appDB, err := openPostgres("postgres", false, conf)
	if err != nil {
		return errors.Wrap(err, "opening database")
	}
	defer func() { _ = appDB.Close() }()
	return createDB(appDB, conf)
}

func gooseDialect(db *sqlx.DB) string {
	if db.DriverName() == EnginePostgres {
		return EnginePostgres
	}
	return "sqlite3"
}

// RunMigrations runs a goose command (up, down, status, ...) with the embedded migrations.
func RunMigrations(db *sqlx.DB, command string, args ...string) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect(gooseDialect(db)); err != nil {
		return errors.Wrap(err, "setting migration dialect")
	}
	if err := goose.Run(command, db.DB, "migrations", args...); err != nil {
		return errors.Wrapf(err, "running migrations %q", command)
	}
	return nil
}

func Migrate(db *sqlx.DB) error {
	return RunMigrations(db, "up")
}
