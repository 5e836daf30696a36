// Package dummydb is an in-memory storage for tests and local runs.
package dummydb

import (
	"context"
	"sync"

	"github.com/trezcool/tuutta/core"
	"github.com/trezcool/tuutta/core/assessment"
	"github.com/trezcool/tuutta/core/certificate"
	"github.com/trezcool/tuutta/core/enrollment"
	"github.com/trezcool/tuutta/core/progress"
)

type ctxKey int

const txKey ctxKey = 1

type (
	// DB holds every table behind one lock. RunInTx holds the write lock for the whole
	// transaction and restores the previous tables when fn fails.
	DB struct {
		mu sync.RWMutex
		tables
	}

	tables struct {
		enrollments  map[string]enrollment.Enrollment
		summaries    map[string]progress.Summary
		events       []progress.Event
		assessments  map[string]assessment.Assessment
		results      []assessment.Result
		certificates map[string]certificate.Certificate
		activities   []core.ActivityEvent
	}
)

var _ core.TxRunner = (*DB)(nil)

func Open() (*DB, error) {
	db := &DB{
		tables: tables{
			enrollments:  make(map[string]enrollment.Enrollment),
			summaries:    make(map[string]progress.Summary),
			assessments:  make(map[string]assessment.Assessment),
			certificates: make(map[string]certificate.Certificate),
		},
	}
	return db, nil
}

func inTx(ctx context.Context) bool {
	v, _ := ctx.Value(txKey).(bool)
	return v
}

func (db *DB) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	snap := db.snapshot()
	if err := fn(context.WithValue(ctx, txKey, true)); err != nil {
		db.tables = snap
		return err
	}
	return nil
}

// snapshot copies the tables. Stored values are never mutated in place, so copying
// the containers is enough.
func (db *DB) snapshot() tables {
	t := tables{
		enrollments:  make(map[string]enrollment.Enrollment, len(db.enrollments)),
		summaries:    make(map[string]progress.Summary, len(db.summaries)),
		events:       append([]progress.Event(nil), db.events...),
		assessments:  make(map[string]assessment.Assessment, len(db.assessments)),
		results:      append([]assessment.Result(nil), db.results...),
		certificates: make(map[string]certificate.Certificate, len(db.certificates)),
		activities:   append([]core.ActivityEvent(nil), db.activities...),
	}
	for k, v := range db.enrollments {
		t.enrollments[k] = v
	}
	for k, v := range db.summaries {
		t.summaries[k] = v
	}
	for k, v := range db.assessments {
		t.assessments[k] = v
	}
	for k, v := range db.certificates {
		t.certificates[k] = v
	}
	return t
}

// read runs fn under the read lock, unless ctx already holds the transaction lock.
func (db *DB) read(ctx context.Context, fn func()) {
	if !inTx(ctx) {
		db.mu.RLock()
		defer db.mu.RUnlock()
	}
	fn()
}

// write runs fn under the write lock, unless ctx already holds the transaction lock.
func (db *DB) write(ctx context.Context, fn func() error) error {
	if !inTx(ctx) {
		db.mu.Lock()
		defer db.mu.Unlock()
	}
	return fn()
}

func copyStrings(s []string) []string {
	return append(make([]string, 0, len(s)), s...)
}
