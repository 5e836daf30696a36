package sqlxrepos

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/tuutta/core"
)

type activityRow struct {
	ID         string      `db:"id"`
	OrgID      string      `db:"org_id"`
	ActorID    string      `db:"actor_id"`
	Action     string      `db:"action"`
	EntityType string      `db:"entity_type"`
	EntityID   string      `db:"entity_id"`
	Metadata   null.String `db:"metadata"` // json
	OccurredAt time.Time   `db:"occurred_at"`
}

type activityRepository struct {
	db *sqlx.DB
}

var _ core.ActivityRepository = (*activityRepository)(nil) // interface compliance check

func NewActivityRepository(db *sqlx.DB) core.ActivityRepository {
	return &activityRepository{db: db}
}

func (repo *activityRepository) AddActivity(ctx context.Context, ev core.ActivityEvent) error {
	var meta null.String
	if len(ev.Metadata) > 0 {
		s, err := marshalJSON(ev.Metadata)
		if err != nil {
			return err
		}
		meta = null.StringFrom(s)
	}
	ex := executor(ctx, repo.db)
	q := ex.Rebind(`INSERT INTO activities (id, org_id, actor_id, action, entity_type, entity_id, metadata, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := ex.ExecContext(ctx, q, uuid.New().String(), ev.OrgID, ev.ActorID, ev.Action, ev.EntityType,
		ev.EntityID, meta, ev.OccurredAt.UTC())
	return errors.Wrap(err, "inserting activity")
}

func (repo *activityRepository) QueryActivities(ctx context.Context, filter core.ActivityFilter) ([]core.ActivityEvent, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.OrgID != "" {
		where = append(where, "org_id = ?")
		args = append(args, filter.OrgID)
	}
	if filter.EntityID != "" {
		where = append(where, "entity_id = ?")
		args = append(args, filter.EntityID)
	}
	if filter.Action != "" {
		where = append(where, "action = ?")
		args = append(args, filter.Action)
	}

	q := `SELECT id, org_id, actor_id, action, entity_type, entity_id, metadata, occurred_at FROM activities`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY occurred_at DESC"
	if filter.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	ex := executor(ctx, repo.db)
	var rows []activityRow
	if err := sqlx.SelectContext(ctx, ex, &rows, ex.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "selecting activities")
	}
	evs := make([]core.ActivityEvent, 0, len(rows))
	for _, r := range rows {
		ev := core.ActivityEvent{
			OrgID:      r.OrgID,
			ActorID:    r.ActorID,
			Action:     r.Action,
			EntityType: r.EntityType,
			EntityID:   r.EntityID,
			OccurredAt: r.OccurredAt.UTC(),
		}
		if r.Metadata.Valid {
			if err := unmarshalJSON(r.Metadata.String, &ev.Metadata); err != nil {
				return nil, err
			}
		}
		evs = append(evs, ev)
	}
	return evs, nil
}
