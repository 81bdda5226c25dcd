package task

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"taskboard.org/internal/ids"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

const taskColumns = `id, title, description, created_by, assigned_to, team, status, created_at, started_at, stopped_at`

func scanTask(row interface{ Scan(...any) error }) (*Task, error) {
	var (
		rec        Task
		assignedTo sql.NullString
		team       sql.NullInt64
		startedAt  sql.NullTime
		stoppedAt  sql.NullTime
	)
	err := row.Scan(&rec.ID, &rec.Title, &rec.Description, &rec.CreatedBy,
		&assignedTo, &team, &rec.Status, &rec.CreatedAt, &startedAt, &stoppedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if assignedTo.Valid {
		rec.AssignedTo = assignedTo.String
	}
	if team.Valid {
		v := int(team.Int64)
		rec.Team = &v
	}
	if startedAt.Valid {
		ts := startedAt.Time
		rec.StartedAt = &ts
	}
	if stoppedAt.Valid {
		ts := stoppedAt.Time
		rec.StoppedAt = &ts
	}
	return &rec, nil
}

func (s *PGStore) Create(ctx context.Context, t *Task) error {
	if t.ID == "" {
		t.ID = ids.New()
	}
	if t.Status == "" {
		t.Status = StatusOpen
	}
	var (
		assignedTo sql.NullString
		team       sql.NullInt64
	)
	if t.AssignedTo != "" {
		assignedTo = sql.NullString{String: t.AssignedTo, Valid: true}
	}
	if t.Team != nil {
		team = sql.NullInt64{Int64: int64(*t.Team), Valid: true}
	}
	return s.db.QueryRowContext(ctx,
		`insert into tasks(id, title, description, created_by, assigned_to, team, status)
		 values($1,$2,$3,$4,$5,$6,$7) returning created_at`,
		t.ID, t.Title, t.Description, t.CreatedBy, assignedTo, team, t.Status,
	).Scan(&t.CreatedAt)
}

func (s *PGStore) Find(ctx context.Context, id string) (*Task, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+taskColumns+` from tasks where id=$1`, id)
	return scanTask(row)
}

func (s *PGStore) List(ctx context.Context) ([]*Task, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+taskColumns+` from tasks order by created_at desc`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Task
	for rows.Next() {
		rec, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *PGStore) Update(ctx context.Context, id string, upd Update) (*Task, error) {
	var (
		sets []string
		args []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if upd.Title != nil {
		sets = append(sets, "title="+arg(*upd.Title))
	}
	if upd.Description != nil {
		sets = append(sets, "description="+arg(*upd.Description))
	}
	if upd.AssignedTo != nil {
		if *upd.AssignedTo == "" {
			sets = append(sets, "assigned_to=null")
		} else {
			sets = append(sets, "assigned_to="+arg(*upd.AssignedTo))
		}
	}
	if upd.Team != nil {
		sets = append(sets, "team="+arg(int64(*upd.Team)))
	}
	if upd.Status != nil {
		sets = append(sets, "status="+arg(string(*upd.Status)))
	}
	if upd.StartedAt != nil {
		sets = append(sets, "started_at="+arg(*upd.StartedAt))
	}
	if upd.StoppedAt != nil {
		sets = append(sets, "stopped_at="+arg(*upd.StoppedAt))
	}
	if len(sets) == 0 {
		return s.Find(ctx, id)
	}
	query := `update tasks set ` + strings.Join(sets, ", ") +
		` where id=` + arg(id) + ` returning ` + taskColumns
	row := s.db.QueryRowContext(ctx, query, args...)
	return scanTask(row)
}

func (s *PGStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from tasks where id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
