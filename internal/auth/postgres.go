package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

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

func (s *PGStore) Identities() IdentityStore        { return &pgIdentities{db: s.db} }
func (s *PGStore) RefreshTokens() RefreshTokenStore { return &pgTokens{db: s.db} }

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// Identity store -----------------------------------------------------------

type pgIdentities struct{ db *sql.DB }

const identityColumns = `id, name, email, secret_hash, role, team, created_at`

func scanIdentity(row interface{ Scan(...any) error }) (*Identity, error) {
	var (
		rec  Identity
		team sql.NullInt64
	)
	if err := row.Scan(&rec.ID, &rec.Name, &rec.Email, &rec.SecretHash, &rec.Role, &team, &rec.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if team.Valid {
		v := int(team.Int64)
		rec.Team = &v
	}
	return &rec, nil
}

func (s *pgIdentities) Create(ctx context.Context, id *Identity) error {
	if id.ID == "" {
		id.ID = ids.New()
	}
	var team sql.NullInt64
	if id.Team != nil {
		team = sql.NullInt64{Int64: int64(*id.Team), Valid: true}
	}
	err := s.db.QueryRowContext(ctx,
		`insert into identities(id, name, email, secret_hash, role, team)
		 values($1,$2,$3,$4,$5,$6) returning created_at`,
		id.ID, id.Name, strings.ToLower(id.Email), id.SecretHash, id.Role, team,
	).Scan(&id.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicateEmail
	}
	return err
}

func (s *pgIdentities) Find(ctx context.Context, id string) (*Identity, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+identityColumns+` from identities where id=$1`, id)
	return scanIdentity(row)
}

func (s *pgIdentities) FindByEmail(ctx context.Context, email string) (*Identity, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+identityColumns+` from identities where email=$1`, strings.ToLower(email))
	return scanIdentity(row)
}

func (s *pgIdentities) Update(ctx context.Context, id string, upd IdentityUpdate) (*Identity, error) {
	var (
		sets []string
		args []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if upd.Name != nil {
		sets = append(sets, "name="+arg(*upd.Name))
	}
	if upd.Email != nil {
		sets = append(sets, "email="+arg(strings.ToLower(*upd.Email)))
	}
	if upd.SecretHash != nil {
		sets = append(sets, "secret_hash="+arg(*upd.SecretHash))
	}
	if upd.Role != nil {
		sets = append(sets, "role="+arg(string(*upd.Role)))
	}
	if upd.ClearTeam {
		sets = append(sets, "team=null")
	} else if upd.Team != nil {
		sets = append(sets, "team="+arg(int64(*upd.Team)))
	}
	if len(sets) == 0 {
		return s.Find(ctx, id)
	}
	query := `update identities set ` + strings.Join(sets, ", ") +
		` where id=` + arg(id) + ` returning ` + identityColumns
	row := s.db.QueryRowContext(ctx, query, args...)
	rec, err := scanIdentity(row)
	if isUniqueViolation(err) {
		return nil, ErrDuplicateEmail
	}
	return rec, err
}

func (s *pgIdentities) List(ctx context.Context) ([]*Identity, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+identityColumns+` from identities order by created_at desc`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectIdentities(rows)
}

func (s *pgIdentities) ListByTeam(ctx context.Context, team int, role Role) ([]*Identity, error) {
	query := `select ` + identityColumns + ` from identities where team=$1`
	args := []any{int64(team)}
	if role != "" {
		query += ` and role=$2`
		args = append(args, string(role))
	}
	query += ` order by name`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectIdentities(rows)
}

func collectIdentities(rows *sql.Rows) ([]*Identity, error) {
	var out []*Identity
	for rows.Next() {
		rec, err := scanIdentity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *pgIdentities) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from identities where id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Refresh token store ------------------------------------------------------

type pgTokens struct{ db *sql.DB }

func (s *pgTokens) Create(ctx context.Context, rec *RefreshToken) error {
	if rec.ID == "" {
		rec.ID = ids.New()
	}
	return s.db.QueryRowContext(ctx,
		`insert into refresh_tokens(id, owner_id, token, expires_at)
		 values($1,$2,$3,$4) returning created_at`,
		rec.ID, rec.OwnerID, rec.Token, rec.ExpiresAt,
	).Scan(&rec.CreatedAt)
}

func (s *pgTokens) FindByValue(ctx context.Context, token string) (*RefreshToken, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, owner_id, token, expires_at, revoked, created_at
		 from refresh_tokens where token=$1`, token)
	var rec RefreshToken
	if err := row.Scan(&rec.ID, &rec.OwnerID, &rec.Token, &rec.ExpiresAt, &rec.Revoked, &rec.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTokenNotRecognized
		}
		return nil, err
	}
	return &rec, nil
}

func (s *pgTokens) MarkRevoked(ctx context.Context, token string) error {
	res, err := s.db.ExecContext(ctx,
		`update refresh_tokens set revoked=true where token=$1`, token)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrTokenNotRecognized
	}
	return nil
}

func (s *pgTokens) MarkRevokedByOwner(ctx context.Context, ownerID string) error {
	_, err := s.db.ExecContext(ctx,
		`update refresh_tokens set revoked=true where owner_id=$1 and revoked=false`, ownerID)
	return err
}

// Rotate revokes the consumed token and inserts its replacement in one
// transaction. The conditional update guarantees at most one of two racing
// rotations of the same token commits the insert.
func (s *pgTokens) Rotate(ctx context.Context, oldToken string, next *RefreshToken) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`update refresh_tokens set revoked=true where token=$1 and revoked=false`, oldToken)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		var exists bool
		if err := tx.QueryRowContext(ctx,
			`select exists(select 1 from refresh_tokens where token=$1)`, oldToken,
		).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return ErrTokenRevoked
		}
		return ErrTokenNotRecognized
	}

	if next.ID == "" {
		next.ID = ids.New()
	}
	if err := tx.QueryRowContext(ctx,
		`insert into refresh_tokens(id, owner_id, token, expires_at)
		 values($1,$2,$3,$4) returning created_at`,
		next.ID, next.OwnerID, next.Token, next.ExpiresAt,
	).Scan(&next.CreatedAt); err != nil {
		return err
	}
	return tx.Commit()
}
