package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/civic-kit/report-service/internal/domain"
	"github.com/civic-kit/report-service/internal/firewall"
)

// DB is the part of pgxpool.Pool the repositories use.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ErrDuplicateTracking is returned when a generated tracking number already exists.
var ErrDuplicateTracking = errors.New("tracking number already exists")

// ErrDuplicateEmail is returned when an account email is already registered.
var ErrDuplicateEmail = errors.New("email already registered")

const uniqueViolation = "23505"

// setActorSQL scopes the transaction to the caller. Row-level security reads these.
const setActorSQL = `SELECT set_config('app.actor_id', $1, true), set_config('app.actor_role', $2, true),
       set_config('app.tenant_id', $3, true), set_config('app.actor_wards', $4, true)`

// withActor runs fn inside a transaction whose session settings describe actor.
func withActor(ctx context.Context, db DB, actor firewall.Actor, fn func(pgx.Tx) error) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, setActorSQL,
		actor.ID,
		string(actor.Role),
		actor.TenantID,
		strings.Join(actor.ScopedWards(), domain.WardSeparator),
	); err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func aggregateActor() firewall.Actor {
	return firewall.Actor{Role: firewall.AggregateRole}
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == uniqueViolation && (constraint == "" || pgErr.ConstraintName == constraint)
}
