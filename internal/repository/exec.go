package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
)

func execOne(ctx context.Context, db sqlx.ExecerContext, op, query string, args ...interface{}) error {
	return execN(ctx, db, op, 1, query, args...)
}

// execN runs a write and reports sql.ErrNoRows when fewer rows than expected
// were touched, so a stale key never silently succeeds.
func execN(ctx context.Context, db sqlx.ExecerContext, op string, want int64, query string, args ...interface{}) error {
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if affected < want {
		return fmt.Errorf("%s: %w", op, sql.ErrNoRows)
	}
	return nil
}
