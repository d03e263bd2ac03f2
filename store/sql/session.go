package sqlstore

import (
	"context"
	"fmt"

	"github.com/goliatone/go-community/core"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

// Session settings read by the row level security policies.
const (
	SettingUserID = "app.current_user_id"
	SettingRole   = "app.current_role"
)

// RunScoped runs fn with the caller's principal applied to the database
// session. Authenticated calls run in a transaction with transaction-local
// settings; anonymous calls run directly against db without any settings.
func RunScoped(ctx context.Context, db *bun.DB, fn func(ctx context.Context, idb bun.IDB) error) error {
	if db == nil {
		return fmt.Errorf("sqlstore: bun db is required")
	}
	if fn == nil {
		return fmt.Errorf("sqlstore: scoped function is required")
	}
	if _, ok := core.PrincipalFromContext(ctx); !ok {
		return fn(ctx, db)
	}
	return RunScopedTx(ctx, db, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, tx)
	})
}

// RunScopedTx always opens a transaction. Settings are applied only when the
// context carries a principal.
func RunScopedTx(ctx context.Context, db *bun.DB, fn func(ctx context.Context, tx bun.Tx) error) error {
	if db == nil {
		return fmt.Errorf("sqlstore: bun db is required")
	}
	principal, scoped := core.PrincipalFromContext(ctx)
	return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if scoped {
			if err := applySessionSettings(ctx, tx, principal); err != nil {
				return err
			}
		}
		return fn(ctx, tx)
	})
}

func applySessionSettings(ctx context.Context, tx bun.Tx, principal core.Principal) error {
	if tx.Dialect().Name() != dialect.PG {
		return nil
	}
	_, err := tx.ExecContext(ctx,
		"SELECT set_config(?, ?, true), set_config(?, ?, true)",
		SettingUserID, principal.UserID,
		SettingRole, string(principal.Role),
	)
	if err != nil {
		return fmt.Errorf("sqlstore: apply session settings: %w", err)
	}
	return nil
}
