package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/goliatone/go-community/core"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
)

func newMockDB(t *testing.T, dialect schema.Dialect) (*bun.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	db := bun.NewDB(sqlDB, dialect)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func TestRunScoped_AppliesSessionSettingsOnPostgres(t *testing.T) {
	db, mock := newMockDB(t, pgdialect.New())
	ctx := core.WithPrincipal(context.Background(), core.Principal{UserID: "user-1", Role: core.RoleMember})

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(
		"SELECT set_config('app.current_user_id', 'user-1', true), set_config('app.current_role', 'member', true)",
	)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1")).
		WillReturnRows(sqlmock.NewRows([]string{"one"}).AddRow(1))
	mock.ExpectCommit()

	err := RunScoped(ctx, db, func(ctx context.Context, idb bun.IDB) error {
		var one int
		return idb.NewRaw("SELECT 1").Scan(ctx, &one)
	})
	if err != nil {
		t.Fatalf("run scoped: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRunScoped_AnonymousRunsWithoutTransaction(t *testing.T) {
	db, mock := newMockDB(t, pgdialect.New())

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1")).
		WillReturnRows(sqlmock.NewRows([]string{"one"}).AddRow(1))

	err := RunScoped(context.Background(), db, func(ctx context.Context, idb bun.IDB) error {
		if _, ok := idb.(*bun.DB); !ok {
			t.Fatalf("expected anonymous call to use the db handle, got %T", idb)
		}
		var one int
		return idb.NewRaw("SELECT 1").Scan(ctx, &one)
	})
	if err != nil {
		t.Fatalf("run scoped: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRunScopedTx_SkipsSettingsOnSQLite(t *testing.T) {
	db, mock := newMockDB(t, sqlitedialect.New())
	ctx := core.WithPrincipal(context.Background(), core.Principal{UserID: "user-1", Role: core.RoleAdmin})

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM community_logs")).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	err := RunScopedTx(ctx, db, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.ExecContext(ctx, "DELETE FROM community_logs")
		return err
	})
	if err != nil {
		t.Fatalf("run scoped tx: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRunScopedTx_RollsBackWhenSettingsFail(t *testing.T) {
	db, mock := newMockDB(t, pgdialect.New())
	ctx := core.WithPrincipal(context.Background(), core.SystemPrincipal())

	mock.ExpectBegin()
	mock.ExpectExec("set_config").WillReturnError(errors.New("permission denied"))
	mock.ExpectRollback()

	called := false
	err := RunScopedTx(ctx, db, func(context.Context, bun.Tx) error {
		called = true
		return nil
	})
	if err == nil {
		t.Fatalf("expected settings failure to surface")
	}
	if called {
		t.Fatalf("expected scoped function not to run")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserStoreGet_ReadsInsideScopedSession(t *testing.T) {
	db, mock := newMockDB(t, pgdialect.New())
	store, err := NewUserStore(db)
	if err != nil {
		t.Fatalf("new user store: %v", err)
	}
	id := "6f1c1e2a-3b4d-4c5e-8f90-1a2b3c4d5e6f"
	ctx := core.WithPrincipal(context.Background(), core.Principal{UserID: id, Role: core.RoleMember})

	mock.ExpectBegin()
	mock.ExpectExec("set_config").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT .* FROM "community_users"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "role", "status"}).
			AddRow(id, "margaret", "member", "active"))
	mock.ExpectCommit()

	user, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if user.ID != id || user.Username != "margaret" {
		t.Fatalf("unexpected user %+v", user)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserStoreList_ReadsInsideScopedSession(t *testing.T) {
	db, mock := newMockDB(t, pgdialect.New())
	store, err := NewUserStore(db)
	if err != nil {
		t.Fatalf("new user store: %v", err)
	}
	ctx := core.WithPrincipal(context.Background(), core.Principal{UserID: "admin-1", Role: core.RoleAdmin})

	mock.ExpectBegin()
	mock.ExpectExec("set_config").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT .* FROM "community_users"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "username"}))
	mock.ExpectQuery(`SELECT count\(\*\)`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectCommit()

	page, err := store.List(ctx, core.UserFilter{})
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	if page.Total != 0 || len(page.Items) != 0 {
		t.Fatalf("unexpected page %+v", page)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestMapStoreError_Categories(t *testing.T) {
	if err := mapStoreError(nil, "user", "1"); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if err := mapStoreError(errors.New("sql: no rows in result set"), "user", "1"); !core.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	conflict := core.Conflict("vote already cast")
	if err := mapStoreError(conflict, "vote", "1"); err != error(conflict) {
		t.Fatalf("expected conflict to pass through, got %v", err)
	}
	mapped := core.MapError(mapStoreError(errors.New(`pq: duplicate key value violates unique constraint "x"`), "project", ""))
	if mapped.TextCode != core.ErrorConflict {
		t.Fatalf("expected conflict text code, got %q", mapped.TextCode)
	}
}

func TestLogStoreAppend_InsertsWithoutReturningOnPostgres(t *testing.T) {
	matcher := sqlmock.QueryMatcherFunc(func(expected, actual string) error {
		if strings.Contains(strings.ToUpper(actual), "RETURNING") {
			return fmt.Errorf("unexpected RETURNING clause in %q", actual)
		}
		return sqlmock.QueryMatcherRegexp.Match(expected, actual)
	})
	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(matcher))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	db := bun.NewDB(sqlDB, pgdialect.New())
	t.Cleanup(func() { _ = db.Close() })

	store, err := NewLogStore(db)
	if err != nil {
		t.Fatalf("new log store: %v", err)
	}
	ctx := core.WithPrincipal(context.Background(), core.Principal{UserID: "user-1", Role: core.RoleMember})

	mock.ExpectBegin()
	mock.ExpectExec("set_config").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO "community_logs"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	entry, err := store.Append(ctx, core.LogEntry{
		Level:   core.LogInfo,
		Source:  "bot",
		Message: "joined",
		UserID:  "user-1",
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if entry.ID == "" || entry.CreatedAt.IsZero() {
		t.Fatalf("expected id and timestamp to be assigned, got %+v", entry)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
