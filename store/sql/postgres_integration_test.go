package sqlstore_test

import (
	"context"
	"database/sql"
	"os"
	"strings"
	"testing"

	"github.com/goliatone/go-community/core"
	communitymigrations "github.com/goliatone/go-community/migrations"
	sqlstore "github.com/goliatone/go-community/store/sql"
	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun/dialect/pgdialect"
)

// postgresDSNEnv names a database reached as a non-superuser role, since
// superusers bypass row level security even when it is forced.
const postgresDSNEnv = "COMMUNITY_TEST_POSTGRES_DSN"

func newPostgresStores(t *testing.T) core.StoreProvider {
	t.Helper()
	dsn := strings.TrimSpace(os.Getenv(postgresDSNEnv))
	if dsn == "" {
		t.Skipf("%s not set", postgresDSNEnv)
	}

	sqlDB, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	client, err := persistence.New(testPersistenceConfig{driver: "postgres", server: dsn}, sqlDB, pgdialect.New())
	if err != nil {
		_ = sqlDB.Close()
		t.Fatalf("new persistence client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	if _, err := communitymigrations.RegisterFor(client, communitymigrations.DialectPostgres); err != nil {
		t.Fatalf("register migrations: %v", err)
	}
	if err := client.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	return factory
}

func memberContext(userID string) context.Context {
	return core.WithPrincipal(context.Background(), core.Principal{UserID: userID, Role: core.RoleMember})
}

func TestPostgresPolicies_MemberAppendsLogWithoutReadAccess(t *testing.T) {
	stores := newPostgresStores(t)
	member := mustCreateUser(t, stores, "pg_member_"+uuid.NewString()[:8], core.RoleMember)

	entry, err := stores.LogStore().Append(memberContext(member.ID), core.LogEntry{
		Level:   core.LogInfo,
		Source:  "bot",
		Message: "member wrote a log",
		UserID:  member.ID,
		Fields:  map[string]any{"channel": "general"},
	})
	if err != nil {
		t.Fatalf("member append: %v", err)
	}

	hidden, err := stores.LogStore().List(memberContext(member.ID), core.LogFilter{UserID: member.ID})
	if err != nil {
		t.Fatalf("member list: %v", err)
	}
	if len(hidden.Items) != 0 {
		t.Fatalf("expected log rows hidden from members, got %d", len(hidden.Items))
	}

	visible, err := stores.LogStore().List(adminContext(), core.LogFilter{UserID: member.ID})
	if err != nil {
		t.Fatalf("admin list: %v", err)
	}
	if len(visible.Items) != 1 || visible.Items[0].ID != entry.ID {
		t.Fatalf("expected admin to see the appended entry, got %+v", visible.Items)
	}
}

func TestPostgresPolicies_MemberSoftDeletesSelf(t *testing.T) {
	stores := newPostgresStores(t)
	member := mustCreateUser(t, stores, "pg_self_"+uuid.NewString()[:8], core.RoleMember)

	if err := stores.UserStore().SoftDelete(memberContext(member.ID), member.ID); err != nil {
		t.Fatalf("self soft delete: %v", err)
	}
	if _, err := stores.UserStore().Get(adminContext(), member.ID); !core.IsNotFound(err) {
		t.Fatalf("expected deleted user to be gone, got %v", err)
	}
}
