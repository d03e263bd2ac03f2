// Package migrations resolves the embedded community SQL migrations for a
// database dialect and registers them with go-persistence-bun.
package migrations

import (
	"fmt"
	"io/fs"
	"sort"
	"strings"

	community "github.com/goliatone/go-community"
	persistence "github.com/goliatone/go-persistence-bun"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

const rootPath = "data/sql/migrations"

// Source is the migration set for one dialect. Versions lists the migration
// names without the .up.sql suffix, in apply order.
type Source struct {
	Dialect  string
	Path     string
	FS       fs.FS
	Versions []string
}

// Sources resolves the postgres and sqlite migration sets under root, or
// under the embedded filesystem when root is nil. Every up migration must
// ship with a down migration.
func Sources(root fs.FS) ([]Source, error) {
	if root == nil {
		root = community.GetMigrationsFS()
	}
	base, err := fs.Sub(root, rootPath)
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve %s: %w", rootPath, err)
	}
	sqliteFS, err := fs.Sub(base, DialectSQLite)
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve sqlite migrations: %w", err)
	}

	sources := []Source{
		{Dialect: DialectPostgres, Path: rootPath, FS: base},
		{Dialect: DialectSQLite, Path: rootPath + "/" + DialectSQLite, FS: sqliteFS},
	}
	for i := range sources {
		versions, err := pairedVersions(sources[i].FS)
		if err != nil {
			return nil, fmt.Errorf("migrations: %s: %w", sources[i].Path, err)
		}
		sources[i].Versions = versions
	}
	return sources, nil
}

// ForDialect returns the embedded migration set for dialect.
func ForDialect(dialect string) (Source, error) {
	dialect = strings.TrimSpace(strings.ToLower(dialect))
	sources, err := Sources(nil)
	if err != nil {
		return Source{}, err
	}
	for _, source := range sources {
		if source.Dialect == dialect {
			return source, nil
		}
	}
	return Source{}, fmt.Errorf("migrations: unsupported dialect %q", dialect)
}

// RegisterFor hands the migrations for dialect to client. They run on the
// next client.Migrate.
func RegisterFor(client *persistence.Client, dialect string) (Source, error) {
	if client == nil {
		return Source{}, fmt.Errorf("migrations: persistence client is required")
	}
	source, err := ForDialect(dialect)
	if err != nil {
		return Source{}, err
	}
	client.RegisterSQLMigrations(source.FS)
	return source, nil
}

// DialectForDriver maps a database/sql driver name to a migration dialect.
func DialectForDriver(driver string) (string, error) {
	switch strings.TrimSpace(strings.ToLower(driver)) {
	case "postgres", "pg", "pgx":
		return DialectPostgres, nil
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	default:
		return "", fmt.Errorf("migrations: unsupported driver %q", driver)
	}
}

func pairedVersions(fsys fs.FS) ([]string, error) {
	ups, err := fs.Glob(fsys, "*.up.sql")
	if err != nil {
		return nil, err
	}
	if len(ups) == 0 {
		return nil, fmt.Errorf("no *.up.sql files")
	}
	versions := make([]string, 0, len(ups))
	for _, up := range ups {
		version := strings.TrimSuffix(up, ".up.sql")
		if _, err := fs.Stat(fsys, version+".down.sql"); err != nil {
			return nil, fmt.Errorf("%s has no down migration", up)
		}
		versions = append(versions, version)
	}
	sort.Strings(versions)
	return versions, nil
}
