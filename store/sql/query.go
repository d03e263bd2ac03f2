package sqlstore

import (
	"context"
	"strings"

	"github.com/goliatone/go-community/core"
	"github.com/uptrace/bun"
)

// scopedPage loads one page of records through RunScoped.
func scopedPage[R any, T any](
	ctx context.Context,
	db *bun.DB,
	page core.PageRequest,
	build func(q *bun.SelectQuery) *bun.SelectQuery,
	convert func(*R) T,
) (core.Page[T], error) {
	page = page.Normalize()
	var records []R
	total := 0
	err := RunScoped(ctx, db, func(ctx context.Context, idb bun.IDB) error {
		query := idb.NewSelect().Model(&records)
		if build != nil {
			query = build(query)
		}
		count, err := query.Limit(page.Limit()).Offset(page.Offset()).ScanAndCount(ctx)
		total = count
		return err
	})
	if err != nil {
		return core.Page[T]{}, err
	}
	return core.NewPage(mapRecords(records, convert), total, page), nil
}

// scopedGet loads a single record by id through RunScoped.
func scopedGet[R any](ctx context.Context, db *bun.DB, column string, value string, record *R) error {
	return RunScoped(ctx, db, func(ctx context.Context, idb bun.IDB) error {
		return idb.NewSelect().
			Model(record).
			Where("?TableAlias.? = ?", bun.Ident(column), strings.TrimSpace(value)).
			Limit(1).
			Scan(ctx)
	})
}

func likePattern(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	replacer := strings.NewReplacer(`%`, `\%`, `_`, `\_`)
	return "%" + replacer.Replace(value) + "%"
}

// deleteByID removes one row and reports not found when nothing matched.
func deleteByID[R any](ctx context.Context, db *bun.DB, resource string, id string) error {
	id = strings.TrimSpace(id)
	if !isUUID(id) {
		return core.NotFound(resource, id)
	}
	err := RunScopedTx(ctx, db, func(ctx context.Context, tx bun.Tx) error {
		result, err := tx.NewDelete().
			Model((*R)(nil)).
			Where("id = ?", id).
			Exec(ctx)
		if err != nil {
			return err
		}
		return requireAffected(result, resource, id)
	})
	return mapStoreError(err, resource, id)
}
