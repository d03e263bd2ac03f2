package sqlstore

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/goliatone/go-community/core"
	goerrors "github.com/goliatone/go-errors"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// mapStoreError converts driver and repository errors into community errors.
// Driver errors are inspected first since repository errors wrap them.
func mapStoreError(err error, resource string, id string) error {
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Name() {
		case "unique_violation":
			return core.Conflict(resource + " already exists")
		case "foreign_key_violation":
			return core.BadInput("referenced resource does not exist")
		case "check_violation", "not_null_violation", "invalid_text_representation":
			return core.BadInput("invalid " + resource)
		case "insufficient_privilege":
			return core.Forbidden("not allowed to access " + resource)
		}
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) && liteErr.Code == sqlite3.ErrConstraint {
		switch liteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return core.Conflict(resource + " already exists")
		case sqlite3.ErrConstraintForeignKey:
			return core.BadInput("referenced resource does not exist")
		case sqlite3.ErrConstraintCheck, sqlite3.ErrConstraintNotNull:
			return core.BadInput("invalid " + resource)
		}
	}

	if errors.Is(err, sql.ErrNoRows) {
		return core.NotFound(resource, id)
	}

	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		switch rich.Category {
		case goerrors.CategoryNotFound:
			return core.NotFound(resource, id)
		case goerrors.CategoryInternal, goerrors.CategoryOperation, goerrors.CategoryExternal:
		default:
			return err
		}
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "no rows") || strings.Contains(msg, "not found") {
		return core.NotFound(resource, id)
	}
	return core.MapError(err)
}

func requireAffected(result sql.Result, resource string, id string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return core.NotFound(resource, id)
	}
	return nil
}
