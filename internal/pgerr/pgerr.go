// Package pgerr classifies the Postgres error signatures the schema-drift
// handling relies on.
package pgerr

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// undefinedColumnCode is SQLSTATE 42703.
const undefinedColumnCode = "42703"

// UndefinedColumn reports whether err is Postgres telling us a referenced
// column does not exist on the target table. Both the SQLSTATE and the
// message shape are checked because pooled proxies sometimes rewrap the
// error without the code.
func UndefinedColumn(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == undefinedColumnCode
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "column") && strings.Contains(msg, "does not exist")
}
