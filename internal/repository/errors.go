// Package repository holds the MySQL-backed stores for users, roles, their
// capability edges and issued refresh tokens.  Lookups that find nothing
// return sql.ErrNoRows unchanged so services can tell "absent" from
// "broken".
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrEmailExists is returned when creating a user whose email is already
// held by a non-deleted user.
var ErrEmailExists = errors.New("email already exists")

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

// IsDuplicate reports whether err is a MySQL unique-key violation.
func IsDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}
