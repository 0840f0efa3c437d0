package db

import (
	"strings"

	"github.com/teranos/tempo/errors"
)

// ErrDatabaseClosed marks work that raced a shutdown of the connection.
var ErrDatabaseClosed = errors.New("database is closed")

// IsDatabaseClosed reports whether err comes from using a closed *sql.DB.
// database/sql does not export a sentinel, so driver text is matched too.
func IsDatabaseClosed(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDatabaseClosed) {
		return true
	}
	return strings.Contains(err.Error(), "database is closed")
}
