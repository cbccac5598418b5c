package service

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

// maxSerializableAttempts bounds reruns of a transaction aborted by PostgreSQL
// because it raced with a concurrent writer.
const maxSerializableAttempts = 3

var serializableTx = &sql.TxOptions{Isolation: sql.LevelSerializable}

// isSerializationFailure reports whether err carries a serialization failure
// or a deadlock, both of which succeed when the transaction is rerun.
func isSerializationFailure(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == "40001" || pqErr.Code == "40P01"
}
