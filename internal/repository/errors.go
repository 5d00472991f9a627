package repository

import (
	"errors"

	"github.com/lib/pq"
)

// SQLSTATE коды postgres, которые репозитории различают
const (
	pqUndefinedTable = "42P01"
)

// isUndefinedTable - таблица еще не создана.
// Для чтения это то же самое, что пустая таблица.
func isUndefinedTable(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pqUndefinedTable
	}
	return false
}
