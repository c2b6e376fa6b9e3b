package store

import (
	"errors"

	"github.com/lib/pq"
)

var ErrNotFound = errors.New("not found")

const uniqueViolation = pq.ErrorCode("23505")

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
