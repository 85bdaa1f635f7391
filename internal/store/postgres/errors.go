package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/RezaEskandarii/tablequeue/custom_errors"
)

func isNoRows(err error) bool { return errors.Is(err, sql.ErrNoRows) }

// unavailable tags a database failure so callers can match custom_errors.ErrPersistenceUnavailable.
func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, custom_errors.ErrPersistenceUnavailable, err)
}
