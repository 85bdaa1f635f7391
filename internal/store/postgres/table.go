package postgres

import (
	sq "github.com/Masterminds/squirrel"
	"github.com/RezaEskandarii/tablequeue/internal/constants"
	"github.com/lib/pq"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var stopMarkersTable = constants.SchemaName + ".stop_markers"

// TableName returns the schema-qualified, quoted table of a queue.
func TableName(prefix, queue string) string {
	return constants.SchemaName + "." + pq.QuoteIdentifier(prefix+queue)
}
