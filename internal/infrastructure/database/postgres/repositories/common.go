// Package repositories implements the domain repositories on PostgreSQL.
package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/turtacn/Synastry-Intelligence/internal/infrastructure/monitoring/prometheus"
)

// queryExecutor abstracts sql.DB and sql.Tx.
type queryExecutor interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// scanner abstracts sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

// observe records a query's latency under operation.  err is read when the
// deferred call runs, so pass a pointer to the named return.
func observe(m *prometheus.SynastryMetrics, operation string, start time.Time, err *error) {
	prometheus.RecordDBQuery(m, operation, time.Since(start), *err)
}
