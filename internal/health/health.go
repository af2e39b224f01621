package health

import (
	"database/sql"
	"time"

	"github.com/heptiolabs/healthcheck"
)

const (
	dbPingTimeout      = 2 * time.Second
	maxGoroutines      = 10000
	livenessCheckName  = "goroutine-threshold"
	readinessCheckName = "database"
)

// NewHandler serves /live and /ready. Liveness only guards against runaway
// goroutines; readiness also requires the database to answer a ping, since
// without it no message can be persisted.
func NewHandler(db *sql.DB) healthcheck.Handler {
	h := healthcheck.NewHandler()
	h.AddLivenessCheck(livenessCheckName, healthcheck.GoroutineCountCheck(maxGoroutines))
	if db != nil {
		h.AddReadinessCheck(readinessCheckName, healthcheck.DatabasePingCheck(db, dbPingTimeout))
	}
	return h
}
