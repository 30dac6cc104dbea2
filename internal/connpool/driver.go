package connpool

import (
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql" // registers "mysql"
	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx"
)

// driverInfo describes how a CacheDefinition's Driver field maps onto a
// database/sql driver name and how its URL should be adapted for that
// driver's DSN format.
type driverInfo struct {
	sqlDriver string
	dsn       func(url string) string
}

var registry = map[string]driverInfo{
	"postgres": {sqlDriver: "pgx", dsn: passthroughDSN},
	"postgresql": {sqlDriver: "pgx", dsn: passthroughDSN},
	"pgx": {sqlDriver: "pgx", dsn: passthroughDSN},
	"mysql": {sqlDriver: "mysql", dsn: mysqlDSN},
}

func passthroughDSN(url string) string { return url }

// mysqlDSN strips a mysql:// scheme prefix; the go-sql-driver/mysql driver
// expects a bare DSN ("user:pass@tcp(host:port)/db"), not a URL.
func mysqlDSN(url string) string {
	return strings.TrimPrefix(url, "mysql://")
}

// resolveDriver looks up the database/sql driver name and DSN transform for
// a CacheDefinition's Driver field. It fails fast, before any network I/O,
// when the driver is unrecognized.
func resolveDriver(driver string) (driverInfo, error) {
	info, ok := registry[strings.ToLower(driver)]
	if !ok {
		return driverInfo{}, fmt.Errorf("%w: unrecognized driver %q", ErrConnection, driver)
	}
	return info, nil
}
