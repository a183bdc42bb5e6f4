package store

import (
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// sqlite pragmas: foreign keys on, WAL journal, wait on a busy writer, and
// BEGIN IMMEDIATE so a transaction holds the write lock from its first read.
var sqliteParams = []string{
	"_foreign_keys=on",
	"_journal_mode=WAL",
	"_busy_timeout=5000",
	"_txlock=immediate",
}

// Money columns are decimal(15,2), which sqlite stores with NUMERIC affinity and
// hands back as float64. Fifteen significant digits survive that round trip
// exactly, and all arithmetic happens on decimal.Decimal in Go, so every amount
// a decimal(15,2) column can hold reads back unchanged.
func sqliteDialector(dsn string) gorm.Dialector {
	return sqlite.Open(SQLiteDSN(dsn))
}

// SQLiteDSN appends the pragmas the DSN does not already set.
func SQLiteDSN(dsn string) string {
	if dsn == "" {
		dsn = "coop.db"
	}
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}

	var missing []string
	for _, p := range sqliteParams {
		key := p[:strings.Index(p, "=")+1]
		if !strings.Contains(dsn, key) {
			missing = append(missing, p)
		}
	}
	if len(missing) == 0 {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(missing, "&")
}
