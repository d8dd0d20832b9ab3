package sqlitekv

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

// lockWait bounds how long a write waits on SQLITE_BUSY. Concurrent visit
// requests write seen sets and fallback edges through the same file, and
// without a wait the second writer fails instead of queueing.
const lockWait = 5 * time.Second

// Open opens or creates the on-device state file at path.
//
// The KeyValues table has no references to enforce, so the connection sets
// busy_timeout rather than foreign_keys. WAL keeps readers of pending visits
// off the writer's lock.
func Open(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, errors.Wrapf(err, "create state dir for %s", path)
	}

	q := url.Values{}
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", lockWait.Milliseconds()))
	db, err := sql.Open("sqlite", "file:"+path+"?"+q.Encode())
	if err != nil {
		return nil, errors.Wrapf(err, "open state db %s", path)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.Wrapf(err, "ping state db %s", path)
	}
	return db, nil
}
