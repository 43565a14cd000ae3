package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// preflight runs a bounded WAL checkpoint and integrity quick_check on an
// existing catalog database before the main open path. A database that fails
// either check is renamed aside with its sidecars so Open can start with a
// fresh file instead of stalling on corruption.
func preflight(path string, timeout time.Duration) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("catalog: preflight open: %w", err)
	}
	db.SetMaxOpenConns(1)

	checkErr := quickCheck(ctx, db)
	if checkErr == nil {
		_, checkErr = db.ExecContext(ctx, "pragma wal_checkpoint(TRUNCATE)")
	}
	db.Close()

	if checkErr == nil {
		return nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("catalog: preflight timed out after %s", timeout)
	}
	if err := quarantine(path); err != nil {
		return fmt.Errorf("catalog: quarantine after %v: %w", checkErr, err)
	}
	return nil
}

func quickCheck(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx, "pragma quick_check")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		if err := rows.Scan(&status); err != nil {
			return err
		}
		if strings.TrimSpace(status) != "ok" {
			return fmt.Errorf("quick_check reported %q", status)
		}
	}
	return rows.Err()
}

// quarantine renames the database and any sidecar files to a timestamped
// .bad path.
func quarantine(path string) error {
	ts := time.Now().UTC().Format("20060102T150405Z")
	for _, p := range []string{path, path + "-wal", path + "-shm", path + "-journal"} {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := os.Rename(p, p+".bad-"+ts); err != nil {
			return err
		}
	}
	return nil
}
