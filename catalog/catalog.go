// Package catalog stores display metadata for message classes: names,
// acronyms, and descriptions keyed by class (DBC-style enrichment). The
// catalog is read on the render path from an in-memory cache; SQLite only
// backs it between runs. Bus traffic itself is never written here.
package catalog

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/agnivade/levenshtein"
	"github.com/zeebo/xxh3"
	"howett.net/plist"

	_ "modernc.org/sqlite"
)

// Definition is the stored metadata for one message class.
type Definition struct {
	Class       string
	Name        string `plist:"Name"`
	Acronym     string `plist:"Acronym"`
	Description string `plist:"Description"`
}

// Catalog is the SQLite-backed class metadata store with an in-memory read
// cache.
type Catalog struct {
	db *sql.DB

	mu      sync.RWMutex
	entries map[string]Definition
}

// Open opens (or creates) the catalog database and loads the cache.
func Open(path string) (*Catalog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("catalog: mkdir: %w", err)
	}
	if err := preflight(path, 2*time.Second); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open db: %w", err)
	}
	if _, err := db.Exec(`pragma journal_mode=WAL; pragma synchronous=NORMAL; pragma busy_timeout=2000`); err != nil {
		db.Close()
		return nil, fmt.Errorf("catalog: pragmas: %w", err)
	}
	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	c := &Catalog{db: db, entries: make(map[string]Definition)}
	if err := c.reloadCache(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

func ensureSchema(db *sql.DB) error {
	schema := `
	create table if not exists classes (
		class text primary key,
		name text,
		acronym text,
		description text
	);
	create table if not exists meta (
		key text primary key,
		value text
	);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("catalog: schema: %w", err)
	}
	return nil
}

// ImportPlist loads a class dictionary plist (class -> definition) into the
// catalog. The file's xxh3 checksum is compared against the last import so
// unchanged files are skipped without touching the database.
func (c *Catalog) ImportPlist(path string) (imported int, skipped bool, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false, fmt.Errorf("catalog: read plist: %w", err)
	}
	sum := strconv.FormatUint(xxh3.Hash(data), 16)
	if prev, ok := c.metaValue("plist_checksum"); ok && prev == sum {
		return 0, true, nil
	}

	var raw map[string]Definition
	if _, err := plist.Unmarshal(data, &raw); err != nil {
		return 0, false, fmt.Errorf("catalog: decode plist: %w", err)
	}

	tx, err := c.db.Begin()
	if err != nil {
		return 0, false, fmt.Errorf("catalog: begin tx: %w", err)
	}
	stmt, err := tx.Prepare(`insert into classes(class, name, acronym, description) values(?,?,?,?)
		on conflict(class) do update set name=excluded.name, acronym=excluded.acronym, description=excluded.description`)
	if err != nil {
		tx.Rollback()
		return 0, false, fmt.Errorf("catalog: prepare: %w", err)
	}
	for class, def := range raw {
		class = strings.TrimSpace(class)
		if class == "" {
			continue
		}
		if _, err := stmt.Exec(class, def.Name, def.Acronym, def.Description); err != nil {
			stmt.Close()
			tx.Rollback()
			return 0, false, fmt.Errorf("catalog: upsert %s: %w", class, err)
		}
		imported++
	}
	stmt.Close()
	if _, err := tx.Exec(`insert into meta(key, value) values('plist_checksum', ?)
		on conflict(key) do update set value=excluded.value`, sum); err != nil {
		tx.Rollback()
		return 0, false, fmt.Errorf("catalog: store checksum: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("catalog: commit: %w", err)
	}

	if err := c.reloadCache(); err != nil {
		return imported, false, err
	}
	return imported, false, nil
}

func (c *Catalog) reloadCache() error {
	rows, err := c.db.Query(`select class, name, acronym, description from classes`)
	if err != nil {
		return fmt.Errorf("catalog: load cache: %w", err)
	}
	defer rows.Close()

	entries := make(map[string]Definition)
	for rows.Next() {
		var d Definition
		if err := rows.Scan(&d.Class, &d.Name, &d.Acronym, &d.Description); err != nil {
			return fmt.Errorf("catalog: scan: %w", err)
		}
		entries[d.Class] = d
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("catalog: iterate: %w", err)
	}

	c.mu.Lock()
	c.entries = entries
	c.mu.Unlock()
	return nil
}

func (c *Catalog) metaValue(key string) (string, bool) {
	var value string
	err := c.db.QueryRow(`select value from meta where key = ?`, key).Scan(&value)
	if err != nil {
		return "", false
	}
	return value, true
}

// Lookup returns the definition for a class.
func (c *Catalog) Lookup(class string) (Definition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.entries[class]
	return d, ok
}

// Suggest returns the catalogued class closest to the given one by edit
// distance, for "did you mean" hints on lookup misses. Distances above 2
// are not worth suggesting.
func (c *Catalog) Suggest(class string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	best := ""
	bestDist := 3
	for candidate := range c.entries {
		d := levenshtein.ComputeDistance(class, candidate)
		if d < bestDist || (d == bestDist && best != "" && candidate < best) {
			best = candidate
			bestDist = d
		}
	}
	return best, best != ""
}

// DisplayName renders "class (ACRONYM)" when the class is catalogued, or
// the bare class otherwise.
func (c *Catalog) DisplayName(class string) string {
	if c == nil {
		return class
	}
	if d, ok := c.Lookup(class); ok && d.Acronym != "" {
		return class + " (" + d.Acronym + ")"
	}
	return class
}

// Len returns the number of catalogued classes.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close releases the database handle.
func (c *Catalog) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}
