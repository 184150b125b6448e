package scores

import (
    "context"
    "database/sql"
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "strings"
    "time"

    _ "modernc.org/sqlite"
)

const schema = `CREATE TABLE IF NOT EXISTS best_scores (
    game       TEXT    NOT NULL,
    variant    TEXT    NOT NULL,
    best       INTEGER NOT NULL,
    updated_at INTEGER NOT NULL,
    PRIMARY KEY (game, variant)
);`

// SQLite persists best scores in a single table.
type SQLite struct {
    db *sql.DB
}

// OpenSQLite opens (and creates if missing) the database at path and
// applies the schema. ":memory:" is accepted for tests.
func OpenSQLite(path string) (*SQLite, error) {
    if strings.TrimSpace(path) == "" {
        return nil, errors.New("storage path is required")
    }
    dsn := path
    if path != ":memory:" {
        clean := filepath.Clean(path)
        if dir := filepath.Dir(clean); dir != "." && dir != "" {
            if err := os.MkdirAll(dir, 0o755); err != nil {
                return nil, fmt.Errorf("mkdir %s: %w", dir, err)
            }
        }
        dsn = clean + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
    }
    db, err := sql.Open("sqlite", dsn)
    if err != nil {
        return nil, fmt.Errorf("open sqlite db: %w", err)
    }
    // A single connection keeps ":memory:" databases shared across calls.
    db.SetMaxOpenConns(1)
    if err := db.Ping(); err != nil {
        _ = db.Close()
        return nil, fmt.Errorf("ping sqlite db: %w", err)
    }
    if _, err := db.Exec(schema); err != nil {
        _ = db.Close()
        return nil, fmt.Errorf("apply schema: %w", err)
    }
    return &SQLite{db: db}, nil
}

// Close closes the SQLite handle.
func (s *SQLite) Close() error {
    if s == nil || s.db == nil {
        return nil
    }
    return s.db.Close()
}

// Get returns the best score for scope.
func (s *SQLite) Get(ctx context.Context, scope Scope) (int, bool, error) {
    var best int
    err := s.db.QueryRowContext(ctx,
        `SELECT best FROM best_scores WHERE game=? AND variant=?`,
        scope.Game, scope.Variant,
    ).Scan(&best)
    if errors.Is(err, sql.ErrNoRows) {
        return 0, false, nil
    }
    if err != nil {
        return 0, false, fmt.Errorf("query best %s: %w", scope, err)
    }
    return best, true, nil
}

// Set upserts the best score for scope.
func (s *SQLite) Set(ctx context.Context, scope Scope, value int) error {
    if err := scope.Validate(); err != nil {
        return err
    }
    _, err := s.db.ExecContext(ctx, `
        INSERT INTO best_scores (game, variant, best, updated_at)
        VALUES (?, ?, ?, ?)
        ON CONFLICT(game, variant) DO UPDATE SET best=excluded.best, updated_at=excluded.updated_at`,
        scope.Game, scope.Variant, value, time.Now().UTC().UnixMilli(),
    )
    if err != nil {
        return fmt.Errorf("upsert best %s: %w", scope, err)
    }
    return nil
}

// SetIfLower inserts the score or lowers the stored one in a single
// conditional upsert.
func (s *SQLite) SetIfLower(ctx context.Context, scope Scope, value int) (bool, error) {
    if err := scope.Validate(); err != nil {
        return false, err
    }
    res, err := s.db.ExecContext(ctx, `
        INSERT INTO best_scores (game, variant, best, updated_at)
        VALUES (?, ?, ?, ?)
        ON CONFLICT(game, variant) DO UPDATE SET best=excluded.best, updated_at=excluded.updated_at
        WHERE excluded.best < best_scores.best`,
        scope.Game, scope.Variant, value, time.Now().UTC().UnixMilli(),
    )
    if err != nil {
        return false, fmt.Errorf("upsert best %s: %w", scope, err)
    }
    n, err := res.RowsAffected()
    if err != nil {
        return false, fmt.Errorf("rows affected %s: %w", scope, err)
    }
    return n > 0, nil
}

// All returns every stored record ordered by game then variant.
func (s *SQLite) All(ctx context.Context) (map[Scope]int, error) {
    rows, err := s.db.QueryContext(ctx, `SELECT game, variant, best FROM best_scores ORDER BY game, variant`)
    if err != nil {
        return nil, fmt.Errorf("list best scores: %w", err)
    }
    defer rows.Close()
    out := make(map[Scope]int)
    for rows.Next() {
        var sc Scope
        var best int
        if err := rows.Scan(&sc.Game, &sc.Variant, &best); err != nil {
            return nil, err
        }
        out[sc] = best
    }
    return out, rows.Err()
}
