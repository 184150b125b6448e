// Package scores persists the best score of each (game, variant) scope.
//
// Lower is better for every game that records a score: memory counts
// moves, number guess counts attempts.
package scores

import (
    "context"
    "errors"
    "fmt"
    "strings"
    "sync"
)

// Game identifiers used as the first half of a scope.
const (
    GameTicTacToe = "tictactoe"
    GameMemory    = "memory"
    GameGuess     = "guess"
)

// Scope keys a best score by game and variant (grid size, range, difficulty).
type Scope struct {
    Game    string `json:"game"`
    Variant string `json:"variant"`
}

func (s Scope) String() string { return s.Game + "/" + s.Variant }

// Validate rejects scopes with blank parts.
func (s Scope) Validate() error {
    if strings.TrimSpace(s.Game) == "" {
        return errors.New("scope game is required")
    }
    if strings.TrimSpace(s.Variant) == "" {
        return errors.New("scope variant is required")
    }
    return nil
}

// Store defines the persistence interface for best scores.
type Store interface {
    // Get returns the stored value and whether one exists.
    Get(ctx context.Context, scope Scope) (int, bool, error)
    // Set overwrites the stored value.
    Set(ctx context.Context, scope Scope, value int) error
    // SetIfLower stores value only when no record exists or value is
    // strictly lower, as one atomic step. It reports whether it wrote.
    SetIfLower(ctx context.Context, scope Scope, value int) (bool, error)
}

// RecordBest stores value when no record exists or value is strictly lower.
// It reports whether the record changed.
func RecordBest(ctx context.Context, st Store, scope Scope, value int) (bool, error) {
    if st == nil {
        return false, nil
    }
    changed, err := st.SetIfLower(ctx, scope, value)
    if err != nil {
        return false, fmt.Errorf("record best %s: %w", scope, err)
    }
    return changed, nil
}

// memory is an in-memory map-based Store implementation.
type memory struct {
    mu   sync.RWMutex // guards best
    best map[Scope]int
}

// NewMemoryStore constructs a new in-memory Store. State is lost on restart.
func NewMemoryStore() Store {
    return &memory{best: make(map[Scope]int)}
}

func (m *memory) Get(ctx context.Context, scope Scope) (int, bool, error) {
    if err := ctx.Err(); err != nil {
        return 0, false, err
    }
    m.mu.RLock()
    defer m.mu.RUnlock()
    v, ok := m.best[scope]
    return v, ok, nil
}

func (m *memory) Set(ctx context.Context, scope Scope, value int) error {
    if err := ctx.Err(); err != nil {
        return err
    }
    if err := scope.Validate(); err != nil {
        return err
    }
    m.mu.Lock()
    defer m.mu.Unlock()
    m.best[scope] = value
    return nil
}

func (m *memory) SetIfLower(ctx context.Context, scope Scope, value int) (bool, error) {
    if err := ctx.Err(); err != nil {
        return false, err
    }
    if err := scope.Validate(); err != nil {
        return false, err
    }
    m.mu.Lock()
    defer m.mu.Unlock()
    if cur, ok := m.best[scope]; ok && value >= cur {
        return false, nil
    }
    m.best[scope] = value
    return true, nil
}
