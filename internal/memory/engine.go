// Package memory implements the card-pair matching game.
//
// Each grid variant deals pairCount symbol pairs face down. Flipping a
// second card counts one move and starts a timed resolution: a pair stays
// matched, a mismatch flips back after a longer pause. Completing the
// board records the move count as the best score for the grid when it
// improves on the stored value.
package memory

import (
    "context"
    "fmt"
    "strings"
    "sync"
    "time"

    "github.com/rs/zerolog"
    "github.com/rs/zerolog/log"

    "github.com/jaminalder/codex-arcade/internal/domain"
    "github.com/jaminalder/codex-arcade/internal/feedback"
    "github.com/jaminalder/codex-arcade/internal/random"
    "github.com/jaminalder/codex-arcade/internal/sched"
    "github.com/jaminalder/codex-arcade/internal/scores"
)

// Display delays before a flipped pair resolves.
const (
    DefaultMatchDelay    = 500 * time.Millisecond
    DefaultMismatchDelay = 1000 * time.Millisecond
)

// storeTimeout bounds each score store call.
const storeTimeout = 2 * time.Second

// Errors returned by FlipCard and SelectGrid.
var (
    ErrNoGrid          = fmt.Errorf("no grid selected: %w", domain.ErrIllegalMove)
    ErrUnknownCard     = fmt.Errorf("unknown card: %w", domain.ErrIllegalMove)
    ErrResolving       = fmt.Errorf("two cards already face up: %w", domain.ErrIllegalMove)
    ErrCardUnavailable = fmt.Errorf("card already face up or matched: %w", domain.ErrIllegalMove)
    ErrComplete        = fmt.Errorf("board complete: %w", domain.ErrIllegalMove)
    ErrUnknownGrid     = fmt.Errorf("unknown grid: %w", domain.ErrOutOfRange)
)

// Symbols is the fixed card alphabet; a grid uses its first pairCount entries.
var Symbols = [12]string{"🎮", "🎯", "🎲", "🎪", "🎨", "🎭", "🎸", "🎺", "🎻", "🎹", "🎬", "🎳"}

// Grid names a board layout.
type Grid string

const (
    Grid4x4 Grid = "4x4"
    Grid4x5 Grid = "4x5"
    Grid4x6 Grid = "4x6"
)

// Grids lists the supported layouts, smallest first.
var Grids = [3]Grid{Grid4x4, Grid4x5, Grid4x6}

// PairCount returns the number of symbol pairs dealt for g, or 0 if g is unknown.
func (g Grid) PairCount() int {
    switch g {
    case Grid4x4:
        return 8
    case Grid4x5:
        return 10
    case Grid4x6:
        return 12
    default:
        return 0
    }
}

// ParseGrid accepts "4x4", "4x5" or "4x6" (also with "×" or uppercase X).
func ParseGrid(s string) (Grid, error) {
    norm := strings.ToLower(strings.TrimSpace(s))
    norm = strings.ReplaceAll(norm, "×", "x")
    g := Grid(norm)
    if g.PairCount() == 0 {
        return "", fmt.Errorf("grid %q: %w", s, ErrUnknownGrid)
    }
    return g, nil
}

// Scope is the best-score key for g.
func (g Grid) Scope() scores.Scope {
    return scores.Scope{Game: scores.GameMemory, Variant: string(g)}
}

// Card is one card on the table.
type Card struct {
    ID      int    `json:"id"`
    Symbol  string `json:"symbol"`
    FaceUp  bool   `json:"faceUp"`
    Matched bool   `json:"matched"`
}

// Phase is the pair-check state.
type Phase uint8

const (
    Idle Phase = iota
    Resolving
)

func (p Phase) String() string {
    if p == Resolving {
        return "resolving"
    }
    return "idle"
}

// MarshalText encodes the phase as its name.
func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// State is a snapshot of the engine for presentation.
type State struct {
    Grid         Grid   `json:"grid"`
    Phase        Phase  `json:"phase"`
    Cards        []Card `json:"cards"`
    Moves        int    `json:"moves"`
    PairCount    int    `json:"pairCount"`
    MatchedPairs int    `json:"matchedPairs"`
    Complete     bool   `json:"complete"`
    Best         int    `json:"best,omitempty"`
    HasBest      bool   `json:"hasBest"`
    Generation   uint64 `json:"generation"`
}

// Masked returns a copy with the symbols of face-down cards removed.
func (s State) Masked() State {
    out := s
    out.Cards = make([]Card, len(s.Cards))
    for i, c := range s.Cards {
        if !c.FaceUp && !c.Matched {
            c.Symbol = ""
        }
        out.Cards[i] = c
    }
    return out
}

// Completion describes a finished board.
type Completion struct {
    Grid     Grid `json:"grid"`
    Moves    int  `json:"moves"`
    Best     int  `json:"best"`
    Improved bool `json:"improved"`
}

// Options configures an Engine. Zero values select sensible defaults.
type Options struct {
    Scheduler     sched.Scheduler
    Rand          random.Source
    Feedback      feedback.Sink
    Scores        scores.Store
    MatchDelay    time.Duration
    MismatchDelay time.Duration
    Logger        *zerolog.Logger

    OnChange   func(State)
    OnComplete func(Completion)
}

// Engine holds one memory session.
type Engine struct {
    mu sync.Mutex

    sched         sched.Scheduler
    rng           random.Source
    fb            feedback.Sink
    store         scores.Store
    matchDelay    time.Duration
    mismatchDelay time.Duration
    log           zerolog.Logger
    onChange      func(State)
    onComplete    func(Completion)

    grid    Grid
    cards   []Card
    faceUp  []int
    phase   Phase
    moves   int
    matched int
    best    int
    hasBest bool
    gen     uint64
    pending sched.Timer
}

// New returns an engine with no grid selected.
func New(opts Options) *Engine {
    e := &Engine{
        sched:         opts.Scheduler,
        rng:           opts.Rand,
        fb:            opts.Feedback,
        store:         opts.Scores,
        matchDelay:    opts.MatchDelay,
        mismatchDelay: opts.MismatchDelay,
        onChange:      opts.OnChange,
        onComplete:    opts.OnComplete,
    }
    if e.sched == nil {
        e.sched = sched.Real{}
    }
    if e.rng == nil {
        rng, err := random.NewSeeded()
        if err != nil {
            rng = random.New(uint64(time.Now().UnixNano()))
        }
        e.rng = rng
    }
    if e.fb == nil {
        e.fb = feedback.Nop{}
    }
    if e.matchDelay <= 0 {
        e.matchDelay = DefaultMatchDelay
    }
    if e.mismatchDelay <= 0 {
        e.mismatchDelay = DefaultMismatchDelay
    }
    if opts.Logger != nil {
        e.log = opts.Logger.With().Str("game", "memory").Logger()
    } else {
        e.log = log.With().Str("game", "memory").Logger()
    }
    return e
}

// Deal returns a fresh shuffled deck for g. Every permutation of the pair
// multiset is equally likely given a uniform rng.
func Deal(g Grid, rng random.Source) []Card {
    n := g.PairCount()
    cards := make([]Card, 0, 2*n)
    for i := 0; i < n; i++ {
        cards = append(cards, Card{Symbol: Symbols[i]}, Card{Symbol: Symbols[i]})
    }
    rng.Shuffle(len(cards), func(i, j int) { cards[i], cards[j] = cards[j], cards[i] })
    for i := range cards {
        cards[i].ID = i
    }
    return cards
}

// SelectGrid deals a new board for g and resets the move counter.
func (e *Engine) SelectGrid(g Grid) error {
    if g.PairCount() == 0 {
        return fmt.Errorf("grid %q: %w", g, ErrUnknownGrid)
    }
    e.mu.Lock()
    e.dealLocked(g)
    e.mu.Unlock()
    e.emit(true, []feedback.Pattern{feedback.Pulse}, nil)
    return nil
}

// Reset deals a new board for the current grid.
func (e *Engine) Reset() error {
    e.mu.Lock()
    if e.grid == "" {
        e.mu.Unlock()
        return ErrNoGrid
    }
    e.dealLocked(e.grid)
    e.mu.Unlock()
    e.emit(true, []feedback.Pattern{feedback.ResetPulse}, nil)
    return nil
}

func (e *Engine) dealLocked(g Grid) {
    e.cancelLocked()
    e.grid = g
    e.cards = Deal(g, e.rng)
    e.faceUp = e.faceUp[:0]
    e.phase = Idle
    e.moves = 0
    e.matched = 0
    e.best, e.hasBest = e.loadBestLocked(g)
    e.log.Debug().Str("grid", string(g)).Int("cards", len(e.cards)).Msg("deck dealt")
}

func (e *Engine) loadBestLocked(g Grid) (int, bool) {
    if e.store == nil {
        return 0, false
    }
    ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
    defer cancel()
    v, ok, err := e.store.Get(ctx, g.Scope())
    if err != nil {
        e.log.Warn().Err(err).Str("grid", string(g)).Msg("load best score")
        return 0, false
    }
    return v, ok
}

func (e *Engine) cancelLocked() {
    e.gen++
    if e.pending != nil {
        e.pending.Stop()
        e.pending = nil
    }
}

// FlipCard turns card id face up. Flipping the second card of a pair counts
// one move and schedules the resolution.
func (e *Engine) FlipCard(id int) error {
    e.mu.Lock()
    switch {
    case e.grid == "":
        e.mu.Unlock()
        return ErrNoGrid
    case e.matched == len(e.cards):
        e.mu.Unlock()
        return ErrComplete
    case id < 0 || id >= len(e.cards):
        e.mu.Unlock()
        return ErrUnknownCard
    case len(e.faceUp) >= 2:
        e.mu.Unlock()
        return ErrResolving
    case e.cards[id].FaceUp || e.cards[id].Matched:
        e.mu.Unlock()
        return ErrCardUnavailable
    }
    e.cards[id].FaceUp = true
    e.faceUp = append(e.faceUp, id)
    patterns := []feedback.Pattern{feedback.Pulse}
    if len(e.faceUp) == 2 {
        e.moves++
        e.phase = Resolving
        a, b := e.cards[e.faceUp[0]], e.cards[e.faceUp[1]]
        match := a.Symbol == b.Symbol
        delay := e.mismatchDelay
        if match {
            delay = e.matchDelay
            patterns = append(patterns, feedback.MatchPulse)
        }
        gen := e.gen
        e.pending = e.sched.AfterFunc(delay, func() { _ = e.resolve(gen) })
    }
    e.mu.Unlock()
    e.emit(true, patterns, nil)
    return nil
}

// resolve settles the face-up pair for generation gen.
func (e *Engine) resolve(gen uint64) error {
    e.mu.Lock()
    if gen != e.gen || e.phase != Resolving || len(e.faceUp) != 2 {
        cur := e.gen
        e.mu.Unlock()
        e.log.Error().Err(domain.ErrStaleCallback).
            Uint64("generation", gen).Uint64("current", cur).
            Msg("resolution callback ignored")
        return domain.ErrStaleCallback
    }
    e.pending = nil
    i, j := e.faceUp[0], e.faceUp[1]
    if e.cards[i].Symbol == e.cards[j].Symbol {
        e.cards[i].Matched = true
        e.cards[j].Matched = true
        e.matched += 2
    } else {
        e.cards[i].FaceUp = false
        e.cards[j].FaceUp = false
    }
    e.faceUp = e.faceUp[:0]
    e.phase = Idle

    var done *Completion
    if e.matched == len(e.cards) {
        done = e.completeLocked()
    }
    e.mu.Unlock()
    e.emit(false, nil, done)
    return nil
}

func (e *Engine) completeLocked() *Completion {
    c := &Completion{Grid: e.grid, Moves: e.moves}
    if e.store != nil {
        ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
        improved, err := scores.RecordBest(ctx, e.store, e.grid.Scope(), e.moves)
        cancel()
        if err != nil {
            e.log.Warn().Err(err).Str("grid", string(e.grid)).Msg("record best score")
        }
        c.Improved = improved
    } else {
        c.Improved = !e.hasBest || e.moves < e.best
    }
    if c.Improved {
        e.best, e.hasBest = e.moves, true
    }
    c.Best = e.best
    e.log.Info().Str("grid", string(e.grid)).Int("moves", e.moves).
        Int("best", e.best).Bool("improved", c.Improved).Msg("board complete")
    return c
}

func (e *Engine) emit(tap bool, patterns []feedback.Pattern, done *Completion) {
    if tap {
        e.fb.Tap()
    }
    for _, p := range patterns {
        e.fb.Vibrate(p)
    }
    if done != nil && e.onComplete != nil {
        e.onComplete(*done)
    }
    if e.onChange != nil {
        e.onChange(e.State())
    }
}

// Close cancels any pending resolution.
func (e *Engine) Close() {
    e.mu.Lock()
    defer e.mu.Unlock()
    e.cancelLocked()
}

// State returns a snapshot of the engine, symbols included.
func (e *Engine) State() State {
    e.mu.Lock()
    defer e.mu.Unlock()
    cards := make([]Card, len(e.cards))
    copy(cards, e.cards)
    return State{
        Grid:         e.grid,
        Phase:        e.phase,
        Cards:        cards,
        Moves:        e.moves,
        PairCount:    e.grid.PairCount(),
        MatchedPairs: e.matched / 2,
        Complete:     e.grid != "" && e.matched == len(e.cards),
        Best:         e.best,
        HasBest:      e.hasBest,
        Generation:   e.gen,
    }
}
