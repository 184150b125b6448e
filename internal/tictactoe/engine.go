// Package tictactoe runs a human-versus-AI tic-tac-toe match.
//
// The engine moves through SelectingDifficulty -> Playing ->
// AwaitingOpponent -> Playing ... -> GameOver, and back to Playing on
// reset. The opponent's reply is a scheduled callback tagged with the
// match generation; resetting bumps the generation so a late callback has
// no effect.
package tictactoe

import (
    "fmt"
    "sync"
    "time"

    "github.com/rs/zerolog"
    "github.com/rs/zerolog/log"

    "github.com/jaminalder/codex-arcade/internal/ai"
    "github.com/jaminalder/codex-arcade/internal/domain"
    "github.com/jaminalder/codex-arcade/internal/feedback"
    "github.com/jaminalder/codex-arcade/internal/random"
    "github.com/jaminalder/codex-arcade/internal/sched"
)

// DefaultOpponentDelay is how long the opponent "thinks" before replying.
const DefaultOpponentDelay = 500 * time.Millisecond

// Phase is the engine's state-machine position.
type Phase uint8

const (
    SelectingDifficulty Phase = iota
    Playing
    AwaitingOpponent
    GameOver
)

func (p Phase) String() string {
    switch p {
    case SelectingDifficulty:
        return "selecting_difficulty"
    case Playing:
        return "playing"
    case AwaitingOpponent:
        return "awaiting_opponent"
    case GameOver:
        return "game_over"
    default:
        return "unknown"
    }
}

// MarshalText encodes the phase as its snake_case name.
func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// Scores are the session win counters. Draws count for nobody.
type Scores struct {
    Human    int `json:"human"`
    Opponent int `json:"opponent"`
}

// State is a snapshot of the engine for presentation.
type State struct {
    Phase            Phase             `json:"phase"`
    Difficulty       domain.Difficulty `json:"difficulty"`
    Board            domain.Board      `json:"board"`
    Result           domain.Result     `json:"result"`
    Scores           Scores            `json:"scores"`
    Moves            int               `json:"moves"`
    LastOpponentMove int               `json:"lastOpponentMove"`
    Generation       uint64            `json:"generation"`
}

// Options configures an Engine. Zero values select sensible defaults.
type Options struct {
    Scheduler     sched.Scheduler
    Rand          random.Source
    Feedback      feedback.Sink
    OpponentDelay time.Duration
    Logger        *zerolog.Logger

    // OnChange receives a snapshot after every state change.
    OnChange func(State)
    // OnGameOver receives the terminal result once per match.
    OnGameOver func(domain.Result)
}

// Engine holds one tic-tac-toe session. It is safe for concurrent use;
// every call and scheduled callback runs to completion under one lock.
type Engine struct {
    mu sync.Mutex

    sched      sched.Scheduler
    rng        random.Source
    fb         feedback.Sink
    delay      time.Duration
    log        zerolog.Logger
    onChange   func(State)
    onGameOver func(domain.Result)

    phase      Phase
    difficulty domain.Difficulty
    board      domain.Board
    result     domain.Result
    scores     Scores
    moves      int
    lastOpp    int
    gen        uint64
    pending    sched.Timer
}

// New returns an engine waiting for a difficulty.
func New(opts Options) *Engine {
    e := &Engine{
        sched:      opts.Scheduler,
        rng:        opts.Rand,
        fb:         opts.Feedback,
        delay:      opts.OpponentDelay,
        onChange:   opts.OnChange,
        onGameOver: opts.OnGameOver,
        lastOpp:    -1,
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
    if e.delay <= 0 {
        e.delay = DefaultOpponentDelay
    }
    if opts.Logger != nil {
        e.log = opts.Logger.With().Str("game", "tictactoe").Logger()
    } else {
        e.log = log.With().Str("game", "tictactoe").Logger()
    }
    return e
}

// effects are emitted after the lock is released.
type effects struct {
    tap      bool
    patterns []feedback.Pattern
    changed  bool
    over     *domain.Result
}

func (e *Engine) emit(fx effects) {
    if fx.tap {
        e.fb.Tap()
    }
    for _, p := range fx.patterns {
        e.fb.Vibrate(p)
    }
    if fx.over != nil && e.onGameOver != nil {
        e.onGameOver(*fx.over)
    }
    if fx.changed && e.onChange != nil {
        e.onChange(e.State())
    }
}

// SelectDifficulty starts a match at d. It is only legal while selecting.
func (e *Engine) SelectDifficulty(d domain.Difficulty) error {
    if d > domain.Hard {
        return domain.ErrOutOfRange
    }
    e.mu.Lock()
    if e.phase != SelectingDifficulty {
        e.mu.Unlock()
        return domain.ErrIllegalMove
    }
    e.difficulty = d
    e.startMatchLocked()
    e.mu.Unlock()
    e.log.Debug().Stringer("difficulty", d).Msg("match started")
    e.emit(effects{tap: true, patterns: []feedback.Pattern{feedback.Pulse}, changed: true})
    return nil
}

// PlaceMark puts the human's X on cell. Illegal moves leave state untouched.
func (e *Engine) PlaceMark(cell int) error {
    e.mu.Lock()
    switch e.phase {
    case SelectingDifficulty:
        e.mu.Unlock()
        return domain.ErrNoMatch
    case GameOver:
        e.mu.Unlock()
        return domain.ErrGameOver
    case AwaitingOpponent:
        e.mu.Unlock()
        return domain.ErrNotYourTurn
    }
    if cell < 0 || cell >= len(e.board) {
        e.mu.Unlock()
        return domain.ErrOutOfBounds
    }
    if e.board[cell] != domain.Empty {
        e.mu.Unlock()
        return domain.ErrOccupied
    }
    if e.board.Next() != domain.Human {
        e.mu.Unlock()
        return domain.ErrNotYourTurn
    }

    fx := effects{tap: true, patterns: []feedback.Pattern{feedback.Pulse}, changed: true}
    e.board[cell] = domain.Human
    e.moves++
    e.settleLocked(&fx)
    gen := e.gen
    if e.phase == Playing {
        e.phase = AwaitingOpponent
        e.pending = e.sched.AfterFunc(e.delay, func() { _ = e.opponentTurn(gen) })
    }
    e.mu.Unlock()
    e.log.Debug().Int("cell", cell).Uint64("generation", gen).Msg("human placed mark")
    e.emit(fx)
    return nil
}

// opponentTurn is the scheduled reply for generation gen.
func (e *Engine) opponentTurn(gen uint64) error {
    e.mu.Lock()
    if gen != e.gen || e.phase != AwaitingOpponent {
        cur := e.gen
        e.mu.Unlock()
        e.log.Error().Err(domain.ErrStaleCallback).
            Uint64("generation", gen).Uint64("current", cur).
            Msg("opponent callback ignored")
        return domain.ErrStaleCallback
    }
    e.pending = nil
    var (
        cell int
        err  error
    )
    if !e.board.Legal() {
        err = fmt.Errorf("opponent turn on unreachable board: %w", domain.ErrInvariantViolation)
    } else if cell, err = ai.SelectMove(e.board, e.difficulty, e.rng); err != nil {
        err = fmt.Errorf("opponent turn: %w: %w", domain.ErrInvariantViolation, err)
    }
    if err != nil {
        // No reply will follow; end the round.
        e.phase = GameOver
        e.mu.Unlock()
        e.log.Error().Err(err).Msg("opponent could not move")
        e.emit(effects{changed: true})
        return err
    }
    fx := effects{changed: true}
    e.board[cell] = domain.Opponent
    e.moves++
    e.lastOpp = cell
    e.settleLocked(&fx)
    if e.phase == AwaitingOpponent {
        e.phase = Playing
    }
    d := e.difficulty
    e.mu.Unlock()
    e.log.Debug().Int("cell", cell).Stringer("difficulty", d).Msg("opponent placed mark")
    e.emit(fx)
    return nil
}

// settleLocked re-evaluates the board and handles the transition to GameOver.
func (e *Engine) settleLocked(fx *effects) {
    e.result = domain.Evaluate(e.board)
    if !e.result.Over() {
        return
    }
    e.phase = GameOver
    switch e.result.Winner {
    case domain.Human:
        e.scores.Human++
    case domain.Opponent:
        e.scores.Opponent++
    }
    if e.result.Status == domain.Win {
        fx.patterns = append(fx.patterns, feedback.WinPulse)
    }
    r := e.result
    fx.over = &r
    e.log.Info().Stringer("status", r.Status).Stringer("winner", r.Winner).
        Int("human", e.scores.Human).Int("opponent", e.scores.Opponent).
        Msg("match over")
}

// startMatchLocked clears the board and invalidates any pending reply.
func (e *Engine) startMatchLocked() {
    e.cancelLocked()
    e.board = domain.Board{}
    e.result = domain.Result{}
    e.moves = 0
    e.lastOpp = -1
    e.phase = Playing
}

func (e *Engine) cancelLocked() {
    e.gen++
    if e.pending != nil {
        e.pending.Stop()
        e.pending = nil
    }
}

// ResetGame starts a new match at the same difficulty, keeping scores.
func (e *Engine) ResetGame() error {
    e.mu.Lock()
    if e.phase == SelectingDifficulty {
        e.mu.Unlock()
        return domain.ErrNoMatch
    }
    e.startMatchLocked()
    e.mu.Unlock()
    e.emit(effects{tap: true, patterns: []feedback.Pattern{feedback.ResetPulse}, changed: true})
    return nil
}

// ChangeDifficulty ends the session: scores reset and a new difficulty
// must be selected.
func (e *Engine) ChangeDifficulty() error {
    e.mu.Lock()
    e.cancelLocked()
    e.board = domain.Board{}
    e.result = domain.Result{}
    e.moves = 0
    e.lastOpp = -1
    e.scores = Scores{}
    e.phase = SelectingDifficulty
    e.mu.Unlock()
    e.emit(effects{tap: true, patterns: []feedback.Pattern{feedback.BackPulse}, changed: true})
    return nil
}

// Close cancels any pending opponent reply.
func (e *Engine) Close() {
    e.mu.Lock()
    defer e.mu.Unlock()
    e.cancelLocked()
}

// State returns a snapshot of the engine.
func (e *Engine) State() State {
    e.mu.Lock()
    defer e.mu.Unlock()
    return State{
        Phase:            e.phase,
        Difficulty:       e.difficulty,
        Board:            e.board,
        Result:           e.result,
        Scores:           e.scores,
        Moves:            e.moves,
        LastOpponentMove: e.lastOpp,
        Generation:       e.gen,
    }
}
