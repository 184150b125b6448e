// Package guess implements the number-guessing game: a secret integer in
// [1, max] and a directional hint after every attempt.
package guess

import (
    "context"
    "fmt"
    "strconv"
    "strings"
    "sync"
    "time"

    "github.com/rs/zerolog"
    "github.com/rs/zerolog/log"

    "github.com/jaminalder/codex-arcade/internal/domain"
    "github.com/jaminalder/codex-arcade/internal/feedback"
    "github.com/jaminalder/codex-arcade/internal/random"
    "github.com/jaminalder/codex-arcade/internal/scores"
)

// DefaultMax is the classic 1-100 range.
const DefaultMax = 100

// Ranges are the offered upper bounds.
var Ranges = [3]int{50, 100, 1000}

const storeTimeout = 2 * time.Second

var (
    ErrNoRange    = fmt.Errorf("no range selected: %w", domain.ErrIllegalMove)
    ErrAlreadyWon = fmt.Errorf("number already found: %w", domain.ErrIllegalMove)
    ErrNotInteger = fmt.Errorf("guess is not an integer: %w", domain.ErrOutOfRange)
    ErrOutside    = fmt.Errorf("guess outside range: %w", domain.ErrOutOfRange)
    ErrBadRange   = fmt.Errorf("range must be at least 1: %w", domain.ErrOutOfRange)
)

// Hint tells the player where the secret lies relative to the guess.
type Hint uint8

const (
    // Lower means the secret is below the guess.
    Lower Hint = iota
    // Higher means the secret is above the guess.
    Higher
    Correct
)

func (h Hint) String() string {
    switch h {
    case Lower:
        return "lower"
    case Higher:
        return "higher"
    case Correct:
        return "correct"
    default:
        return "unknown"
    }
}

// MarshalText encodes the hint as its lowercase name.
func (h Hint) MarshalText() ([]byte, error) { return []byte(h.String()), nil }

// Attempt is one recorded guess.
type Attempt struct {
    Value int  `json:"value"`
    Hint  Hint `json:"hint"`
}

// Scope is the best-score key for the range [1, max].
func Scope(max int) scores.Scope {
    return scores.Scope{Game: scores.GameGuess, Variant: strconv.Itoa(max)}
}

// ParseGuess converts raw input to an integer guess.
func ParseGuess(s string) (int, error) {
    v, err := strconv.Atoi(strings.TrimSpace(s))
    if err != nil {
        return 0, fmt.Errorf("%q: %w", s, ErrNotInteger)
    }
    return v, nil
}

// State is a snapshot for presentation. Secret is only revealed once won.
type State struct {
    Max      int       `json:"max"`
    Attempts []Attempt `json:"attempts"`
    Won      bool      `json:"won"`
    Secret   int       `json:"secret,omitempty"`
    Best     int       `json:"best,omitempty"`
    HasBest  bool      `json:"hasBest"`
}

// Win describes a finished match.
type Win struct {
    Max      int  `json:"max"`
    Attempts int  `json:"attempts"`
    Best     int  `json:"best"`
    Improved bool `json:"improved"`
}

// Options configures an Engine.
type Options struct {
    Rand     random.Source
    Feedback feedback.Sink
    Scores   scores.Store
    Logger   *zerolog.Logger

    OnChange func(State)
    OnWin    func(Win)
}

// Engine holds one number-guess session.
type Engine struct {
    mu sync.Mutex

    rng      random.Source
    fb       feedback.Sink
    store    scores.Store
    log      zerolog.Logger
    onChange func(State)
    onWin    func(Win)

    max      int
    secret   int
    attempts []Attempt
    won      bool
    best     int
    hasBest  bool
}

// New returns an engine with no range selected.
func New(opts Options) *Engine {
    e := &Engine{
        rng:      opts.Rand,
        fb:       opts.Feedback,
        store:    opts.Scores,
        onChange: opts.OnChange,
        onWin:    opts.OnWin,
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
    if opts.Logger != nil {
        e.log = opts.Logger.With().Str("game", "guess").Logger()
    } else {
        e.log = log.With().Str("game", "guess").Logger()
    }
    return e
}

// SelectRange draws a new secret in [1, max] and clears the history.
func (e *Engine) SelectRange(max int) error {
    if max < 1 {
        return fmt.Errorf("max %d: %w", max, ErrBadRange)
    }
    e.mu.Lock()
    e.startLocked(max)
    e.mu.Unlock()
    e.emit([]feedback.Pattern{feedback.Pulse}, nil)
    return nil
}

// Reset draws a new secret for the current range.
func (e *Engine) Reset() error {
    e.mu.Lock()
    if e.max == 0 {
        e.mu.Unlock()
        return ErrNoRange
    }
    e.startLocked(e.max)
    e.mu.Unlock()
    e.emit([]feedback.Pattern{feedback.ResetPulse}, nil)
    return nil
}

func (e *Engine) startLocked(max int) {
    e.max = max
    e.secret = e.rng.IntN(max) + 1
    e.attempts = nil
    e.won = false
    e.best, e.hasBest = 0, false
    if e.store != nil {
        ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
        v, ok, err := e.store.Get(ctx, Scope(max))
        cancel()
        if err != nil {
            e.log.Warn().Err(err).Int("max", max).Msg("load best score")
        } else {
            e.best, e.hasBest = v, ok
        }
    }
    e.log.Debug().Int("max", max).Msg("secret drawn")
}

// GuessInput parses raw input and submits it.
func (e *Engine) GuessInput(s string) (Hint, error) {
    v, err := ParseGuess(s)
    if err != nil {
        return 0, err
    }
    return e.Guess(v)
}

// Guess records an attempt and returns its hint. Values outside [1, max]
// are rejected without being recorded.
func (e *Engine) Guess(value int) (Hint, error) {
    e.mu.Lock()
    if e.max == 0 {
        e.mu.Unlock()
        return 0, ErrNoRange
    }
    if e.won {
        e.mu.Unlock()
        return 0, ErrAlreadyWon
    }
    if value < 1 || value > e.max {
        max := e.max
        e.mu.Unlock()
        return 0, fmt.Errorf("%d not in [1, %d]: %w", value, max, ErrOutside)
    }
    hint := Correct
    switch {
    case e.secret < value:
        hint = Lower
    case e.secret > value:
        hint = Higher
    }
    e.attempts = append(e.attempts, Attempt{Value: value, Hint: hint})
    patterns := []feedback.Pattern{feedback.Pulse}
    var win *Win
    if hint == Correct {
        e.won = true
        patterns = append(patterns, feedback.GuessWinPulse)
        win = e.winLocked()
    }
    e.mu.Unlock()
    e.emit(patterns, win)
    return hint, nil
}

func (e *Engine) winLocked() *Win {
    n := len(e.attempts)
    w := &Win{Max: e.max, Attempts: n}
    if e.store != nil {
        ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
        improved, err := scores.RecordBest(ctx, e.store, Scope(e.max), n)
        cancel()
        if err != nil {
            e.log.Warn().Err(err).Int("max", e.max).Msg("record best score")
        }
        w.Improved = improved
    } else {
        w.Improved = !e.hasBest || n < e.best
    }
    if w.Improved {
        e.best, e.hasBest = n, true
    }
    w.Best = e.best
    e.log.Info().Int("max", e.max).Int("attempts", n).Int("best", e.best).
        Bool("improved", w.Improved).Msg("number found")
    return w
}

func (e *Engine) emit(patterns []feedback.Pattern, win *Win) {
    e.fb.Tap()
    for _, p := range patterns {
        e.fb.Vibrate(p)
    }
    if win != nil && e.onWin != nil {
        e.onWin(*win)
    }
    if e.onChange != nil {
        e.onChange(e.State())
    }
}

// State returns a snapshot of the engine.
func (e *Engine) State() State {
    e.mu.Lock()
    defer e.mu.Unlock()
    st := State{
        Max:      e.max,
        Attempts: append([]Attempt(nil), e.attempts...),
        Won:      e.won,
        Best:     e.best,
        HasBest:  e.hasBest,
    }
    if e.won {
        st.Secret = e.secret
    }
    return st
}
