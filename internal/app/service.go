package app

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "strings"
    "sync"
    "time"

    "github.com/google/uuid"
    "github.com/rs/zerolog"
    "github.com/rs/zerolog/log"

    "github.com/jaminalder/codex-arcade/internal/domain"
    "github.com/jaminalder/codex-arcade/internal/feedback"
    "github.com/jaminalder/codex-arcade/internal/guess"
    "github.com/jaminalder/codex-arcade/internal/memory"
    "github.com/jaminalder/codex-arcade/internal/random"
    "github.com/jaminalder/codex-arcade/internal/scores"
    "github.com/jaminalder/codex-arcade/internal/sched"
    "github.com/jaminalder/codex-arcade/internal/tictactoe"
)

// Errors exposed by the service layer.
var (
    ErrNotFound    = errors.New("session not found")
    ErrWrongKind   = fmt.Errorf("session runs another game: %w", domain.ErrIllegalMove)
    ErrUnknownKind = fmt.Errorf("unknown game: %w", domain.ErrOutOfRange)
)

// subscriberBuffer holds one action's worth of events: a tap, a few
// vibration cues, a terminal event and the new state.
const subscriberBuffer = 16

// Kind names the game a session runs.
type Kind string

const (
    KindTicTacToe Kind = scores.GameTicTacToe
    KindMemory    Kind = scores.GameMemory
    KindGuess     Kind = scores.GameGuess
)

// ParseKind accepts the lowercase game names.
func ParseKind(s string) (Kind, error) {
    switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
    case KindTicTacToe, KindMemory, KindGuess:
        return k, nil
    }
    return "", fmt.Errorf("%q: %w", s, ErrUnknownKind)
}

// Event types pushed to subscribers.
const (
    EventState    = "state"
    EventTap      = "tap"
    EventVibrate  = "vibrate"
    EventGameOver = "game_over"
    EventComplete = "complete"
    EventWin      = "win"
)

// Event is the broadcast envelope, encoded as JSON.
type Event struct {
    Type    string  `json:"type"`
    Session string  `json:"session"`
    State   any     `json:"state,omitempty"`
    Pattern []int64 `json:"pattern,omitempty"`
    Result  any     `json:"result,omitempty"`
}

// Snapshot is a copy of a session for presentation. State holds the
// engine snapshot for the session's kind; memory symbols are masked while
// face down.
type Snapshot struct {
    ID      string    `json:"id"`
    Kind    Kind      `json:"kind"`
    Created time.Time `json:"created"`
    Updated time.Time `json:"updated"`
    State   any       `json:"state"`
}

type session struct {
    id      string
    kind    Kind
    created time.Time
    updated time.Time

    ttt *tictactoe.Engine
    mem *memory.Engine
    num *guess.Engine
}

func (ss *session) state() any {
    switch ss.kind {
    case KindTicTacToe:
        return ss.ttt.State()
    case KindMemory:
        return ss.mem.State().Masked()
    default:
        return ss.num.State()
    }
}

func (ss *session) close() {
    switch ss.kind {
    case KindTicTacToe:
        ss.ttt.Close()
    case KindMemory:
        ss.mem.Close()
    }
}

type subscriber struct {
    mu     sync.Mutex
    ch     chan []byte
    closed bool
}

// send reports false when the buffer is full.
func (s *subscriber) send(b []byte) bool {
    s.mu.Lock()
    defer s.mu.Unlock()
    if s.closed {
        return true
    }
    select {
    case s.ch <- b:
        return true
    default:
        return false
    }
}

func (s *subscriber) close() {
    s.mu.Lock()
    defer s.mu.Unlock()
    if !s.closed {
        s.closed = true
        close(s.ch)
    }
}

// Options configures a Service. Zero values select the engine defaults.
type Options struct {
    Scheduler     sched.Scheduler
    Scores        scores.Store
    Settings      *feedback.Settings
    OpponentDelay time.Duration
    MatchDelay    time.Duration
    MismatchDelay time.Duration
    Logger        *zerolog.Logger
    // NewRand returns the randomness source for a new session.
    NewRand func() (random.Source, error)
}

// Service manages game sessions and their subscribers.
type Service struct {
    mu       sync.Mutex
    sessions map[string]*session
    subs     map[string]map[*subscriber]struct{}

    opts     Options
    settings *feedback.Settings
    log      zerolog.Logger
}

// NewService creates a service with no sessions.
func NewService(opts Options) *Service {
    if opts.Scheduler == nil {
        opts.Scheduler = sched.Real{}
    }
    if opts.Scores == nil {
        opts.Scores = scores.NewMemoryStore()
    }
    if opts.Settings == nil {
        opts.Settings = feedback.NewSettings(true, true)
    }
    if opts.NewRand == nil {
        opts.NewRand = func() (random.Source, error) { return random.NewSeeded() }
    }
    s := &Service{
        sessions: make(map[string]*session),
        subs:     make(map[string]map[*subscriber]struct{}),
        opts:     opts,
        settings: opts.Settings,
    }
    if opts.Logger != nil {
        s.log = opts.Logger.With().Str("component", "app").Logger()
    } else {
        s.log = log.With().Str("component", "app").Logger()
    }
    return s
}

// Settings returns the shared sound and vibration toggles.
func (s *Service) Settings() *feedback.Settings { return s.settings }

// Best returns the stored best score for scope.
func (s *Service) Best(ctx context.Context, scope scores.Scope) (int, bool, error) {
    if err := scope.Validate(); err != nil {
        return 0, false, err
    }
    return s.opts.Scores.Get(ctx, scope)
}

// CreateSession creates and registers a session running kind.
func (s *Service) CreateSession(kind Kind) (*Snapshot, error) {
    kind, err := ParseKind(string(kind))
    if err != nil {
        return nil, err
    }
    rng, err := s.opts.NewRand()
    if err != nil {
        return nil, fmt.Errorf("seed session: %w", err)
    }
    id := uuid.NewString()
    now := time.Now()
    ss := &session{id: id, kind: kind, created: now, updated: now}
    lg := s.log.With().Str("session", id).Logger()
    sink := feedback.Gate(s.settings, feedback.Funcs{
        OnTap: func() { s.publish(id, Event{Type: EventTap}) },
        OnVibrate: func(p feedback.Pattern) {
            s.publish(id, Event{Type: EventVibrate, Pattern: p.Millis()})
        },
    })

    switch kind {
    case KindTicTacToe:
        ss.ttt = tictactoe.New(tictactoe.Options{
            Scheduler:     s.opts.Scheduler,
            Rand:          rng,
            Feedback:      sink,
            OpponentDelay: s.opts.OpponentDelay,
            Logger:        &lg,
            OnChange:      func(st tictactoe.State) { s.publish(id, Event{Type: EventState, State: st}) },
            OnGameOver:    func(r domain.Result) { s.publish(id, Event{Type: EventGameOver, Result: r}) },
        })
    case KindMemory:
        ss.mem = memory.New(memory.Options{
            Scheduler:     s.opts.Scheduler,
            Rand:          rng,
            Feedback:      sink,
            Scores:        s.opts.Scores,
            MatchDelay:    s.opts.MatchDelay,
            MismatchDelay: s.opts.MismatchDelay,
            Logger:        &lg,
            OnChange:      func(st memory.State) { s.publish(id, Event{Type: EventState, State: st.Masked()}) },
            OnComplete:    func(c memory.Completion) { s.publish(id, Event{Type: EventComplete, Result: c}) },
        })
    case KindGuess:
        ss.num = guess.New(guess.Options{
            Rand:     rng,
            Feedback: sink,
            Scores:   s.opts.Scores,
            Logger:   &lg,
            OnChange: func(st guess.State) { s.publish(id, Event{Type: EventState, State: st}) },
            OnWin:    func(w guess.Win) { s.publish(id, Event{Type: EventWin, Result: w}) },
        })
    }

    s.mu.Lock()
    s.sessions[id] = ss
    s.mu.Unlock()
    s.log.Info().Str("session", id).Str("kind", string(kind)).Msg("session created")
    snap := s.snapshot(ss)
    return &snap, nil
}

// Get returns a snapshot of the session if present.
func (s *Service) Get(id string) (*Snapshot, bool) {
    ss, err := s.lookup(id, "")
    if err != nil {
        return nil, false
    }
    snap := s.snapshot(ss)
    return &snap, true
}

// Delete stops the session's pending timers and closes its subscribers.
func (s *Service) Delete(id string) error {
    s.mu.Lock()
    ss, ok := s.sessions[id]
    if !ok {
        s.mu.Unlock()
        return ErrNotFound
    }
    delete(s.sessions, id)
    set := s.subs[id]
    delete(s.subs, id)
    s.mu.Unlock()

    ss.close()
    for sub := range set {
        sub.close()
    }
    return nil
}

// Close deletes every session.
func (s *Service) Close() {
    s.mu.Lock()
    ids := make([]string, 0, len(s.sessions))
    for id := range s.sessions {
        ids = append(ids, id)
    }
    s.mu.Unlock()
    for _, id := range ids {
        _ = s.Delete(id)
    }
}

// SelectDifficulty starts a tic-tac-toe match.
func (s *Service) SelectDifficulty(id string, d domain.Difficulty) (*Snapshot, error) {
    return s.run(id, KindTicTacToe, func(ss *session) error { return ss.ttt.SelectDifficulty(d) })
}

// PlaceMark places the human's mark on cell.
func (s *Service) PlaceMark(id string, cell int) (*Snapshot, error) {
    return s.run(id, KindTicTacToe, func(ss *session) error { return ss.ttt.PlaceMark(cell) })
}

// ResetTicTacToe starts a new match at the same difficulty.
func (s *Service) ResetTicTacToe(id string) (*Snapshot, error) {
    return s.run(id, KindTicTacToe, func(ss *session) error { return ss.ttt.ResetGame() })
}

// ChangeDifficulty returns to difficulty selection.
func (s *Service) ChangeDifficulty(id string) (*Snapshot, error) {
    return s.run(id, KindTicTacToe, func(ss *session) error { return ss.ttt.ChangeDifficulty() })
}

// SelectGrid deals a memory deck for grid.
func (s *Service) SelectGrid(id string, g memory.Grid) (*Snapshot, error) {
    return s.run(id, KindMemory, func(ss *session) error { return ss.mem.SelectGrid(g) })
}

// FlipCard flips a memory card.
func (s *Service) FlipCard(id string, card int) (*Snapshot, error) {
    return s.run(id, KindMemory, func(ss *session) error { return ss.mem.FlipCard(card) })
}

// ResetMemory reshuffles the current memory grid.
func (s *Service) ResetMemory(id string) (*Snapshot, error) {
    return s.run(id, KindMemory, func(ss *session) error { return ss.mem.Reset() })
}

// SelectRange draws a secret in [1, max].
func (s *Service) SelectRange(id string, max int) (*Snapshot, error) {
    return s.run(id, KindGuess, func(ss *session) error { return ss.num.SelectRange(max) })
}

// Guess submits a number and returns the hint alongside the snapshot.
func (s *Service) Guess(id string, value int) (guess.Hint, *Snapshot, error) {
    var hint guess.Hint
    snap, err := s.run(id, KindGuess, func(ss *session) error {
        h, err := ss.num.Guess(value)
        hint = h
        return err
    })
    return hint, snap, err
}

// GuessInput parses raw user input and submits it as a guess.
func (s *Service) GuessInput(id, raw string) (guess.Hint, *Snapshot, error) {
    var hint guess.Hint
    snap, err := s.run(id, KindGuess, func(ss *session) error {
        h, err := ss.num.GuessInput(raw)
        hint = h
        return err
    })
    return hint, snap, err
}

// ResetGuess draws a new secret in the current range.
func (s *Service) ResetGuess(id string) (*Snapshot, error) {
    return s.run(id, KindGuess, func(ss *session) error { return ss.num.Reset() })
}

// run applies op to the session's engine without holding the service lock,
// since engines publish back into the service.
func (s *Service) run(id string, kind Kind, op func(*session) error) (*Snapshot, error) {
    ss, err := s.lookup(id, kind)
    if err != nil {
        return nil, err
    }
    if err := op(ss); err != nil {
        s.log.Debug().Err(err).Str("session", id).Msg("action rejected")
        return nil, err
    }
    snap := s.snapshot(ss)
    return &snap, nil
}

func (s *Service) lookup(id string, kind Kind) (*session, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    ss, ok := s.sessions[id]
    if !ok {
        return nil, ErrNotFound
    }
    if kind != "" && ss.kind != kind {
        return nil, fmt.Errorf("%s session %s: %w", ss.kind, id, ErrWrongKind)
    }
    return ss, nil
}

func (s *Service) snapshot(ss *session) Snapshot {
    st := ss.state()
    s.mu.Lock()
    defer s.mu.Unlock()
    return Snapshot{ID: ss.id, Kind: ss.kind, Created: ss.created, Updated: ss.updated, State: st}
}

// publish encodes ev and fans it out; slow subscribers are dropped.
func (s *Service) publish(id string, ev Event) {
    ev.Session = id
    payload, err := json.Marshal(ev)
    if err != nil {
        s.log.Error().Err(err).Str("session", id).Str("event", ev.Type).Msg("encode event")
        return
    }

    s.mu.Lock()
    if ss, ok := s.sessions[id]; ok && ev.Type == EventState {
        ss.updated = time.Now()
    }
    subs := s.copySubsLocked(id)
    s.mu.Unlock()

    var toDrop []*subscriber
    for sub := range subs {
        if !sub.send(payload) {
            sub.close()
            toDrop = append(toDrop, sub)
        }
    }
    if len(toDrop) > 0 {
        s.mu.Lock()
        for _, sub := range toDrop {
            if set, ok := s.subs[id]; ok {
                delete(set, sub)
            }
        }
        s.mu.Unlock()
        s.log.Warn().Str("session", id).Int("dropped", len(toDrop)).Msg("dropped slow subscribers")
    }
}

// Subscribe registers a subscriber for a session. Returns a channel of
// JSON-encoded events and an unsubscribe func.
func (s *Service) Subscribe(ctx context.Context, id string) (<-chan []byte, func(), error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    if _, ok := s.sessions[id]; !ok {
        return nil, nil, ErrNotFound
    }
    set := s.subs[id]
    if set == nil {
        set = make(map[*subscriber]struct{})
        s.subs[id] = set
    }
    sub := &subscriber{ch: make(chan []byte, subscriberBuffer)}
    set[sub] = struct{}{}

    unsubOnce := &sync.Once{}
    unsub := func() {
        unsubOnce.Do(func() {
            s.mu.Lock()
            if set, ok := s.subs[id]; ok {
                delete(set, sub)
            }
            s.mu.Unlock()
            sub.close()
        })
    }
    go func() {
        <-ctx.Done()
        unsub()
    }()
    return sub.ch, unsub, nil
}

func (s *Service) copySubsLocked(id string) map[*subscriber]struct{} {
    out := make(map[*subscriber]struct{})
    if set, ok := s.subs[id]; ok {
        for k := range set {
            out[k] = struct{}{}
        }
    }
    return out
}
