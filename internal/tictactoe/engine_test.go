package tictactoe

import (
    "errors"
    "testing"
    "time"

    "github.com/rs/zerolog"

    "github.com/jaminalder/codex-arcade/internal/domain"
    "github.com/jaminalder/codex-arcade/internal/feedback"
    "github.com/jaminalder/codex-arcade/internal/random"
    "github.com/jaminalder/codex-arcade/internal/sched"
)

// firstEmpty makes Easy deterministic: IntN always returns 0.
type firstEmpty struct{}

func (firstEmpty) IntN(int) int                { return 0 }
func (firstEmpty) Float64() float64            { return 0 }
func (firstEmpty) Shuffle(int, func(i, j int)) {}

type cues struct {
    taps     int
    patterns []feedback.Pattern
}

func (c *cues) Tap()                       { c.taps++ }
func (c *cues) Vibrate(p feedback.Pattern) { c.patterns = append(c.patterns, p) }

func (c *cues) wins() int {
    n := 0
    for _, p := range c.patterns {
        if len(p) == len(feedback.WinPulse) {
            n++
        }
    }
    return n
}

type harness struct {
    e       *Engine
    clock   *sched.Manual
    cues    *cues
    results []domain.Result
    changes int
}

func newHarness(t *testing.T, rng random.Source) *harness {
    t.Helper()
    nop := zerolog.Nop()
    h := &harness{clock: sched.NewManual(), cues: &cues{}}
    h.e = New(Options{
        Scheduler:  h.clock,
        Rand:       rng,
        Feedback:   h.cues,
        Logger:     &nop,
        OnGameOver: func(r domain.Result) { h.results = append(h.results, r) },
        OnChange:   func(State) { h.changes++ },
    })
    return h
}

// play places a human mark and lets the opponent reply.
func (h *harness) play(t *testing.T, cell int) {
    t.Helper()
    if err := h.e.PlaceMark(cell); err != nil {
        t.Fatalf("PlaceMark(%d): %v", cell, err)
    }
    h.clock.Advance(DefaultOpponentDelay)
}

func TestNewEngineWaitsForDifficulty(t *testing.T) {
    h := newHarness(t, firstEmpty{})
    st := h.e.State()
    if st.Phase != SelectingDifficulty {
        t.Fatalf("expected selecting_difficulty, got %v", st.Phase)
    }
    if err := h.e.PlaceMark(0); !errors.Is(err, domain.ErrIllegalMove) {
        t.Fatalf("expected illegal move before difficulty, got %v", err)
    }
    if err := h.e.ResetGame(); !errors.Is(err, domain.ErrNoMatch) {
        t.Fatalf("expected ErrNoMatch on reset before difficulty, got %v", err)
    }
    if err := h.e.SelectDifficulty(domain.Difficulty(9)); !errors.Is(err, domain.ErrOutOfRange) {
        t.Fatalf("expected ErrOutOfRange for unknown difficulty, got %v", err)
    }
    if err := h.e.SelectDifficulty(domain.Easy); err != nil {
        t.Fatalf("SelectDifficulty: %v", err)
    }
    if h.e.State().Phase != Playing {
        t.Fatalf("expected playing after selecting difficulty")
    }
    if err := h.e.SelectDifficulty(domain.Hard); !errors.Is(err, domain.ErrIllegalMove) {
        t.Fatalf("difficulty is fixed for the match, got %v", err)
    }
}

func TestOpponentRepliesAfterDelay(t *testing.T) {
    h := newHarness(t, firstEmpty{})
    _ = h.e.SelectDifficulty(domain.Easy)
    if err := h.e.PlaceMark(4); err != nil {
        t.Fatalf("PlaceMark: %v", err)
    }
    st := h.e.State()
    if st.Phase != AwaitingOpponent || st.Board[4] != domain.X {
        t.Fatalf("expected awaiting opponent with X at 4, got %+v", st)
    }
    // Human input during the opponent's turn is rejected, not queued.
    if err := h.e.PlaceMark(0); !errors.Is(err, domain.ErrNotYourTurn) {
        t.Fatalf("expected ErrNotYourTurn, got %v", err)
    }
    if n := h.clock.Advance(DefaultOpponentDelay - time.Millisecond); n != 0 {
        t.Fatalf("opponent moved early")
    }
    h.clock.Advance(time.Millisecond)
    st = h.e.State()
    if st.Phase != Playing || st.Board[0] != domain.O || st.LastOpponentMove != 0 || st.Moves != 2 {
        t.Fatalf("expected O at first empty cell 0, got %+v", st)
    }
}

func TestIllegalMovesLeaveStateUntouched(t *testing.T) {
    h := newHarness(t, firstEmpty{})
    _ = h.e.SelectDifficulty(domain.Easy)
    h.play(t, 4)
    before := h.e.State()
    for _, tc := range []struct {
        cell int
        want error
    }{
        {4, domain.ErrOccupied},
        {0, domain.ErrOccupied},
        {-1, domain.ErrOutOfBounds},
        {9, domain.ErrOutOfBounds},
    } {
        if err := h.e.PlaceMark(tc.cell); !errors.Is(err, tc.want) {
            t.Fatalf("cell %d: expected %v, got %v", tc.cell, tc.want, err)
        }
    }
    if after := h.e.State(); after != before {
        t.Fatalf("state changed on illegal move:\n before %+v\n after  %+v", before, after)
    }
}

func TestHumanWinScoresOnce(t *testing.T) {
    h := newHarness(t, firstEmpty{})
    _ = h.e.SelectDifficulty(domain.Easy)
    // O always takes the first empty cell: 0, then 1. X completes 2-4-6.
    h.play(t, 4)
    h.play(t, 2)
    if err := h.e.PlaceMark(6); err != nil {
        t.Fatalf("winning move: %v", err)
    }
    st := h.e.State()
    if st.Phase != GameOver || st.Result.Status != domain.Win || st.Result.Winner != domain.X {
        t.Fatalf("expected human win, got %+v", st)
    }
    if h.clock.Pending() != 0 {
        t.Fatalf("no opponent reply should be scheduled after game over")
    }
    if err := h.e.PlaceMark(8); !errors.Is(err, domain.ErrGameOver) {
        t.Fatalf("expected ErrGameOver, got %v", err)
    }
    h.clock.Flush()
    st = h.e.State()
    if st.Scores.Human != 1 || st.Scores.Opponent != 0 {
        t.Fatalf("expected scores 1-0, got %+v", st.Scores)
    }
    if len(h.results) != 1 {
        t.Fatalf("expected one game-over event, got %d", len(h.results))
    }
    if h.cues.wins() != 1 {
        t.Fatalf("expected one win pulse, got %d", h.cues.wins())
    }
}

func TestResetKeepsScoresAndCancelsReply(t *testing.T) {
    h := newHarness(t, firstEmpty{})
    _ = h.e.SelectDifficulty(domain.Easy)
    h.play(t, 4)
    h.play(t, 2)
    _ = h.e.PlaceMark(6)

    if err := h.e.ResetGame(); err != nil {
        t.Fatalf("ResetGame: %v", err)
    }
    st := h.e.State()
    if st.Phase != Playing || st.Board != (domain.Board{}) || st.Moves != 0 {
        t.Fatalf("expected fresh board, got %+v", st)
    }
    if st.Scores.Human != 1 {
        t.Fatalf("reset must keep session scores, got %+v", st.Scores)
    }

    // Reset while the opponent is thinking drops the pending reply.
    _ = h.e.PlaceMark(0)
    if h.clock.Pending() != 1 {
        t.Fatalf("expected a pending reply")
    }
    _ = h.e.ResetGame()
    if h.clock.Pending() != 0 {
        t.Fatalf("reset should cancel the pending reply")
    }
    h.clock.Flush()
    if st := h.e.State(); st.Board != (domain.Board{}) || st.Phase != Playing {
        t.Fatalf("board should stay empty after reset, got %+v", st)
    }
}

func TestChangeDifficultyResetsSession(t *testing.T) {
    h := newHarness(t, firstEmpty{})
    _ = h.e.SelectDifficulty(domain.Easy)
    h.play(t, 4)
    h.play(t, 2)
    _ = h.e.PlaceMark(6)
    _ = h.e.PlaceMark(0)

    if err := h.e.ChangeDifficulty(); err != nil {
        t.Fatalf("ChangeDifficulty: %v", err)
    }
    st := h.e.State()
    if st.Phase != SelectingDifficulty || st.Scores != (Scores{}) || st.Board != (domain.Board{}) {
        t.Fatalf("expected fresh session, got %+v", st)
    }
    if err := h.e.SelectDifficulty(domain.Hard); err != nil {
        t.Fatalf("SelectDifficulty: %v", err)
    }
    if h.e.State().Difficulty != domain.Hard {
        t.Fatalf("difficulty not applied")
    }
}

func TestOpponentFailureEndsRound(t *testing.T) {
    h := newHarness(t, firstEmpty{})
    _ = h.e.SelectDifficulty(domain.Easy)
    if err := h.e.PlaceMark(0); err != nil {
        t.Fatalf("PlaceMark: %v", err)
    }
    h.e.mu.Lock()
    // Three human marks and none for the opponent cannot arise in play.
    h.e.board = domain.Board{domain.Human, domain.Human, domain.Human}
    gen := h.e.gen
    h.e.mu.Unlock()

    before := h.changes
    err := h.e.opponentTurn(gen)
    if !errors.Is(err, domain.ErrInvariantViolation) {
        t.Fatalf("expected invariant violation, got %v", err)
    }
    if st := h.e.State(); st.Phase != GameOver {
        t.Fatalf("expected game_over after failed reply, got %v", st.Phase)
    }
    if h.changes == before {
        t.Fatal("failed reply should publish a state change")
    }
    if err := h.e.ResetGame(); err != nil {
        t.Fatalf("ResetGame after failure: %v", err)
    }
    if st := h.e.State(); st.Phase != Playing || st.Board != (domain.Board{}) {
        t.Fatalf("expected fresh round, got %+v", st)
    }
}

// leaky ignores Stop so a callback can fire after the match was reset.
type leaky struct {
    fns []func()
}

type leakyTimer struct{}

func (leakyTimer) Stop() bool { return false }

func (l *leaky) AfterFunc(_ time.Duration, f func()) sched.Timer {
    l.fns = append(l.fns, f)
    return leakyTimer{}
}

func TestStaleCallbackHasNoEffect(t *testing.T) {
    nop := zerolog.Nop()
    l := &leaky{}
    e := New(Options{Scheduler: l, Rand: firstEmpty{}, Logger: &nop})
    _ = e.SelectDifficulty(domain.Easy)
    _ = e.PlaceMark(4)
    staleGen := e.State().Generation
    _ = e.ResetGame()
    _ = e.PlaceMark(8)

    // The first callback belongs to the reset match.
    l.fns[0]()
    st := e.State()
    if st.Board[0] != domain.Empty || st.Board[4] != domain.Empty || st.Phase != AwaitingOpponent {
        t.Fatalf("stale callback mutated state: %+v", st)
    }
    if err := e.opponentTurn(staleGen); !errors.Is(err, domain.ErrStaleCallback) {
        t.Fatalf("expected ErrStaleCallback, got %v", err)
    }

    // The live callback still works.
    l.fns[1]()
    st = e.State()
    if st.Board[0] != domain.O || st.Phase != Playing {
        t.Fatalf("live callback did not apply: %+v", st)
    }
    // A duplicate delivery of the live callback is also rejected.
    if err := e.opponentTurn(st.Generation); !errors.Is(err, domain.ErrStaleCallback) {
        t.Fatalf("expected duplicate delivery to be stale, got %v", err)
    }
}

// Scenario: empty board, Hard, human takes the center; the reply is a corner.
func TestHardAnswersCenterWithCorner(t *testing.T) {
    for seed := uint64(1); seed <= 20; seed++ {
        h := newHarness(t, random.New(seed))
        _ = h.e.SelectDifficulty(domain.Hard)
        h.play(t, 4)
        c := h.e.State().LastOpponentMove
        if c != 0 && c != 2 && c != 6 && c != 8 {
            t.Fatalf("seed %d: hard answered center with %d", seed, c)
        }
    }
}

func TestRandomHumanNeverBeatsHard(t *testing.T) {
    human := random.New(2024)
    h := newHarness(t, random.New(7))
    _ = h.e.SelectDifficulty(domain.Hard)
    for game := 0; game < 200; game++ {
        for h.e.State().Phase == Playing {
            empty := h.e.State().Board.EmptyCells()
            h.play(t, random.Pick(human, empty))
        }
        st := h.e.State()
        if st.Result.Winner == domain.Human {
            t.Fatalf("game %d: human beat hard: %v", game, st.Board)
        }
        _ = h.e.ResetGame()
    }
    st := h.e.State()
    if st.Scores.Human != 0 {
        t.Fatalf("human scored against hard: %+v", st.Scores)
    }
    if len(h.results) != 200 {
        t.Fatalf("expected 200 game-over events, got %d", len(h.results))
    }
    if st.Scores.Opponent == 0 {
        t.Fatalf("a random human should lose some games to hard")
    }
}

func TestFeedbackCues(t *testing.T) {
    h := newHarness(t, firstEmpty{})
    _ = h.e.SelectDifficulty(domain.Easy)
    taps := h.cues.taps
    h.play(t, 4)
    if h.cues.taps != taps+1 {
        t.Fatalf("human move should tap once, taps=%d", h.cues.taps)
    }
    last := h.cues.patterns[len(h.cues.patterns)-1]
    if len(last) != 1 || last[0] != feedback.Pulse[0] {
        t.Fatalf("routine move should pulse once, got %v", last)
    }
    if h.changes == 0 {
        t.Fatalf("OnChange never fired")
    }
}
