package ai

import (
    "errors"
    "testing"

    "github.com/jaminalder/codex-arcade/internal/domain"
    "github.com/jaminalder/codex-arcade/internal/random"
)

// stubRand returns fixed draws so heuristic branches can be forced.
type stubRand struct {
    f float64
    n int
}

func (s stubRand) IntN(n int) int               { return s.n % n }
func (s stubRand) Float64() float64             { return s.f }
func (s stubRand) Shuffle(int, func(i, j int)) {}

func board(t *testing.T, s string) domain.Board {
    t.Helper()
    var b domain.Board
    for i, r := range s {
        switch r {
        case 'X':
            b[i] = domain.X
        case 'O':
            b[i] = domain.O
        }
    }
    return b
}

func TestSelectMoveOnFullBoardIsInvariantViolation(t *testing.T) {
    full := board(t, "XOXXOOOXX")
    for _, d := range domain.Difficulties {
        if _, err := SelectMove(full, d, random.New(1)); !errors.Is(err, domain.ErrInvariantViolation) {
            t.Fatalf("%v: expected invariant violation, got %v", d, err)
        }
    }
}

func TestEasyPicksOnlyEmptyCells(t *testing.T) {
    rng := random.New(3)
    b := board(t, "XO.X.O..X")
    seen := make(map[int]bool)
    for i := 0; i < 500; i++ {
        c, err := SelectMove(b, domain.Easy, rng)
        if err != nil {
            t.Fatalf("SelectMove: %v", err)
        }
        if b[c] != domain.Empty {
            t.Fatalf("easy picked occupied cell %d", c)
        }
        seen[c] = true
    }
    if len(seen) != len(b.EmptyCells()) {
        t.Fatalf("easy should reach every empty cell, saw %v", seen)
    }
}

func TestSameSeedSameMoves(t *testing.T) {
    b := board(t, "X........")
    a, c := random.New(99), random.New(99)
    for _, d := range domain.Difficulties {
        for i := 0; i < 20; i++ {
            m1, _ := SelectMove(b, d, a)
            m2, _ := SelectMove(b, d, c)
            if m1 != m2 {
                t.Fatalf("%v draw %d: %d vs %d", d, i, m1, m2)
            }
        }
    }
}

func TestMediumRandomBranch(t *testing.T) {
    // Coin lands on the random branch: IntN(len(empty)) decides.
    b := board(t, "XX..O....")
    got, err := SelectMove(b, domain.Medium, stubRand{f: 0.1, n: 0})
    if err != nil {
        t.Fatalf("SelectMove: %v", err)
    }
    if got != 2 {
        t.Fatalf("random branch with IntN=0 should pick first empty cell 2, got %d", got)
    }
    got, _ = SelectMove(b, domain.Medium, stubRand{f: 0.1, n: 3})
    if got != 6 {
        t.Fatalf("random branch with IntN=3 should pick 6, got %d", got)
    }
}

func TestMediumHeuristicOrder(t *testing.T) {
    cases := []struct {
        name  string
        board string
        want  []int
    }{
        {"takes win over block", "XX.OO...X", []int{5}},
        {"blocks human", "XX..O....", []int{2}},
        {"blocks column", "X..X.O...", []int{6}},
        {"takes center", "X........", []int{4}},
        {"takes corner", "O...X...X", []int{2, 6}},
        {"any corner", "....X....", []int{0, 2, 6, 8}},
        {"falls back to edge", "XOX.X.OXO", []int{3, 5}},
    }
    for _, tc := range cases {
        b := board(t, tc.board)
        for n := 0; n < 4; n++ {
            got, err := SelectMove(b, domain.Medium, stubRand{f: 0.99, n: n})
            if err != nil {
                t.Fatalf("%s: %v", tc.name, err)
            }
            ok := false
            for _, w := range tc.want {
                ok = ok || got == w
            }
            if !ok {
                t.Fatalf("%s: got %d, want one of %v", tc.name, got, tc.want)
            }
        }
    }
}

func TestMediumCornerTieIsRandom(t *testing.T) {
    b := board(t, "....X....")
    rng := random.New(11)
    seen := make(map[int]bool)
    for i := 0; i < 400; i++ {
        c, err := SelectMove(b, domain.Medium, rng)
        if err != nil {
            t.Fatalf("SelectMove: %v", err)
        }
        seen[c] = true
    }
    for _, c := range domain.Corners {
        if !seen[c] {
            t.Fatalf("corner %d never chosen: %v", c, seen)
        }
    }
}

// With exactly one blocking cell and no winning cell for O, the heuristic
// branch always blocks.
func TestMediumAlwaysBlocksSingleThreat(t *testing.T) {
    checked := 0
    var walk func(b domain.Board, turn domain.Cell)
    walk = func(b domain.Board, turn domain.Cell) {
        if domain.Evaluate(b).Over() {
            return
        }
        if turn == domain.O {
            win := completing(b, domain.O)
            block := completing(b, domain.X)
            if len(win) == 0 && len(block) == 1 {
                for n := 0; n < 3; n++ {
                    got, err := SelectMove(b, domain.Medium, stubRand{f: 0.5, n: n})
                    if err != nil {
                        t.Fatalf("SelectMove: %v", err)
                    }
                    if got != block[0] {
                        t.Fatalf("board %v: medium played %d instead of blocking %d", b, got, block[0])
                    }
                }
                checked++
            }
        }
        for _, i := range b.EmptyCells() {
            b[i] = turn
            walk(b, turn.Other())
            b[i] = domain.Empty
        }
    }
    walk(domain.Board{}, domain.X)
    if checked == 0 {
        t.Fatalf("no single-threat positions visited")
    }
}

func TestHardAnswersCenterWithCorner(t *testing.T) {
    b := board(t, "....X....")
    moves := BestMoves(b)
    if len(moves) != 4 {
        t.Fatalf("expected the four corners, got %v", moves)
    }
    for i, want := range domain.Corners {
        if moves[i] != want {
            t.Fatalf("expected corners %v, got %v", domain.Corners, moves)
        }
    }
    rng := random.New(5)
    for i := 0; i < 50; i++ {
        c, err := SelectMove(b, domain.Hard, rng)
        if err != nil {
            t.Fatalf("SelectMove: %v", err)
        }
        if c != 0 && c != 2 && c != 6 && c != 8 {
            t.Fatalf("hard answered center with edge %d", c)
        }
    }
}

func TestHardPrefersImmediateWin(t *testing.T) {
    // O can win at 5 now or block at 2; winning now scores highest.
    b := board(t, "XX.OO.X..")
    moves := BestMoves(b)
    if len(moves) != 1 || moves[0] != 5 {
        t.Fatalf("expected immediate win at 5, got %v", moves)
    }
    if v := value(b, 5); v != winScore {
        t.Fatalf("immediate win should score %d, got %d", winScore, v)
    }
}

func TestHardBlocks(t *testing.T) {
    b := board(t, "XX..O....")
    moves := BestMoves(b)
    if len(moves) != 1 || moves[0] != 2 {
        t.Fatalf("expected forced block at 2, got %v", moves)
    }
}

func TestBestMovesFullBoard(t *testing.T) {
    if moves := BestMoves(board(t, "XOXXOOOXX")); moves != nil {
        t.Fatalf("expected nil on full board, got %v", moves)
    }
}

// Enumerates every human strategy against every tied Hard choice: the
// human never wins.
func TestHardNeverLoses(t *testing.T) {
    games := 0
    var humanTurn func(b domain.Board)
    var aiTurn func(b domain.Board)
    humanTurn = func(b domain.Board) {
        r := domain.Evaluate(b)
        if r.Over() {
            if r.Winner == domain.Human {
                t.Fatalf("human won against hard: %v", b)
            }
            games++
            return
        }
        for _, i := range b.EmptyCells() {
            b[i] = domain.Human
            aiTurn(b)
            b[i] = domain.Empty
        }
    }
    aiTurn = func(b domain.Board) {
        r := domain.Evaluate(b)
        if r.Over() {
            if r.Winner == domain.Human {
                t.Fatalf("human won against hard: %v", b)
            }
            games++
            return
        }
        for _, i := range BestMoves(b) {
            b[i] = domain.Opponent
            humanTurn(b)
            b[i] = domain.Empty
        }
    }
    humanTurn(domain.Board{})
    if games == 0 {
        t.Fatalf("no games enumerated")
    }
}
