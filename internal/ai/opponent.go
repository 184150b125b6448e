// Package ai selects the opponent's move on a 3x3 board.
//
// Easy plays uniformly at random. Medium flips a fair coin between Easy
// and a fixed heuristic chain. Hard runs exhaustive minimax and never
// loses.
package ai

import (
    "fmt"
    "math"

    "github.com/jaminalder/codex-arcade/internal/domain"
    "github.com/jaminalder/codex-arcade/internal/random"
)

// ErrNoMoves is returned when asked to move on a board with no empty cell.
var ErrNoMoves = fmt.Errorf("no legal move available: %w", domain.ErrInvariantViolation)

// mediumRandomChance is the probability that Medium plays like Easy.
const mediumRandomChance = 0.5

// SelectMove returns the cell the opponent (O) plays on b at difficulty d.
// Ties are broken through rng.
func SelectMove(b domain.Board, d domain.Difficulty, rng random.Source) (int, error) {
    empty := b.EmptyCells()
    if len(empty) == 0 {
        return -1, ErrNoMoves
    }
    switch d {
    case domain.Easy:
        return random.Pick(rng, empty), nil
    case domain.Medium:
        return medium(b, empty, rng), nil
    case domain.Hard:
        return random.Pick(rng, BestMoves(b)), nil
    default:
        return -1, fmt.Errorf("difficulty %v: %w", d, domain.ErrOutOfRange)
    }
}

func medium(b domain.Board, empty []int, rng random.Source) int {
    if rng.Float64() < mediumRandomChance {
        return random.Pick(rng, empty)
    }
    if win := completing(b, domain.Opponent); len(win) > 0 {
        return random.Pick(rng, win)
    }
    if block := completing(b, domain.Human); len(block) > 0 {
        return random.Pick(rng, block)
    }
    if b[domain.Center] == domain.Empty {
        return domain.Center
    }
    corners := make([]int, 0, len(domain.Corners))
    for _, c := range domain.Corners {
        if b[c] == domain.Empty {
            corners = append(corners, c)
        }
    }
    if len(corners) > 0 {
        return random.Pick(rng, corners)
    }
    return random.Pick(rng, empty)
}

// completing lists the empty cells where side would complete a line.
func completing(b domain.Board, side domain.Cell) []int {
    var out []int
    for _, i := range b.EmptyCells() {
        b[i] = side
        if b.Wins(side) {
            out = append(out, i)
        }
        b[i] = domain.Empty
    }
    return out
}

// Scores for terminal positions. Depth is the number of plies below the
// root move, so faster wins and slower losses score higher.
const (
    winScore  = 10
    drawScore = 0
)

// BestMoves returns every root move for O with the maximal minimax value,
// in ascending cell order. It returns nil on a full board.
func BestMoves(b domain.Board) []int {
    best := math.MinInt
    var moves []int
    for i := range b {
        if b[i] != domain.Empty {
            continue
        }
        v := value(b, i)
        switch {
        case v > best:
            best = v
            moves = append(moves[:0], i)
        case v == best:
            moves = append(moves, i)
        }
    }
    return moves
}

// value returns the minimax value of playing O at cell on b.
func value(b domain.Board, cell int) int {
    b[cell] = domain.Opponent
    return minimax(&b, 0, false)
}

// minimax scores the position after a move was just made. maximizing is
// true when O is to move.
func minimax(b *domain.Board, depth int, maximizing bool) int {
    if m, ok := b.Winner(); ok {
        if m == domain.Opponent {
            return winScore - depth
        }
        return depth - winScore
    }
    if b.Full() {
        return drawScore
    }
    mark := domain.Human
    best := math.MaxInt
    if maximizing {
        mark = domain.Opponent
        best = math.MinInt
    }
    for i := range b {
        if b[i] != domain.Empty {
            continue
        }
        b[i] = mark
        v := minimax(b, depth+1, !maximizing)
        b[i] = domain.Empty
        if (maximizing && v > best) || (!maximizing && v < best) {
            best = v
        }
    }
    return best
}
