package domain

// Cell represents a board cell state.
type Cell uint8

const (
    Empty Cell = iota
    X
    O
)

// The human always plays X and moves first; the opponent plays O.
const (
    Human    = X
    Opponent = O
)

// Center is the index of the middle cell.
const Center = 4

// Corners lists the corner indices in ascending order.
var Corners = [4]int{0, 2, 6, 8}

// Lines are the eight winning triples: rows, cols, diags.
var Lines = [8][3]int{
    // rows
    {0, 1, 2}, {3, 4, 5}, {6, 7, 8},
    // cols
    {0, 3, 6}, {1, 4, 7}, {2, 5, 8},
    // diags
    {0, 4, 8}, {2, 4, 6},
}

// String returns "X", "O" or "" for an empty cell.
func (c Cell) String() string {
    switch c {
    case X:
        return "X"
    case O:
        return "O"
    default:
        return ""
    }
}

// Other returns the opposing mark. Empty maps to Empty.
func (c Cell) Other() Cell {
    switch c {
    case X:
        return O
    case O:
        return X
    default:
        return Empty
    }
}

// MarshalText renders the cell as its symbol so boards encode as ["X","","O",...].
func (c Cell) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// Board is a fixed 3x3 board stored row-major.
type Board [9]Cell

// Wins reports whether side holds any complete line.
func (b Board) Wins(side Cell) bool {
    if side == Empty {
        return false
    }
    for _, ln := range Lines {
        if b[ln[0]] == side && b[ln[1]] == side && b[ln[2]] == side {
            return true
        }
    }
    return false
}

// Winner returns the mark of the first complete line, if any.
func (b Board) Winner() (Cell, bool) {
    for _, ln := range Lines {
        m := b[ln[0]]
        if m != Empty && m == b[ln[1]] && m == b[ln[2]] {
            return m, true
        }
    }
    return Empty, false
}

// Full reports whether no empty cell remains.
func (b Board) Full() bool {
    for _, c := range b {
        if c == Empty {
            return false
        }
    }
    return true
}

// IsDraw is true when the board is full and nobody has a line.
func (b Board) IsDraw() bool {
    _, won := b.Winner()
    return !won && b.Full()
}

// EmptyCells returns the unoccupied indices in ascending order.
func (b Board) EmptyCells() []int {
    out := make([]int, 0, len(b))
    for i, c := range b {
        if c == Empty {
            out = append(out, i)
        }
    }
    return out
}

// Counts returns how many X and O marks are on the board.
func (b Board) Counts() (x, o int) {
    for _, c := range b {
        switch c {
        case X:
            x++
        case O:
            o++
        }
    }
    return x, o
}

// Legal reports whether the board respects strict alternation with X first.
func (b Board) Legal() bool {
    x, o := b.Counts()
    return x == o || x == o+1
}

// Next returns the mark due to move under X-first alternation.
func (b Board) Next() Cell {
    x, o := b.Counts()
    if x > o {
        return O
    }
    return X
}

// Status is the coarse state of a board.
type Status uint8

const (
    InProgress Status = iota
    Win
    Draw
)

func (s Status) String() string {
    switch s {
    case Win:
        return "win"
    case Draw:
        return "draw"
    default:
        return "in_progress"
    }
}

// MarshalText encodes the status as its lowercase name.
func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Result is derived from a board and never stored alongside it.
type Result struct {
    Status Status `json:"status"`
    Winner Cell   `json:"winner"`
}

// Over reports whether the game has ended.
func (r Result) Over() bool { return r.Status != InProgress }

// Evaluate derives the result of b.
func Evaluate(b Board) Result {
    if m, ok := b.Winner(); ok {
        return Result{Status: Win, Winner: m}
    }
    if b.Full() {
        return Result{Status: Draw}
    }
    return Result{Status: InProgress}
}
