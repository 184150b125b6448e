package domain

import (
    "errors"
    "fmt"
)

// Error kinds shared by every engine. Callers test with errors.Is.
var (
    // ErrIllegalMove means the action violates the current state machine; state is unchanged.
    ErrIllegalMove = errors.New("illegal move")
    // ErrOutOfRange means an input lies outside its domain; state is unchanged.
    ErrOutOfRange = errors.New("out of range")
    // ErrInvariantViolation marks a programming fault such as a scheduling bug.
    ErrInvariantViolation = errors.New("invariant violation")
)

// Specific tic-tac-toe errors.
var (
    ErrOutOfBounds = fmt.Errorf("cell out of bounds: %w", ErrIllegalMove)
    ErrOccupied    = fmt.Errorf("cell occupied: %w", ErrIllegalMove)
    ErrGameOver    = fmt.Errorf("game over: %w", ErrIllegalMove)
    ErrNotYourTurn = fmt.Errorf("not your turn: %w", ErrIllegalMove)
    ErrNoMatch     = fmt.Errorf("no match in progress: %w", ErrIllegalMove)
)

// ErrStaleCallback is reported when a delayed transition fires for a match that was reset.
var ErrStaleCallback = fmt.Errorf("stale scheduled callback: %w", ErrInvariantViolation)
