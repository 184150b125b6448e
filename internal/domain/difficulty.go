package domain

import (
    "fmt"
    "strings"
)

// Difficulty selects the opponent strategy for a whole match.
type Difficulty uint8

const (
    Easy Difficulty = iota
    Medium
    Hard
)

// Difficulties lists every tier in ascending strength.
var Difficulties = [3]Difficulty{Easy, Medium, Hard}

func (d Difficulty) String() string {
    switch d {
    case Easy:
        return "easy"
    case Medium:
        return "medium"
    case Hard:
        return "hard"
    default:
        return fmt.Sprintf("difficulty(%d)", uint8(d))
    }
}

// MarshalText encodes the difficulty as its lowercase name.
func (d Difficulty) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// UnmarshalText accepts the lowercase names, case-insensitively.
func (d *Difficulty) UnmarshalText(b []byte) error {
    v, err := ParseDifficulty(string(b))
    if err != nil {
        return err
    }
    *d = v
    return nil
}

// ParseDifficulty maps "easy", "medium" or "hard" to a Difficulty.
func ParseDifficulty(s string) (Difficulty, error) {
    switch strings.ToLower(strings.TrimSpace(s)) {
    case "easy":
        return Easy, nil
    case "medium":
        return Medium, nil
    case "hard":
        return Hard, nil
    }
    return 0, fmt.Errorf("difficulty %q: %w", s, ErrOutOfRange)
}
