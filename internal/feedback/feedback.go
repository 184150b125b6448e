// Package feedback defines the hook points engines use to request audible
// and haptic cues. Delivering the cue is the presentation layer's job.
package feedback

import (
    "sync/atomic"
    "time"
)

// Pattern is a vibration pattern: alternating on/off durations.
type Pattern []time.Duration

func ms(v ...int) Pattern {
    p := make(Pattern, len(v))
    for i, x := range v {
        p[i] = time.Duration(x) * time.Millisecond
    }
    return p
}

// Standard patterns.
var (
    Pulse         = ms(10)                  // routine move
    ResetPulse    = ms(20)                  // new game
    BackPulse     = ms(5)                   // leaving a game
    MatchPulse    = ms(30, 50, 30)          // memory pair found
    WinPulse      = ms(50, 50, 50)          // tic-tac-toe win
    GuessWinPulse = ms(50, 50, 50, 50, 100) // number found
)

// Millis returns the pattern as integer milliseconds.
func (p Pattern) Millis() []int64 {
    out := make([]int64, len(p))
    for i, d := range p {
        out[i] = d.Milliseconds()
    }
    return out
}

// Sink receives cue requests.
type Sink interface {
    // Tap requests the short fixed-tone click.
    Tap()
    // Vibrate requests a haptic pulse.
    Vibrate(p Pattern)
}

// Nop ignores every cue.
type Nop struct{}

func (Nop) Tap()            {}
func (Nop) Vibrate(Pattern) {}

// Funcs adapts plain functions into a Sink; nil fields are ignored.
type Funcs struct {
    OnTap     func()
    OnVibrate func(Pattern)
}

func (f Funcs) Tap() {
    if f.OnTap != nil {
        f.OnTap()
    }
}

func (f Funcs) Vibrate(p Pattern) {
    if f.OnVibrate != nil {
        f.OnVibrate(p)
    }
}

// Settings holds the user's independent sound and vibration toggles.
type Settings struct {
    sound     atomic.Bool
    vibration atomic.Bool
}

// NewSettings returns settings with the given toggles.
func NewSettings(sound, vibration bool) *Settings {
    s := &Settings{}
    s.sound.Store(sound)
    s.vibration.Store(vibration)
    return s
}

func (s *Settings) Sound() bool          { return s.sound.Load() }
func (s *Settings) Vibration() bool      { return s.vibration.Load() }
func (s *Settings) SetSound(on bool)     { s.sound.Store(on) }
func (s *Settings) SetVibration(on bool) { s.vibration.Store(on) }

// ToggleSound flips the sound toggle and returns the new value.
func (s *Settings) ToggleSound() bool {
    for {
        old := s.sound.Load()
        if s.sound.CompareAndSwap(old, !old) {
            return !old
        }
    }
}

// ToggleVibration flips the vibration toggle and returns the new value.
func (s *Settings) ToggleVibration() bool {
    for {
        old := s.vibration.Load()
        if s.vibration.CompareAndSwap(old, !old) {
            return !old
        }
    }
}

type gated struct {
    settings *Settings
    next     Sink
}

// Gate forwards cues to next only while the matching toggle is on.
func Gate(settings *Settings, next Sink) Sink {
    if next == nil {
        next = Nop{}
    }
    if settings == nil {
        return next
    }
    return gated{settings: settings, next: next}
}

func (g gated) Tap() {
    if g.settings.Sound() {
        g.next.Tap()
    }
}

func (g gated) Vibrate(p Pattern) {
    if g.settings.Vibration() {
        g.next.Vibrate(p)
    }
}
