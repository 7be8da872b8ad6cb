// internal/game/types.go
//
// Core type definitions for the guess-the-word engine.
// Defines:
//   - State: coarse lifecycle state of a game (in_progress/won/lost/cancelled).
//   - HistoryEntry: one guess and its recorded outcome.
//   - Game: state for a single in-progress or finished game.
//   - Score: finalized outcome record, created once per won/lost game.

package game

import "time"

// State represents the lifecycle state of a game.
// Won, lost and cancelled are terminal.
type State string

const (
	StateInProgress State = "in_progress"
	StateWon        State = "won"
	StateLost       State = "lost"
	StateCancelled  State = "cancelled"
)

// HistoryEntry records a single guess and the outcome it produced.
type HistoryEntry struct {
	Guess   string `json:"guess"`
	Outcome string `json:"outcome"`
}

// Game holds the state of a single round.
type Game struct {
	ID                string         // Opaque reference issued at creation.
	UserID            string         // Owner, immutable.
	UserName          string         // Owner name, denormalized for responses.
	TargetWord        string         // The secret word (always lowercase).
	HiddenLetters     []string       // Distinct letters not yet revealed.
	MaskedWord        string         // TargetWord with hidden letters replaced by '_'.
	AttemptsAllowed   int            // Total wrong-guess budget.
	AttemptsRemaining int            // Wrong-guess budget left.
	Over              bool           // True once won, lost or cancelled.
	Cancelled         bool           // True only via explicit cancellation.
	Won               bool           // True if finished with a win.
	History           []HistoryEntry // Append-only guess log.
	CreatedAt         time.Time
}

// Score is the immutable record of a finished (won or lost) game.
// Cancellation never produces a Score.
type Score struct {
	ID       int64
	UserID   string
	UserName string
	Date     time.Time
	Won      bool
	Guesses  int // wrong guesses made = AttemptsAllowed - final AttemptsRemaining
}
