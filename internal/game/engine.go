// internal/game/engine.go
//
// Core game engine for a single guess-the-word round.
// Responsibilities:
//   - Create new games: random target word, hidden-letter sampling, masking.
//   - Validate and apply guesses (alphabetic, whole word or single letter).
//   - Track state transitions: in_progress -> won/lost/cancelled.
//   - Derive the Score record when a game finishes.
//
// Notes:
//   - Target words are provided by the words package.
//   - Terminal games reject every further mutation.
//   - Half of the word's letters (floor of len/2, collapsed to distinct
//     letter values) start hidden; guessing a letter reveals every
//     occurrence at once.
package game

import (
	"errors"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/joelzeal/guess-the-word/internal/words"
)

const placeholder = "_"

// Outcome messages returned by ApplyGuess and recorded in history.
const (
	MsgWin      = "You win!"
	MsgRight    = "Right guess"
	MsgWrong    = "Wrong guess"
	MsgGameOver = "Game over!"

	outcomeWin      = "You win"
	outcomeRight    = "Right guess"
	outcomeWrong    = "Wrong guess"
	outcomeGameOver = "Game over"
)

var (
	// ErrGameOver rejects moves and cancellation on a terminal game.
	ErrGameOver = errors.New("illegal action: game is already over")
	// ErrInvalidGuess rejects non-alphabetic input.
	ErrInvalidGuess = errors.New("invalid input: guess must be alphabetic")
)

// New constructs a new game for the given owner and wrong-guess budget.
// The target word is chosen uniformly at random from the word list.
func New(id, userID string, attempts int) *Game {
	word := words.Random()
	return NewWithWord(id, userID, word, sampleHidden(word), attempts)
}

// NewWithWord constructs a game against a fixed target word and hidden
// letter set. Exposed for deterministic callers and tests.
func NewWithWord(id, userID, word string, hidden []string, attempts int) *Game {
	word = strings.ToLower(word)
	return &Game{
		ID:                id,
		UserID:            userID,
		TargetWord:        word,
		HiddenLetters:     hidden,
		MaskedWord:        Mask(word, hidden),
		AttemptsAllowed:   attempts,
		AttemptsRemaining: attempts,
		History:           []HistoryEntry{},
		CreatedAt:         time.Now().UTC(),
	}
}

// sampleHidden picks floor(len/2) distinct character positions of word and
// returns the sampled letters as a sorted set of distinct values.
func sampleHidden(word string) []string {
	k := len(word) / 2
	seen := make(map[byte]struct{}, k)
	for _, pos := range rand.Perm(len(word))[:k] {
		seen[word[pos]] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, string(c))
	}
	sort.Strings(out)
	return out
}

// Mask replaces every occurrence of each hidden letter in word with the
// placeholder character.
func Mask(word string, hidden []string) string {
	masked := word
	for _, letter := range hidden {
		masked = strings.ReplaceAll(masked, letter, placeholder)
	}
	return masked
}

// ApplyGuess validates and applies a guess, mutating the game state.
// Returns the outcome message or an error (terminal game, invalid input).
//
// Transition rules:
//   - A multi-letter guess equal to the target word wins immediately.
//   - A guess matching a hidden letter reveals it; the game is won once no
//     hidden letters remain.
//   - Any other guess is wrong: it consumes one attempt, and a wrong guess
//     arriving with no attempts left loses the game.
func (g *Game) ApplyGuess(guess string) (string, error) {
	if g.Over {
		return "", ErrGameOver
	}
	guess = strings.ToLower(strings.TrimSpace(guess))
	if guess == "" || !isAlpha(guess) {
		return "", ErrInvalidGuess
	}

	if len(guess) > 1 && guess == g.TargetWord {
		g.finish(true)
		g.record(guess, outcomeWin)
		return MsgWin, nil
	}

	if g.reveal(guess) {
		if len(g.HiddenLetters) == 0 {
			g.finish(true)
			g.record(guess, outcomeWin)
			return MsgWin, nil
		}
		g.record(guess, outcomeRight)
		return MsgRight, nil
	}

	if g.AttemptsRemaining < 1 {
		g.finish(false)
		g.record(guess, outcomeGameOver)
		return MsgGameOver, nil
	}
	g.AttemptsRemaining--
	g.record(guess, outcomeWrong)
	return MsgWrong, nil
}

// Cancel marks a non-terminal game as cancelled. No Score is ever derived
// from a cancelled game.
func (g *Game) Cancel() error {
	if g.Over {
		return ErrGameOver
	}
	g.Over = true
	g.Cancelled = true
	return nil
}

// State reports the coarse lifecycle state.
func (g *Game) State() State {
	switch {
	case !g.Over:
		return StateInProgress
	case g.Cancelled:
		return StateCancelled
	case g.Won:
		return StateWon
	default:
		return StateLost
	}
}

// FinalScore derives the Score record for a won or lost game.
// Returns nil for in-progress or cancelled games.
func (g *Game) FinalScore(now time.Time) *Score {
	if !g.Over || g.Cancelled {
		return nil
	}
	return &Score{
		UserID:   g.UserID,
		UserName: g.UserName,
		Date:     now,
		Won:      g.Won,
		Guesses:  g.AttemptsAllowed - g.AttemptsRemaining,
	}
}

// reveal removes a guessed hidden letter and recomputes the mask.
// Reports whether the guess was a hidden letter.
func (g *Game) reveal(guess string) bool {
	if len(guess) != 1 {
		return false
	}
	for i, letter := range g.HiddenLetters {
		if letter == guess {
			g.HiddenLetters = append(g.HiddenLetters[:i], g.HiddenLetters[i+1:]...)
			g.MaskedWord = Mask(g.TargetWord, g.HiddenLetters)
			return true
		}
	}
	return false
}

func (g *Game) finish(won bool) {
	g.Over = true
	g.Won = won
}

func (g *Game) record(guess, outcome string) {
	g.History = append(g.History, HistoryEntry{Guess: guess, Outcome: outcome})
}

// isAlpha checks that a string consists only of lowercase a-z.
func isAlpha(s string) bool {
	for _, r := range s {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}
