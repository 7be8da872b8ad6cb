// internal/store/store.go
//
// Persistence interface for the guess-the-word service.
// Implementations: SQLite (sqlite.go) and in-memory (memory.go).
//
// Games and scores are owned by users; game IDs double as the opaque
// references handed to API clients.

package store

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"github.com/joelzeal/guess-the-word/internal/game"
)

var (
	// ErrNotFound is returned for unknown users and game references.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a username is already taken.
	ErrConflict = errors.New("already exists")
)

// User is a directory entry. Identity is the unique name; records are
// never mutated or deleted.
type User struct {
	ID        string
	Name      string
	Email     string
	CreatedAt time.Time
}

// Ranking is one user's performance indicator: wins divided by completed
// games, or -1 when the user has no completed games.
type Ranking struct {
	UserName    string
	Performance float64
}

// Store defines persistence for users, games and scores.
type Store interface {
	// CreateUser inserts a new user; ErrConflict if the name is taken
	// (case-insensitive).
	CreateUser(ctx context.Context, name, email string) (*User, error)
	// UserByName looks a user up by name (case-insensitive).
	UserByName(ctx context.Context, name string) (*User, error)
	// Users lists all users ordered by name.
	Users(ctx context.Context) ([]*User, error)

	// CreateGame persists a new game.
	CreateGame(ctx context.Context, g *game.Game) error
	// Game resolves an opaque game reference; ErrNotFound if unknown.
	Game(ctx context.Context, id string) (*game.Game, error)
	// SaveGame persists the mutable fields of an existing game.
	SaveGame(ctx context.Context, g *game.Game) error
	// ActiveGamesByUser lists a user's games that are not over.
	ActiveGamesByUser(ctx context.Context, userID string) ([]*game.Game, error)
	// AverageAttemptsRemaining reports the mean attempts remaining over
	// all games that are not over, plus how many such games exist.
	AverageAttemptsRemaining(ctx context.Context) (avg float64, n int, err error)

	// CreateScore persists a finalized score record.
	CreateScore(ctx context.Context, s *game.Score) error
	// Scores lists all score records.
	Scores(ctx context.Context) ([]*game.Score, error)
	// ScoresByUser lists one user's score records.
	ScoresByUser(ctx context.Context, userID string) ([]*game.Score, error)
	// TopScores lists winning scores ordered by fewest wrong guesses,
	// truncated to limit (default 5 when limit <= 0).
	TopScores(ctx context.Context, limit int) ([]*game.Score, error)
	// Rankings reports every user's performance indicator, ordered
	// descending by performance (name ascending on ties).
	Rankings(ctx context.Context) ([]Ranking, error)
}

// NewID creates a 22-char URL-safe, crypto-random identifier (no padding).
func NewID() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	s := base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString(b[:])
	if len(s) > 22 {
		return s[:22]
	}
	return s
}
