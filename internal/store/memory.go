// internal/store/memory.go
//
// In-memory implementation of the Store interface.
// This is a lightweight persistence layer used in tests and when
// durability is not required.
//
// Characteristics:
//   - Concurrency-safe via RWMutex (concurrent reads allowed, writes exclusive).
//   - Get/Save work on copies so callers never alias stored state.
//   - State is lost when the process restarts.

package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/joelzeal/guess-the-word/internal/game"
)

// Memory is an in-memory map-based Store implementation.
type Memory struct {
	mu     sync.RWMutex
	users  map[string]*User      // keyed by User.ID
	games  map[string]*game.Game // keyed by Game.ID
	scores []*game.Score
	nextID int64
}

// NewMemory constructs an empty in-memory Store.
func NewMemory() *Memory {
	return &Memory{
		users: make(map[string]*User),
		games: make(map[string]*game.Game),
	}
}

/* -------------------------------- users --------------------------------- */

func (m *Memory) CreateUser(ctx context.Context, name, email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Name, name) {
			return nil, ErrConflict
		}
	}
	u := &User{ID: NewID(), Name: name, Email: email, CreatedAt: time.Now().UTC()}
	m.users[u.ID] = u
	return u, nil
}

func (m *Memory) UserByName(ctx context.Context, name string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Name, name) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) Users(ctx context.Context) ([]*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*User, 0, len(m.users))
	for _, u := range m.users {
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

/* -------------------------------- games --------------------------------- */

func (m *Memory) CreateGame(ctx context.Context, g *game.Game) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.games[g.ID] = copyGame(g)
	return nil
}

func (m *Memory) Game(ctx context.Context, id string) (*game.Game, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.games[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyGame(g), nil
}

func (m *Memory) SaveGame(ctx context.Context, g *game.Game) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.games[g.ID]; !ok {
		return ErrNotFound
	}
	m.games[g.ID] = copyGame(g)
	return nil
}

func (m *Memory) ActiveGamesByUser(ctx context.Context, userID string) ([]*game.Game, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*game.Game
	for _, g := range m.games {
		if g.UserID == userID && !g.Over {
			out = append(out, copyGame(g))
		}
	}
	return out, nil
}

func (m *Memory) AverageAttemptsRemaining(ctx context.Context) (float64, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	total, n := 0, 0
	for _, g := range m.games {
		if !g.Over {
			total += g.AttemptsRemaining
			n++
		}
	}
	if n == 0 {
		return 0, 0, nil
	}
	return float64(total) / float64(n), n, nil
}

// copyGame clones a game including its slices.
func copyGame(g *game.Game) *game.Game {
	cp := *g
	cp.HiddenLetters = append([]string{}, g.HiddenLetters...)
	cp.History = append([]game.HistoryEntry{}, g.History...)
	return &cp
}

/* -------------------------------- scores -------------------------------- */

func (m *Memory) CreateScore(ctx context.Context, sc *game.Score) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	sc.ID = m.nextID
	cp := *sc
	if cp.UserName == "" {
		if u, ok := m.users[cp.UserID]; ok {
			cp.UserName = u.Name
		}
	}
	m.scores = append(m.scores, &cp)
	return nil
}

func (m *Memory) Scores(ctx context.Context) ([]*game.Score, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*game.Score, 0, len(m.scores))
	for _, sc := range m.scores {
		cp := *sc
		out = append(out, &cp)
	}
	return out, nil
}

func (m *Memory) ScoresByUser(ctx context.Context, userID string) ([]*game.Score, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*game.Score
	for _, sc := range m.scores {
		if sc.UserID == userID {
			cp := *sc
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *Memory) TopScores(ctx context.Context, limit int) ([]*game.Score, error) {
	if limit <= 0 {
		limit = 5
	}
	m.mu.RLock()
	var won []*game.Score
	for _, sc := range m.scores {
		if sc.Won {
			cp := *sc
			won = append(won, &cp)
		}
	}
	m.mu.RUnlock()

	// Fewest wrong guesses first; creation order breaks ties.
	sort.Slice(won, func(i, j int) bool {
		if won[i].Guesses != won[j].Guesses {
			return won[i].Guesses < won[j].Guesses
		}
		return won[i].ID < won[j].ID
	})
	if len(won) > limit {
		won = won[:limit]
	}
	return won, nil
}

/* ------------------------------- rankings ------------------------------- */

func (m *Memory) Rankings(ctx context.Context) ([]Ranking, error) {
	m.mu.RLock()
	type tally struct{ wins, total int }
	counts := make(map[string]tally, len(m.users))
	for _, sc := range m.scores {
		t := counts[sc.UserID]
		t.total++
		if sc.Won {
			t.wins++
		}
		counts[sc.UserID] = t
	}
	out := make([]Ranking, 0, len(m.users))
	for id, u := range m.users {
		t := counts[id]
		out = append(out, Ranking{UserName: u.Name, Performance: performance(t.wins, t.total)})
	}
	m.mu.RUnlock()
	sortRankings(out)
	return out, nil
}
