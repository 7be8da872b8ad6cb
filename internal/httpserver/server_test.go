package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joelzeal/guess-the-word/internal/game"
	"github.com/joelzeal/guess-the-word/internal/stats"
	"github.com/joelzeal/guess-the-word/internal/store"
)

func newTestServer(t *testing.T) (*Server, *store.Memory, *stats.Refresher) {
	t.Helper()
	mem := store.NewMemory()
	cache := stats.NewCache()
	refresher := stats.NewRefresher(mem, cache)
	return New(mem, cache, refresher), mem, refresher
}

func do(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v))
	return v
}

func createUser(t *testing.T, s *Server, name string) {
	t.Helper()
	rr := do(t, s, http.MethodPost, "/user", map[string]string{"userName": name})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
}

func newGame(t *testing.T, s *Server, name string, attempts int) gameForm {
	t.Helper()
	rr := do(t, s, http.MethodPost, "/game", map[string]any{"userName": name, "attempts": attempts})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	return decode[gameForm](t, rr)
}

// wrongLetter picks a letter that does not occur in the target word.
func wrongLetter(t *testing.T, target string, used map[string]bool) string {
	t.Helper()
	for c := 'a'; c <= 'z'; c++ {
		letter := string(c)
		if !strings.Contains(target, letter) && !used[letter] {
			used[letter] = true
			return letter
		}
	}
	t.Fatal("no unused letter available")
	return ""
}

func TestHealth(t *testing.T) {
	s, _, _ := newTestServer(t)
	rr := do(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"ok":true}`, rr.Body.String())
}

func TestCreateUser(t *testing.T) {
	s, _, _ := newTestServer(t)

	rr := do(t, s, http.MethodPost, "/user", map[string]string{"userName": "alice", "email": "a@example.com"})
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "User alice created!", decode[map[string]string](t, rr)["message"])

	t.Run("duplicate name conflicts", func(t *testing.T) {
		rr := do(t, s, http.MethodPost, "/user", map[string]string{"userName": "ALICE"})
		assert.Equal(t, http.StatusConflict, rr.Code)
	})

	t.Run("invalid names rejected", func(t *testing.T) {
		for _, name := range []string{"", "ab", "has space", "wat?!"} {
			rr := do(t, s, http.MethodPost, "/user", map[string]string{"userName": name})
			assert.Equal(t, http.StatusBadRequest, rr.Code, name)
		}
	})
}

func TestNewGame(t *testing.T) {
	s, _, _ := newTestServer(t)
	createUser(t, s, "alice")

	t.Run("unknown user", func(t *testing.T) {
		rr := do(t, s, http.MethodPost, "/game", map[string]any{"userName": "nobody"})
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("negative attempts", func(t *testing.T) {
		rr := do(t, s, http.MethodPost, "/game", map[string]any{"userName": "alice", "attempts": -1})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("created", func(t *testing.T) {
		form := newGame(t, s, "alice", 7)
		assert.NotEmpty(t, form.ID)
		assert.Equal(t, "alice", form.UserName)
		assert.Equal(t, 7, form.AttemptsRemaining)
		assert.False(t, form.GameOver)
		assert.Equal(t, game.StateInProgress, form.State)
		assert.Contains(t, form.MaskedWord, "_")
		assert.Equal(t, "Good luck playing Guess The Word!", form.Message)
	})

	t.Run("attempts default to five", func(t *testing.T) {
		rr := do(t, s, http.MethodPost, "/game", map[string]any{"userName": "alice"})
		require.Equal(t, http.StatusCreated, rr.Code)
		assert.Equal(t, 5, decode[gameForm](t, rr).AttemptsRemaining)
	})
}

func TestGetGame(t *testing.T) {
	s, _, _ := newTestServer(t)
	createUser(t, s, "alice")
	form := newGame(t, s, "alice", 5)

	rr := do(t, s, http.MethodGet, "/game/"+form.ID, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	got := decode[gameForm](t, rr)
	assert.Equal(t, form.ID, got.ID)
	assert.Equal(t, "Time to make a move!", got.Message)

	rr = do(t, s, http.MethodGet, "/game/missing", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestMakeMove_WinFlow(t *testing.T) {
	s, mem, _ := newTestServer(t)
	createUser(t, s, "alice")
	form := newGame(t, s, "alice", 5)

	// The target word is server-side state; read it through the store.
	g, err := mem.Game(context.Background(), form.ID)
	require.NoError(t, err)

	hidden := append([]string{}, g.HiddenLetters...)
	for i, letter := range hidden {
		rr := do(t, s, http.MethodPut, "/game/"+form.ID, map[string]string{"guess": letter})
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		got := decode[gameForm](t, rr)
		if i < len(hidden)-1 {
			assert.Equal(t, game.MsgRight, got.Message)
			assert.False(t, got.GameOver)
		} else {
			assert.Equal(t, game.MsgWin, got.Message)
			assert.True(t, got.GameOver)
			assert.Equal(t, game.StateWon, got.State)
			assert.Equal(t, g.TargetWord, got.MaskedWord)
		}
	}

	t.Run("score recorded with zero wrong guesses", func(t *testing.T) {
		rr := do(t, s, http.MethodGet, "/scores/user/alice", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		scores := decode[[]scoreForm](t, rr)
		require.Len(t, scores, 1)
		assert.True(t, scores[0].Won)
		assert.Equal(t, 0, scores[0].Guesses)
		assert.Equal(t, time.Now().UTC().Format("2006-01-02"), scores[0].Date)
	})

	t.Run("history lists every move", func(t *testing.T) {
		rr := do(t, s, http.MethodGet, "/game/"+form.ID+"/history", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		got := decode[gameForm](t, rr)
		assert.Equal(t, "Game history", got.Message)
		require.Len(t, got.History, len(hidden))
		assert.Equal(t, "You win", got.History[len(hidden)-1].Outcome)
	})

	t.Run("finished game rejects moves and cancellation", func(t *testing.T) {
		rr := do(t, s, http.MethodPut, "/game/"+form.ID, map[string]string{"guess": "a"})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "illegal_action")

		rr = do(t, s, http.MethodPut, "/game/"+form.ID+"/cancel", nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestMakeMove_FullWordWin(t *testing.T) {
	s, mem, _ := newTestServer(t)
	createUser(t, s, "alice")
	form := newGame(t, s, "alice", 5)

	g, err := mem.Game(context.Background(), form.ID)
	require.NoError(t, err)

	rr := do(t, s, http.MethodPut, "/game/"+form.ID, map[string]string{"guess": g.TargetWord})
	require.Equal(t, http.StatusOK, rr.Code)
	got := decode[gameForm](t, rr)
	assert.Equal(t, game.MsgWin, got.Message)
	assert.Equal(t, game.StateWon, got.State)
}

func TestMakeMove_LossFlow(t *testing.T) {
	s, mem, _ := newTestServer(t)
	createUser(t, s, "alice")
	form := newGame(t, s, "alice", 1)

	g, err := mem.Game(context.Background(), form.ID)
	require.NoError(t, err)
	used := map[string]bool{}

	rr := do(t, s, http.MethodPut, "/game/"+form.ID, map[string]string{"guess": wrongLetter(t, g.TargetWord, used)})
	require.Equal(t, http.StatusOK, rr.Code)
	got := decode[gameForm](t, rr)
	assert.Equal(t, game.MsgWrong, got.Message)
	assert.Equal(t, 0, got.AttemptsRemaining)

	rr = do(t, s, http.MethodPut, "/game/"+form.ID, map[string]string{"guess": wrongLetter(t, g.TargetWord, used)})
	require.Equal(t, http.StatusOK, rr.Code)
	got = decode[gameForm](t, rr)
	assert.Equal(t, game.MsgGameOver, got.Message)
	assert.Equal(t, game.StateLost, got.State)

	scores := decode[[]scoreForm](t, do(t, s, http.MethodGet, "/scores/user/alice", nil))
	require.Len(t, scores, 1)
	assert.False(t, scores[0].Won)
	assert.Equal(t, 1, scores[0].Guesses)
}

func TestMakeMove_InvalidInput(t *testing.T) {
	s, _, _ := newTestServer(t)
	createUser(t, s, "alice")
	form := newGame(t, s, "alice", 5)

	rr := do(t, s, http.MethodPut, "/game/"+form.ID, map[string]string{"guess": "c4t"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "invalid_input")

	// The rejected guess must not consume an attempt.
	got := decode[gameForm](t, do(t, s, http.MethodGet, "/game/"+form.ID, nil))
	assert.Equal(t, 5, got.AttemptsRemaining)
	assert.Empty(t, got.History)
}

func TestCancelGame(t *testing.T) {
	s, _, _ := newTestServer(t)
	createUser(t, s, "alice")
	form := newGame(t, s, "alice", 5)

	rr := do(t, s, http.MethodPut, "/game/"+form.ID+"/cancel", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Game has been cancelled.", decode[map[string]string](t, rr)["message"])

	t.Run("cancelled game is terminal", func(t *testing.T) {
		rr := do(t, s, http.MethodPut, "/game/"+form.ID+"/cancel", nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code)

		got := decode[gameForm](t, do(t, s, http.MethodGet, "/game/"+form.ID, nil))
		assert.True(t, got.Cancelled)
		assert.Equal(t, game.StateCancelled, got.State)
	})

	t.Run("no score is created", func(t *testing.T) {
		scores := decode[[]scoreForm](t, do(t, s, http.MethodGet, "/scores/user/alice", nil))
		assert.Empty(t, scores)
	})

	t.Run("not listed among active games", func(t *testing.T) {
		games := decode[[]gameForm](t, do(t, s, http.MethodGet, "/games/user/alice", nil))
		assert.Empty(t, games)
	})

	t.Run("unknown game", func(t *testing.T) {
		rr := do(t, s, http.MethodPut, "/game/missing/cancel", nil)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestUserGames_ActiveOnly(t *testing.T) {
	s, _, _ := newTestServer(t)
	createUser(t, s, "alice")
	newGame(t, s, "alice", 5)
	cancelled := newGame(t, s, "alice", 5)
	do(t, s, http.MethodPut, "/game/"+cancelled.ID+"/cancel", nil)

	games := decode[[]gameForm](t, do(t, s, http.MethodGet, "/games/user/alice", nil))
	require.Len(t, games, 1)
	assert.False(t, games[0].GameOver)

	rr := do(t, s, http.MethodGet, "/games/user/nobody", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHighScores(t *testing.T) {
	s, mem, _ := newTestServer(t)

	t.Run("empty is not found", func(t *testing.T) {
		rr := do(t, s, http.MethodGet, "/scores/high", nil)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	ctx := context.Background()
	alice, err := mem.CreateUser(ctx, "alice", "")
	require.NoError(t, err)
	now := time.Now().UTC()
	for _, sc := range []*game.Score{
		{UserID: alice.ID, Date: now, Won: true, Guesses: 2},
		{UserID: alice.ID, Date: now, Won: true, Guesses: 1},
		{UserID: alice.ID, Date: now, Won: false, Guesses: 5},
	} {
		require.NoError(t, mem.CreateScore(ctx, sc))
	}

	t.Run("winning scores ordered by fewest guesses", func(t *testing.T) {
		rr := do(t, s, http.MethodGet, "/scores/high?limit=3", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		scores := decode[[]scoreForm](t, rr)
		require.Len(t, scores, 2)
		assert.Equal(t, 1, scores[0].Guesses)
		assert.Equal(t, 2, scores[1].Guesses)
	})

	t.Run("limit truncates", func(t *testing.T) {
		scores := decode[[]scoreForm](t, do(t, s, http.MethodGet, "/scores/high?limit=1", nil))
		assert.Len(t, scores, 1)
	})

	t.Run("junk limit rejected", func(t *testing.T) {
		rr := do(t, s, http.MethodGet, "/scores/high?limit=zero", nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestAverageAttempts(t *testing.T) {
	s, _, refresher := newTestServer(t)

	t.Run("empty until computed", func(t *testing.T) {
		rr := do(t, s, http.MethodGet, "/games/average_attempts", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "", decode[map[string]string](t, rr)["message"])
	})

	createUser(t, s, "alice")
	newGame(t, s, "alice", 4)
	require.NoError(t, refresher.Recompute(context.Background()))

	rr := do(t, s, http.MethodGet, "/games/average_attempts", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "The average moves remaining is 4.00", decode[map[string]string](t, rr)["message"])
}

func TestRankings(t *testing.T) {
	s, mem, _ := newTestServer(t)
	ctx := context.Background()

	alice, err := mem.CreateUser(ctx, "alice", "")
	require.NoError(t, err)
	_, err = mem.CreateUser(ctx, "bob", "")
	require.NoError(t, err)

	now := time.Now().UTC()
	require.NoError(t, mem.CreateScore(ctx, &game.Score{UserID: alice.ID, Date: now, Won: true, Guesses: 1}))
	require.NoError(t, mem.CreateScore(ctx, &game.Score{UserID: alice.ID, Date: now, Won: false, Guesses: 5}))

	rr := do(t, s, http.MethodGet, "/users/rankings", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	rankings := decode[[]rankingForm](t, rr)
	require.Len(t, rankings, 2)
	assert.Equal(t, "alice", rankings[0].UserName)
	assert.InDelta(t, 0.5, rankings[0].PerformanceIndicator, 1e-9)
	assert.Equal(t, "bob", rankings[1].UserName)
	assert.InDelta(t, -1.0, rankings[1].PerformanceIndicator, 1e-9)
}
