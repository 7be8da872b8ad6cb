// internal/httpserver/server.go
//
// HTTP server wiring for the guess-the-word backend.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs).
//   - Public endpoints: "/", "/health".
//   - User endpoint: POST /user.
//   - Game endpoints: POST /game, GET/PUT /game/{gameID},
//     PUT /game/{gameID}/cancel, GET /game/{gameID}/history,
//     GET /games/user/{userName}, GET /games/average_attempts.
//   - Score endpoints: GET /scores, /scores/user/{userName}, /scores/high.
//   - Rankings: GET /users/rankings.
//
// Notes:
//   - CORS is origin-aware and credentials-enabled.
//   - Game mutation is request-scoped: read, apply the move, save. Two
//     concurrent moves on one game can race; there is no optimistic
//     concurrency check.
//   - The stats refresher is triggered fire-and-forget on game creation.

package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/joelzeal/guess-the-word/internal/game"
	"github.com/joelzeal/guess-the-word/internal/stats"
	"github.com/joelzeal/guess-the-word/internal/store"
	"github.com/joelzeal/guess-the-word/internal/words"
)

const defaultHighScoreResults = 5

// Triggerer requests an asynchronous stats recompute.
type Triggerer interface {
	Trigger()
}

// Server bundles router, persistence, and the stats cache.
type Server struct {
	r         *chi.Mux
	store     store.Store
	stats     *stats.Cache
	refresher Triggerer
}

// New constructs a Server, installs middleware, and registers routes.
func New(st store.Store, cache *stats.Cache, refresher Triggerer) *Server {
	s := &Server{r: chi.NewRouter(), store: st, stats: cache, refresher: refresher}

	// --- middleware ---
	s.r.Use(chimw.RequestID)                 // add X-Request-ID
	s.r.Use(chimw.RealIP)                    // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(chimw.Recoverer)                 // recover from panics
	s.r.Use(chimw.Timeout(10 * time.Second)) // bound handler time
	s.r.Use(jsonContentType)                 // default JSON responses
	s.r.Use(corsFromEnv)                     // credentials-friendly CORS

	// --- diagnostics ---
	s.r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"service":"guess-the-word","endpoints":["/health","POST /user","POST /game","PUT /game/{gameID}","/scores"]}`))
	})
	s.r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	// Users
	s.r.Post("/user", s.handleCreateUser)
	s.r.Get("/users/rankings", s.handleRankings)

	// Games
	s.r.Post("/game", s.handleNewGame)
	s.r.Get("/game/{gameID}", s.handleGetGame)
	s.r.Put("/game/{gameID}", s.handleMakeMove)
	s.r.Put("/game/{gameID}/cancel", s.handleCancelGame)
	s.r.Get("/game/{gameID}/history", s.handleGameHistory)
	s.r.Get("/games/user/{userName}", s.handleUserGames)
	s.r.Get("/games/average_attempts", s.handleAverageAttempts)

	// Scores
	s.r.Get("/scores", s.handleScores)
	s.r.Get("/scores/user/{userName}", s.handleUserScores)
	s.r.Get("/scores/high", s.handleHighScores)

	// JSON 404 for easier debugging
	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"not_found","path":"`+r.URL.Path+`"}`, http.StatusNotFound)
	})

	// Debug: word list count
	s.r.Get("/debug/words", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]int{"words": words.Count()})
	})

	return s
}

// Start begins serving HTTP on addr.
func (s *Server) Start(addr string) error { return http.ListenAndServe(addr, s.r) }

// Router exposes the internal router (useful for tests).
func (s *Server) Router() chi.Router { return s.r }

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// corsFromEnv enables credentialed CORS for a single origin.
// Uses CLIENT_ORIGIN env var; defaults to http://localhost:5173.
func corsFromEnv(next http.Handler) http.Handler {
	origin := os.Getenv("CLIENT_ORIGIN")
	if origin == "" {
		origin = "http://localhost:5173"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ------------------------------- forms -------------------------------------

// gameForm is the outbound game snapshot.
type gameForm struct {
	ID                string              `json:"id"`
	UserName          string              `json:"userName"`
	MaskedWord        string              `json:"maskedWord"`
	AttemptsRemaining int                 `json:"attemptsRemaining"`
	GameOver          bool                `json:"gameOver"`
	Cancelled         bool                `json:"cancelled"`
	State             game.State          `json:"state"`
	Message           string              `json:"message"`
	History           []game.HistoryEntry `json:"history"`
}

func toGameForm(g *game.Game, message string) gameForm {
	return gameForm{
		ID:                g.ID,
		UserName:          g.UserName,
		MaskedWord:        g.MaskedWord,
		AttemptsRemaining: g.AttemptsRemaining,
		GameOver:          g.Over,
		Cancelled:         g.Cancelled,
		State:             g.State(),
		Message:           message,
		History:           g.History,
	}
}

// scoreForm is the outbound score record.
type scoreForm struct {
	UserName string `json:"userName"`
	Date     string `json:"date"`
	Won      bool   `json:"won"`
	Guesses  int    `json:"guesses"`
}

func toScoreForms(scores []*game.Score) []scoreForm {
	out := make([]scoreForm, 0, len(scores))
	for _, sc := range scores {
		out = append(out, scoreForm{
			UserName: sc.UserName,
			Date:     sc.Date.Format("2006-01-02"),
			Won:      sc.Won,
			Guesses:  sc.Guesses,
		})
	}
	return out
}

// rankingForm is one entry of the user-rankings response.
type rankingForm struct {
	UserName             string  `json:"userName"`
	PerformanceIndicator float64 `json:"performanceIndicator"`
}

// ----------------------------- error mapping --------------------------------

// fail writes a JSON error with a status derived from the error kind.
func (s *Server) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, `{"error":"not_found"}`, http.StatusNotFound)
	case errors.Is(err, store.ErrConflict):
		http.Error(w, `{"error":"conflict"}`, http.StatusConflict)
	case errors.Is(err, game.ErrGameOver):
		http.Error(w, `{"error":"illegal_action"}`, http.StatusBadRequest)
	case errors.Is(err, game.ErrInvalidGuess):
		http.Error(w, `{"error":"invalid_input"}`, http.StatusBadRequest)
	default:
		log.Error().Err(err).Msg("storage error")
		http.Error(w, `{"error":"storage_error"}`, http.StatusInternalServerError)
	}
}

// ------------------------------- users -------------------------------------

type createUserReq struct {
	UserName string `json:"userName"`
	Email    string `json:"email"`
}

// handleCreateUser creates a user with a unique name.
func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"bad_json"}`, http.StatusBadRequest)
		return
	}
	if err := validateUserName(req.UserName); err != nil {
		http.Error(w, `{"error":"invalid_input","message":"`+err.Error()+`"}`, http.StatusBadRequest)
		return
	}
	u, err := s.store.CreateUser(r.Context(), req.UserName, req.Email)
	if err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"message": fmt.Sprintf("User %s created!", u.Name),
	})
}

// validateUserName enforces basic username rules.
func validateUserName(u string) error {
	if len(u) < 3 || len(u) > 24 {
		return errors.New("username must be 3-24 chars")
	}
	for _, r := range u {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return errors.New("username: letters, numbers, underscore only")
		}
	}
	return nil
}

// handleRankings returns every user's performance indicator,
// ordered descending by performance.
func (s *Server) handleRankings(w http.ResponseWriter, r *http.Request) {
	rankings, err := s.store.Rankings(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	out := make([]rankingForm, 0, len(rankings))
	for _, rk := range rankings {
		out = append(out, rankingForm{UserName: rk.UserName, PerformanceIndicator: rk.Performance})
	}
	_ = json.NewEncoder(w).Encode(out)
}

// ------------------------------- games -------------------------------------

type newGameReq struct {
	UserName string `json:"userName"`
	Attempts int    `json:"attempts"` // wrong-guess budget; default 5
}

// handleNewGame creates a game for an existing user and schedules a stats
// refresh. The refresh is fire-and-forget and cannot fail the request.
func (s *Server) handleNewGame(w http.ResponseWriter, r *http.Request) {
	var req newGameReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"bad_json"}`, http.StatusBadRequest)
		return
	}
	if req.Attempts == 0 {
		req.Attempts = 5
	}
	if req.Attempts < 0 {
		http.Error(w, `{"error":"invalid_input","message":"attempts must be positive"}`, http.StatusBadRequest)
		return
	}
	u, err := s.store.UserByName(r.Context(), req.UserName)
	if err != nil {
		s.fail(w, err)
		return
	}

	g := game.New(store.NewID(), u.ID, req.Attempts)
	g.UserName = u.Name
	if err := s.store.CreateGame(r.Context(), g); err != nil {
		s.fail(w, err)
		return
	}

	s.refresher.Trigger()

	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(toGameForm(g, "Good luck playing Guess The Word!"))
}

// handleGetGame returns the current game state.
func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	g, err := s.store.Game(r.Context(), chi.URLParam(r, "gameID"))
	if err != nil {
		s.fail(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(toGameForm(g, "Time to make a move!"))
}

type makeMoveReq struct {
	Guess string `json:"guess"`
}

// handleMakeMove applies a guess to a game, persists the result, and
// records a Score when the move finishes the game.
func (s *Server) handleMakeMove(w http.ResponseWriter, r *http.Request) {
	var req makeMoveReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"bad_json"}`, http.StatusBadRequest)
		return
	}
	g, err := s.store.Game(r.Context(), chi.URLParam(r, "gameID"))
	if err != nil {
		s.fail(w, err)
		return
	}

	msg, err := g.ApplyGuess(req.Guess)
	if err != nil {
		s.fail(w, err)
		return
	}
	if err := s.store.SaveGame(r.Context(), g); err != nil {
		s.fail(w, err)
		return
	}

	// The move can only have finished a game that was in progress, so a
	// non-nil FinalScore means the Score is born here.
	if score := g.FinalScore(time.Now().UTC()); score != nil {
		if err := s.store.CreateScore(r.Context(), score); err != nil {
			s.fail(w, err)
			return
		}
	}

	_ = json.NewEncoder(w).Encode(toGameForm(g, msg))
}

// handleCancelGame cancels an active game. No Score is created.
func (s *Server) handleCancelGame(w http.ResponseWriter, r *http.Request) {
	g, err := s.store.Game(r.Context(), chi.URLParam(r, "gameID"))
	if err != nil {
		s.fail(w, err)
		return
	}
	if err := g.Cancel(); err != nil {
		s.fail(w, err)
		return
	}
	if err := s.store.SaveGame(r.Context(), g); err != nil {
		s.fail(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"message": "Game has been cancelled."})
}

// handleGameHistory returns the game snapshot including its guess history.
func (s *Server) handleGameHistory(w http.ResponseWriter, r *http.Request) {
	g, err := s.store.Game(r.Context(), chi.URLParam(r, "gameID"))
	if err != nil {
		s.fail(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(toGameForm(g, "Game history"))
}

// handleUserGames returns a user's games that are not over.
func (s *Server) handleUserGames(w http.ResponseWriter, r *http.Request) {
	u, err := s.store.UserByName(r.Context(), chi.URLParam(r, "userName"))
	if err != nil {
		s.fail(w, err)
		return
	}
	games, err := s.store.ActiveGamesByUser(r.Context(), u.ID)
	if err != nil {
		s.fail(w, err)
		return
	}
	out := make([]gameForm, 0, len(games))
	for _, g := range games {
		out = append(out, toGameForm(g, ""))
	}
	_ = json.NewEncoder(w).Encode(out)
}

// handleAverageAttempts returns the cached statistic, or an empty message
// if it has never been computed.
func (s *Server) handleAverageAttempts(w http.ResponseWriter, r *http.Request) {
	_ = json.NewEncoder(w).Encode(map[string]string{"message": s.stats.Message()})
}

// ------------------------------- scores ------------------------------------

// handleScores returns all score records.
func (s *Server) handleScores(w http.ResponseWriter, r *http.Request) {
	scores, err := s.store.Scores(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(toScoreForms(scores))
}

// handleUserScores returns one user's score records.
func (s *Server) handleUserScores(w http.ResponseWriter, r *http.Request) {
	u, err := s.store.UserByName(r.Context(), chi.URLParam(r, "userName"))
	if err != nil {
		s.fail(w, err)
		return
	}
	scores, err := s.store.ScoresByUser(r.Context(), u.ID)
	if err != nil {
		s.fail(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(toScoreForms(scores))
}

// handleHighScores returns winning scores ordered by fewest wrong guesses.
// ?limit=N truncates the result (default 5). Not-found if no wins exist.
func (s *Server) handleHighScores(w http.ResponseWriter, r *http.Request) {
	limit := defaultHighScoreResults
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			http.Error(w, `{"error":"invalid_input","message":"limit must be a positive integer"}`, http.StatusBadRequest)
			return
		}
		limit = n
	}
	scores, err := s.store.TopScores(r.Context(), limit)
	if err != nil {
		s.fail(w, err)
		return
	}
	if len(scores) == 0 {
		http.Error(w, `{"error":"not_found","message":"No scores found."}`, http.StatusNotFound)
		return
	}
	_ = json.NewEncoder(w).Encode(toScoreForms(scores))
}
