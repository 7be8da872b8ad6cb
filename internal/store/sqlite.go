// internal/store/sqlite.go
//
// SQLite implementation of the Store interface.
// Responsibilities:
//   - Opening the database with safe defaults (WAL, busy timeout, foreign keys).
//   - Applying embedded migrations from sql/*.sql (idempotent, recorded in
//     _migrations).
//   - All user/game/score queries, including the aggregate reads
//     (average attempts, high scores, rankings).

package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"github.com/joelzeal/guess-the-word/internal/game"
)

//go:embed sql/*.sql
var migrationsFS embed.FS

const dateFormat = "2006-01-02"

// SQLite is a Store backed by a SQLite database file.
type SQLite struct {
	db *sql.DB
}

// Open opens (and creates if missing) a SQLite database file and applies
// pending migrations.
func Open(dsn string) (*SQLite, error) {
	// Ensure directory exists for ./data/app.db, etc.
	dir := filepath.Dir(dsn)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", dsn+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`PRAGMA foreign_keys = ON; PRAGMA journal_mode = WAL;`); err != nil {
		return nil, fmt.Errorf("set pragmas: %w", err)
	}
	if err := migrate(db); err != nil {
		return nil, err
	}
	return &SQLite{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLite) Close() error { return s.db.Close() }

// migrate applies embedded SQL migrations in lexical order.
// A _migrations table tracks applied files so reruns are no-ops.
func migrate(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS _migrations (name TEXT PRIMARY KEY);`); err != nil {
		return fmt.Errorf("create _migrations: %w", err)
	}

	entries, err := migrationsFS.ReadDir("sql")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(strings.ToLower(e.Name()), ".sql") {
			files = append(files, "sql/"+e.Name())
		}
	}
	sort.Strings(files)

	for _, f := range files {
		var done int
		err := db.QueryRow(`SELECT 1 FROM _migrations WHERE name=?`, f).Scan(&done)
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("query _migrations: %w", err)
		}

		sqlBytes, err := migrationsFS.ReadFile(f)
		if err != nil {
			return fmt.Errorf("read %s: %w", f, err)
		}

		tx, err := db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(string(sqlBytes)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply %s: %w", f, err)
		}
		if _, err := tx.Exec(`INSERT INTO _migrations(name) VALUES (?)`, f); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record %s: %w", f, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit %s: %w", f, err)
		}
		log.Info().Str("migration", f).Msg("applied")
	}
	return nil
}

/* -------------------------------- users --------------------------------- */

func (s *SQLite) CreateUser(ctx context.Context, name, email string) (*User, error) {
	var exists int
	_ = s.db.QueryRowContext(ctx, `SELECT 1 FROM users WHERE lower(name)=lower(?)`, name).Scan(&exists)
	if exists == 1 {
		return nil, ErrConflict
	}
	u := &User{
		ID:        NewID(),
		Name:      name,
		Email:     email,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO users (id, name, email, created_at) VALUES (?,?,?,?)`,
		u.ID, u.Name, u.Email, u.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

func (s *SQLite) UserByName(ctx context.Context, name string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, email, created_at FROM users WHERE lower(name)=lower(?)`, name)
	return scanUser(row)
}

func (s *SQLite) Users(ctx context.Context) ([]*User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, email, created_at FROM users ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*User
	for rows.Next() {
		var u User
		var created string
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &created); err != nil {
			return nil, err
		}
		u.CreatedAt, _ = time.Parse(time.RFC3339, created)
		out = append(out, &u)
	}
	return out, rows.Err()
}

func scanUser(row *sql.Row) (*User, error) {
	var u User
	var created string
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	u.CreatedAt, _ = time.Parse(time.RFC3339, created)
	return &u, nil
}

/* -------------------------------- games --------------------------------- */

// gameRow matches the games table shape.
type gameRow struct {
	ID                string
	UserID            string
	UserName          string
	TargetWord        string
	HiddenLetters     string
	MaskedWord        string
	AttemptsAllowed   int
	AttemptsRemaining int
	GameOver          bool
	Cancelled         bool
	Won               bool
	History           string
	CreatedAt         string
}

// toDomain converts a database row into a game.Game.
func (r *gameRow) toDomain() (*game.Game, error) {
	var history []game.HistoryEntry
	if err := json.Unmarshal([]byte(r.History), &history); err != nil {
		return nil, fmt.Errorf("decode history for game %s: %w", r.ID, err)
	}
	created, _ := time.Parse(time.RFC3339, r.CreatedAt)
	return &game.Game{
		ID:                r.ID,
		UserID:            r.UserID,
		UserName:          r.UserName,
		TargetWord:        r.TargetWord,
		HiddenLetters:     splitLetters(r.HiddenLetters),
		MaskedWord:        r.MaskedWord,
		AttemptsAllowed:   r.AttemptsAllowed,
		AttemptsRemaining: r.AttemptsRemaining,
		Over:              r.GameOver,
		Cancelled:         r.Cancelled,
		Won:               r.Won,
		History:           history,
		CreatedAt:         created,
	}, nil
}

// splitLetters expands the stored letter string ("ac") into a slice.
func splitLetters(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, "")
}

func (s *SQLite) CreateGame(ctx context.Context, g *game.Game) error {
	history, err := json.Marshal(g.History)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
        INSERT INTO games
            (id, user_id, target_word, hidden_letters, masked_word,
             attempts_allowed, attempts_remaining, game_over, cancelled, won,
             history, created_at)
        VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		g.ID, g.UserID, g.TargetWord, strings.Join(g.HiddenLetters, ""), g.MaskedWord,
		g.AttemptsAllowed, g.AttemptsRemaining, g.Over, g.Cancelled, g.Won,
		string(history), g.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert game: %w", err)
	}
	return nil
}

const gameColumns = `g.id, g.user_id, u.name, g.target_word, g.hidden_letters,
    g.masked_word, g.attempts_allowed, g.attempts_remaining, g.game_over,
    g.cancelled, g.won, g.history, g.created_at`

func (s *SQLite) Game(ctx context.Context, id string) (*game.Game, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT `+gameColumns+`
        FROM games g JOIN users u ON u.id = g.user_id
        WHERE g.id=?`, id)
	var r gameRow
	if err := row.Scan(&r.ID, &r.UserID, &r.UserName, &r.TargetWord, &r.HiddenLetters,
		&r.MaskedWord, &r.AttemptsAllowed, &r.AttemptsRemaining, &r.GameOver,
		&r.Cancelled, &r.Won, &r.History, &r.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return r.toDomain()
}

func (s *SQLite) SaveGame(ctx context.Context, g *game.Game) error {
	history, err := json.Marshal(g.History)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
        UPDATE games
        SET hidden_letters=?, masked_word=?, attempts_remaining=?,
            game_over=?, cancelled=?, won=?, history=?
        WHERE id=?`,
		strings.Join(g.HiddenLetters, ""), g.MaskedWord, g.AttemptsRemaining,
		g.Over, g.Cancelled, g.Won, string(history), g.ID,
	)
	if err != nil {
		return fmt.Errorf("update game: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLite) ActiveGamesByUser(ctx context.Context, userID string) ([]*game.Game, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT `+gameColumns+`
        FROM games g JOIN users u ON u.id = g.user_id
        WHERE g.user_id=? AND g.game_over=0
        ORDER BY g.created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*game.Game
	for rows.Next() {
		var r gameRow
		if err := rows.Scan(&r.ID, &r.UserID, &r.UserName, &r.TargetWord, &r.HiddenLetters,
			&r.MaskedWord, &r.AttemptsAllowed, &r.AttemptsRemaining, &r.GameOver,
			&r.Cancelled, &r.Won, &r.History, &r.CreatedAt); err != nil {
			return nil, err
		}
		g, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *SQLite) AverageAttemptsRemaining(ctx context.Context) (float64, int, error) {
	var avg float64
	var n int
	err := s.db.QueryRowContext(ctx, `
        SELECT COALESCE(AVG(attempts_remaining), 0), COUNT(1)
        FROM games WHERE game_over=0`).Scan(&avg, &n)
	if err != nil {
		return 0, 0, err
	}
	return avg, n, nil
}

/* -------------------------------- scores -------------------------------- */

func (s *SQLite) CreateScore(ctx context.Context, sc *game.Score) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO scores (user_id, date, won, guesses) VALUES (?,?,?,?)`,
		sc.UserID, sc.Date.Format(dateFormat), sc.Won, sc.Guesses)
	if err != nil {
		return fmt.Errorf("insert score: %w", err)
	}
	sc.ID, _ = res.LastInsertId()
	return nil
}

func (s *SQLite) Scores(ctx context.Context) ([]*game.Score, error) {
	return s.queryScores(ctx, `
        SELECT s.id, s.user_id, u.name, s.date, s.won, s.guesses
        FROM scores s JOIN users u ON u.id = s.user_id
        ORDER BY s.id`)
}

func (s *SQLite) ScoresByUser(ctx context.Context, userID string) ([]*game.Score, error) {
	return s.queryScores(ctx, `
        SELECT s.id, s.user_id, u.name, s.date, s.won, s.guesses
        FROM scores s JOIN users u ON u.id = s.user_id
        WHERE s.user_id=?
        ORDER BY s.id`, userID)
}

func (s *SQLite) TopScores(ctx context.Context, limit int) ([]*game.Score, error) {
	if limit <= 0 {
		limit = 5
	}
	return s.queryScores(ctx, `
        SELECT s.id, s.user_id, u.name, s.date, s.won, s.guesses
        FROM scores s JOIN users u ON u.id = s.user_id
        WHERE s.won=1
        ORDER BY s.guesses ASC, s.id ASC
        LIMIT ?`, limit)
}

func (s *SQLite) queryScores(ctx context.Context, query string, args ...any) ([]*game.Score, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*game.Score
	for rows.Next() {
		var sc game.Score
		var date string
		if err := rows.Scan(&sc.ID, &sc.UserID, &sc.UserName, &date, &sc.Won, &sc.Guesses); err != nil {
			return nil, err
		}
		sc.Date, _ = time.Parse(dateFormat, date)
		out = append(out, &sc)
	}
	return out, rows.Err()
}

/* ------------------------------- rankings ------------------------------- */

func (s *SQLite) Rankings(ctx context.Context) ([]Ranking, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT u.name, COUNT(s.id), COALESCE(SUM(s.won), 0)
        FROM users u LEFT JOIN scores s ON s.user_id = u.id
        GROUP BY u.id, u.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Ranking
	for rows.Next() {
		var name string
		var total, wins int
		if err := rows.Scan(&name, &total, &wins); err != nil {
			return nil, err
		}
		out = append(out, Ranking{UserName: name, Performance: performance(wins, total)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sortRankings(out)
	return out, nil
}

// performance is wins/total, or -1 when the user has no completed games.
func performance(wins, total int) float64 {
	if total == 0 {
		return -1.0
	}
	return float64(wins) / float64(total)
}

// sortRankings orders descending by performance, name ascending on ties.
func sortRankings(r []Ranking) {
	sort.Slice(r, func(i, j int) bool {
		if r[i].Performance != r[j].Performance {
			return r[i].Performance > r[j].Performance
		}
		return r[i].UserName < r[j].UserName
	})
}
