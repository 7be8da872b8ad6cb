package main

import (
	"context"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/joelzeal/guess-the-word/internal/httpserver"
	"github.com/joelzeal/guess-the-word/internal/stats"
	"github.com/joelzeal/guess-the-word/internal/store"
	"github.com/joelzeal/guess-the-word/internal/words"
)

func main() {
	_ = godotenv.Load()
	if lvl, err := zerolog.ParseLevel(getEnv("LOG_LEVEL", "info")); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	if err := words.Init(); err != nil {
		log.Fatal().Err(err).Msg("failed to load word list")
	}

	st, err := store.Open(getEnv("DB_PATH", "./data/guessword.db"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer st.Close()

	cache := stats.NewCache()
	refresher := stats.NewRefresher(st, cache)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stop := refresher.Start(ctx, getInterval("STATS_REFRESH_INTERVAL", 5*time.Minute))
	defer stop()

	srv := httpserver.New(st, cache, refresher)
	port := getEnv("PORT", "8080")
	log.Info().Str("port", port).Int("words", words.Count()).Msg("starting guess-the-word server")
	if err := srv.Start(":" + port); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getInterval(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
