package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kaiwen7/typebattle-backend/config"
	"github.com/kaiwen7/typebattle-backend/internal/article"
	"github.com/kaiwen7/typebattle-backend/internal/auth"
	"github.com/kaiwen7/typebattle-backend/internal/history"
	"github.com/kaiwen7/typebattle-backend/internal/room"
	"github.com/kaiwen7/typebattle-backend/internal/ws"
	redisPkg "github.com/kaiwen7/typebattle-backend/pkg/redis"
	wsPkg "github.com/kaiwen7/typebattle-backend/pkg/websocket"
)

func main() {
	cfg := config.LoadConfig()

	var db *sql.DB
	if cfg.DBUrl != "" {
		var err error
		db, err = sql.Open("postgres", cfg.DBUrl)
		if err != nil {
			log.Fatal("Failed to connect database:", err)
		}
		defer db.Close()
	} else {
		log.Println("DB_URL not set, match history disabled")
	}

	var rdb *goredis.Client
	if cfg.RedisAddr != "" {
		rdb = redisPkg.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword)
	} else {
		log.Println("REDIS_ADDR not set, leaderboard disabled")
	}

	hub := wsPkg.NewHub()
	store := room.NewStore()
	go store.RunSweeper(context.Background())

	selector := article.NewSelector()
	authService := auth.NewService(cfg)
	authHandler := auth.NewAuthHandler(authService)

	historyService := history.NewService(db, rdb)
	if err := historyService.EnsureSchema(); err != nil {
		log.Fatal("Failed to prepare database:", err)
	}
	historyHandler := history.NewHandler(historyService)

	coordinator := ws.NewCoordinator(hub, store, selector, authService, historyService)

	r := chi.NewRouter()
	r.Post("/api/v1/guest", authHandler.Guest)
	r.Get("/api/v1/leaderboard", historyHandler.Leaderboard)
	r.Get("/api/v1/matches", historyHandler.Matches)
	r.Get("/ws", coordinator.ServeWS)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(struct {
			Status  string `json:"status"`
			Clients int    `json:"clients"`
		}{Status: "ok", Clients: hub.Count()})
	})

	log.Println("Server started at", cfg.Addr)
	log.Fatal(http.ListenAndServe(cfg.Addr, r))
}
