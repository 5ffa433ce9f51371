package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/jmendes/chatwire/internal/chat"
	"github.com/jmendes/chatwire/internal/config"
	"github.com/jmendes/chatwire/internal/message"
	"github.com/jmendes/chatwire/internal/push"
	"github.com/jmendes/chatwire/internal/server"
	"github.com/jmendes/chatwire/internal/session"
	"github.com/jmendes/chatwire/internal/storage"
	"github.com/jmendes/chatwire/internal/user"
)

func main() {
	_ = godotenv.Load()

	var configPath string
	flag.StringVar(&configPath, "config", "", "optional YAML config file")
	flag.Parse()

	var cfg config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := storage.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to open database at %s: %v", cfg.DatabasePath, err)
	}
	defer db.Close()

	users := user.NewDirectory(db)

	var messages message.Store
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("Failed to connect to Redis at %s: %v", cfg.RedisAddr, err)
		}
		log.Printf("Connected to Redis at %s", cfg.RedisAddr)
		messages = message.NewRedisStore(rdb)
	} else {
		messages, err = message.NewSQLiteStore(db)
		if err != nil {
			log.Fatalf("Failed to initialize message store: %v", err)
		}
	}

	sessions := session.NewStore(users, cfg.SessionTTL)
	registry := push.NewRegistry(push.WithSendBuffer(cfg.SendBufferSize))
	svc := chat.NewService(users, sessions, messages, registry)
	srv := server.New(cfg.ListenAddr, svc, push.NewHandler(registry))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Printf("Starting chatwire server on %s", cfg.ListenAddr)
	if err := srv.Run(ctx); err != nil {
		log.Fatalf("Server error: %v", err)
	}
	registry.Shutdown()
}
