package main

import (
	"context"
	"crypto/ed25519"
	"e2e_transport/internal/config"
	"e2e_transport/internal/service/node"
	redisSvc "e2e_transport/internal/service/redis"
	"e2e_transport/internal/utils/clock"
	"e2e_transport/internal/utils/log"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if errors.Is(err, config.ErrNotFound) {
		cfg = config.Default()
	} else if err != nil {
		log.Fatal("load config failed", zap.Error(err))
	}
	if err := log.SetLevel(cfg.LogLevel); err != nil {
		log.Fatal("invalid log level", zap.Error(err))
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb := redisSvc.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	defer rdb.Close()
	redis := redisSvc.NewRedis(rdb)

	key, err := node.LoadOrCreateKey(ctx, redis)
	if err != nil {
		log.Fatal("load node key failed", zap.Error(err))
	}

	s := node.NewHttpServer(redis, key.Public().(ed25519.PublicKey), clock.NewNetworkClock())
	if err := s.Run(ctx, cfg.Node.Listen); err != nil {
		log.Fatal("node stopped", zap.Error(err))
	}
}
