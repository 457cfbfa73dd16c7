package main

import (
	"context"
	"e2e_transport/internal/config"
	"e2e_transport/internal/repository/account"
	"e2e_transport/internal/repository/dedup"
	"e2e_transport/internal/repository/message"
	"e2e_transport/internal/service/app"
	redisSvc "e2e_transport/internal/service/redis"
	"e2e_transport/internal/utils/clock"
	"e2e_transport/internal/utils/log"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
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

	name := cfg.Account.Name
	if flag.NArg() > 0 {
		name = flag.Arg(0)
	}
	if name == "" {
		log.Fatal("usage: client [-config path] <account name>")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mongoDBClient, err := initMongo(ctx, cfg.Mongo.URI)
	if err != nil {
		log.Fatal("connect mongo failed", zap.Error(err))
	}
	defer mongoDBClient.Disconnect(context.Background())
	db := mongoDBClient.Database(cfg.Mongo.Database)

	rdb := redisSvc.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	defer rdb.Close()
	redis := redisSvc.NewRedis(rdb)

	store, err := dedup.Open(cfg.Dedup, redis)
	if err != nil {
		log.Fatal("open dedup store failed", zap.Error(err))
	}
	defer store.Close()

	messages := message.NewMessageRepo(db)
	if err := messages.EnsureIndexes(ctx); err != nil {
		log.Fatal("create indexes failed", zap.Error(err))
	}

	netClock := clock.NewNetworkClock()
	c := app.NewApp(app.Deps{
		Config:   cfg,
		Accounts: account.NewAccountRepo(db, name, netClock),
		Messages: messages,
		Redis:    redis,
		Dedup:    store,
		Clock:    netClock,
		Out:      os.Stdout,
	})
	if err := c.Run(ctx, name, os.Stdin); err != nil {
		log.Fatal("client stopped", zap.Error(err))
	}
}

func initMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	return client, client.Ping(ctx, nil)
}
