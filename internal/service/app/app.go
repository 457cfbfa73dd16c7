// Package app is the headless client: it polls the relay, feeds the receive
// pipeline and sends what the user types.
package app

import (
	"bufio"
	"context"
	"e2e_transport/internal/config"
	"e2e_transport/internal/model"
	"e2e_transport/internal/protocol/codec"
	"e2e_transport/internal/protocol/strategy"
	"e2e_transport/internal/repository/account"
	"e2e_transport/internal/repository/dedup"
	"e2e_transport/internal/repository/message"
	"e2e_transport/internal/service/groupcontrol"
	"e2e_transport/internal/service/network"
	"e2e_transport/internal/service/receiver"
	"e2e_transport/internal/service/redis"
	"e2e_transport/internal/service/sender"
	"e2e_transport/internal/utils/clock"
	"e2e_transport/internal/utils/log"
	"e2e_transport/internal/utils/task"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"
)

// callQueueSize bounds pending call signaling messages.
const callQueueSize = 16

type (
	Deps struct {
		Config   *config.Config
		Accounts *account.AccountRepo
		Messages *message.MessageRepo
		Redis    *redis.RedisService
		Dedup    dedup.Store
		Clock    *clock.NetworkClock
		Out      io.Writer
	}

	App struct {
		Deps

		user     *model.UserKeyPair
		self     string
		net      *network.Client
		codec    *codec.Codec
		sender   *sender.Sender
		receiver *receiver.Processor
		spawner  *task.Spawner
		calls    chan *model.Message
		wake     chan struct{}

		outMu  sync.Mutex
		target model.Address
		// retry holds messages whose processing failed transiently.
		retry []*model.Message
	}
)

func NewApp(d Deps) *App {
	return &App{
		Deps:  d,
		calls: make(chan *model.Message, callQueueSize),
		wake:  make(chan struct{}, 1),
	}
}

// Run blocks until in is exhausted, the user quits or ctx is cancelled.
func (c *App) Run(ctx context.Context, name string, in io.Reader) error {
	acc, err := c.getAccountAndCreateIfNotExist(ctx, name)
	if err != nil {
		return fmt.Errorf("get account: %w", err)
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.wire(ctx, acc.KeyPair())
	c.printf("You are %s (%s)\n", acc.Name, c.self)

	go c.subscribe(ctx)
	go c.pollLoop(ctx)
	go c.drainCalls(ctx)

	err = c.readInput(ctx, in)
	cancel()
	c.spawner.Wait()
	return err
}

func (c *App) wire(ctx context.Context, user *model.UserKeyPair) {
	c.user = user
	c.self = user.AccountID().Hex()
	c.spawner = task.NewSpawner(ctx)
	c.net = network.New(c.Config.Node.URL, user.PublicKey(), c.Clock)
	c.codec = codec.New(user, c.Accounts, c.Accounts, c.Accounts, c.Dedup, c.Clock)

	c.sender = sender.New(sender.Deps{
		User:      user,
		Strategy:  strategy.New(user, c.Accounts, c.Accounts),
		Storage:   c.Messages,
		Dedup:     c.Dedup,
		Swarm:     c.net,
		Community: c.net,
		Groups:    c.Accounts,
		Settings:  c.Accounts,
		Clock:     c.Clock,
		Spawner:   c.spawner,
		Features:  c.Config.Network,
	})

	groups := groupcontrol.NewHandler(user, &groupManager{
		self:     c.self,
		accounts: c.Accounts,
		messages: c.Messages,
		printf:   c.printf,
	}, c.Messages, c.Accounts, c.spawner)

	c.receiver = receiver.New(receiver.Deps{
		User:         user,
		Threads:      c.Messages,
		Messages:     c.Messages,
		Contacts:     c.Accounts,
		Communities:  c.net,
		Parser:       c.codec,
		Groups:       groups,
		Notifier:     c,
		ReadReceipts: c,
		Typing:       c,
		Expiry:       c,
		Requests:     c,
		Visible:      c,
		Remote:       c.net,
		Calls:        c.calls,
		Clock:        c.Clock,
		Spawner:      c.spawner,
	})
}

func (c *App) readInput(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		cmd, err := parseLine(scanner.Text())
		if err != nil {
			c.printf("%v\n", err)
			continue
		}
		if cmd.kind == cmdQuit {
			return nil
		}
		if err := c.execute(ctx, cmd); err != nil {
			log.Error("command failed", zap.Error(err))
			c.printf("error: %v\n", err)
		}
	}
	return scanner.Err()
}

func (c *App) printf(format string, args ...any) {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	fmt.Fprintf(c.Out, format, args...)
}

func (c *App) drainCalls(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-c.calls:
			if call, ok := m.Body.(*model.CallMessage); ok {
				c.printf("call signaling from %s (call %s)\n", m.Sender, call.CallID)
			}
		}
	}
}
