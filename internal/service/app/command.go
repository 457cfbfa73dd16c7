package app

import (
	"context"
	"e2e_transport/internal/model"
	"e2e_transport/internal/repository/message"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

type cmdKind int

const (
	cmdSend cmdKind = iota
	cmdTo
	cmdRoom
	cmdInbox
	cmdHistory
	cmdUnsend
	cmdTyping
	cmdAccept
	cmdQuit
)

type command struct {
	kind cmdKind
	arg  string
	ts   int64
}

var errNoTarget = errors.New("no conversation selected, use /to <account id>")

const usage = "usage: /to <id> | /room | /inbox <blinded id> | /history | /unsend <timestamp> | /typing | /accept | /quit"

func parseLine(line string) (command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return command{}, errors.New(usage)
	}
	if !strings.HasPrefix(line, "/") {
		return command{kind: cmdSend, arg: line}, nil
	}

	fields := strings.Fields(line)
	argc := len(fields) - 1
	switch fields[0] {
	case "/to":
		if argc != 1 {
			break
		}
		id, err := model.ParseAccountID(fields[1])
		if err != nil {
			return command{}, err
		}
		if err := id.Require(model.PrefixStandard, model.PrefixGroup); err != nil {
			return command{}, err
		}
		return command{kind: cmdTo, arg: id.Hex()}, nil
	case "/room":
		return command{kind: cmdRoom}, nil
	case "/inbox":
		if argc != 1 {
			break
		}
		id, err := model.ParseAccountID(fields[1])
		if err != nil {
			return command{}, err
		}
		if !id.IsBlinded() {
			return command{}, fmt.Errorf("%s is not a blinded id", fields[1])
		}
		return command{kind: cmdInbox, arg: id.Hex()}, nil
	case "/history":
		return command{kind: cmdHistory}, nil
	case "/unsend":
		if argc != 1 {
			break
		}
		ts, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return command{}, fmt.Errorf("bad timestamp: %w", err)
		}
		return command{kind: cmdUnsend, ts: ts}, nil
	case "/typing":
		return command{kind: cmdTyping}, nil
	case "/accept":
		return command{kind: cmdAccept}, nil
	case "/quit":
		return command{kind: cmdQuit}, nil
	}
	return command{}, errors.New(usage)
}

// targetFor maps an account id to its conversation address.
func targetFor(id string) model.Address {
	if parsed, err := model.ParseAccountID(id); err == nil && parsed.Prefix == model.PrefixGroup {
		return model.GroupAddress(id)
	}
	return model.StandardAddress(id)
}

func (c *App) execute(ctx context.Context, cmd command) error {
	switch cmd.kind {
	case cmdTo:
		return c.selectTarget(ctx, targetFor(cmd.arg))
	case cmdRoom:
		return c.selectTarget(ctx, model.CommunityAddress(c.net.Host(), c.Config.Node.Room))
	case cmdInbox:
		return c.selectTarget(ctx, model.CommunityBlindedAddress(c.net.Host(), cmd.arg))
	}

	target, ok := c.currentTarget()
	if !ok {
		return errNoTarget
	}
	switch cmd.kind {
	case cmdSend:
		return c.send(ctx, target, &model.VisibleMessage{Text: cmd.arg})
	case cmdHistory:
		return c.history(ctx, target)
	case cmdUnsend:
		return c.send(ctx, target, &model.UnsendRequest{Timestamp: cmd.ts, Author: c.self})
	case cmdTyping:
		return c.send(ctx, target, &model.TypingIndicator{Started: true})
	case cmdAccept:
		if target.Kind == model.AddressStandard {
			if err := c.Accounts.Approve(ctx, target.ID, true); err != nil {
				return err
			}
		}
		return c.send(ctx, target, &model.MessageRequestResponse{Approved: true})
	}
	return nil
}

func (c *App) selectTarget(ctx context.Context, addr model.Address) error {
	if _, err := c.Messages.GetOrCreateThreadID(ctx, addr); err != nil {
		return err
	}
	c.outMu.Lock()
	c.target = addr
	c.outMu.Unlock()
	c.printf("now talking to %s\n", addr)
	return nil
}

func (c *App) currentTarget() (model.Address, bool) {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	return c.target, c.target.ID != "" || c.target.Server != ""
}

// send stores visible messages as outgoing before handing them to the sender,
// which updates the stored status.
func (c *App) send(ctx context.Context, target model.Address, body model.Body) error {
	m := &model.Message{
		Sender:        c.self,
		Recipient:     target.ID,
		SentTimestamp: c.Clock.NowMillis(),
		Body:          body,
	}

	v, visible := body.(*model.VisibleMessage)
	if visible {
		threadID, err := c.Messages.GetOrCreateThreadID(ctx, target)
		if err != nil {
			return err
		}
		id, err := c.Messages.Insert(ctx, &message.Document{
			ThreadID:      threadID,
			ThreadAddress: target,
			Author:        c.self,
			Timestamp:     m.SentTimestamp,
			Kind:          m.Kind().String(),
			Body:          v.Text,
			Outgoing:      true,
			Read:          true,
			Status:        message.StatusPending,
		})
		if err != nil {
			return err
		}
		m.ID = id
	}

	if err := c.sender.SendTo(ctx, m, target); err != nil {
		return err
	}
	if visible {
		c.printf("[%d] you: %s\n", m.SentTimestamp, v.Text)
	}
	return nil
}

func (c *App) history(ctx context.Context, target model.Address) error {
	threadID, ok, err := c.Messages.GetThreadID(ctx, target.String())
	if err != nil || !ok {
		return err
	}
	docs, err := c.Messages.List(ctx, threadID, 50)
	if err != nil {
		return err
	}
	for _, d := range docs {
		author := d.Author
		if d.Outgoing {
			author = "you"
		}
		c.printf("[%d] %s: %s (%s)\n", d.Timestamp, author, d.Body, d.Status)
	}
	return nil
}
