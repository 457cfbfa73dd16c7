package app

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"e2e_transport/internal/model"
	"e2e_transport/internal/repository/account"
)

func (c *App) getAccountAndCreateIfNotExist(ctx context.Context, name string) (*account.Account, error) {
	acc, err := c.Accounts.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}

	if acc != nil {
		return acc, nil
	}

	acc, err = newAccount(name, c.Clock.NowMillis())
	if err != nil {
		return nil, err
	}
	if _, err := c.Accounts.Create(ctx, acc); err != nil {
		return nil, err
	}
	return acc, nil
}

func newAccount(name string, now int64) (*account.Account, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &account.Account{
		Name: name,
		Seed: priv.Seed(),
		Profile: model.Profile{
			DisplayName: name,
			LastUpdated: now / 1000,
		},
		ContactsUpdatedAt: now,
	}, nil
}
