package main

import (
	"context"
	"fmt"
	"time"

	"github.com/banglabot/quest-service/internal/platform/logging"
	"github.com/banglabot/quest-service/internal/progress"
	"github.com/banglabot/quest-service/internal/quest"
	"github.com/banglabot/quest-service/internal/questclient"
	"github.com/banglabot/quest-service/internal/region"
)

// commandContext lazily opens the backend shared by every subcommand.
type commandContext struct {
	serverURL   string
	token       string
	dbPath      string
	catalogPath string
	userID      string
	revealDelay time.Duration

	backend *backend
}

type backend struct {
	catalog *region.Catalog
	content quest.ContentProvider
	engine  *quest.Engine
	inbox   *quest.Inbox
	closers []func()
}

func (c *commandContext) open(ctx context.Context) (*backend, error) {
	if c.backend != nil {
		return c.backend, nil
	}

	catalog, err := c.loadCatalog()
	if err != nil {
		return nil, fmt.Errorf("region catalog: %w", err)
	}
	b := &backend{catalog: catalog, inbox: quest.NewInbox()}

	var progressClient quest.ProgressClient
	if c.serverURL != "" {
		var opts []questclient.Option
		if c.token != "" {
			opts = append(opts, questclient.WithToken(c.token))
		}
		client, err := questclient.New(c.serverURL, opts...)
		if err != nil {
			return nil, err
		}
		b.content = client
		progressClient = client
	} else {
		repo, err := progress.OpenSQLite(ctx, c.dbPath)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, func() { _ = repo.Close() })

		svc, err := progress.NewService(catalog, repo, progress.NewSystemClock(), progress.NewUUIDGenerator(), progress.DefaultPassRatio)
		if err != nil {
			b.shutdown()
			return nil, err
		}
		content, err := quest.NewStaticProvider()
		if err != nil {
			b.shutdown()
			return nil, err
		}
		b.content = content
		progressClient = svc
	}

	b.engine, err = quest.NewEngine(quest.Config{
		Catalog:     catalog,
		Content:     b.content,
		Progress:    progressClient,
		Notifier:    b.inbox,
		Logger:      logging.Discard(),
		RevealDelay: c.revealDelay,
	})
	if err != nil {
		b.shutdown()
		return nil, err
	}

	c.backend = b
	return b, nil
}

func (c *commandContext) loadCatalog() (*region.Catalog, error) {
	if c.catalogPath != "" {
		return region.LoadFile(c.catalogPath)
	}
	return region.Default()
}

func (c *commandContext) close() {
	if c.backend != nil {
		c.backend.shutdown()
		c.backend = nil
	}
}

func (b *backend) shutdown() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
	b.closers = nil
}
