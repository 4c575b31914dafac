// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WhiskeyTracker Contributors

package main

import (
	"context"
	"io"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/whiskeytracker/whiskeytracker/internal/auth/postgres"
	"github.com/whiskeytracker/whiskeytracker/internal/store"
)

// Database is the part of *pgxpool.Pool the commands use.
type Database interface {
	postgres.Pool
	Ping(ctx context.Context) error
	Close()
}

// Migrator wraps the methods used from store.Migrator.
type Migrator interface {
	Up() error
	Steps(n int) error
	Force(version int) error
	Status() (*store.MigrationStatus, error)
	Close() error
}

// Deps contains injectable dependencies for the commands.
// All fields with nil values will use their default implementations.
type Deps struct {
	// Connect opens the database.
	// Default: store.Connect
	Connect func(ctx context.Context, url string, timeout time.Duration, logger *slog.Logger) (Database, error)

	// NewMigrator creates a schema migrator.
	// Default: store.NewMigrator
	NewMigrator func(url string) (Migrator, error)

	// Listen creates the API listener.
	// Default: net.Listen
	Listen func(network, address string) (net.Listener, error)

	// LogOutput receives the process log.
	// Default: os.Stderr
	LogOutput io.Writer
}

func (d *Deps) withDefaults() *Deps {
	out := Deps{}
	if d != nil {
		out = *d
	}
	if out.Connect == nil {
		out.Connect = func(ctx context.Context, url string, timeout time.Duration, logger *slog.Logger) (Database, error) {
			pool, err := store.Connect(ctx, url, timeout, logger)
			if err != nil {
				return nil, err
			}
			return pool, nil
		}
	}
	if out.NewMigrator == nil {
		out.NewMigrator = func(url string) (Migrator, error) {
			m, err := store.NewMigrator(url)
			if err != nil {
				return nil, err
			}
			return m, nil
		}
	}
	if out.Listen == nil {
		out.Listen = net.Listen
	}
	if out.LogOutput == nil {
		out.LogOutput = os.Stderr
	}
	return &out
}
