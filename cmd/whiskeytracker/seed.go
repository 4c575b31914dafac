// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WhiskeyTracker Contributors

package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/whiskeytracker/whiskeytracker/internal/auth"
	"github.com/whiskeytracker/whiskeytracker/internal/auth/postgres"
	"github.com/whiskeytracker/whiskeytracker/internal/logging"
)

// Default timeout for seed command.
const defaultSeedTimeout = 30 * time.Second

// seedFile is the YAML document read by the seed command.
type seedFile struct {
	Users []seedUser `yaml:"users"`
}

type seedUser struct {
	Username string `yaml:"username"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	Role     string `yaml:"role"`
	// Active defaults to true when omitted.
	Active *bool `yaml:"active"`
}

func (u seedUser) active() bool {
	return u.Active == nil || *u.Active
}

// seedConfig holds configuration for the seed command.
type seedConfig struct {
	file    string
	dryRun  bool
	timeout time.Duration
}

// NewSeedCmd creates the seed subcommand.
func NewSeedCmd() *cobra.Command {
	return newSeedCmd(nil)
}

func newSeedCmd(deps *Deps) *cobra.Command {
	cfg := &seedConfig{}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create users from a YAML seed file",
		Long: `Creates the users listed in a YAML seed file, typically the first admin.
This command is idempotent - users whose username or email already exists
are skipped. --dry-run validates the file without touching the database.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSeedCmd(cmd, cfg, deps)
		},
	}

	cmd.Flags().StringVarP(&cfg.file, "file", "f", "", "seed file path (YAML)")
	cmd.Flags().BoolVar(&cfg.dryRun, "dry-run", false, "validate the seed file only")
	cmd.Flags().DurationVar(&cfg.timeout, "timeout", defaultSeedTimeout, "timeout for database operations (e.g., 30s, 1m)")
	//nolint:errcheck // flag exists
	cmd.MarkFlagRequired("file")

	return cmd
}

func runSeedCmd(cmd *cobra.Command, cfg *seedConfig, deps *Deps) error {
	deps = deps.withDefaults()

	seeds, err := loadSeedFile(cfg.file)
	if err != nil {
		return err
	}
	if err := seeds.validate(); err != nil {
		return err
	}
	if cfg.dryRun {
		cmd.Printf("Seed file valid: %d user(s)\n", len(seeds.Users))
		return nil
	}

	appCfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := appCfg.ValidateDatabase(); err != nil {
		return err
	}

	// Use cmd.Context() to respect SIGINT/SIGTERM signals
	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.timeout)
	defer cancel()

	logger := logging.Setup(logging.Options{Service: serviceName, Version: version, Format: "text", Output: deps.LogOutput})

	cmd.Println("Connecting to database...")
	db, err := deps.Connect(ctx, appCfg.Database.URL, appCfg.Database.ConnectTimeout, logger)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	defer db.Close()

	hasher, err := auth.NewPasswordHasher(appCfg.Auth.Hasher, appCfg.Auth.BcryptCost)
	if err != nil {
		return err
	}

	created, skipped, err := seedUsers(ctx, cmd, postgres.NewUserRepository(db), hasher, seeds)
	if err != nil {
		return err
	}
	cmd.Printf("Seeding complete: %d created, %d skipped\n", created, skipped)
	return nil
}

func loadSeedFile(path string) (*seedFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, oops.Code("SEED_READ_FAILED").With("path", path).Wrap(err)
	}
	defer func() { _ = f.Close() }()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)

	var seeds seedFile
	if err := dec.Decode(&seeds); err != nil {
		return nil, oops.Code("SEED_INVALID").With("path", path).Wrapf(err, "parse seed file")
	}
	return &seeds, nil
}

// validate checks every entry up front so a bad file creates nothing.
func (s *seedFile) validate() error {
	if len(s.Users) == 0 {
		return oops.Code("SEED_INVALID").Errorf("seed file lists no users")
	}
	for i, u := range s.Users {
		for _, check := range []func() error{
			func() error { return auth.ValidateUsername(u.Username) },
			func() error { return auth.ValidateEmail(u.Email) },
			func() error { return auth.ValidatePassword(u.Password) },
			func() error { _, err := auth.ParseRole(u.Role); return err },
		} {
			if err := check(); err != nil {
				return oops.Code("SEED_INVALID").
					With("index", i).
					With("username", u.Username).
					Wrapf(err, "user %d", i)
			}
		}
	}
	return nil
}

// seedUsers creates each user that does not exist yet.
func seedUsers(ctx context.Context, cmd *cobra.Command, repo auth.UserRepository, hasher auth.PasswordHasher, seeds *seedFile) (created, skipped int, err error) {
	for _, su := range seeds.Users {
		exists, err := userExists(ctx, repo, su)
		if err != nil {
			return created, skipped, err
		}
		if exists {
			cmd.Printf("User %s already exists, skipping\n", su.Username)
			skipped++
			continue
		}

		role, err := auth.ParseRole(su.Role)
		if err != nil {
			return created, skipped, err
		}
		hash, err := hasher.Hash(su.Password)
		if err != nil {
			return created, skipped, oops.Code("SEED_FAILED").With("username", su.Username).Wrap(err)
		}
		user, err := auth.NewUser(su.Username, su.Email, hash, role)
		if err != nil {
			return created, skipped, err
		}
		user.IsActive = su.active()

		if err := repo.Create(ctx, user); err != nil {
			if errors.Is(err, auth.ErrDuplicate) {
				cmd.Printf("User %s already exists, skipping\n", su.Username)
				skipped++
				continue
			}
			return created, skipped, oops.Code("SEED_FAILED").With("username", su.Username).Wrap(err)
		}
		cmd.Printf("Created %s user %s (id %d)\n", role, user.Username, user.ID)
		created++
	}
	return created, skipped, nil
}

func userExists(ctx context.Context, repo auth.UserRepository, su seedUser) (bool, error) {
	lookups := []func() (*auth.User, error){
		func() (*auth.User, error) { return repo.GetByUsername(ctx, su.Username) },
		func() (*auth.User, error) { return repo.GetByEmail(ctx, su.Email) },
	}
	for _, lookup := range lookups {
		_, err := lookup()
		switch {
		case err == nil:
			return true, nil
		case !errors.Is(err, auth.ErrNotFound):
			return false, oops.Code("SEED_FAILED").With("username", su.Username).Wrap(err)
		}
	}
	return false, nil
}
