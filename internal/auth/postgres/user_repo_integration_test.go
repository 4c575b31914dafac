// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WhiskeyTracker Contributors

//go:build integration

package postgres_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/whiskeytracker/whiskeytracker/internal/auth"
	"github.com/whiskeytracker/whiskeytracker/internal/auth/postgres"
	"github.com/whiskeytracker/whiskeytracker/pkg/errutil"
)

var _ = Describe("UserRepository", func() {
	var (
		ctx  context.Context
		repo *postgres.UserRepository
	)

	BeforeEach(func() {
		ctx = context.Background()
		repo = postgres.NewUserRepository(testPool)
		_, err := testPool.Exec(ctx, `TRUNCATE users RESTART IDENTITY CASCADE`)
		Expect(err).NotTo(HaveOccurred())
	})

	newUser := func(username, email string) *auth.User {
		u, err := auth.NewUser(username, email, "$2a$10$hash", auth.RoleStandard)
		Expect(err).NotTo(HaveOccurred())
		return u
	}

	It("assigns sequential ids", func() {
		first := newUser("alice", "alice@example.com")
		second := newUser("bob", "bob@example.com")
		Expect(repo.Create(ctx, first)).To(Succeed())
		Expect(repo.Create(ctx, second)).To(Succeed())
		Expect(first.ID).To(Equal(int64(1)))
		Expect(second.ID).To(Equal(int64(2)))
	})

	It("round-trips every column", func() {
		u := newUser("alice", "alice@example.com")
		u.Role = auth.RoleAdmin
		Expect(repo.Create(ctx, u)).To(Succeed())

		stored, err := repo.GetByID(ctx, u.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(stored.Username).To(Equal("alice"))
		Expect(stored.Email).To(Equal("alice@example.com"))
		Expect(stored.PasswordHash).To(Equal("$2a$10$hash"))
		Expect(stored.Role).To(Equal(auth.RoleAdmin))
		Expect(stored.IsActive).To(BeTrue())
	})

	It("looks users up case-insensitively", func() {
		u := newUser("Alice", "Alice@Example.com")
		Expect(repo.Create(ctx, u)).To(Succeed())

		byName, err := repo.GetByUsername(ctx, "alice")
		Expect(err).NotTo(HaveOccurred())
		Expect(byName.ID).To(Equal(u.ID))

		byEmail, err := repo.GetByEmail(ctx, "ALICE@EXAMPLE.COM")
		Expect(err).NotTo(HaveOccurred())
		Expect(byEmail.ID).To(Equal(u.ID))
	})

	It("reports which field collided", func() {
		Expect(repo.Create(ctx, newUser("alice", "alice@example.com"))).To(Succeed())

		err := repo.Create(ctx, newUser("ALICE", "other@example.com"))
		Expect(errutil.Code(err)).To(Equal(auth.CodeDuplicateUsername))
		Expect(err).To(MatchError(auth.ErrDuplicate))

		err = repo.Create(ctx, newUser("bob", "ALICE@example.com"))
		Expect(errutil.Code(err)).To(Equal(auth.CodeDuplicateEmail))
	})

	It("returns not found for unknown users", func() {
		_, err := repo.GetByID(ctx, 999)
		Expect(err).To(MatchError(auth.ErrNotFound))
		_, err = repo.GetByUsername(ctx, "nobody")
		Expect(err).To(MatchError(auth.ErrNotFound))
		_, err = repo.GetByEmail(ctx, "nobody@example.com")
		Expect(err).To(MatchError(auth.ErrNotFound))
		Expect(repo.UpdatePassword(ctx, 999, "x")).To(MatchError(auth.ErrNotFound))
	})

	It("updates only the password hash", func() {
		u := newUser("alice", "alice@example.com")
		Expect(repo.Create(ctx, u)).To(Succeed())

		Expect(repo.UpdatePassword(ctx, u.ID, "$2a$10$new")).To(Succeed())

		stored, err := repo.GetByID(ctx, u.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(stored.PasswordHash).To(Equal("$2a$10$new"))
		Expect(stored.Username).To(Equal("alice"))
		Expect(stored.UpdatedAt).To(BeTemporally(">=", stored.CreatedAt))
	})
})
