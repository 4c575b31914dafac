// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WhiskeyTracker Contributors

package auth

import (
	"context"
	"log/slog"

	"github.com/whiskeytracker/whiskeytracker/internal/logging"
)

// LogResetNotifier stands in for email delivery: it logs that a reset token
// was issued. The token itself is only logged when RevealToken is set, which
// serve does in the dev environment.
type LogResetNotifier struct {
	Logger      *slog.Logger
	RevealToken bool
}

// NotifyPasswordReset implements ResetNotifier.
func (n *LogResetNotifier) NotifyPasswordReset(ctx context.Context, user *User, token string) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}

	shown := logging.RedactToken(token)
	if n.RevealToken {
		shown = token
	}
	logger.InfoContext(ctx, "password reset token issued",
		"user_id", user.ID,
		"email", logging.RedactEmail(user.Email),
		"token", shown,
	)
	return nil
}

var _ ResetNotifier = (*LogResetNotifier)(nil)
