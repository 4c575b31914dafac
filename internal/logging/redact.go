// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WhiskeyTracker Contributors

package logging

import "strings"

// RedactEmail keeps the first two characters of the local part and the
// domain: "alice@example.com" becomes "al***@example.com".
func RedactEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || strings.Contains(domain, "@") {
		return "***"
	}
	if len(local) > 2 {
		return local[:2] + "***@" + domain
	}
	return "***@" + domain
}

// RedactToken replaces a secret token for logging.
func RedactToken(string) string {
	return "[REDACTED_TOKEN]"
}
