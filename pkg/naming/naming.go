// © 2025 Evidence Lab
//
// SPDX-License-Identifier: Apache-2.0

// Package naming synthesizes deterministic, grammar-compliant names for
// disk copies, snapshots and staging storage accounts.
package naming

import (
	"crypto/sha1"
	"fmt"
	"hash/crc32"
	"regexp"
	"strings"
	"time"

	"github.com/evidencelab/cloudcopy/pkg/errs"
)

// Grammar describes a provider's naming rules for one resource kind.
// Pattern is the provider's documented regex, kept verbatim for error
// messages; Matcher is the compiled equivalent (length bounds expressed as
// lookaheads in the documented form are enforced through MaxLen).
type Grammar struct {
	MaxLen  int
	Pattern string
	Matcher *regexp.Regexp
	// Separator joins name segments: '-' on providers with RFC1035-style
	// names, '_' where dashes are disallowed.
	Separator byte
	// RewriteDashes rewrites dashes in the assembled name to the separator
	// for providers whose grammar has no dash.
	RewriteDashes bool
}

// Validate checks name against the grammar and length bound.
func (g Grammar) Validate(name string) error {
	if len(name) < 1 || len(name) > g.MaxLen || !g.Matcher.MatchString(name) {
		return &errs.InvalidNameError{Name: name, Pattern: g.Pattern}
	}
	return nil
}

const copySuffix = "copy"

// CopyName builds the deterministic name of a disk copy.
//
// The checksum is a crc32 over scopeID+sourceID, so the same source always
// yields the same name. Layout is [prefix<sep>]<sourceName><sep><8hex><sep>copy;
// sourceName is truncated to fit, and the prefix is truncated first if it
// alone would overflow the budget. The checksum and suffix are never cut.
func CopyName(g Grammar, scopeID, sourceID, sourceName, prefix string) (string, error) {
	sum := fmt.Sprintf("%08x", crc32.ChecksumIEEE([]byte(scopeID+sourceID)))
	sep := string(g.Separator)

	truncateAt := g.MaxLen - len(sum) - len(sep+copySuffix) - 1
	var name string
	if prefix != "" {
		prefix += sep
		if len(prefix) > truncateAt {
			prefix = prefix[:truncateAt]
		}
		truncateAt -= len(prefix)
		name = prefix + truncate(sourceName, truncateAt) + sep + sum + sep + copySuffix
	} else {
		name = truncate(sourceName, truncateAt) + sep + sum + sep + copySuffix
	}

	if g.RewriteDashes {
		name = strings.ReplaceAll(name, "-", sep)
	}
	if err := g.Validate(name); err != nil {
		return "", err
	}
	return name, nil
}

// TimestampName appends a second-resolution timestamp to prefix, truncating
// the prefix first so the result never exceeds the grammar's length bound.
func TimestampName(g Grammar, prefix string, now time.Time) string {
	ts := now.Format("20060102150405")
	truncateAt := g.MaxLen - len(ts) - 1
	return truncate(prefix, truncateAt) + string(g.Separator) + ts
}

// Storage account names: lowercase alphanumerics, 24 chars max.
const accountPattern = `^[a-z0-9]{1,24}$`

var accountMatcher = regexp.MustCompile(accountPattern)

// AccountName derives a staging storage-account name from the source
// resource identity. It is a pure function of sourceID: two copies of the
// same source race on the same account name, which is accepted (the staging
// area is torn down before each invocation returns).
func AccountName(sourceID string) (string, error) {
	sum := fmt.Sprintf("%x", sha1.Sum([]byte(strings.ToLower(sourceID))))
	name := sum[:23]
	if !accountMatcher.MatchString(name) {
		return "", &errs.InvalidNameError{Name: name, Pattern: accountPattern}
	}
	return name, nil
}

func truncate(s string, n int) string {
	if n < 0 {
		n = 0
	}
	if len(s) > n {
		return s[:n]
	}
	return s
}
