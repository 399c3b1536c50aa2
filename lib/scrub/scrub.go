// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package scrub

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"regexp"
	"sort"
)

// minSecretLength is the shortest secret value the scrubber will
// build a pattern for. Shorter values produce too many false-positive
// matches against ordinary text to be worth redacting.
const minSecretLength = 3

// pattern is one compiled find-and-replace rule.
type pattern struct {
	re          *regexp.Regexp
	replacement string
}

// Scrubber redacts every occurrence of a fixed set of secret values —
// and their URL-encoded and base64-encoded forms — from arbitrary
// text. It is immutable once built and safe for concurrent use by any
// number of goroutines.
type Scrubber struct {
	patterns []pattern
}

// New builds a Scrubber from the given secret name → value map.
// Secrets shorter than three bytes are skipped. Names are processed in
// sorted order so the resulting pattern list — and therefore the
// chained substitution behavior described on [Scrubber.Scrub] — is
// deterministic across calls with the same map.
func New(secrets map[string]string) *Scrubber {
	names := make([]string, 0, len(secrets))
	for name := range secrets {
		names = append(names, name)
	}
	sort.Strings(names)

	s := &Scrubber{}
	for _, name := range names {
		value := secrets[name]
		if len(value) < minSecretLength {
			continue
		}

		raw := regexp.QuoteMeta(value)
		s.patterns = append(s.patterns, pattern{
			re:          regexp.MustCompile(`(?i)` + raw),
			replacement: fmt.Sprintf("[REDACTED:%s]", name),
		})

		if encoded := url.QueryEscape(value); encoded != value {
			s.patterns = append(s.patterns, pattern{
				re:          regexp.MustCompile(`(?i)` + regexp.QuoteMeta(encoded)),
				replacement: fmt.Sprintf("[REDACTED:%s]", name),
			})
		}

		b64 := base64.StdEncoding.EncodeToString([]byte(value))
		s.patterns = append(s.patterns, pattern{
			re:          regexp.MustCompile(regexp.QuoteMeta(b64)),
			replacement: fmt.Sprintf("[REDACTED:%s:base64]", name),
		})
	}
	return s
}

// Scrub replaces every occurrence of every configured secret pattern
// in text with its redaction marker. Patterns are applied in the
// deterministic order fixed at construction, and each pattern sees the
// output of the one before it — so a value that happens to be a
// substring of another secret's encoded form cannot re-leak through an
// earlier substitution. Empty input passes through unchanged.
func (s *Scrubber) Scrub(text string) string {
	if text == "" {
		return text
	}
	for _, p := range s.patterns {
		text = p.re.ReplaceAllString(text, p.replacement)
	}
	return text
}
