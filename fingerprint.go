package rustle

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"
)

// contentHashSeed keeps ContentHash from aliasing Fingerprint: the two values
// serve different roles (identity vs change detection) and must never be
// interchangeable by accident.
const contentHashSeed = 0x72757374 // "rust"

// Normalize prepares text for hashing: trim, lowercase, and collapse internal
// whitespace runs to single spaces. The extractor and the runtime resolver
// must normalize identically or fingerprints drift between build and run time.
func Normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// Fingerprint derives the stable identifier for a text fragment: xxhash64 of
// the normalized text, rendered as 16 lowercase hex characters. Fingerprints
// are stable, not collision-free.
func Fingerprint(text string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(Normalize(text)))
}

// ContentHash derives the change-detection hash for a text fragment. Unlike
// Fingerprint it hashes the raw text: edits that the fingerprint's
// normalization absorbs (casing, internal whitespace) still read as content
// changes and mark an entry for re-translation.
func ContentHash(text string) string {
	d := xxhash.NewWithSeed(contentHashSeed)
	_, _ = d.WriteString(text)
	return fmt.Sprintf("%016x", d.Sum64())
}

var (
	punctDigitRE = regexp.MustCompile(`^[\s\d\p{P}\p{S}]+$`)
	allCapsRE    = regexp.MustCompile(`^[A-Z0-9_]+$`)
	urlRE        = regexp.MustCompile(`^(?:https?://|www\.)\S+$`)
)

// IsTranslatableText reports whether a fragment is worth translating. It
// rejects empty or near-empty strings, pure punctuation/digits, ALL_CAPS
// identifier-like tokens, URLs, and template placeholders. Both the CLI
// extractor and any runtime scanner must apply this same predicate.
func IsTranslatableText(text string) bool {
	t := strings.TrimSpace(text)
	if utf8.RuneCountInString(t) < 2 {
		return false
	}
	if punctDigitRE.MatchString(t) {
		return false
	}
	if allCapsRE.MatchString(t) {
		return false
	}
	if urlRE.MatchString(t) {
		return false
	}
	if strings.Contains(t, "{{") && strings.Contains(t, "}}") {
		return false
	}
	if strings.Contains(t, "${") && strings.Contains(t, "}") {
		return false
	}
	return true
}
