// Package textnorm turns raw notification text into a canonical comparison
// key and extracts embedded URLs. All functions are pure and deterministic
// across process restarts.
package textnorm

import (
	"crypto/md5"
	"encoding/hex"
	"regexp"
	"strings"
)

// LinkPlaceholder replaces every URL-shaped substring during normalization so
// that two bodies differing only in URL target fingerprint identically.
const LinkPlaceholder = "<link>"

var (
	whitespaceRegex = regexp.MustCompile(`\s+`)
	linkRegex       = regexp.MustCompile(`https?://\S+`)
	urlRegex        = regexp.MustCompile(`(?i)\b(?:https?://|www\d{0,3}[.]|[a-z0-9.\-]+[.][a-z]{2,4}/)(?:[^\s()<>]+|\([^\s()<>]+\))+`)
)

// Normalize lower-cases the text, collapses whitespace runs to single spaces,
// replaces URLs with a placeholder token and trims. Idempotent.
func Normalize(text string) string {
	s := strings.ToLower(text)
	s = whitespaceRegex.ReplaceAllString(s, " ")
	s = linkRegex.ReplaceAllString(s, LinkPlaceholder)
	return strings.TrimSpace(s)
}

// Fingerprint hashes the normalized text to a stable 128-bit hex digest,
// bounding storage in the dedup caches.
func Fingerprint(text string) string {
	sum := md5.Sum([]byte(Normalize(text)))
	return hex.EncodeToString(sum[:])
}

// ExtractURLs returns all URL-like substrings (scheme-prefixed, www.-prefixed
// or bare domain-with-path) in order of first appearance, each at most once.
func ExtractURLs(text string) []string {
	matches := urlRegex.FindAllString(text, -1)

	seen := make(map[string]struct{}, len(matches))
	var urls []string
	for _, u := range matches {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		urls = append(urls, u)
	}
	return urls
}
