// Package util provides common utility functions used across the codebase.
package util

import (
	"sort"
	"strings"
)

// JoinOrNone joins strings with ", " or returns "(none)" for empty slices.
// This is useful for displaying lists of hosts, tags, or other items where
// an empty list should show a placeholder rather than nothing.
func JoinOrNone(items []string) string {
	return JoinOrDefault(items, "(none)")
}

// JoinOrDefault joins strings with ", " or returns the default value for empty slices.
func JoinOrDefault(items []string, def string) string {
	if len(items) == 0 {
		return def
	}
	return strings.Join(items, ", ")
}

// Pluralize returns singular if count is 1, otherwise plural.
func Pluralize(count int, singular, plural string) string {
	if count == 1 {
		return singular
	}
	return plural
}

// LevenshteinDistance computes the edit distance between two strings:
// the minimum number of single-character insertions, deletions, and
// substitutions needed to turn one into the other.
func LevenshteinDistance(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	matrix := make([][]int, len(a)+1)
	for i := range matrix {
		matrix[i] = make([]int, len(b)+1)
		matrix[i][0] = i
	}
	for j := range matrix[0] {
		matrix[0][j] = j
	}

	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			matrix[i][j] = min(
				matrix[i-1][j]+1,      // deletion
				matrix[i][j-1]+1,      // insertion
				matrix[i-1][j-1]+cost, // substitution
			)
		}
	}

	return matrix[len(a)][len(b)]
}

// SuggestSimilar returns up to max candidates within edit distance 2 of
// input, closest first. Matching is case-insensitive so a typo like
// 'Deplyo' still finds 'deploy'.
func SuggestSimilar(input string, candidates []string, max int) []string {
	if input == "" || len(candidates) == 0 {
		return nil
	}
	const maxDistance = 2

	lower := strings.ToLower(input)
	type match struct {
		name string
		dist int
	}
	var matches []match
	for _, c := range candidates {
		d := LevenshteinDistance(lower, strings.ToLower(c))
		if d <= maxDistance {
			matches = append(matches, match{name: c, dist: d})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].dist < matches[j].dist
	})
	if len(matches) > max {
		matches = matches[:max]
	}

	var out []string
	for _, m := range matches {
		out = append(out, m.name)
	}
	return out
}

// Itoa converts an integer to its string representation.
// This is a lightweight alternative to strconv.Itoa that avoids the strconv import
// for packages that only need simple integer formatting.
func Itoa(n int) string {
	if n == 0 {
		return "0"
	}

	neg := n < 0
	if neg {
		n = -n
	}

	var buf [20]byte
	i := len(buf)

	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}

	if neg {
		i--
		buf[i] = '-'
	}

	return string(buf[i:])
}
