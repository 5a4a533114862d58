// Package grading scores student answers. Everything here is pure: no I/O,
// no errors, a definite result for every input.
package grading

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// SimilarityThreshold is the share of significant reference words a free-text
// answer must contain to count as similar.
const SimilarityThreshold = 0.7

// minSignificantLen is the shortest word (in runes) that takes part in matching.
// Shorter words ("is", "of", "a") are ignored unless the reference has nothing else.
const minSignificantLen = 3

const strippedPunctuation = ".,/#!$%^&*;:{}=-_`~()"

// Normalize lowercases s, strips the punctuation set and collapses whitespace.
// It is idempotent.
func Normalize(s string) string {
	return strings.Join(words(s), " ")
}

func words(s string) []string {
	s = strings.Map(func(r rune) rune {
		if strings.ContainsRune(strippedPunctuation, r) {
			return -1
		}
		return r
	}, strings.ToLower(s))
	// Composition runs last: stripping punctuation can bring a combining
	// mark next to a letter it now composes with.
	return strings.Fields(strings.ToLower(norm.NFC.String(s)))
}

// IsSimilar reports whether the student's free-text answer covers the reference
// answer closely enough.
func IsSimilar(student, reference string) bool {
	if student == "" || reference == "" {
		return false
	}
	sw := words(student)
	rw := words(reference)
	if len(rw) == 0 {
		return false
	}
	if strings.Join(sw, " ") == strings.Join(rw, " ") {
		return true
	}

	studentSet := make(map[string]struct{}, len(sw))
	for _, w := range sw {
		studentSet[w] = struct{}{}
	}
	refSet := significant(rw)

	matches := 0
	for w := range refSet {
		if _, ok := studentSet[w]; ok {
			matches++
		}
	}
	return float64(matches)/float64(len(refSet)) >= SimilarityThreshold
}

// significant returns the distinct reference words long enough to matter, or
// every distinct word when none are.
func significant(ws []string) map[string]struct{} {
	all := make(map[string]struct{}, len(ws))
	long := make(map[string]struct{}, len(ws))
	for _, w := range ws {
		all[w] = struct{}{}
		if utf8.RuneCountInString(w) >= minSignificantLen {
			long[w] = struct{}{}
		}
	}
	if len(long) == 0 {
		return all
	}
	return long
}
