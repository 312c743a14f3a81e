// Package normalize turns raw strings lifted from review pages into the typed
// fields of models.ReviewRecord and models.AirlineRecord. Everything here is
// pure: no I/O, no logging, no document types.
package normalize

import (
	"regexp"
	"strconv"
	"strings"
)

const (
	MaxStars = 5  // Upper bound of every sub-rating
	MaxScore = 10 // Upper bound of the overall score

	// VerifiedSeparator splits the verification badge from the review body
	VerifiedSeparator = " | "
)

var (
	reviewIDRe = regexp.MustCompile(`review-(\d+)`)
	countryRe  = regexp.MustCompile(`\((.*?)\)`)
)

// ParseDigits returns the integer value of s when s (trimmed) is a non-empty
// run of ASCII digits, and nil otherwise. "N/A", "-3", "7.5" and "" are all nil.
func ParseDigits(s string) *int {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return nil
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil { // overflow
		return nil
	}
	return &n
}

// ParseScore parses the overall 0-10 score, nil when absent or out of range
func ParseScore(s string) *int {
	return inRange(ParseDigits(s), MaxScore)
}

// ParseRating parses a textual 0-5 sub-rating, nil when absent or out of range
func ParseRating(s string) *int {
	return inRange(ParseDigits(s), MaxStars)
}

// CountStars converts a filled-icon count into a rating, clamped to [0, MaxStars]
func CountStars(filled int) *int {
	if filled < 0 {
		filled = 0
	}
	if filled > MaxStars {
		filled = MaxStars
	}
	return &filled
}

func inRange(n *int, max int) *int {
	if n == nil || *n < 0 || *n > max {
		return nil
	}
	return n
}

// ExtractReviewID returns the digits following "review-" in a fragment's
// identifying attribute, or "" when the marker is absent.
func ExtractReviewID(attr string) string {
	m := reviewIDRe.FindStringSubmatch(attr)
	if m == nil {
		return ""
	}
	return m[1]
}

// ExtractCountry returns the first parenthesized substring of a review
// sub-header ("Jane Doe (Canada)" -> "Canada"), or "" when there is none.
func ExtractCountry(header string) string {
	m := countryRe.FindStringSubmatch(header)
	if m == nil {
		return ""
	}
	return m[1]
}

// SquashSpace collapses every run of whitespace in s to a single space and
// trims the ends. Legacy markup breaks text nodes across lines freely.
func SquashSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// SplitVerified separates "Trip Verified | Good flight" into its badge and body.
// Only the first separator splits; without one the whole squashed body is content.
func SplitVerified(body string) (verifiedType, content string) {
	body = SquashSpace(body)
	left, right, found := strings.Cut(body, VerifiedSeparator)
	if !found {
		return "", body
	}
	return strings.TrimSpace(left), strings.TrimSpace(right)
}

// OptionalString returns nil for an empty (after trimming) string
func OptionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
