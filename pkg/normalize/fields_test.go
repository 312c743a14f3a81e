package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDigits(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  *int
	}{
		{"plain number", "7", intPtr(7)},
		{"padded number", "  10 \n", intPtr(10)},
		{"zero", "0", intPtr(0)},
		{"not available", "N/A", nil},
		{"empty", "", nil},
		{"whitespace only", "   ", nil},
		{"negative", "-3", nil},
		{"decimal", "7.5", nil},
		{"mixed", "12 reviews", nil},
		{"overflow", "99999999999999999999999", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseDigits(tt.input))
		})
	}
}

func TestParseScore(t *testing.T) {
	assert.Equal(t, intPtr(10), ParseScore("10"))
	assert.Equal(t, intPtr(1), ParseScore("1"))
	assert.Nil(t, ParseScore("11"))
	assert.Nil(t, ParseScore("N/A"))
}

func TestParseRating(t *testing.T) {
	assert.Equal(t, intPtr(5), ParseRating("5"))
	assert.Equal(t, intPtr(0), ParseRating("0"))
	assert.Nil(t, ParseRating("6"))
	assert.Nil(t, ParseRating("four"))
}

func TestCountStars(t *testing.T) {
	tests := []struct {
		filled int
		want   int
	}{
		{0, 0},
		{3, 3},
		{5, 5},
		{7, 5},
		{-1, 0},
	}
	for _, tt := range tests {
		got := CountStars(tt.filled)
		require.NotNil(t, got)
		assert.Equal(t, tt.want, *got, "CountStars(%d)", tt.filled)
	}
}

func TestExtractReviewID(t *testing.T) {
	tests := []struct {
		attr string
		want string
	}{
		{"comp comp_media-review-rated list-item media position-content review-891234", "891234"},
		{"review-1", "1"},
		{"list-item review-42 odd", "42"},
		{"list-item media", ""},
		{"review-", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExtractReviewID(tt.attr), "ExtractReviewID(%q)", tt.attr)
	}
}

func TestExtractCountry(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"Jane Doe (Canada)", "Canada"},
		{"Jane Doe", ""},
		{"J. Smith (United Kingdom) 14th May 2023", "United Kingdom"},
		{"A (First) (Second)", "First"},
		{"Empty ()", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExtractCountry(tt.header), "ExtractCountry(%q)", tt.header)
	}
}

func TestSplitVerified(t *testing.T) {
	tests := []struct {
		name         string
		body         string
		wantVerified string
		wantContent  string
	}{
		{"verified trip", "Trip Verified | Good flight", "Trip Verified", "Good flight"},
		{"plain review", "Just a plain review", "", "Just a plain review"},
		{"surrounding whitespace", "  Not Verified |   Late again.  ", "Not Verified", "Late again."},
		{"only first separator splits", "Trip Verified | A | B", "Trip Verified", "A | B"},
		{"pipe without spaces", "Trip Verified|Good", "", "Trip Verified|Good"},
		{"empty", "", "", ""},
		{"separator before a line break", "Trip Verified |\n   Good flight,\n   friendly    crew.", "Trip Verified", "Good flight, friendly crew."},
		{"tab around separator", "Not Verified\t|  Late", "Not Verified", "Late"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verified, content := SplitVerified(tt.body)
			assert.Equal(t, tt.wantVerified, verified)
			assert.Equal(t, tt.wantContent, content)
		})
	}
}

func TestSquashSpace(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"   ", ""},
		{"plain", "plain"},
		{"  Type Of\n  Traveller ", "Type Of Traveller"},
		{"a\t\tb\r\nc", "a b c"},
		{"non\u00a0breaking", "non breaking"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SquashSpace(tt.in), "SquashSpace(%q)", tt.in)
	}
}

func TestOptionalString(t *testing.T) {
	assert.Nil(t, OptionalString(""))
	assert.Nil(t, OptionalString("  "))
	require.NotNil(t, OptionalString("2024-01-02"))
	assert.Equal(t, "2024-01-02", *OptionalString(" 2024-01-02 "))
}

func intPtr(v int) *int {
	return &v
}
