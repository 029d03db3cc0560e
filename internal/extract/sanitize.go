package extract

import (
	"regexp"
	"strings"
)

var (
	// Three-or-more-dot ellipsis runs left by scraped preview text.
	ellipsisRe = regexp.MustCompile(`\.{3,}|…+`)
	// Trailing "12,345 followers" marketing boilerplate.
	followersRe = regexp.MustCompile(`(?i)\b[\d,.]+\+?\s*followers\b\.?`)
	// Collapse runs of whitespace, including newlines, to a single space.
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// sloganBoilerplate lists known marketing fragments scrapers pick up from
// social profiles and hero banners. Matched case-insensitively.
var sloganBoilerplate = []string{
	"see jobs",
	"follow us on",
	"join our talent network",
	"sign up for our newsletter",
	"cookies help us deliver our services",
	"all rights reserved",
}

// SanitizeSummary cleans a textual summary: strips ellipsis runs, follower
// counts, slogan boilerplate, and collapses repeated whitespace.
func SanitizeSummary(s string) string {
	s = ellipsisRe.ReplaceAllString(s, " ")
	s = followersRe.ReplaceAllString(s, " ")

	lower := strings.ToLower(s)
	for _, slogan := range sloganBoilerplate {
		for {
			idx := strings.Index(lower, slogan)
			if idx < 0 {
				break
			}
			s = s[:idx] + " " + s[idx+len(slogan):]
			lower = strings.ToLower(s)
		}
	}

	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
