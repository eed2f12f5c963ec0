package clients

import (
	"regexp"
	"strings"
)

const (
	MinSlugLen = 3
	MaxSlugLen = 30
)

var (
	slugSpaceRe = regexp.MustCompile(`[\s_]+`)
	slugStripRe = regexp.MustCompile(`[^a-z0-9-]`)
	slugDashRe  = regexp.MustCompile(`-+`)
	slugShapeRe = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*[a-z0-9]$`)
)

// SanitizeSlug lowercases s and reduces it to [a-z0-9-] with single inner
// dashes. SanitizeSlug(SanitizeSlug(s)) == SanitizeSlug(s).
func SanitizeSlug(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = slugSpaceRe.ReplaceAllString(s, "-")
	s = slugStripRe.ReplaceAllString(s, "")
	s = slugDashRe.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// ValidSlug reports whether s is already sanitized and within length bounds.
func ValidSlug(s string) bool {
	return len(s) >= MinSlugLen && len(s) <= MaxSlugLen && slugShapeRe.MatchString(s) && SanitizeSlug(s) == s
}
