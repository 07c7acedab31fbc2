package report

import (
	"regexp"
	"strings"
)

// Accepted video URL shapes: the short share host with the id as the
// first path segment, or the long host with the id in the v query
// parameter. The id is always an 11-character token of letters, digits,
// underscore, and hyphen; trailing path or query segments are tolerated.
var (
	shortURLPattern = regexp.MustCompile(`^https?://(www\.)?youtu\.be/([A-Za-z0-9_-]{11})([?&/#].*)?$`)
	watchURLPattern = regexp.MustCompile(`^https?://(www\.)?youtube\.com/watch\?v=([A-Za-z0-9_-]{11})([&#/].*)?$`)
)

// Validate checks the submitted URL shape and category membership. It has
// no side effects and collects every failing field so the caller can
// render per-field feedback. Malformed input yields a failure result,
// never a panic.
func Validate(videoURL, category string) ValidationResult {
	fieldErrors := map[Field]string{}
	if !ValidVideoURL(videoURL) {
		fieldErrors[FieldVideoURL] = "not a recognized video URL"
	}
	if !Category(category).Valid() {
		fieldErrors[FieldCategory] = "not a recognized report category"
	}
	if len(fieldErrors) > 0 {
		return ValidationResult{FieldErrors: fieldErrors}
	}
	return ValidationResult{OK: true}
}

// ValidVideoURL reports whether raw matches one of the accepted URL
// shapes. Empty and whitespace-only input never matches.
func ValidVideoURL(raw string) bool {
	_, ok := VideoID(raw)
	return ok
}

// VideoID extracts the 11-character video id from an accepted URL shape.
// The second return is false when the URL does not match either shape.
func VideoID(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", false
	}
	for _, pattern := range []*regexp.Regexp{shortURLPattern, watchURLPattern} {
		if m := pattern.FindStringSubmatch(trimmed); m != nil {
			return m[2], true
		}
	}
	return "", false
}
