// Package validation holds the pure input checks shared by the handlers and
// the fixed catalog of user-facing messages.
package validation

import (
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

var (
	cniePattern  = regexp.MustCompile(`^[A-Z]{2}[0-9]{6}$`)
	namePattern  = regexp.MustCompile(`^[a-zA-ZÀ-ÿ\s'-]+$`)
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
)

// NormalizeCNIE trims and upper-cases a submitted CNIE.
func NormalizeCNIE(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// CNIE reports whether s is two uppercase letters followed by six digits.
func CNIE(s string) bool {
	return cniePattern.MatchString(strings.TrimSpace(s))
}

// Name accepts 2-100 characters of letters (accented included), spaces,
// hyphens and apostrophes.
func Name(s string) bool {
	s = strings.TrimSpace(s)
	n := utf8.RuneCountInString(s)
	if n < 2 || n > 100 {
		return false
	}
	return namePattern.MatchString(s)
}

func Email(s string) bool {
	return emailPattern.MatchString(strings.TrimSpace(s))
}

// DateRange requires start strictly before end.
func DateRange(start, end time.Time) bool {
	if start.IsZero() || end.IsZero() {
		return false
	}
	return start.Before(end)
}

// Layouts accepted for dates submitted by HTML forms.
var dateLayouts = []string{
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseDate parses a form date in loc (datetime-local inputs carry no zone).
func ParseDate(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Sanitize trims s, truncates it to maxLen runes (0 = unlimited) and drops
// control characters other than newline and tab.
func Sanitize(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	if maxLen > 0 && utf8.RuneCountInString(s) > maxLen {
		s = string([]rune(s)[:maxLen])
	}
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' || unicode.IsPrint(r) {
			return r
		}
		return -1
	}, s)
}
