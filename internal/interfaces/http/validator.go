package http

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Input validation constants
const (
	MaxAdNameLength  = 64
	MaxAdTextLength  = 4000
	MaxImageRefLen   = 512
	MaxTargetChats   = 500
	MaxBalanceAmount = 1_000_000
)

var userIDPattern = regexp.MustCompile(`^[0-9]{1,20}$`)

// ValidUserID checks that s looks like a Telegram user id
func ValidUserID(s string) bool {
	return userIDPattern.MatchString(s)
}

// SanitizeString removes null bytes and invalid UTF-8
func SanitizeString(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")

	if !utf8.ValidString(s) {
		v := make([]rune, 0, len(s))
		for _, r := range s {
			if r != utf8.RuneError {
				v = append(v, r)
			}
		}
		s = string(v)
	}
	return s
}

// ValidateLength checks that the rune count of s is within bounds
func ValidateLength(s string, min, max int) bool {
	l := utf8.RuneCountInString(s)
	return l >= min && l <= max
}
