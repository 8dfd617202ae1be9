package services

import (
	"regexp"
	"strconv"
	"strings"

	"lumina/internal/models"
)

// HandleDomain is appended to the sanitized mobile number to form the
// email-shaped login handle the auth service requires
const HandleDomain = "lumina.app"

const fallbackFullName = "Lumina User"

var (
	nonDigits  = regexp.MustCompile(`\D`)
	whitespace = regexp.MustCompile(`\s+`)
)

// SanitizeMobile strips every non-digit character
func SanitizeMobile(mobile string) string {
	return nonDigits.ReplaceAllString(mobile, "")
}

// LoginHandle returns the synthetic login email for a mobile number
func LoginHandle(mobile string) (string, error) {
	digits := SanitizeMobile(mobile)
	if len(digits) < 10 {
		return "", ErrInvalidMobile
	}
	return digits + "@" + HandleDomain, nil
}

// AvatarURL returns the generated avatar for a seed
func AvatarURL(seed string) string {
	return "https://api.dicebear.com/7.x/avataaars/svg?seed=" + seed
}

// usernameFor lowercases a display name and replaces each whitespace run
// with one underscore
func usernameFor(fullName string, suffix int) string {
	base := whitespace.ReplaceAllString(strings.ToLower(fullName), "_")
	return base + strconv.Itoa(suffix)
}

// fillIdentity applies display defaults for incomplete author snapshots
func fillIdentity(id models.Identity, seed string) models.Identity {
	if id.Username == "" {
		id.Username = "user"
		if seed == "" {
			seed = id.ID
		}
	} else {
		seed = id.Username
	}
	if id.FullName == "" {
		id.FullName = fallbackFullName
	}
	if id.Avatar == "" {
		id.Avatar = AvatarURL(seed)
	}
	return id
}
