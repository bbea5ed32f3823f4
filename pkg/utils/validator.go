package utils

import (
	"fmt"
	"net/mail"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	emailRegex    = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	controlChars  = regexp.MustCompile(`[\x00-\x1f\x7f]`)
	fileNameChars = regexp.MustCompile(`[^a-zA-Z0-9._\-]+`)
)

// ValidateEmail validates a bare email address
func ValidateEmail(email string) error {
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format: %s", email)
	}
	return nil
}

// ValidateFromAddress accepts "Name <addr@domain.tld>" or a bare address
func ValidateFromAddress(from string) error {
	from = strings.TrimSpace(from)
	if from == "" {
		return fmt.Errorf("from address is required")
	}
	if !strings.Contains(from, "<") {
		return ValidateEmail(from)
	}

	addr, err := mail.ParseAddress(from)
	if err != nil {
		return fmt.Errorf("invalid from address %q: %w", from, err)
	}
	if addr.Name == "" {
		return fmt.Errorf("from address %q has brackets but no display name", from)
	}
	return ValidateEmail(addr.Address)
}

// SanitizeString removes control characters
func SanitizeString(s string) string {
	return controlChars.ReplaceAllString(s, "")
}

// SanitizeFileName reduces an uploaded name to a safe base name.
// Directory components are dropped and unusual characters become underscores.
func SanitizeFileName(name string) string {
	name = filepath.Base(strings.ReplaceAll(SanitizeString(name), `\`, "/"))
	name = fileNameChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	if name == "" {
		return "upload"
	}
	if len(name) > 100 {
		ext := filepath.Ext(name)
		if len(ext) > 10 {
			ext = ""
		}
		name = name[:100-len(ext)] + ext
	}
	return name
}
