package domain

import (
	"strings"
	"unicode"
)

type Contact struct {
	Name  string
	Email string
	Phone string
}

func (c Contact) Normalized() Contact {
	return Contact{
		Name:  strings.TrimSpace(c.Name),
		Email: strings.ToLower(strings.TrimSpace(c.Email)),
		Phone: digitsOnly(c.Phone),
	}
}

func (c Contact) HasIdentity() bool {
	n := c.Normalized()
	return n.Email != "" || n.Phone != ""
}

// Matches reports whether other carries every identifier stored on c.
// A contact with neither email nor phone matches nothing.
func (c Contact) Matches(other Contact) bool {
	stored, got := c.Normalized(), other.Normalized()
	if stored.Email == "" && stored.Phone == "" {
		return false
	}
	if stored.Email != "" && stored.Email != got.Email {
		return false
	}
	if stored.Phone != "" && stored.Phone != got.Phone {
		return false
	}
	return true
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
