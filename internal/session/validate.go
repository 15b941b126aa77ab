package session

import (
	"fmt"
	"regexp"
	"slices"
)

var nameRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,47}$`)

// reserved names collide with CLI subcommands or directory entries.
var reserved = []string{"logs", "tmp", "all"}

// ValidateName checks that name is usable as a session directory.
func ValidateName(name string) error {
	if !nameRegexp.MatchString(name) {
		return fmt.Errorf("invalid session name %q: must match %s", name, nameRegexp)
	}
	if slices.Contains(reserved, name) {
		return fmt.Errorf("invalid session name %q: reserved", name)
	}
	return nil
}
