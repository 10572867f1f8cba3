package model

import "strings"

// Normalize converts a handset name to the identifier form used by dump
// tooling: lowercase, Greek mu to "u", "+" to "p", and a trailing "ii" to
// "2" (SO902iWP+ -> so902iwpp, F505iII -> f505i2). Only the suffix "ii" is
// rewritten; an interior "ii" is part of the name.
func Normalize(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.ReplaceAll(s, "μ", "u")
	s = strings.ReplaceAll(s, "+", "p")
	if strings.HasSuffix(s, "ii") {
		s = s[:len(s)-2] + "2"
	}
	return s
}
