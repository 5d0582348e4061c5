package core

import "strings"

// SyntacticValidator accepts non-blank questions ending in a question mark.
// No semantic check is made.
type SyntacticValidator struct{}

func (SyntacticValidator) IsValid(question string) bool {
	q := strings.TrimSpace(question)
	return q != "" && strings.HasSuffix(q, "?")
}
