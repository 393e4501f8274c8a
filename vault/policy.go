package vault

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Requirement names one rule of a passphrase policy.
type Requirement string

const (
	RequireLength             Requirement = "length"
	RequireUpper              Requirement = "uppercase"
	RequireLower              Requirement = "lowercase"
	RequireDigit              Requirement = "digit"
	RequireSymbol             Requirement = "symbol"
	RequireNoCommonPattern    Requirement = "no-common-pattern"
	// RequireDistinctFromMaster applies to export passphrases only.
	RequireDistinctFromMaster Requirement = "distinct-from-master"
)

func (r Requirement) describe(minLength int) string {
	switch r {
	case RequireLength:
		return fmt.Sprintf("at least %d characters", minLength)
	case RequireUpper:
		return "an uppercase letter"
	case RequireLower:
		return "a lowercase letter"
	case RequireDigit:
		return "a digit"
	case RequireSymbol:
		return "a symbol"
	case RequireNoCommonPattern:
		return "no common sequences"
	case RequireDistinctFromMaster:
		return "not the master passphrase"
	default:
		return string(r)
	}
}

// Policy is a passphrase strength policy. Length is counted in runes.
type Policy struct {
	MinLength      int
	RequireUpper   bool
	RequireLower   bool
	RequireDigit   bool
	RequireSymbol  bool
	CommonPatterns []string
}

// MasterPolicy governs vault passphrases.
func MasterPolicy() Policy {
	return Policy{
		MinLength:      12,
		RequireUpper:   true,
		RequireLower:   true,
		RequireDigit:   true,
		RequireSymbol:  true,
		CommonPatterns: []string{"123", "abc", "qwe", "password", "senha"},
	}
}

// ExportPolicy governs export passphrases. It shares the length and class
// rules of MasterPolicy but does not reject common sequences.
func ExportPolicy() Policy {
	p := MasterPolicy()
	p.CommonPatterns = nil
	return p
}

// Check returns the requirements passphrase fails, in a stable order, and
// the common patterns it contains. A nil result means the passphrase passes.
func (p Policy) Check(passphrase string) ([]Requirement, []string) {
	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, r := range passphrase {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case !unicode.IsLetter(r):
			hasSymbol = true
		}
	}

	var missing []Requirement
	if utf8.RuneCountInString(passphrase) < p.MinLength {
		missing = append(missing, RequireLength)
	}
	if p.RequireUpper && !hasUpper {
		missing = append(missing, RequireUpper)
	}
	if p.RequireLower && !hasLower {
		missing = append(missing, RequireLower)
	}
	if p.RequireDigit && !hasDigit {
		missing = append(missing, RequireDigit)
	}
	if p.RequireSymbol && !hasSymbol {
		missing = append(missing, RequireSymbol)
	}

	var found []string
	lower := strings.ToLower(passphrase)
	for _, pattern := range p.CommonPatterns {
		if strings.Contains(lower, pattern) {
			found = append(found, pattern)
		}
	}
	if len(found) > 0 {
		missing = append(missing, RequireNoCommonPattern)
	}
	return missing, found
}

func (p Policy) enforce(passphrase string, kind error) error {
	missing, found := p.Check(passphrase)
	if len(missing) == 0 {
		return nil
	}
	return &PolicyError{Kind: kind, MinLength: p.MinLength, Missing: missing, Patterns: found}
}
