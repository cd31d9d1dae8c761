// internal/app/system/normalize/normalize.go

// Package normalize provides canonical forms for user-entered identifiers
// before they are stored or compared.
package normalize

import "strings"

// Email lowercases and trims an e-mail address. Lookup and uniqueness are
// both performed on the normalized form.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Name trims surrounding whitespace but preserves case.
func Name(s string) string {
	return strings.TrimSpace(s)
}

// Document strips whitespace and the punctuation CPF/CNPJ numbers are
// commonly typed with, leaving digits only.
func Document(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
