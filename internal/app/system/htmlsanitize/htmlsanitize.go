// internal/app/system/htmlsanitize/htmlsanitize.go

// Package htmlsanitize strips dangerous markup from user-generated text
// before it is persisted. Report descriptions, solutions, justifications,
// ban reasons, and profile fields all pass through here.
package htmlsanitize

import "github.com/microcosm-cc/bluemonday"

var (
	// ugc allows basic formatting but removes scripts, event handlers,
	// and javascript: URLs.
	ugc = bluemonday.UGCPolicy()

	// strict strips all markup, leaving plain text.
	strict = bluemonday.StrictPolicy()
)

// Sanitize cleans user-generated content, preserving safe formatting tags.
func Sanitize(s string) string {
	return ugc.Sanitize(s)
}

// PlainText strips every tag, for fields that must never carry markup
// (names, locations, reasons).
func PlainText(s string) string {
	return strict.Sanitize(s)
}
