// internal/app/system/protocol/protocol.go

// Package protocol derives the human-facing display codes shown for
// reports and admin pending items. Codes are deterministic renderings of
// a sequence number and are never persisted.
package protocol

import "fmt"

// Prefixes for the different pending-item kinds the administrator sees.
const (
	PrefixReport       = "PROT"
	PrefixOrganization = "ONG"
	PrefixUser         = "USR"
	PrefixDenied       = "DEN"
)

// Code renders a fixed-width, zero-padded display code, e.g.
// Code("PROT", 42) == "PROT-000042".
func Code(prefix string, seq int64) string {
	return fmt.Sprintf("%s-%06d", prefix, seq)
}

// Report renders the display code for a report sequence number.
func Report(seq int64) string {
	return Code(PrefixReport, seq)
}
