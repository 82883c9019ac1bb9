package orchestrator

import (
	"encoding/binary"
	"strings"

	"github.com/zeebo/blake3"
)

// DefaultDegradedMessages are shown when neither the workflow nor the
// single-pass fallback produced a reply.
var DefaultDegradedMessages = []string{
	"Sorry, I couldn't process your request right now. Please try again in a moment.",
	"Something went wrong while I was working on that. Could you try again shortly?",
	"I ran into a problem handling your message. Please try again in a few minutes.",
}

// Seed derives a stable variant seed from parts.
func Seed(parts ...string) uint64 {
	sum := blake3.Sum256([]byte(strings.Join(parts, "\x00")))
	return binary.LittleEndian.Uint64(sum[:8])
}

// SelectVariant picks one of templates deterministically from seed.
// It returns "" for an empty list.
func SelectVariant(seed uint64, templates []string) string {
	if len(templates) == 0 {
		return ""
	}
	return templates[seed%uint64(len(templates))]
}
