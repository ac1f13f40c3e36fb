package irc

import (
	"log"
	"strings"
)

// MaxLineLen is the longest line the framer will accept, in bytes
const MaxLineLen = 512

// Framer turns an arbitrary byte stream into discrete protocol messages.
// Each connection owns one Framer; partial lines are buffered between
// feeds.
type Framer struct {
	buffer  strings.Builder
	dropped int
}

// NewFramer creates a new framer
func NewFramer() *Framer {
	return &Framer{}
}

// Feed appends input to the internal buffer and extracts every complete
// line it now holds. Malformed or oversized lines are dropped and logged;
// one bad line never poisons subsequent lines.
func (f *Framer) Feed(p []byte) []*Message {
	f.buffer.WriteString(normalizeNewlines(p))

	var msgs []*Message
	rest := f.buffer.String()
	for {
		pos := strings.Index(rest, "\r\n")
		if pos < 0 {
			break
		}
		line := rest[:pos]
		rest = rest[pos+2:]

		if len(line) > MaxLineLen {
			f.dropped++
			log.Printf("framer: dropping %d byte line (over %d byte limit)", len(line), MaxLineLen)
			continue
		}
		if line == "" {
			continue
		}

		msg, err := ParseMessage(line)
		if err != nil {
			f.dropped++
			log.Printf("framer: dropping line: %v", err)
			continue
		}
		msgs = append(msgs, msg)
	}

	f.buffer.Reset()
	f.buffer.WriteString(rest)
	return msgs
}

// Dropped returns the running count of lines discarded as oversized or
// malformed
func (f *Framer) Dropped() int {
	return f.dropped
}

// normalizeNewlines rewrites every \r, \n and \r\n terminator to \r\n
func normalizeNewlines(p []byte) string {
	var normalized strings.Builder
	normalized.Grow(len(p))

	for i := 0; i < len(p); i++ {
		switch p[i] {
		case '\r':
			normalized.WriteString("\r\n")
			if i+1 < len(p) && p[i+1] == '\n' {
				i++
			}
		case '\n':
			normalized.WriteString("\r\n")
		default:
			normalized.WriteByte(p[i])
		}
	}

	return normalized.String()
}
