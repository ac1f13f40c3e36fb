package irc

import (
	"errors"
	"strings"
)

// Message represents a single IRC protocol message
type Message struct {
	Prefix  string
	Command string
	Params  []string
}

// ErrNoCommand is returned for a line that carries no command token
var ErrNoCommand = errors.New("line is missing a command")

// ParseMessage parses one line (without its CRLF terminator) into a Message
func ParseMessage(line string) (*Message, error) {
	line = strings.TrimRight(line, "\r\n")

	msg := &Message{
		Params: make([]string, 0, 4),
	}

	rest := line

	// A leading colon introduces the prefix, ending at the next space
	if strings.HasPrefix(rest, ":") {
		parts := strings.SplitN(rest[1:], " ", 2)
		if len(parts) < 2 {
			return nil, ErrNoCommand
		}
		msg.Prefix = parts[0]
		rest = parts[1]
	}

	rest = strings.TrimLeft(rest, " ")
	if rest == "" {
		return nil, ErrNoCommand
	}

	// First token is the command
	parts := strings.SplitN(rest, " ", 2)
	msg.Command = parts[0]
	if len(parts) < 2 {
		return msg, nil
	}
	rest = parts[1]

	// Positional parameters until a token begins with ':', after which the
	// remainder of the line is one verbatim trailing parameter.
	for rest != "" {
		rest = strings.TrimLeft(rest, " ")
		if rest == "" {
			break
		}
		if rest[0] == ':' {
			msg.Params = append(msg.Params, rest[1:])
			break
		}
		parts = strings.SplitN(rest, " ", 2)
		msg.Params = append(msg.Params, parts[0])
		if len(parts) < 2 {
			break
		}
		rest = parts[1]
	}

	return msg, nil
}

// String returns the wire representation of the message, without CRLF
func (m *Message) String() string {
	var builder strings.Builder

	if m.Prefix != "" {
		builder.WriteString(":")
		builder.WriteString(m.Prefix)
		builder.WriteString(" ")
	}

	builder.WriteString(m.Command)

	for i, param := range m.Params {
		builder.WriteString(" ")

		// The last parameter gets a colon when it contains spaces, is
		// empty, or starts with a colon itself
		if i == len(m.Params)-1 && (param == "" || strings.Contains(param, " ") || strings.HasPrefix(param, ":")) {
			builder.WriteString(":")
		}
		builder.WriteString(param)
	}

	return builder.String()
}
