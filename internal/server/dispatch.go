package server

import (
	"log"

	"github.com/oliynykmax/irc-hive/internal/irc"
)

// handlerFunc handles one protocol verb for one connection. It returns
// false when the connection must be torn down and no further buffered
// messages processed.
type handlerFunc func(s *Server, c *Conn, msg *irc.Message) bool

// handlers is the closed dispatch table mapping verbs to their handlers.
// Lookup is case-sensitive.
var handlers = map[string]handlerFunc{
	"PASS":    handlePass,
	"NICK":    handleNick,
	"USER":    handleUser,
	"JOIN":    handleJoin,
	"PART":    handlePart,
	"PRIVMSG": handlePrivmsg,
	"KICK":    handleKick,
	"INVITE":  handleInvite,
	"TOPIC":   handleTopic,
	"MODE":    handleMode,
	"QUIT":    handleQuit,
	"CAP":     handleCap,
	"WHOIS":   handleWhois,
	"WHO":     handleWho,
	"PING":    handlePing,
}

// dispatch routes one parsed message to its handler. It enforces the
// server password gate before any verb other than PASS and CAP, and sends
// the welcome burst once a connection has both a nickname and a username.
// A false return tells the caller to stop draining this connection's
// messages and tear it down.
func (s *Server) dispatch(c *Conn, msg *irc.Message) bool {
	s.metrics.CommandsTotal.WithLabelValues(msg.Command).Inc()

	if s.config.Server.Password != "" && !c.authenticated &&
		msg.Command != "PASS" && msg.Command != "CAP" {
		c.sendNumeric(irc.ERR_PASSWDMISMATCH, "Incorrect password")
		return false
	}

	handler, ok := handlers[msg.Command]
	if !ok {
		log.Printf("unsupported command %q from %s (params %v)", msg.Command, c.ID, msg.Params)
		c.sendNumeric(irc.ERR_UNKNOWNCOMMAND, msg.Command, "Unknown command")
		return true
	}

	cont := handler(s, c, msg)

	if cont && msg.Command != "QUIT" && !c.registered && c.Nickname != "" && c.Username != "" {
		c.sendWelcome()
		c.registered = true
	}

	return cont
}
