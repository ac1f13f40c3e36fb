package server

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/oliynykmax/irc-hive/internal/irc"
)

// Conn represents one accepted client connection. It owns the socket and
// the framer that turns its byte stream into messages; the embedded User
// is the identity the connection registers.
type Conn struct {
	User

	ID     string
	server *Server
	sock   net.Conn
	framer *irc.Framer

	authenticated bool // server password verified
	registered    bool // welcome burst sent after NICK+USER
}

// newConn creates a connection record for an accepted socket
func newConn(server *Server, sock net.Conn) *Conn {
	host, _, _ := net.SplitHostPort(sock.RemoteAddr().String())

	c := &Conn{
		ID:     uuid.New().String(),
		server: server,
		sock:   sock,
		framer: irc.NewFramer(),
	}
	c.Hostname = host
	return c
}

// sendRaw writes one CRLF-terminated line to the socket
func (c *Conn) sendRaw(line string) error {
	if !strings.HasSuffix(line, "\r\n") {
		line += "\r\n"
	}
	if _, err := c.sock.Write([]byte(line)); err != nil {
		return fmt.Errorf("send to %s failed: %w", c.ID, err)
	}
	return nil
}

// sendMessage sends a server-prefixed message to the client
func (c *Conn) sendMessage(prefix, command string, params ...string) error {
	msg := &irc.Message{
		Prefix:  prefix,
		Command: command,
		Params:  params,
	}
	return c.sendRaw(msg.String())
}

// sendNumeric sends a numeric reply to the client, addressed to its
// current nickname (or * before one is set)
func (c *Conn) sendNumeric(code int, params ...string) error {
	nick := c.Nickname
	if nick == "" {
		nick = "*"
	}
	all := append([]string{nick}, params...)
	return c.sendMessage(c.server.Name(), fmt.Sprintf("%03d", code), all...)
}

// sendWelcome sends the four-line registration welcome burst
func (c *Conn) sendWelcome() {
	serverName := c.server.Name()
	network := c.server.config.Server.Network

	c.sendNumeric(irc.RPL_WELCOME, fmt.Sprintf("Welcome to the %s IRC Network %s", network, c.Prefix()))
	c.sendNumeric(irc.RPL_YOURHOST, fmt.Sprintf("Your host is %s, running version %s", serverName, serverVersion))
	c.sendNumeric(irc.RPL_CREATED, fmt.Sprintf("This server was created %s", c.server.startTime.Format(time.RFC1123)))
	c.sendNumeric(irc.RPL_MYINFO, serverName, serverVersion, "o", "itkl")
}

// close shuts the socket down. Safe to call more than once.
func (c *Conn) close() {
	c.sock.Close()
}
